package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/engine"
	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/player"
	"github.com/roach88/tracesync/internal/timeline"
)

// TourOptions holds flags for the tour command.
type TourOptions struct {
	*RootOptions
	source   sourceOptions
	filter   filterOptions
	Steps    int
	Interval time.Duration
	Rate     float64
}

// TourStop is one step the tour visited.
type TourStop struct {
	StepID    string `json:"step_id"`
	Timestamp string `json:"timestamp"`
	Title     string `json:"title,omitempty"`
}

// TourResult is the tour command's JSON payload.
type TourResult struct {
	RunID string     `json:"run_id"`
	Rate  float64    `json:"rate"`
	Stops []TourStop `json:"stops"`
}

// NewTourCommand creates the tour command.
func NewTourCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TourOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tour [export.json]",
		Short: "Step through a run's steps in real time without a terminal UI",
		Long: `Step through a run's steps in real time, printing each as it is selected.

The tour advances one eligible item per interval (base interval divided by
the playback rate). It stops after --steps selections, after one full lap
when --steps is 0, or on interrupt.

Examples:
  tracesync tour run.json
  tracesync tour run.json --rate 2 --steps 10
  tracesync tour --run run-42 --errors-only --interval 250ms`,
		Args:          sourceArgs(&opts.source),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTour(opts, args, cmd)
		},
	}

	addSourceFlags(cmd, &opts.source)
	addFilterFlags(cmd, &opts.filter)
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "stop after this many selections (0 = one lap)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "tour interval at 1x (default: config base_tour_interval_ms)")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "playback rate (default: config default_rate)")

	return cmd
}

type tourEvent struct {
	stepID string
	ts     time.Time
}

func runTour(opts *TourOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	run, err := loadSource(ctx, opts.RootOptions, &opts.source, args)
	if err != nil {
		return err
	}
	filter, err := buildFilter(cmd, opts.RootOptions, &opts.filter)
	if err != nil {
		return err
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = cfg.BaseTourInterval()
	}
	rate := opts.Rate
	if rate == 0 {
		rate = cfg.DefaultRate
	}

	// The listener runs on the loop goroutine; the send gives up once the
	// command has stopped reading.
	events := make(chan tourEvent, 16)
	done := make(chan struct{})
	var pending string
	listener := engine.ListenerFuncs{
		StepSelect: func(stepID string) { pending = stepID },
		TimeSelect: func(ts time.Time) {
			select {
			case events <- tourEvent{stepID: pending, ts: ts}:
			case <-done:
			}
		},
	}

	p := player.New(run,
		player.WithLogger(opts.Logger(cmd.ErrOrStderr())),
		player.WithListener(listener),
		player.WithBaseTourInterval(interval),
		player.WithTickInterval(cfg.TimeUpdateInterval()),
		player.WithFilter(filter),
	)
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()
	defer func() {
		close(done)
		p.Stop()
		<-runErr
	}()

	var eligible int
	err = p.Do(ctx, "start tour", func(c *engine.Controller) error {
		if err := c.SetRate(rate); err != nil {
			return err
		}
		eligible = tourEligible(c.View(), c.State().MediaAvailable)
		return c.StartTour()
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	result := TourResult{RunID: run.Export.Run.ID, Rate: rate, Stops: []TourStop{}}
	if eligible == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No items to tour.")
		return nil
	}
	limit := opts.Steps
	if limit <= 0 {
		limit = eligible
	}

	titles := stepTitles(run)
	w := cmd.OutOrStdout()
	if !formatter.JSON() {
		fmt.Fprintf(w, "Touring %s: %d stops every %s at %gx\n", run.Export.Run.ID, limit, time.Duration(float64(interval)/rate), rate)
	}
	for len(result.Stops) < limit {
		select {
		case <-ctx.Done():
			formatter.VerboseLog("tour interrupted after %d stops", len(result.Stops))
			return finishTour(formatter, result)
		case ev := <-events:
			s := TourStop{StepID: ev.stepID, Timestamp: ev.ts.UTC().Format(time.RFC3339Nano), Title: titles[ev.stepID]}
			result.Stops = append(result.Stops, s)
			if !formatter.JSON() {
				fmt.Fprintf(w, "%3d  %s  %-12s %s\n", len(result.Stops), ev.ts.UTC().Format("15:04:05.000"), s.StepID, s.Title)
			}
		}
	}
	return finishTour(formatter, result)
}

func finishTour(formatter *OutputFormatter, result TourResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return nil
}

// tourEligible counts the visible items a tour would visit.
func tourEligible(view *timeline.View, mediaAvailable bool) int {
	n := 0
	for _, it := range view.Items() {
		if it.StepID() == "" {
			continue
		}
		if mediaAvailable && !it.HasVideoOffset() {
			continue
		}
		n++
	}
	return n
}

func stepTitles(run *loader.Run) map[string]string {
	titles := make(map[string]string)
	for _, it := range run.Index.All().Items() {
		if it.Kind == ir.KindStep {
			titles[it.SourceID] = it.Title
		}
	}
	return titles
}
