package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/player"
	"github.com/roach88/tracesync/internal/tui"
	"github.com/roach88/tracesync/internal/watcher"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	source sourceOptions
	filter filterOptions
	Watch  bool
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play [export.json]",
		Short: "Open the interactive timeline and video player",
		Long: `Open the interactive player: the timeline list, a scrub bar with one
marker per item on the video, and a detail panel for the selected item.

The video is simulated from the export's duration; runs without one play
timeline-only. With --watch the export is reloaded whenever the file
changes, keeping the selection when the selected item survives.

Press ? in the player for key bindings.

Examples:
  tracesync play run.json
  tracesync play run.json --watch --errors-only
  tracesync play --run run-42`,
		Args:          sourceArgs(&opts.source),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args, cmd)
		},
	}

	addSourceFlags(cmd, &opts.source)
	addFilterFlags(cmd, &opts.filter)
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "reload the export when the file changes")

	return cmd
}

func runPlay(opts *PlayOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Watch && opts.source.RunID != "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--watch needs an export file, not --run", nil)
	}
	if !isTerminal(cmd) {
		return formatter.Fail(ExitCommandError, ErrCodeNotATerminal, "play needs an interactive terminal; use timeline or tour instead", nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
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

	// Log to stderr only with --verbose; the UI owns the screen.
	logger := opts.Logger(cmd.ErrOrStderr())
	events := tui.NewEvents(0)
	p := player.New(run,
		player.WithLogger(logger),
		player.WithListener(events),
		player.WithBaseTourInterval(cfg.BaseTourInterval()),
		player.WithTickInterval(cfg.TimeUpdateInterval()),
		player.WithRate(cfg.DefaultRate),
		player.WithFilter(filter),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	if opts.Watch {
		w, err := watcher.New(args[0], func(next *loader.Run) {
			if err := p.Reload(ctx, next); err != nil {
				events.ReloadFailed(err)
				return
			}
			events.Reloaded(next)
		},
			watcher.WithBaseline(run),
			watcher.WithErrorHandler(events.ReloadFailed),
			watcher.WithLogger(logger),
		)
		if err != nil {
			cancel()
			<-runErr
			return WrapExitError(ExitCommandError, "watch export", err)
		}
		defer w.Close()
		go func() { _ = w.Run(ctx) }()
	}

	uiErr := tui.Run(ctx, p, events)
	interrupted := ctx.Err() != nil
	p.Stop()
	cancel()
	loopErr := <-runErr

	// An interrupt ends the program through its context; that is a normal exit.
	if uiErr != nil && !interrupted {
		return WrapExitError(ExitCommandError, "player", uiErr)
	}
	if loopErr != nil {
		return WrapExitError(ExitCommandError, "playback loop", loopErr)
	}
	return nil
}

// isTerminal reports whether the command writes to an interactive terminal.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
