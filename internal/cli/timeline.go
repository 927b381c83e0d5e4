package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/timeline"
)

// TimelineOptions holds flags for the timeline command.
type TimelineOptions struct {
	*RootOptions
	source sourceOptions
	filter filterOptions
	Width  int
}

// TimelineItemView is one row of timeline output.
type TimelineItemView struct {
	Ordinal     int       `json:"ordinal"`
	ID          string    `json:"id"`
	Kind        ir.Kind   `json:"kind"`
	Timestamp   string    `json:"timestamp"`
	VideoOffset *float64  `json:"video_offset_seconds,omitempty"`
	Status      ir.Status `json:"status,omitempty"`
	Title       string    `json:"title"`
	StepID      string    `json:"step_id,omitempty"`
	Group       string    `json:"group"`
}

// TimelineResult is the timeline command's JSON payload.
type TimelineResult struct {
	RunID   string             `json:"run_id"`
	Filter  string             `json:"filter"`
	Total   int                `json:"total"`
	Shown   int                `json:"shown"`
	Dropped int                `json:"dropped"`
	Counts  map[string]int     `json:"counts"`
	Items   []TimelineItemView `json:"items"`
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timeline [export.json]",
		Short: "Print the normalized timeline of a run",
		Long: `Print the normalized timeline of a run.

Items from every stream are merged into one sequence ordered by timestamp.
Filter flags narrow the view the same way the interactive player does;
without them the config file's default_filter applies.

Examples:
  tracesync timeline run.json
  tracesync timeline run.json --errors-only
  tracesync timeline --run run-42 --kind step,network --group-by-test
  tracesync timeline run.json --search timeout --format json`,
		Args:          sourceArgs(&opts.source),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(opts, args, cmd)
		},
	}

	addSourceFlags(cmd, &opts.source)
	addFilterFlags(cmd, &opts.filter)
	cmd.Flags().IntVar(&opts.Width, "width", 120, "truncate text output to this many columns (0 = no limit)")

	return cmd
}

func runTimeline(opts *TimelineOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	f, err := buildFilter(cmd, opts.RootOptions, &opts.filter)
	if err != nil {
		return err
	}
	run, err := loadSource(cmd.Context(), opts.RootOptions, &opts.source, args)
	if err != nil {
		return err
	}

	view := run.Index.Apply(f)
	result := TimelineResult{
		RunID:   run.Export.Run.ID,
		Filter:  f.String(),
		Total:   run.Index.Len(),
		Shown:   view.Len(),
		Dropped: run.Normalized.DroppedCount(),
		Counts:  countsByName(run.Index.Counts()),
		Items:   make([]TimelineItemView, 0, view.Len()),
	}
	for _, it := range view.Items() {
		result.Items = append(result.Items, itemView(it))
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s: %d of %d items (filter: %s)", result.RunID, result.Shown, result.Total, result.Filter)
	if result.Dropped > 0 {
		fmt.Fprintf(w, ", %d dropped", result.Dropped)
	}
	fmt.Fprintln(w)
	if view.Len() == 0 {
		fmt.Fprintln(w, "No items match the filter.")
		return nil
	}

	header := []string{"#", "TIME", "OFFSET", "KIND", "STATUS", "TITLE"}
	if !f.GroupByTest {
		Table(w, header, itemRows(view.Items()), opts.Width)
		return nil
	}
	for _, g := range view.Groups() {
		fmt.Fprintf(w, "\n%s (%d)\n", g.Key, len(g.Items))
		Table(w, header, itemRows(g.Items), opts.Width)
	}
	return nil
}

func itemView(it ir.TimelineItem) TimelineItemView {
	return TimelineItemView{
		Ordinal:     it.Ordinal,
		ID:          it.ID,
		Kind:        it.Kind,
		Timestamp:   it.Timestamp.UTC().Format(time.RFC3339Nano),
		VideoOffset: it.VideoOffsetSeconds,
		Status:      it.Status,
		Title:       it.Title,
		StepID:      it.StepID(),
		Group:       it.GroupKey(),
	}
}

func itemRows(items []ir.TimelineItem) [][]string {
	rows := make([][]string, len(items))
	for i, it := range items {
		offset := "-"
		if off, ok := it.VideoOffset(); ok {
			offset = fmt.Sprintf("%.1fs", off)
		}
		status := string(it.Status)
		if status == "" {
			status = "-"
		}
		rows[i] = []string{
			fmt.Sprint(it.Ordinal),
			it.Timestamp.UTC().Format("15:04:05.000"),
			offset,
			string(it.Kind),
			status,
			firstLine(it.Title),
		}
	}
	return rows
}

func countsByName(c timeline.Counts) map[string]int {
	out := map[string]int{"total": c.Total, "with_video_offset": c.WithVideoOffset}
	for k, n := range c.ByKind {
		out["kind:"+string(k)] = n
	}
	for s, n := range c.ByStatus {
		out["status:"+string(s)] = n
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
