package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/markers"
)

// MarkersOptions holds flags for the markers command.
type MarkersOptions struct {
	*RootOptions
	source sourceOptions
	filter filterOptions
	Width  int
}

// MarkerView is one marker in JSON output.
type MarkerView struct {
	ID     string    `json:"id"`
	Ratio  float64   `json:"ratio"`
	Offset float64   `json:"offset_seconds"`
	Column int       `json:"column"`
	Status ir.Status `json:"status,omitempty"`
	Title  string    `json:"title"`
}

// MarkersResult is the markers command's JSON payload.
type MarkersResult struct {
	RunID    string       `json:"run_id"`
	Duration float64      `json:"duration_seconds"`
	Width    int          `json:"width"`
	Bar      string       `json:"bar"`
	Markers  []MarkerView `json:"markers"`
}

// NewMarkersCommand creates the markers command.
func NewMarkersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MarkersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "markers [export.json]",
		Short: "Project timeline items onto the video scrub bar",
		Long: `Project timeline items onto the video scrub bar.

Each item with a video offset becomes a marker at offset/duration. The bar
shows one column per slice of the video, marked with the most severe
status in that slice: F failed, W warning, P passed, I info.`,
		Args:          sourceArgs(&opts.source),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarkers(opts, args, cmd)
		},
	}

	addSourceFlags(cmd, &opts.source)
	addFilterFlags(cmd, &opts.filter)
	cmd.Flags().IntVar(&opts.Width, "width", 60, "scrub bar width in columns")

	return cmd
}

func runMarkers(opts *MarkersOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if opts.Width <= 0 {
		return NewExitError(ExitCommandError, "--width must be positive")
	}

	f, err := buildFilter(cmd, opts.RootOptions, &opts.filter)
	if err != nil {
		return err
	}
	run, err := loadSource(cmd.Context(), opts.RootOptions, &opts.source, args)
	if err != nil {
		return err
	}

	duration := run.VideoDuration()
	if duration <= 0 {
		return formatter.Fail(ExitFailure, ErrCodeInvalidRun, fmt.Sprintf("run %s has no video duration", run.Export.Run.ID), nil)
	}

	strip := markers.Project(run.Index.Apply(f).Items(), duration)
	result := MarkersResult{
		RunID:    run.Export.Run.ID,
		Duration: duration,
		Width:    opts.Width,
		Bar:      renderBar(strip.Cells(opts.Width)),
		Markers:  make([]MarkerView, 0, strip.Len()),
	}
	for _, m := range strip.Markers() {
		result.Markers = append(result.Markers, MarkerView{
			ID:     m.Item.ID,
			Ratio:  m.Ratio,
			Offset: m.Offset,
			Column: markers.Column(m.Ratio, opts.Width),
			Status: m.Item.Status,
			Title:  m.Item.Title,
		})
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s: %d markers over %.1fs\n", result.RunID, len(result.Markers), duration)
	fmt.Fprintf(w, "|%s|\n", result.Bar)
	rows := make([][]string, len(result.Markers))
	for i, m := range result.Markers {
		rows[i] = []string{
			fmt.Sprintf("%.1fs", m.Offset),
			fmt.Sprintf("%.3f", m.Ratio),
			statusOrDash(m.Status),
			m.ID,
			firstLine(m.Title),
		}
	}
	Table(w, []string{"OFFSET", "RATIO", "STATUS", "ID", "TITLE"}, rows, 0)
	return nil
}

var statusGlyphs = map[ir.Status]string{
	ir.StatusFailed:  "F",
	ir.StatusWarning: "W",
	ir.StatusPassed:  "P",
	ir.StatusInfo:    "I",
}

func renderBar(cells []markers.Cell) string {
	var b strings.Builder
	for _, c := range cells {
		switch g, ok := statusGlyphs[c.Status]; {
		case c.Count == 0:
			b.WriteByte('-')
		case ok:
			b.WriteString(g)
		default:
			b.WriteByte('*')
		}
	}
	return b.String()
}

func statusOrDash(s ir.Status) string {
	if s == "" {
		return "-"
	}
	return string(s)
}
