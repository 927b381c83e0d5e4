package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/store"
)

// RunsOptions holds flags for the runs command and its subcommands.
type RunsOptions struct {
	*RootOptions
	DB string
}

// RunDetail is the payload of runs show.
type RunDetail struct {
	store.RunSummary
	Kinds   map[ir.Kind]int       `json:"kinds"`
	Dropped []store.DroppedRecord `json:"dropped"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs in the local run cache",
		Long: `List runs in the local run cache, most recently imported first.

Subcommands show one run's details or remove it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "run cache database (default: config db_path or $TRACESYNC_DB)")

	cmd.AddCommand(&cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show a cached run's summary, kind counts and dropped records",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "rm <run-id>",
		Short:         "Remove a run from the cache",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsRemove(opts, args[0], cmd)
		},
	})

	cmd.AddCommand(newRunsSearchCommand(opts))

	return cmd
}

type runsSearchOptions struct {
	Runs     []string
	Kinds    []string
	Statuses []string
	OnVideo  bool
	Limit    int
	Width    int
}

func newRunsSearchCommand(opts *RunsOptions) *cobra.Command {
	so := &runsSearchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find timeline items across cached runs",
		Long: `Find timeline items across every cached run, newest import first.

Examples:
  tracesync runs search --status failed
  tracesync runs search --kind network --status failed --run run-42 --run run-43`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsSearch(opts, so, cmd)
		},
	}
	cmd.Flags().StringArrayVar(&so.Runs, "run", nil, "only these run IDs (repeatable)")
	cmd.Flags().StringSliceVar(&so.Kinds, "kind", nil, "only these kinds (step, log, network, perf)")
	cmd.Flags().StringSliceVar(&so.Statuses, "status", nil, "only these statuses (passed, failed, warning, info)")
	cmd.Flags().BoolVar(&so.OnVideo, "on-video", false, "only items placed on the video")
	cmd.Flags().IntVar(&so.Limit, "limit", 50, "maximum items (0 = no limit)")
	cmd.Flags().IntVar(&so.Width, "width", 120, "truncate text output to this many columns (0 = no limit)")
	return cmd
}

func runRunsSearch(opts *RunsOptions, so *runsSearchOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	q := store.ItemQuery{RunIDs: so.Runs, WithVideoOffset: so.OnVideo, Limit: so.Limit}
	for _, k := range so.Kinds {
		kind, err := ir.ParseKind(k)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadFilter, err.Error(), nil)
		}
		q.Kinds = append(q.Kinds, kind)
	}
	for _, s := range so.Statuses {
		status, err := ir.ParseStatus(s)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadFilter, err.Error(), nil)
		}
		q.Statuses = append(q.Statuses, status)
	}

	st, err := openStore(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	found, err := st.QueryItems(cmd.Context(), q)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if formatter.JSON() {
		return formatter.Success(found)
	}
	w := cmd.OutOrStdout()
	if len(found) == 0 {
		fmt.Fprintln(w, "No matching items.")
		return nil
	}
	rows := make([][]string, len(found))
	for i, f := range found {
		rows[i] = []string{f.RunID, fmt.Sprint(f.Item.Ordinal), string(f.Item.Kind), statusOrDash(f.Item.Status), firstLine(f.Item.Title)}
	}
	Table(w, []string{"RUN", "#", "KIND", "STATUS", "TITLE"}, rows, so.Width)
	return nil
}

func runRunsList(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := openStore(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if formatter.JSON() {
		return formatter.Success(runs)
	}
	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs cached.")
		return nil
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{r.ID, orDash(r.Status), fmt.Sprint(r.ItemCount), fmt.Sprint(r.DroppedCount), orDash(r.StartedAt), r.Name}
	}
	Table(w, []string{"ID", "STATUS", "ITEMS", "DROPPED", "STARTED", "NAME"}, rows, 0)
	return nil
}

func runRunsShow(opts *RunsOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	st, err := openStore(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, _, err := st.GetRun(ctx, id)
	if err != nil {
		return storeFailure(formatter, err)
	}
	kinds, err := st.KindCounts(ctx, id)
	if err != nil {
		return storeFailure(formatter, err)
	}
	dropped, err := st.ReadDropped(ctx, id)
	if err != nil {
		return storeFailure(formatter, err)
	}
	detail := RunDetail{RunSummary: summary, Kinds: kinds, Dropped: dropped}

	if formatter.JSON() {
		return formatter.Success(detail)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:     %s\n", summary.ID)
	fmt.Fprintf(w, "Name:    %s\n", summary.Name)
	if summary.Suite != "" {
		fmt.Fprintf(w, "Suite:   %s\n", summary.Suite)
	}
	fmt.Fprintf(w, "Status:  %s\n", orDash(summary.Status))
	fmt.Fprintf(w, "Started: %s\n", orDash(summary.StartedAt))
	fmt.Fprintf(w, "Hash:    %s\n", summary.ContentHash)
	fmt.Fprintf(w, "Items:   %d\n", summary.ItemCount)
	for _, k := range sortedKinds(kinds) {
		fmt.Fprintf(w, "  %-20s %d\n", k, kinds[k])
	}
	fmt.Fprintf(w, "Dropped: %d\n", len(dropped))
	for _, d := range dropped {
		fmt.Fprintf(w, "  %s[%d] (id=%s): %s\n", d.Kind, d.Position, orDash(d.SourceID), d.Message)
	}
	return nil
}

func runRunsRemove(opts *RunsOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := openStore(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRun(cmd.Context(), id); err != nil {
		return storeFailure(formatter, err)
	}
	if formatter.JSON() {
		return formatter.Success(map[string]string{"removed": id})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
	return nil
}

func storeFailure(formatter *OutputFormatter, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
}

func sortedKinds(m map[ir.Kind]int) []ir.Kind {
	var out []ir.Kind
	for _, k := range ir.AllKinds {
		if _, ok := m[k]; ok {
			out = append(out, k)
		}
	}
	for k := range m {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
