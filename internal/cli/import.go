package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	DB string
}

// ImportedRun reports what happened to one file.
type ImportedRun struct {
	File    string `json:"file"`
	RunID   string `json:"run_id"`
	Outcome string `json:"outcome"`
	Items   int    `json:"items"`
	Dropped int    `json:"dropped"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <export.json>...",
		Short: "Store run exports in the local run cache",
		Long: `Validate, normalize and store run exports in the local run cache.

Imports are content-addressed: importing the same export twice is a no-op,
and importing changed content under an existing run ID replaces it.
Cached runs can be read by timeline, markers, tour and play with --run.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args, cmd)
		},
	}

	addDBFlag(cmd, &opts.DB)

	return cmd
}

func runImport(opts *ImportOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	// Load everything first so one bad file leaves the cache untouched.
	runs := make([]*loader.Run, 0, len(files))
	for _, file := range files {
		run, err := loader.Load(file)
		if err != nil {
			return loadExitError(err)
		}
		runs = append(runs, run)
	}

	st, err := openStore(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	results := make([]ImportedRun, 0, len(runs))
	for _, run := range runs {
		outcome, err := st.PutRun(ctx, toStoreRun(run))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), map[string]string{"file": run.Path})
		}
		results = append(results, ImportedRun{
			File:    run.Path,
			RunID:   run.Export.Run.ID,
			Outcome: outcome.String(),
			Items:   len(run.Normalized.Items),
			Dropped: run.Normalized.DroppedCount(),
		})
		formatter.VerboseLog("%s: %s %s", run.Path, outcome, run.Export.Run.ID)
	}

	if formatter.JSON() {
		return formatter.Success(results)
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(w, "%s %s (%d items, %d dropped) from %s\n", r.Outcome, r.RunID, r.Items, r.Dropped, r.File)
	}
	return nil
}

func toStoreRun(run *loader.Run) store.Run {
	dropped := make([]store.DroppedRecord, len(run.Normalized.Dropped))
	for i, d := range run.Normalized.Dropped {
		dropped[i] = store.DroppedRecord{
			Kind:     d.Kind,
			SourceID: d.SourceID,
			Position: d.Position,
			Message:  d.Err.Error(),
		}
	}
	return store.Run{
		Export:  run.Export,
		Payload: run.Payload,
		Items:   run.Normalized.Items,
		Dropped: dropped,
	}
}
