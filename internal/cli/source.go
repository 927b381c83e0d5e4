package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/store"
	"github.com/roach88/tracesync/internal/timeline"
)

// sourceOptions selects where a command reads its run from: an export file
// argument, or a run ID in the local cache.
type sourceOptions struct {
	RunID string
	DB    string
}

func addSourceFlags(cmd *cobra.Command, o *sourceOptions) {
	cmd.Flags().StringVar(&o.RunID, "run", "", "read the run with this ID from the local cache instead of a file")
	addDBFlag(cmd, &o.DB)
}

func addDBFlag(cmd *cobra.Command, db *string) {
	cmd.Flags().StringVar(db, "db", "", "run cache database (default: config db_path or $TRACESYNC_DB)")
}

// sourceArgs accepts one export path, or none when --run is given.
func sourceArgs(o *sourceOptions) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if o.RunID != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	}
}

// openStore opens the cache at dbPath, falling back to the configured path.
func openStore(root *RootOptions, dbPath string) (*store.Store, error) {
	if dbPath == "" {
		cfg, err := root.LoadConfig()
		if err != nil {
			return nil, err
		}
		dbPath = cfg.DBPath
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "create cache directory", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open run cache %s", dbPath), err)
	}
	return st, nil
}

// loadSource loads the run named by the arguments and flags.
func loadSource(ctx context.Context, root *RootOptions, o *sourceOptions, args []string) (*loader.Run, error) {
	if o.RunID == "" {
		run, err := loader.Load(args[0])
		if err != nil {
			return nil, loadExitError(err)
		}
		return run, nil
	}

	st, err := openStore(root, o.DB)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	_, payload, err := st.GetRun(ctx, o.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, WrapExitError(ExitCommandError, "run not in cache (import it first)", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read run cache", err)
	}
	run, err := loader.FromPayload("cache:"+o.RunID, payload)
	if err != nil {
		return nil, loadExitError(err)
	}
	return run, nil
}

// loadExitError maps loader failures to exit codes: a missing or unreadable
// file is a command error, an invalid export a failure.
func loadExitError(err error) error {
	if loader.IsSchemaError(err) {
		return WrapExitError(ExitFailure, "invalid run export", err)
	}
	return WrapExitError(ExitCommandError, "load run export", err)
}

// filterOptions are the timeline filter flags shared by several commands.
type filterOptions struct {
	Kinds       []string
	Statuses    []string
	Search      string
	ErrorsOnly  bool
	GroupByTest bool
}

var filterFlagNames = []string{"kind", "status", "search", "errors-only", "group-by-test"}

func addFilterFlags(cmd *cobra.Command, o *filterOptions) {
	cmd.Flags().StringSliceVar(&o.Kinds, "kind", nil, "show only these kinds (step, log, network, perf)")
	cmd.Flags().StringSliceVar(&o.Statuses, "status", nil, "show only these statuses (passed, failed, warning, info)")
	cmd.Flags().StringVar(&o.Search, "search", "", "case-insensitive text search over titles and descriptions")
	cmd.Flags().BoolVar(&o.ErrorsOnly, "errors-only", false, "show only failed items")
	cmd.Flags().BoolVar(&o.GroupByTest, "group-by-test", false, "group items by owning test")
}

// buildFilter uses the flags when any was given and the config's
// default_filter otherwise.
func buildFilter(cmd *cobra.Command, root *RootOptions, o *filterOptions) (timeline.Filter, error) {
	for _, name := range filterFlagNames {
		if cmd.Flags().Changed(name) {
			f, err := timeline.NewFilter(o.Kinds, o.Statuses, o.Search, o.ErrorsOnly, o.GroupByTest)
			if err != nil {
				return timeline.Filter{}, WrapExitError(ExitCommandError, "invalid filter", err)
			}
			return f, nil
		}
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return timeline.Filter{}, err
	}
	f, err := cfg.Filter()
	if err != nil {
		return timeline.Filter{}, WrapExitError(ExitCommandError, "invalid default_filter", err)
	}
	return f, nil
}
