package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // dropped records fail validation
}

// ValidationIssue is one problem found in an export.
type ValidationIssue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// DroppedInfo is a record left off the timeline.
type DroppedInfo struct {
	Kind     ir.Kind `json:"kind"`
	SourceID string  `json:"source_id,omitempty"`
	Position int     `json:"position"`
	Message  string  `json:"message"`
}

// FileValidation holds the result for one export file.
type FileValidation struct {
	File    string            `json:"file"`
	RunID   string            `json:"run_id,omitempty"`
	Valid   bool              `json:"valid"`
	Items   int               `json:"items"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
	Dropped []DroppedInfo     `json:"dropped,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <export.json>...",
		Short: "Validate run exports",
		Long: `Validate run exports against the export schema and normalize them.

Schema violations are reported with their location in the file. Records
that pass the schema but cannot be placed on the timeline (an unreadable
timestamp) are listed as dropped; they fail validation only with --strict.

Exit codes:
  0 - All exports valid
  1 - One or more exports invalid
  2 - Command error (missing file, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat dropped records as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		fv, err := validateFile(opts, file, formatter)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), map[string]string{"file": file})
		}
		result.Files = append(result.Files, fv)
		if !fv.Valid {
			result.Valid = false
		}
	}

	if formatter.JSON() {
		if !result.Valid {
			return formatter.Fail(ExitFailure, ErrCodeInvalidRun, "validation failed", result)
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, fv := range result.Files {
		writeValidationText(w, fv)
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateFile returns an error only when the file cannot be read at all.
func validateFile(opts *ValidateOptions, file string, formatter *OutputFormatter) (FileValidation, error) {
	fv := FileValidation{File: file}

	run, err := loader.Load(file)
	switch {
	case loader.IsNotFound(err):
		return fv, err
	case err != nil:
		fv.Errors = issuesFrom(err)
		return fv, nil
	}

	fv.RunID = run.Export.Run.ID
	fv.Items = run.Index.Len()
	for _, d := range run.Normalized.Dropped {
		fv.Dropped = append(fv.Dropped, DroppedInfo{
			Kind:     d.Kind,
			SourceID: d.SourceID,
			Position: d.Position,
			Message:  d.Err.Error(),
		})
	}
	fv.Valid = !(opts.Strict && len(fv.Dropped) > 0)
	formatter.VerboseLog("%s: run %s, %d items, %d dropped", file, fv.RunID, fv.Items, len(fv.Dropped))
	return fv, nil
}

func issuesFrom(err error) []ValidationIssue {
	se, ok := schema.AsSchemaError(err)
	if !ok {
		return []ValidationIssue{{Message: err.Error()}}
	}
	out := make([]ValidationIssue, len(se.Issues))
	for i, is := range se.Issues {
		out[i] = ValidationIssue{Path: is.Path, Message: is.Message}
		if is.Pos.IsValid() {
			out[i].Line = is.Pos.Line()
			out[i].Column = is.Pos.Column()
		}
	}
	return out
}

func writeValidationText(w io.Writer, fv FileValidation) {
	if fv.Valid {
		fmt.Fprintf(w, "✓ %s: run %s, %d items", fv.File, fv.RunID, fv.Items)
		if n := len(fv.Dropped); n > 0 {
			fmt.Fprintf(w, ", %d dropped", n)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "✗ %s\n", fv.File)
	}
	for _, is := range fv.Errors {
		loc := is.Path
		if loc == "" {
			loc = "(root)"
		}
		if is.Line > 0 {
			fmt.Fprintf(w, "  line %d:%d: %s: %s\n", is.Line, is.Column, loc, is.Message)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", loc, is.Message)
		}
	}
	for _, d := range fv.Dropped {
		id := d.SourceID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "  dropped %s[%d] (id=%s): %s\n", d.Kind, d.Position, id, d.Message)
	}
}
