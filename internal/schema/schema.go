// Package schema validates run exports against an embedded CUE schema
// before they are decoded.
package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/tracesync/internal/ir"
)

//go:embed run_export.cue
var runExportSchema string

// Issue is one schema violation.
type Issue struct {
	// Path is the dotted location inside the export, e.g. "steps.3.index".
	Path    string    `json:"path"`
	Message string    `json:"message"`
	Pos     token.Pos `json:"-"`
}

func (i Issue) String() string {
	loc := i.Path
	if loc == "" {
		loc = "(root)"
	}
	if i.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", i.Pos.Filename(), i.Pos.Line(), i.Pos.Column(), loc, i.Message)
	}
	return fmt.Sprintf("%s: %s", loc, i.Message)
}

// SchemaError reports every violation found in one export.
type SchemaError struct {
	Issues []Issue
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid run export: " + e.Issues[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid run export: %d issues", len(e.Issues))
	for _, is := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(is.String())
	}
	return b.String()
}

// Validator checks exports against the embedded schema. Safe for concurrent
// use; CUE values are not, so evaluation is serialized.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	export cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(runExportSchema, cue.Filename("run_export.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile run export schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#RunExport"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #RunExport: %w", err)
	}
	return &Validator{ctx: ctx, export: def}, nil
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a process-wide validator.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

// Validate checks JSON data. name labels positions in errors.
// Returns *SchemaError for violations and a plain error for unparseable
// JSON.
func (v *Validator) Validate(name string, data []byte) error {
	expr, err := cuejson.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	unified := v.export.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// Decode validates data and decodes it into a RunExport.
func (v *Validator) Decode(name string, data []byte) (*ir.RunExport, error) {
	if err := v.Validate(name, data); err != nil {
		return nil, err
	}
	var export ir.RunExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &export, nil
}

// Load reads, validates and decodes an export file.
func (v *Validator) Load(path string) (*ir.RunExport, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read run export: %w", err)
	}
	export, err := v.Decode(path, data)
	if err != nil {
		return nil, nil, err
	}
	return export, data, nil
}

// IsSchemaError reports whether err carries schema violations.
func IsSchemaError(err error) bool {
	_, ok := AsSchemaError(err)
	return ok
}

// AsSchemaError extracts a *SchemaError from err's chain.
func AsSchemaError(err error) (*SchemaError, bool) {
	var se *SchemaError
	ok := errors.As(err, &se)
	return se, ok
}

// toSchemaError flattens a CUE error list into issues with positions.
func toSchemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Issues: []Issue{{Message: err.Error()}}}
	}

	se := &SchemaError{}
	seen := make(map[string]bool)
	for _, e := range errs {
		format, args := e.Msg()
		is := Issue{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			is.Pos = dataPosition(positions)
		}
		key := is.Path + "\x00" + is.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		se.Issues = append(se.Issues, is)
	}
	return se
}

// dataPosition prefers a position in the export over one in the schema.
func dataPosition(positions []token.Pos) token.Pos {
	for _, p := range positions {
		if p.Filename() != "run_export.cue" {
			return p
		}
	}
	return positions[0]
}
