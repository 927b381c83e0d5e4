// Package loader turns a run export on disk into a ready-to-play timeline:
// schema validation, decoding, normalization and indexing in one call.
package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/normalize"
	"github.com/roach88/tracesync/internal/schema"
	"github.com/roach88/tracesync/internal/timeline"
)

// Error codes.
const (
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeSchema   = "SCHEMA_ERROR"
	ErrCodeRead     = "READ_ERROR"
)

// LoadError represents an error that occurred while loading a run export.
type LoadError struct {
	Code string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Code, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Run is one loaded run export.
type Run struct {
	Path    string
	Export  *ir.RunExport
	Payload []byte

	// Normalized holds the ordered items and the records that were dropped.
	Normalized *normalize.Result
	Index      *timeline.Index
}

// Video returns the run's video description, if the export has one.
func (r *Run) Video() (ir.VideoInfo, bool) {
	return r.Export.ResolveVideo()
}

// VideoDuration is the video length in seconds, 0 when unknown.
func (r *Run) VideoDuration() float64 {
	v, ok := r.Video()
	if !ok {
		return 0
	}
	return v.DurationSeconds
}

// Load reads, validates and normalizes the export at path.
func Load(path string) (*Run, error) {
	if _, err := os.Stat(path); err != nil {
		code := ErrCodeRead
		if errors.Is(err, os.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return nil, &LoadError{Code: code, Path: path, Err: err}
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Err: err}
	}
	return FromPayload(path, payload)
}

// FromPayload validates and normalizes export bytes already in memory, such
// as a payload read back from the run cache. name labels errors.
func FromPayload(name string, payload []byte) (*Run, error) {
	v, err := schema.Default()
	if err != nil {
		return nil, err
	}
	export, err := v.Decode(name, payload)
	if err != nil {
		code := ErrCodeRead
		if schema.IsSchemaError(err) {
			code = ErrCodeSchema
		}
		return nil, &LoadError{Code: code, Path: name, Err: err}
	}
	return FromExport(name, export, payload), nil
}

// FromExport normalizes and indexes an already decoded export.
func FromExport(path string, export *ir.RunExport, payload []byte) *Run {
	res := normalize.Export(export)
	return &Run{
		Path:       path,
		Export:     export,
		Payload:    payload,
		Normalized: res,
		Index:      timeline.New(res.Items, timeline.WithArtifacts(export.Artifacts)),
	}
}

// IsSchemaError reports whether err is a LoadError caused by an export that
// failed validation.
func IsSchemaError(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == ErrCodeSchema
}

// IsNotFound reports whether err is a LoadError for a missing file.
func IsNotFound(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == ErrCodeNotFound
}
