package normalize

import (
	"errors"
	"fmt"

	"github.com/roach88/tracesync/internal/ir"
)

// ErrorCode categorizes normalization errors.
type ErrorCode string

const (
	// ErrCodeMalformedRecord indicates a record that cannot be placed on the
	// timeline (missing or unparseable timestamp).
	ErrCodeMalformedRecord ErrorCode = "MALFORMED_RECORD"
)

// MalformedRecordError describes one dropped source record.
//
// These are collected on Result.Dropped for diagnostics and never abort
// normalization of the remaining records.
type MalformedRecordError struct {
	Code ErrorCode

	// Kind is the stream the record came from.
	Kind ir.Kind

	// SourceID is the record's own identifier, possibly empty.
	SourceID string

	// Position is the record's index within its source slice.
	Position int

	// Err is the underlying parse failure.
	Err error
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("%s: %s[%d] (id=%s): %v", e.Code, e.Kind, e.Position, e.SourceID, e.Err)
	}
	return fmt.Sprintf("%s: %s[%d]: %v", e.Code, e.Kind, e.Position, e.Err)
}

// Unwrap returns the underlying parse failure.
func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// IsMalformedRecord returns true if err is (or wraps) a MalformedRecordError.
func IsMalformedRecord(err error) bool {
	var me *MalformedRecordError
	return errors.As(err, &me)
}

func malformed(kind ir.Kind, sourceID string, position int, err error) *MalformedRecordError {
	return &MalformedRecordError{
		Code:     ErrCodeMalformedRecord,
		Kind:     kind,
		SourceID: sourceID,
		Position: position,
		Err:      err,
	}
}
