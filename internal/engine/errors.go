package engine

import (
	"errors"
	"fmt"
)

// PlaybackError represents an error detected by the playback controller.
//
// Only UNKNOWN_ITEM, CLOSED and NOT_SCRUBBING reach callers. STALE_SELECTION
// is recovered inside the controller by clamping and appears in debug logs.
type PlaybackError struct {
	// Code identifies the error category.
	Code PlaybackErrorCode

	// Message is a human-readable description.
	Message string

	// ItemID identifies the affected timeline item, if any.
	ItemID string
}

// PlaybackErrorCode categorizes playback errors.
type PlaybackErrorCode string

const (
	// ErrCodeStaleSelection indicates the selected item left the visible
	// timeline.
	ErrCodeStaleSelection PlaybackErrorCode = "STALE_SELECTION"

	// ErrCodeUnknownItem indicates a selection by ID that matched nothing.
	ErrCodeUnknownItem PlaybackErrorCode = "UNKNOWN_ITEM"

	// ErrCodeClosed indicates an operation on a closed controller or loop.
	ErrCodeClosed PlaybackErrorCode = "CLOSED"

	// ErrCodeNotScrubbing indicates ScrubTo/EndScrub without BeginScrub.
	ErrCodeNotScrubbing PlaybackErrorCode = "NOT_SCRUBBING"
)

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.ItemID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code PlaybackErrorCode) bool {
	var pe *PlaybackError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsUnknownItem returns true if err is an UNKNOWN_ITEM playback error.
func IsUnknownItem(err error) bool {
	return hasCode(err, ErrCodeUnknownItem)
}

// IsClosed returns true if err is a CLOSED playback error.
func IsClosed(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

// IsStaleSelection returns true if err is a STALE_SELECTION playback error.
func IsStaleSelection(err error) bool {
	return hasCode(err, ErrCodeStaleSelection)
}

// IsNotScrubbing returns true if err is a NOT_SCRUBBING playback error.
func IsNotScrubbing(err error) bool {
	return hasCode(err, ErrCodeNotScrubbing)
}

func newClosedError(op string) *PlaybackError {
	return &PlaybackError{
		Code:    ErrCodeClosed,
		Message: op + " after close",
	}
}

func newUnknownItemError(id string) *PlaybackError {
	return &PlaybackError{
		Code:    ErrCodeUnknownItem,
		Message: "no such timeline item",
		ItemID:  id,
	}
}

func newStaleSelectionError(id string) *PlaybackError {
	return &PlaybackError{
		Code:    ErrCodeStaleSelection,
		Message: "selected item is no longer visible",
		ItemID:  id,
	}
}
