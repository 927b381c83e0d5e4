package ir

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies which source stream a timeline item came from.
type Kind string

const (
	KindStep        Kind = "step"
	KindLog         Kind = "log"
	KindNetwork     Kind = "network-call"
	KindPerformance Kind = "performance-marker"
)

// AllKinds lists kinds in their canonical display order.
var AllKinds = []Kind{KindStep, KindLog, KindNetwork, KindPerformance}

// ParseKind accepts the canonical names plus the short aliases used on the
// command line ("network", "perf").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "step", "steps":
		return KindStep, nil
	case "log", "logs", "console":
		return KindLog, nil
	case "network-call", "network", "net":
		return KindNetwork, nil
	case "performance-marker", "performance", "perf":
		return KindPerformance, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Status drives colouring and error-only filtering.
type Status string

const (
	StatusNone    Status = ""
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

// AllStatuses lists the non-empty statuses.
var AllStatuses = []Status{StatusPassed, StatusFailed, StatusWarning, StatusInfo}

// ParseStatus accepts a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPassed:
		return StatusPassed, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusWarning, "warn":
		return StatusWarning, nil
	case StatusInfo:
		return StatusInfo, nil
	}
	return StatusNone, fmt.Errorf("unknown status %q", s)
}

// UngroupedKey is the group for items with no owning test.
const UngroupedKey = "ungrouped"

// TimelineItem is a normalized event.
//
// INVARIANT: items are immutable once produced by the normalizer. Pointer
// fields are shared between copies and must never be written through.
type TimelineItem struct {
	// ID is unique across kinds: "<kind>/<source id>".
	ID string `json:"id"`

	// SourceID is the identifier of the originating record.
	SourceID string `json:"source_id"`

	// Ordinal is the item's position in the normalized sequence.
	Ordinal int `json:"ordinal"`

	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// VideoOffsetSeconds is nil when the event was not correlated with the
	// video at capture time.
	VideoOffsetSeconds *float64 `json:"video_offset_seconds,omitempty"`
	DurationMs         *int64   `json:"duration_ms,omitempty"`

	Status        Status `json:"status,omitempty"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	RelatedStepID string `json:"related_step_id,omitempty"`

	// TestName is the owning test; the source of GroupKey.
	TestName string `json:"test_name,omitempty"`
}

// ItemID builds the timeline ID for a source record.
func ItemID(kind Kind, sourceID string) string {
	return string(kind) + "/" + sourceID
}

// VideoOffset returns the correlated video offset, if any.
func (it TimelineItem) VideoOffset() (float64, bool) {
	if it.VideoOffsetSeconds == nil {
		return 0, false
	}
	return *it.VideoOffsetSeconds, true
}

// HasVideoOffset reports whether the item can be placed on the video.
func (it TimelineItem) HasVideoOffset() bool {
	return it.VideoOffsetSeconds != nil
}

// StepID is the step this item focuses: the step itself, or the step during
// which a log/network/performance event occurred. Empty when neither applies.
func (it TimelineItem) StepID() string {
	if it.Kind == KindStep {
		return it.SourceID
	}
	return it.RelatedStepID
}

// GroupKey is the owning test's name, or UngroupedKey.
func (it TimelineItem) GroupKey() string {
	if it.TestName == "" {
		return UngroupedKey
	}
	return it.TestName
}

// IsFailure reports whether the item counts for error-only filtering.
func (it TimelineItem) IsFailure() bool {
	return it.Status == StatusFailed
}

// Float returns a pointer to v. Convenience for optional offsets.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v. Convenience for optional durations.
func Int(v int64) *int64 {
	return &v
}
