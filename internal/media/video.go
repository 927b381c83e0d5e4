package media

import (
	"fmt"
	"time"

	"github.com/roach88/tracesync/internal/ir"
)

// Video locates a recording on the wall clock.
type Video struct {
	URL      string
	Duration float64
	// StartedAt is zero when the export did not say when recording began.
	StartedAt time.Time
}

// VideoFromInfo converts the wire description.
func VideoFromInfo(info ir.VideoInfo) (Video, error) {
	v := Video{URL: info.URL, Duration: info.DurationSeconds}
	if info.StartedAt.IsZero() {
		return v, nil
	}
	started, err := info.StartedAt.Parse()
	if err != nil {
		return Video{}, fmt.Errorf("video started_at: %w", err)
	}
	v.StartedAt = started
	return v, nil
}

// TimestampAt converts a video offset to wall-clock time.
func (v Video) TimestampAt(offset float64) (time.Time, bool) {
	if v.StartedAt.IsZero() {
		return time.Time{}, false
	}
	return v.StartedAt.Add(time.Duration(offset * float64(time.Second))), true
}

// OffsetFor converts a wall-clock time to a video offset, clamped to the
// recording.
func (v Video) OffsetFor(ts time.Time) (float64, bool) {
	if v.StartedAt.IsZero() {
		return 0, false
	}
	return ClampTime(ts.Sub(v.StartedAt).Seconds(), v.Duration), true
}
