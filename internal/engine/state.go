package engine

import (
	"fmt"
	"time"
)

// Mode is the controller's playback state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeManualScrub
	ModeMediaPlaying
	ModeMediaPaused
	ModeTourPlaying
)

var modeNames = map[Mode]string{
	ModeIdle:         "idle",
	ModeManualScrub:  "manual-scrub",
	ModeMediaPlaying: "media-playing",
	ModeMediaPaused:  "media-paused",
	ModeTourPlaying:  "tour-playing",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeIdle, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// State is a read-only snapshot of the controller.
//
// Which of CurrentVideoTime and CurrentIndex is authoritative depends on
// Mode: media-playing follows the video time, every other mode follows the
// index. The other field is re-derived on mode change.
type State struct {
	Mode             Mode          `json:"mode"`
	CurrentVideoTime float64       `json:"current_video_time"`
	CurrentIndex     int           `json:"current_index"`
	SelectedStepID   string        `json:"selected_step_id,omitempty"`
	PlaybackRate     float64       `json:"playback_rate"`
	TourInterval     time.Duration `json:"-"`
	MediaAvailable   bool          `json:"media_available"`
	Scrubbing        bool          `json:"scrubbing,omitempty"`

	// Version increases on every state change.
	Version int64 `json:"version"`
}

// TourIntervalMs is TourInterval in whole milliseconds.
func (s State) TourIntervalMs() int64 {
	return s.TourInterval.Milliseconds()
}

// TourInterval is the tour step period at the given playback rate.
func TourInterval(base time.Duration, rate float64) time.Duration {
	if rate <= 0 {
		return base
	}
	return time.Duration(float64(base) / rate)
}
