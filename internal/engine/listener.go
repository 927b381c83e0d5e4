package engine

import "time"

// Listener receives settled position changes.
//
// Callbacks run synchronously on the controller's owner goroutine, never
// during a scrub drag, and always as a pair: OnStepSelect then OnTimeSelect.
// The one exception is a selection cleared by an empty view, which reports
// OnStepSelect("") alone.
type Listener interface {
	// OnStepSelect reports the focused step, "" when none.
	OnStepSelect(stepID string)

	// OnTimeSelect reports the wall-clock time of the focused item.
	OnTimeSelect(ts time.Time)
}

// MediaUnavailableListener is an optional Listener extension notified once
// when the media fails and playback falls back to timeline-only.
type MediaUnavailableListener interface {
	OnMediaUnavailable(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	StepSelect       func(stepID string)
	TimeSelect       func(ts time.Time)
	MediaUnavailable func(err error)
}

func (f ListenerFuncs) OnStepSelect(stepID string) {
	if f.StepSelect != nil {
		f.StepSelect(stepID)
	}
}

func (f ListenerFuncs) OnTimeSelect(ts time.Time) {
	if f.TimeSelect != nil {
		f.TimeSelect(ts)
	}
}

func (f ListenerFuncs) OnMediaUnavailable(err error) {
	if f.MediaUnavailable != nil {
		f.MediaUnavailable(err)
	}
}

type nopListener struct{}

func (nopListener) OnStepSelect(string)    {}
func (nopListener) OnTimeSelect(time.Time) {}
