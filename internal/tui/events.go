package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/tracesync/internal/loader"
)

// Events carries notifications from the playback loop and the file watcher
// into the UI. It implements engine.Listener and
// engine.MediaUnavailableListener.
//
// Sends never block: when the UI falls behind, notifications are dropped.
// The periodic snapshot still converges on the controller's state.
type Events struct {
	ch chan tea.Msg
}

// NewEvents creates a bridge with room for buffer pending notifications.
func NewEvents(buffer int) *Events {
	if buffer <= 0 {
		buffer = 64
	}
	return &Events{ch: make(chan tea.Msg, buffer)}
}

type stepMsg struct{ stepID string }

type timeMsg struct{ ts time.Time }

type unavailableMsg struct{ err error }

type reloadedMsg struct {
	runID   string
	dropped int
}

type reloadFailedMsg struct{ err error }

func (e *Events) OnStepSelect(stepID string) {
	e.send(stepMsg{stepID: stepID})
}

func (e *Events) OnTimeSelect(ts time.Time) {
	e.send(timeMsg{ts: ts})
}

func (e *Events) OnMediaUnavailable(err error) {
	e.send(unavailableMsg{err: err})
}

// Reloaded reports that the export was reloaded from disk.
func (e *Events) Reloaded(run *loader.Run) {
	msg := reloadedMsg{runID: run.Export.Run.ID}
	if run.Normalized != nil {
		msg.dropped = run.Normalized.DroppedCount()
	}
	e.send(msg)
}

// ReloadFailed reports an export that changed on disk but did not load.
func (e *Events) ReloadFailed(err error) {
	e.send(reloadFailedMsg{err: err})
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
	}
}

// wait returns a command that delivers the next notification.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg {
		return <-e.ch
	}
}
