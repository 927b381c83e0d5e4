// Package engine implements the tracesync playback controller.
//
// The controller owns the position of one open run view. Four sources move
// that position: video playback time, manual scrubbing, tour playback and
// explicit selection. The controller is an explicit state machine over
// Mode; every transition is a method on Controller.
//
// ARCHITECTURE:
//
// Single Owner:
// Controller state has no locks. Exactly one goroutine owns it. The two
// asynchronous sources, media time updates and the tour timer, are
// marshalled onto the owner through an executor (Loop.Executor in
// production, inline in tests with fake schedulers and elements).
//
// Authoritative Field:
// Exactly one of CurrentVideoTime and CurrentIndex is authoritative, chosen
// by mode:
//   - media-playing, media-paused: the video time; the index follows every
//     time update, including the last one an element sends as it stops
//   - idle, manual-scrub, tour-playing: the index; entering one of these
//     re-derives the video time from the focused item's offset
//
// During a scrub drag the index follows the drag time, and a filter change
// or reload repositions it silently; EndScrub reports the settled item.
//
// Tour Timer:
// A single timer, identified by a generation counter. Cancelling bumps the
// generation, so a tick already queued on the loop is recognised as stale
// and dropped. Every transition out of tour-playing cancels the timer
// before any other effect.
//
// Stale Media Updates:
// Each seek gets an epoch from the media adapter. Time updates carry the
// epoch the element last settled; an update older than the controller's
// latest seek is discarded.
//
// CRITICAL PATTERNS:
//
// Version Clock:
// Every state change stamps State.Version from Clock.Next() so observers
// can tell snapshots apart. Wall-clock time is never used for ordering.
//
// Settled Callbacks:
// Listener callbacks fire on settled position changes only: never during a
// scrub drag, and never for a time update that leaves the focused item
// unchanged.
package engine
