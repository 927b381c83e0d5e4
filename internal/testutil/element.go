package testutil

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/tracesync/internal/media"
)

// FakeElement is a scriptable media.Element.
//
// Transport calls are recorded in Calls and never advance time on their
// own; tests drive playback with EmitTimeUpdate. Seek reports "seeked"
// synchronously unless DeferSeeked is set, in which case Settle must be
// called to complete it. Setting one of the *Err fields makes the matching
// call fail.
type FakeElement struct {
	mu        sync.Mutex
	duration  float64
	current   float64
	rate      float64
	playing   bool
	listeners []fakeListener
	nextID    int
	calls     []string

	DeferSeeked bool
	SeekErr     error
	PlayErr     error
	PauseErr    error
	RateErr     error
}

type fakeListener struct {
	id int
	fn func(media.ElementEvent)
}

// NewFakeElement creates a paused element of the given duration.
func NewFakeElement(duration float64) *FakeElement {
	return &FakeElement{duration: duration, rate: 1}
}

func (f *FakeElement) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *FakeElement) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *FakeElement) Playing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *FakeElement) Seek(seconds float64) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("seek(%g)", seconds))
	if f.SeekErr != nil {
		err := f.SeekErr
		f.mu.Unlock()
		return err
	}
	f.current = seconds
	deferred := f.DeferSeeked
	f.mu.Unlock()

	if !deferred {
		f.Emit(media.ElementEvent{Type: media.ElementSeeked, Time: seconds})
	}
	return nil
}

func (f *FakeElement) Play() error {
	f.mu.Lock()
	f.calls = append(f.calls, "play")
	if f.PlayErr != nil {
		err := f.PlayErr
		f.mu.Unlock()
		return err
	}
	f.playing = true
	t := f.current
	f.mu.Unlock()

	f.Emit(media.ElementEvent{Type: media.ElementPlaying, Time: t})
	return nil
}

func (f *FakeElement) Pause() error {
	f.mu.Lock()
	f.calls = append(f.calls, "pause")
	if f.PauseErr != nil {
		err := f.PauseErr
		f.mu.Unlock()
		return err
	}
	f.playing = false
	t := f.current
	f.mu.Unlock()

	f.Emit(media.ElementEvent{Type: media.ElementPaused, Time: t})
	return nil
}

func (f *FakeElement) SetRate(rate float64) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("rate(%g)", rate))
	if f.RateErr != nil {
		err := f.RateErr
		f.mu.Unlock()
		return err
	}
	f.rate = rate
	f.mu.Unlock()

	f.Emit(media.ElementEvent{Type: media.ElementRateChanged, Rate: rate})
	return nil
}

func (f *FakeElement) Listen(fn func(media.ElementEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, fakeListener{id: id, fn: fn})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listeners = slices.DeleteFunc(f.listeners, func(l fakeListener) bool { return l.id == id })
	}
}

// Emit delivers ev to every listener on the calling goroutine.
func (f *FakeElement) Emit(ev media.ElementEvent) {
	f.mu.Lock()
	fns := make([]func(media.ElementEvent), len(f.listeners))
	for i, l := range f.listeners {
		fns[i] = l.fn
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// EmitTimeUpdate moves the playhead to t and reports it.
func (f *FakeElement) EmitTimeUpdate(t float64) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
	f.Emit(media.ElementEvent{Type: media.ElementTimeUpdate, Time: t})
}

// Settle completes a deferred seek.
func (f *FakeElement) Settle() {
	f.Emit(media.ElementEvent{Type: media.ElementSeeked, Time: f.CurrentTime()})
}

// Fail reports an asynchronous element error (failed load, decode error).
func (f *FakeElement) Fail(err error) {
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
	f.Emit(media.ElementEvent{Type: media.ElementError, Err: err})
}

// SetPlaying flips the playing flag without emitting, for tests that
// simulate playback driven from outside the adapter.
func (f *FakeElement) SetPlaying(playing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = playing
}

// Calls returns the transport calls made so far.
func (f *FakeElement) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// ResetCalls clears the call log.
func (f *FakeElement) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Listeners is the number of registered listeners.
func (f *FakeElement) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Rate is the last rate the element accepted.
func (f *FakeElement) Rate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}
