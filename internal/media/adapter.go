// Package media wraps a media element behind a narrow transport API.
//
// The Adapter is the only component that touches the element. It clamps
// seeks, validates playback rates, converts element failures into
// TransportError, and tags time updates with a seek epoch so that a consumer
// can drop updates that predate its latest seek.
package media

import (
	"log/slog"
	"math"
	"slices"
	"sync"
)

// AllowedRates are the playback multipliers SetRate accepts.
var AllowedRates = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 2}

// ValidRate reports whether r is in AllowedRates.
func ValidRate(r float64) bool {
	return slices.Contains(AllowedRates, r)
}

// seekTolerance is how close a time update must land to a seek target to
// count as the element having settled there.
const seekTolerance = 0.05

// EventType enumerates adapter events.
type EventType int

const (
	EventTimeUpdated EventType = iota + 1
	EventPlayStarted
	EventPaused
	EventEnded
	EventRateChanged
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventTimeUpdated:
		return "time-updated"
	case EventPlayStarted:
		return "play-started"
	case EventPaused:
		return "paused"
	case EventEnded:
		return "ended"
	case EventRateChanged:
		return "rate-changed"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is an inbound notification from the adapter.
type Event struct {
	Type EventType
	Time float64
	Rate float64

	// Epoch is the most recent seek the element has settled. A consumer
	// whose own latest seek is newer must ignore the update.
	Epoch uint64

	Err error
}

type subscription struct {
	id uint64
	fn func(Event)
}

// Adapter mediates all access to an Element. Safe for concurrent use.
type Adapter struct {
	el     Element
	logger *slog.Logger

	mu      sync.Mutex
	epoch   uint64
	settled uint64
	target  float64
	rate    float64
	failed  error
	subs    []subscription
	nextSub uint64
	stop    func()
	closed  bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// NewAdapter starts listening to el.
func NewAdapter(el Element, opts ...Option) *Adapter {
	a := &Adapter{
		el:     el,
		logger: slog.Default(),
		rate:   1,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.stop = el.Listen(a.handle)
	return a
}

// Subscribe registers fn for adapter events. fn runs on whichever goroutine
// the element reports from. The returned function removes the subscription
// and is safe to call more than once.
func (a *Adapter) Subscribe(fn func(Event)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return func() {}
	}
	a.nextSub++
	id := a.nextSub
	a.subs = append(a.subs, subscription{id: id, fn: fn})

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.subs = slices.DeleteFunc(a.subs, func(s subscription) bool { return s.id == id })
	}
}

// Subscribers is the number of live subscriptions.
func (a *Adapter) Subscribers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// Duration is the media length in seconds, 0 while unknown.
func (a *Adapter) Duration() float64 {
	return a.el.Duration()
}

// CurrentTime is the element's playhead in seconds.
func (a *Adapter) CurrentTime() float64 {
	return a.el.CurrentTime()
}

// Playing reports whether the element is advancing.
func (a *Adapter) Playing() bool {
	a.mu.Lock()
	failed := a.failed != nil
	a.mu.Unlock()
	return !failed && a.el.Playing()
}

// Rate is the last accepted playback rate.
func (a *Adapter) Rate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}

// Available reports whether the media can still be driven.
func (a *Adapter) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed == nil && !a.closed
}

// Err returns the failure that made the media unavailable, if any.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// Seek moves the playhead, clamped to [0, duration]. It returns the epoch
// assigned to this seek; time updates tagged with an older epoch were
// produced before the element reached the new position.
func (a *Adapter) Seek(seconds float64) (uint64, error) {
	a.mu.Lock()
	if err := a.unavailableLocked("seek"); err != nil {
		a.mu.Unlock()
		return 0, err
	}
	t := ClampTime(seconds, a.el.Duration())
	a.epoch++
	epoch := a.epoch
	a.target = t
	a.mu.Unlock()

	// The element may report synchronously; the lock must not be held.
	if err := a.el.Seek(t); err != nil {
		return epoch, a.fail("seek", err)
	}
	return epoch, nil
}

// Play starts playback.
func (a *Adapter) Play() error {
	if err := a.checkAvailable("play"); err != nil {
		return err
	}
	if err := a.el.Play(); err != nil {
		return a.fail("play", err)
	}
	return nil
}

// Pause stops playback.
func (a *Adapter) Pause() error {
	if err := a.checkAvailable("pause"); err != nil {
		return err
	}
	if err := a.el.Pause(); err != nil {
		return a.fail("pause", err)
	}
	return nil
}

// SetRate changes the playback multiplier. Rates outside AllowedRates return
// InvalidRateError and leave the adapter unchanged.
func (a *Adapter) SetRate(rate float64) error {
	if !ValidRate(rate) {
		return &InvalidRateError{Rate: rate}
	}
	if err := a.checkAvailable("set-rate"); err != nil {
		return err
	}
	if err := a.el.SetRate(rate); err != nil {
		return a.fail("set-rate", err)
	}
	a.mu.Lock()
	a.rate = rate
	a.mu.Unlock()
	return nil
}

// Close detaches from the element and drops every subscription.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.subs = nil
	stop := a.stop
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (a *Adapter) checkAvailable(op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unavailableLocked(op)
}

func (a *Adapter) unavailableLocked(op string) error {
	if a.closed || a.failed != nil {
		return &TransportError{Op: op, Err: ErrUnavailable}
	}
	return nil
}

// fail records a synchronous element failure. Callers get the error back
// directly, so subscribers are not notified.
func (a *Adapter) fail(op string, err error) error {
	te := &TransportError{Op: op, Err: err}
	a.mu.Lock()
	if a.failed == nil {
		a.failed = te
	}
	a.mu.Unlock()
	a.logger.Warn("media transport failed", "op", op, "error", err)
	return te
}

func (a *Adapter) handle(ev ElementEvent) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	var out Event
	switch ev.Type {
	case ElementSeeked:
		a.settled = a.epoch
		a.mu.Unlock()
		return
	case ElementTimeUpdate:
		if a.settled < a.epoch && math.Abs(ev.Time-a.target) <= seekTolerance {
			a.settled = a.epoch
		}
		out = Event{Type: EventTimeUpdated, Time: ev.Time}
	case ElementPlaying:
		out = Event{Type: EventPlayStarted, Time: ev.Time}
	case ElementPaused:
		out = Event{Type: EventPaused, Time: ev.Time}
	case ElementEnded:
		out = Event{Type: EventEnded, Time: ev.Time}
	case ElementRateChanged:
		a.rate = ev.Rate
		out = Event{Type: EventRateChanged, Rate: ev.Rate}
	case ElementError:
		te := &TransportError{Op: "load", Err: ev.Err}
		if a.failed == nil {
			a.failed = te
		}
		out = Event{Type: EventFailed, Err: te}
	default:
		a.mu.Unlock()
		return
	}
	out.Epoch = a.settled

	subs := make([]func(Event), len(a.subs))
	for i, s := range a.subs {
		subs[i] = s.fn
	}
	a.mu.Unlock()

	if out.Type == EventFailed {
		a.logger.Warn("media element error", "error", ev.Err)
	}
	for _, fn := range subs {
		fn(out)
	}
}

// ClampTime bounds t to [0, duration]. An unknown (non-positive) duration
// only bounds below.
func ClampTime(t, duration float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}
