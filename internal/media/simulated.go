package media

import (
	"context"
	"slices"
	"sync"
	"time"
)

// DefaultTickInterval matches the cadence browsers fire timeupdate at.
const DefaultTickInterval = 250 * time.Millisecond

type elementListener struct {
	id uint64
	fn func(ElementEvent)
}

// SimulatedElement is an Element driven by a virtual playhead, for headless
// playback where no real video is decoded. Time advances only through
// Advance, which Run calls on a ticker.
type SimulatedElement struct {
	interval time.Duration

	mu        sync.Mutex
	duration  float64
	current   float64
	rate      float64
	playing   bool
	listeners []elementListener
	nextID    uint64
}

// NewSimulatedElement creates a paused element at 0 with rate 1.
func NewSimulatedElement(duration float64, interval time.Duration) *SimulatedElement {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &SimulatedElement{
		interval: interval,
		duration: duration,
		rate:     1,
	}
}

func (s *SimulatedElement) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *SimulatedElement) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *SimulatedElement) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *SimulatedElement) Seek(seconds float64) error {
	s.mu.Lock()
	s.current = ClampTime(seconds, s.duration)
	t := s.current
	s.mu.Unlock()

	s.emit(ElementEvent{Type: ElementSeeked, Time: t})
	s.emit(ElementEvent{Type: ElementTimeUpdate, Time: t})
	return nil
}

// Play starts advancing. Playing from the end restarts at 0.
func (s *SimulatedElement) Play() error {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	if s.duration > 0 && s.current >= s.duration {
		s.current = 0
	}
	s.playing = true
	t := s.current
	s.mu.Unlock()

	s.emit(ElementEvent{Type: ElementPlaying, Time: t})
	return nil
}

func (s *SimulatedElement) Pause() error {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = false
	t := s.current
	s.mu.Unlock()

	s.emit(ElementEvent{Type: ElementPaused, Time: t})
	return nil
}

func (s *SimulatedElement) SetRate(rate float64) error {
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()

	s.emit(ElementEvent{Type: ElementRateChanged, Rate: rate})
	return nil
}

func (s *SimulatedElement) Listen(fn func(ElementEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, elementListener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l elementListener) bool { return l.id == id })
	}
}

// Advance moves a playing element forward by wall time dt scaled by the
// rate. Reaching the end pauses the element and reports ended.
func (s *SimulatedElement) Advance(dt time.Duration) {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.current += dt.Seconds() * s.rate
	ended := false
	if s.duration > 0 && s.current >= s.duration {
		s.current = s.duration
		s.playing = false
		ended = true
	}
	t := s.current
	s.mu.Unlock()

	s.emit(ElementEvent{Type: ElementTimeUpdate, Time: t})
	if ended {
		s.emit(ElementEvent{Type: ElementPaused, Time: t})
		s.emit(ElementEvent{Type: ElementEnded, Time: t})
	}
}

// Run advances the element every tick until ctx is done.
func (s *SimulatedElement) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Advance(s.interval)
		}
	}
}

func (s *SimulatedElement) emit(ev ElementEvent) {
	s.mu.Lock()
	fns := make([]func(ElementEvent), len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
