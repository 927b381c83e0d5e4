package testutil

import (
	"sort"
	"sync"
	"time"
)

// FakeScheduler is a manually advanced timer source.
//
// Timers fire only inside Advance, on the calling goroutine, in due-time
// order (ties in creation order). Active reports how many timers are
// scheduled and not yet fired or cancelled, which lets tests assert that no
// timer leaks past a stop.
//
// Satisfies engine.Scheduler.
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	timers map[int]*fakeTimer
	fired  int
}

type fakeTimer struct {
	id  int
	due time.Duration
	fn  func()
}

// NewFakeScheduler creates a scheduler at virtual time 0.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{timers: make(map[int]*fakeTimer)}
}

// AfterFunc schedules fn to run once d of virtual time has elapsed.
// The returned cancel function reports whether it stopped a pending timer.
func (s *FakeScheduler) AfterFunc(d time.Duration, fn func()) (cancel func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.timers[id] = &fakeTimer{id: id, due: s.now + d, fn: fn}

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.timers[id]; !ok {
			return false
		}
		delete(s.timers, id)
		return true
	}
}

// Advance moves virtual time forward by d, firing every timer that becomes
// due. Timers scheduled by a firing timer fire too if they fall due within
// the same window.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		delete(s.timers, next.id)
		s.now = next.due
		s.fired++
		s.mu.Unlock()

		next.fn()
	}
}

func (s *FakeScheduler) nextDueLocked(limit time.Duration) *fakeTimer {
	var due []*fakeTimer
	for _, t := range s.timers {
		if t.due <= limit {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})
	return due[0]
}

// Active is the number of pending timers.
func (s *FakeScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Fired is the number of timers that have run.
func (s *FakeScheduler) Fired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Now is the current virtual time.
func (s *FakeScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// NextDue returns the delay until the earliest pending timer.
func (s *FakeScheduler) NextDue() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best time.Duration
	found := false
	for _, t := range s.timers {
		if !found || t.due < best {
			best, found = t.due, true
		}
	}
	return best - s.now, found
}
