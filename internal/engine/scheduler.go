package engine

import "time"

// Scheduler creates one-shot timers for the tour.
//
// Implemented by RealScheduler (production) and testutil.FakeScheduler
// (tests, manually advanced).
type Scheduler interface {
	// AfterFunc runs fn once d has elapsed. cancel reports whether it
	// stopped the timer before it fired.
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
}

// RealScheduler schedules on the runtime timer heap. fn runs on its own
// goroutine, so controllers using it need an executor (see Loop).
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}
