package testutil

import "sync"

// DeterministicClock is an engine.Sequencer for tests and the scenario
// harness. Two clocks created the same way hand out the same stamps, so a
// replayed scenario produces an identical trace.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock returns a clock whose first stamp is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next returns the next stamp.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}
