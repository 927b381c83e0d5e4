package engine

import "sync/atomic"

// Sequencer hands out State.Version stamps. Values must strictly increase.
type Sequencer interface {
	Next() int64
}

// Clock is the production Sequencer: a logical counter, never wall time.
// Observers compare versions to tell whether anything changed between two
// snapshots.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next stamp. Safe for concurrent use, although only the
// controller's owner goroutine calls it.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
