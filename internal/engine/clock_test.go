package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Sequencer = (*Clock)(nil)

func TestClock_StartsAtOne(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
}

func TestClock_ConcurrentStampsAreUnique(t *testing.T) {
	c := NewClock()
	const workers, each = 8, 250

	stamps := make(chan int64, workers*each)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				stamps <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(stamps)

	seen := make(map[int64]struct{}, workers*each)
	for s := range stamps {
		_, dup := seen[s]
		require.False(t, dup, "stamp %d handed out twice", s)
		seen[s] = struct{}{}
	}
	assert.Len(t, seen, workers*each)
}
