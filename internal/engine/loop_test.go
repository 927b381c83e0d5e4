package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	lp := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lp.Run(ctx) }()
	t.Cleanup(cancel)
	return lp, cancel, done
}

func TestLoop_DoReturnsResult(t *testing.T) {
	lp, _, _ := startLoop(t)

	boom := errors.New("boom")
	err := lp.Do(context.Background(), "fail", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	err = lp.Do(context.Background(), "ok", func() error { return nil })
	assert.NoError(t, err)
}

func TestLoop_RunsCommandsInOrderOnOneGoroutine(t *testing.T) {
	lp, _, _ := startLoop(t)

	var order []int
	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, lp.Post(func() {
			order = append(order, i)
			wg.Done()
		}))
	}
	wg.Wait()

	// Do acts as a barrier: reading order inside the loop is race-free.
	var got []int
	require.NoError(t, lp.Do(context.Background(), "read", func() error {
		got = append(got, order...)
		return nil
	}))
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_ExecutorMarshalsFromOtherGoroutines(t *testing.T) {
	lp, _, _ := startLoop(t)
	exec := lp.Executor()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec(func() { counter++ })
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, lp.Do(context.Background(), "read", func() error {
		got = counter
		return nil
	}))
	assert.Equal(t, 20, got)
}

func TestLoop_FailedPostIsLoggedAndLoopContinues(t *testing.T) {
	lp, _, _ := startLoop(t)

	require.True(t, lp.queue.Enqueue(command{name: "broken", run: func() error {
		return errors.New("broken")
	}}))
	assert.NoError(t, lp.Do(context.Background(), "after", func() error { return nil }))
}

func TestLoop_StopsOnContext(t *testing.T) {
	_, cancel, done := startLoop(t)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_StopRunsQueuedThenReturns(t *testing.T) {
	lp := NewLoop()
	ran := false
	lp.Post(func() { ran = true })
	lp.Stop()

	assert.False(t, lp.Post(func() {}), "post after stop is rejected")
	require.NoError(t, lp.Run(context.Background()))
	assert.True(t, ran, "commands queued before stop still run")
}

func TestLoop_DoAfterStop(t *testing.T) {
	lp := NewLoop()
	lp.Stop()

	err := lp.Do(context.Background(), "late", func() error { return nil })
	require.Error(t, err)
	assert.True(t, IsClosed(err))
}

func TestLoop_DoHonoursCallerContext(t *testing.T) {
	lp := NewLoop() // never run

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := lp.Do(ctx, "stuck", func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_PendingRepliesClosedOnCancel(t *testing.T) {
	lp := NewLoop()
	reply := make(chan error, 1)
	lp.queue.Enqueue(command{name: "pending", run: func() error { return nil }, reply: reply})

	// Drain runs on return; simulate a loop that stops before dequeuing.
	lp.queue.Close()
	lp.drain()

	err := <-reply
	assert.True(t, IsClosed(err))
}
