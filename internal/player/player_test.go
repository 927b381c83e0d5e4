package player

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracesync/internal/engine"
	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/media"
)

func loadRun(t *testing.T, name string) *loader.Run {
	t.Helper()
	run, err := loader.Load(filepath.Join("..", "..", "testdata", "runs", name))
	require.NoError(t, err)
	return run
}

type steps struct {
	mu  sync.Mutex
	ids []string
}

func (s *steps) OnStepSelect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
}

func (s *steps) OnTimeSelect(time.Time) {}

func (s *steps) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func startPlayer(t *testing.T, p *Player) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	t.Cleanup(func() {
		p.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("player did not stop")
		}
	})
}

func TestPlayer_SelectAndSnapshot(t *testing.T) {
	rec := &steps{}
	p := New(loadRun(t, "checkout.json"), WithListener(rec))
	startPlayer(t, p)
	ctx := context.Background()

	require.NoError(t, p.Do(ctx, "select", func(c *engine.Controller) error {
		return c.SelectByID(ir.ItemID(ir.KindStep, "st-3"))
	}))

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-42", snap.RunID)
	assert.Equal(t, engine.ModeManualScrub, snap.State.Mode)
	assert.Equal(t, "st-3", snap.State.SelectedStepID)
	assert.True(t, snap.HasCurrent)
	assert.Len(t, snap.Artifacts, 1)
	assert.Len(t, snap.Items, 9)
	assert.Equal(t, 1, snap.Dropped)
	assert.True(t, snap.State.MediaAvailable)
	assert.Equal(t, 12.0, snap.Strip.Duration())
	assert.Equal(t, []string{"st-3"}, rec.snapshot())
}

func TestPlayer_CommandErrorsReturned(t *testing.T) {
	p := New(loadRun(t, "checkout.json"))
	startPlayer(t, p)

	err := p.Do(context.Background(), "rate", func(c *engine.Controller) error {
		return c.SetRate(3)
	})
	require.Error(t, err)
	assert.True(t, media.IsInvalidRate(err))

	err = p.Do(context.Background(), "select", func(c *engine.Controller) error {
		return c.SelectByID("step/nope")
	})
	assert.True(t, engine.IsUnknownItem(err))
}

func TestPlayer_TourAdvancesOnRealTimers(t *testing.T) {
	rec := &steps{}
	p := New(loadRun(t, "checkout.json"),
		WithListener(rec),
		WithBaseTourInterval(10*time.Millisecond),
	)
	startPlayer(t, p)

	require.NoError(t, p.Do(context.Background(), "tour", func(c *engine.Controller) error {
		return c.StartTour()
	}))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.ModeTourPlaying, snap.State.Mode)
}

func TestPlayer_MediaPlaybackFollowsSimulatedElement(t *testing.T) {
	rec := &steps{}
	p := New(loadRun(t, "checkout.json"),
		WithListener(rec),
		WithTickInterval(5*time.Millisecond),
		WithRate(2),
	)
	startPlayer(t, p)

	require.NoError(t, p.Do(context.Background(), "play", func(c *engine.Controller) error {
		return c.Play()
	}))

	require.Eventually(t, func() bool {
		snap, err := p.Snapshot(context.Background())
		return err == nil && snap.State.CurrentVideoTime > 0.05
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap.State.PlaybackRate)
}

func TestPlayer_ReloadKeepsSurvivingSelection(t *testing.T) {
	p := New(loadRun(t, "checkout.json"))
	startPlayer(t, p)
	ctx := context.Background()

	require.NoError(t, p.Do(ctx, "select", func(c *engine.Controller) error {
		return c.SelectByID(ir.ItemID(ir.KindStep, "st-3"))
	}))
	require.NoError(t, p.Reload(ctx, loadRun(t, "checkout_rerun.json")))

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-43", snap.RunID)
	assert.Equal(t, "st-3", snap.State.SelectedStepID)
	assert.Len(t, snap.Items, 7)
}

func TestPlayer_TimelineOnlyWithoutVideo(t *testing.T) {
	run := loader.FromExport("mem", &ir.RunExport{Run: ir.RunInfo{ID: "r"}}, nil)
	p := New(run)
	startPlayer(t, p)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.State.MediaAvailable)
	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.MediaErr)
}

func TestPlayer_DoAfterStop(t *testing.T) {
	p := New(loadRun(t, "checkout.json"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(context.Background())
	}()
	p.Stop()
	<-done

	err := p.Do(context.Background(), "play", func(c *engine.Controller) error { return c.Play() })
	assert.True(t, engine.IsClosed(err))
}
