// Package player runs a playback session outside the browser: a Controller
// owned by an engine.Loop, with a simulated media element standing in for
// the video when the run has one.
//
// Player is the seam between the controller's single owner goroutine and
// callers on other goroutines (the terminal UI, the file watcher, the CLI).
// Every controller access goes through Do or Snapshot.
package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tracesync/internal/engine"
	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/markers"
	"github.com/roach88/tracesync/internal/media"
	"github.com/roach88/tracesync/internal/timeline"
)

// Player owns one playback session.
type Player struct {
	loop     *engine.Loop
	ctrl     *engine.Controller
	element  *media.SimulatedElement
	adapter  *media.Adapter
	logger   *slog.Logger
	listener engine.Listener

	baseInterval time.Duration
	tickInterval time.Duration
	rate         float64
	filter       timeline.Filter

	mu  sync.Mutex
	run *loader.Run
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the logger shared by the loop, controller and media.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) {
		p.logger = l
	}
}

// WithListener receives the controller's step and time callbacks. They run
// on the loop goroutine and must not block.
func WithListener(l engine.Listener) Option {
	return func(p *Player) {
		p.listener = l
	}
}

// WithBaseTourInterval sets the tour period at 1x.
func WithBaseTourInterval(d time.Duration) Option {
	return func(p *Player) {
		p.baseInterval = d
	}
}

// WithTickInterval sets how often the simulated element reports progress.
func WithTickInterval(d time.Duration) Option {
	return func(p *Player) {
		p.tickInterval = d
	}
}

// WithRate sets the rate the session opens with.
func WithRate(r float64) Option {
	return func(p *Player) {
		p.rate = r
	}
}

// WithFilter sets the initial filter.
func WithFilter(f timeline.Filter) Option {
	return func(p *Player) {
		p.filter = f
	}
}

// New opens a session over run. A run with a known video duration gets a
// simulated element; otherwise the session is timeline-only.
func New(run *loader.Run, opts ...Option) *Player {
	p := &Player{
		logger:       slog.Default(),
		baseInterval: engine.DefaultTourInterval,
		tickInterval: media.DefaultTickInterval,
		rate:         1,
		run:          run,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.loop = engine.NewLoop(engine.WithLoopLogger(p.logger))

	ctrlOpts := []engine.Option{
		engine.WithExecutor(p.loop.Executor()),
		engine.WithLogger(p.logger),
		engine.WithBaseTourInterval(p.baseInterval),
		engine.WithVideoDuration(run.VideoDuration()),
		engine.WithFilter(p.filter),
	}
	if p.listener != nil {
		ctrlOpts = append(ctrlOpts, engine.WithListener(p.listener))
	}
	if d := run.VideoDuration(); d > 0 {
		p.element = media.NewSimulatedElement(d, p.tickInterval)
		p.adapter = media.NewAdapter(p.element, media.WithLogger(p.logger))
		ctrlOpts = append(ctrlOpts, engine.WithMedia(p.adapter))
	}
	p.ctrl = engine.New(run.Index, ctrlOpts...)

	if p.rate != 1 {
		if err := p.ctrl.SetRate(p.rate); err != nil {
			p.logger.Warn("ignoring initial rate", "rate", p.rate, "error", err)
		}
	}
	return p
}

// Run drives the session until ctx is done or Stop is called. The simulated
// element ticks on its own goroutine; its events reach the controller
// through the loop.
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if p.element != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.element.Run(ctx)
		}()
	}

	err := p.loop.Run(ctx)
	cancel()
	wg.Wait()

	p.ctrl.Close()
	if p.adapter != nil {
		p.adapter.Close()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop ends Run after the commands already queued.
func (p *Player) Stop() {
	p.loop.Stop()
}

// Do runs fn against the controller on the loop goroutine and returns its
// error.
func (p *Player) Do(ctx context.Context, name string, fn func(*engine.Controller) error) error {
	return p.loop.Do(ctx, name, func() error {
		return fn(p.ctrl)
	})
}

// Loaded returns the run currently loaded.
func (p *Player) Loaded() *loader.Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run
}

// Reload swaps in a new export, keeping the selection where the item
// survives.
func (p *Player) Reload(ctx context.Context, run *loader.Run) error {
	err := p.Do(ctx, "reload", func(c *engine.Controller) error {
		return c.Reload(run.Index)
	})
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.run = run
	p.mu.Unlock()
	return nil
}

// Snapshot is a consistent copy of what a view needs to render.
type Snapshot struct {
	RunID      string
	State      engine.State
	Filter     timeline.Filter
	Items      []ir.TimelineItem
	Counts     timeline.Counts
	Current    ir.TimelineItem
	HasCurrent bool
	Artifacts  []ir.ArtifactRecord
	Strip      *markers.Strip
	Dropped    int
	MediaErr   error
}

// Snapshot captures the controller state on the loop goroutine.
func (p *Player) Snapshot(ctx context.Context) (Snapshot, error) {
	run := p.Loaded()
	var s Snapshot
	err := p.Do(ctx, "snapshot", func(c *engine.Controller) error {
		s = Snapshot{
			RunID:  run.Export.Run.ID,
			State:  c.State(),
			Filter: c.Filter(),
			Items:  c.View().Items(),
			Counts: c.Index().Counts(),
			Strip:  c.Strip(),
		}
		s.Current, s.HasCurrent = c.Current()
		if s.HasCurrent {
			s.Artifacts = c.Index().ArtifactsFor(s.Current.StepID())
		}
		if p.adapter != nil {
			s.MediaErr = p.adapter.Err()
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if run.Normalized != nil {
		s.Dropped = run.Normalized.DroppedCount()
	}
	return s, nil
}
