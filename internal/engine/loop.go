package engine

import (
	"context"
	"log/slog"
)

// Loop is the single-writer event loop that owns a Controller.
//
// Timer ticks and media events arrive on arbitrary goroutines; Loop
// serializes them, together with user commands, onto the goroutine that
// calls Run.
//
// Thread-safety model:
//   - Post(), Do(), Executor(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Wire a Controller to a Loop with WithExecutor(loop.Executor()) and only
// touch the controller inside Post/Do afterwards.
type Loop struct {
	queue  *commandQueue
	logger *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the loop's logger.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// NewLoop creates a stopped loop. Commands posted before Run are kept.
func NewLoop(opts ...LoopOption) *Loop {
	lp := &Loop{
		queue:  newCommandQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(lp)
	}
	return lp
}

// Post schedules fn on the loop goroutine without waiting.
// Returns false if the loop has stopped.
func (lp *Loop) Post(fn func()) bool {
	return lp.queue.Enqueue(command{
		name: "post",
		run: func() error {
			fn()
			return nil
		},
	})
}

// Executor adapts Post to the WithExecutor signature. Work posted after
// the loop stopped is dropped.
func (lp *Loop) Executor() func(func()) {
	return func(fn func()) {
		if !lp.Post(fn) {
			lp.logger.Debug("dropping callback after loop stop")
		}
	}
}

// Do runs fn on the loop goroutine and waits for its result.
//
// Do must not be called from the loop goroutine itself.
func (lp *Loop) Do(ctx context.Context, name string, fn func() error) error {
	reply := make(chan error, 1)
	if !lp.queue.Enqueue(command{name: name, run: fn, reply: reply}) {
		return newClosedError(name)
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands until ctx is cancelled or Stop is called.
//
// ERROR HANDLING: a failing command is logged with its name and processing
// continues. Callers that need the error use Do. A panicking command is
// not recovered.
//
// On return every command still queued is answered with a CLOSED error.
func (lp *Loop) Run(ctx context.Context) error {
	lp.logger.Debug("loop starting")
	defer lp.drain()

	for {
		if cmd, ok := lp.queue.TryDequeue(); ok {
			err := cmd.run()
			if cmd.reply != nil {
				cmd.reply <- err
			} else if err != nil {
				lp.logger.Error("command failed",
					"command", cmd.name,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			lp.logger.Debug("loop stopping: context cancelled")
			lp.queue.Close()
			return ctx.Err()

		case <-lp.queue.Wait():
			// A closed signal channel fires immediately; leave only once
			// the queue is closed and empty.
			if lp.queue.Closed() && lp.queue.Len() == 0 {
				lp.logger.Debug("loop stopping: stopped")
				return nil
			}
		}
	}
}

// Stop closes the loop. Commands already queued still run; Run returns
// once they are done.
func (lp *Loop) Stop() {
	lp.queue.Close()
}

func (lp *Loop) drain() {
	for _, cmd := range lp.queue.Drain() {
		if cmd.reply != nil {
			cmd.reply <- newClosedError(cmd.name)
		}
	}
}
