// Package watcher reloads a run export when the file changes on disk, with
// debouncing, using fsnotify.
//
// The parent directory is watched rather than the file itself: editors and
// exporters commonly replace the file by rename, which drops a watch placed on
// the old inode.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/loader"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives a freshly loaded run. It runs on the watcher's
// goroutine.
type ChangeFunc func(*loader.Run)

// ErrorFunc receives load failures. The previous run stays in effect.
type ErrorFunc func(error)

// Watcher reloads one export file.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onChange ChangeFunc
	onError  ErrorFunc
	fs       *fsnotify.Watcher
	lastHash string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a reload. Default: 300ms.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithErrorHandler is called when a changed file fails to load.
func WithErrorHandler(fn ErrorFunc) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithBaseline records the run already loaded, so an event that leaves the
// content unchanged does not trigger onChange.
func WithBaseline(run *loader.Run) Option {
	return func(w *Watcher) {
		if run == nil {
			return
		}
		if h, err := ir.RunHash(run.Payload); err == nil {
			w.lastHash = h
		}
	}
}

// New starts watching path. Call Run to process events and Close to release
// the watch.
func New(path string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		onChange: onChange,
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.fs = fw
	return w, nil
}

// Path is the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run processes file events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("export changed", "path", w.path, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "path", w.path, "error", err)
		}
	}
}

// Close releases the watch. Run returns once its channels close.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	run, err := loader.Load(w.path)
	if err != nil {
		// A rename-based save can leave the file briefly absent; the
		// following Create event triggers another reload.
		if loader.IsNotFound(err) {
			w.logger.Debug("export missing, waiting", "path", w.path)
			return
		}
		w.logger.Warn("reload failed, keeping previous run", "path", w.path, "error", err)
		w.onError(err)
		return
	}

	hash, err := ir.RunHash(run.Payload)
	if err != nil {
		w.onError(errors.Join(fmt.Errorf("hash %s", w.path), err))
		return
	}
	if hash == w.lastHash {
		w.logger.Debug("export unchanged", "path", w.path)
		return
	}
	w.lastHash = hash
	w.logger.Info("export reloaded",
		"path", w.path,
		"items", run.Index.Len(),
		"dropped", run.Normalized.DroppedCount(),
	)
	w.onChange(run)
}
