package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/markers"
	"github.com/roach88/tracesync/internal/media"
	"github.com/roach88/tracesync/internal/timeline"
)

// DefaultTourInterval is the tour step period at 1x.
const DefaultTourInterval = time.Second

// Controller is the playback state machine for one open run view.
//
// CRITICAL: a Controller has exactly one owner goroutine. Every exported
// method, every media event and every tour tick must run on it. Media
// events and ticks arrive on other goroutines in production; WithExecutor
// marshals them (Loop.Executor does this). Without an executor they run
// inline, which is only correct when the element and scheduler report on
// the owner goroutine, as the test fakes do.
//
// INVARIANTS:
//   - At most one tour timer exists; it is cancelled before any other
//     effect of a transition out of tour-playing.
//   - Listener callbacks fire only on settled position changes.
//   - After Close no timer is pending and no media subscription remains.
type Controller struct {
	logger       *slog.Logger
	clock        Sequencer
	sched        Scheduler
	exec         func(func())
	listener     Listener
	media        *media.Adapter
	sessionGen   SessionIDGenerator
	sessionID    string
	baseInterval time.Duration
	durationHint float64
	filter       timeline.Filter

	index *timeline.Index
	view  *timeline.View
	strip *markers.Strip

	mode             Mode
	currentVideoTime float64
	currentIndex     int
	selectedStepID   string
	rate             float64
	mediaAvailable   bool
	seekEpoch        uint64
	lastEmittedID    string
	version          int64

	scrub struct {
		active bool
		resume bool
	}

	tour struct {
		gen    uint64
		cancel func() bool
	}

	unsubscribe func()
	closed      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithMedia attaches a media adapter. The controller subscribes to it and
// unsubscribes on Close; it never closes the adapter.
func WithMedia(a *media.Adapter) Option {
	return func(c *Controller) {
		c.media = a
	}
}

// WithListener sets the callback receiver.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		c.listener = l
	}
}

// WithScheduler sets the tour timer source. Default: RealScheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.sched = s
	}
}

// WithExecutor sets how asynchronous sources (media events, tour ticks)
// reach the owner goroutine.
func WithExecutor(exec func(func())) Option {
	return func(c *Controller) {
		c.exec = exec
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithClock sets the version sequencer.
func WithClock(s Sequencer) Option {
	return func(c *Controller) {
		c.clock = s
	}
}

// WithSessionGenerator sets the session ID source. Default: UUIDv7Generator.
func WithSessionGenerator(g SessionIDGenerator) Option {
	return func(c *Controller) {
		c.sessionGen = g
	}
}

// WithBaseTourInterval sets the tour step period at 1x.
//
// Default: 1s (DefaultTourInterval).
func WithBaseTourInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.baseInterval = d
		}
	}
}

// WithVideoDuration supplies the video length for marker projection when
// no media is attached or the media does not know its duration yet.
func WithVideoDuration(seconds float64) Option {
	return func(c *Controller) {
		c.durationHint = seconds
	}
}

// WithFilter sets the initial filter.
func WithFilter(f timeline.Filter) Option {
	return func(c *Controller) {
		c.filter = f
	}
}

// New opens a playback session over index. The controller starts idle with
// nothing selected.
func New(index *timeline.Index, opts ...Option) *Controller {
	c := &Controller{
		logger:       slog.Default(),
		clock:        NewClock(),
		sched:        RealScheduler{},
		exec:         func(fn func()) { fn() },
		listener:     nopListener{},
		sessionGen:   UUIDv7Generator{},
		baseInterval: DefaultTourInterval,
		index:        index,
		mode:         ModeIdle,
		currentIndex: -1,
		rate:         1,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.sessionID = c.sessionGen.Generate()
	c.logger = c.logger.With("session", c.sessionID)
	c.view = index.Apply(c.filter)

	if c.media != nil {
		c.mediaAvailable = c.media.Available()
		c.rate = c.media.Rate()
		c.unsubscribe = c.media.Subscribe(func(ev media.Event) {
			c.exec(func() { c.handleMedia(ev) })
		})
	}

	c.logger.Debug("playback session opened",
		"items", index.Len(),
		"visible", c.view.Len(),
		"media", c.mediaAvailable,
	)
	c.touch()
	return c
}

// SessionID identifies this playback session in logs.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// State returns a snapshot.
func (c *Controller) State() State {
	return State{
		Mode:             c.mode,
		CurrentVideoTime: c.currentVideoTime,
		CurrentIndex:     c.currentIndex,
		SelectedStepID:   c.selectedStepID,
		PlaybackRate:     c.rate,
		TourInterval:     c.tourInterval(),
		MediaAvailable:   c.mediaAvailable,
		Scrubbing:        c.scrub.active,
		Version:          c.version,
	}
}

// View is the current filtered timeline.
func (c *Controller) View() *timeline.View {
	return c.view
}

// Index is the full timeline.
func (c *Controller) Index() *timeline.Index {
	return c.index
}

// Current returns the item at CurrentIndex.
func (c *Controller) Current() (ir.TimelineItem, bool) {
	return c.view.At(c.currentIndex)
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	return c.closed
}

// Strip projects the visible items onto the video duration. The strip is
// cached until the view or the duration changes.
func (c *Controller) Strip() *markers.Strip {
	d := c.duration()
	if c.strip == nil || c.strip.Duration() != d {
		c.strip = markers.Project(c.view.Items(), d)
	}
	return c.strip
}

func (c *Controller) duration() float64 {
	if c.media != nil {
		if d := c.media.Duration(); d > 0 {
			return d
		}
	}
	return c.durationHint
}

// SelectItem focuses it: the tour (if any) is cancelled first, the mode
// becomes manual-scrub and the media seeks to the item's offset.
//
// An item whose step no longer exists is still selected; SelectedStepID is
// left unset. An item outside the current view gets CurrentIndex -1.
func (c *Controller) SelectItem(it ir.TimelineItem) error {
	if c.closed {
		return newClosedError("select")
	}
	c.cancelTour()
	c.scrub.active, c.scrub.resume = false, false
	c.mode = ModeManualScrub
	c.applySelection(it, c.view.IndexOf(it.ID))
	c.emit(it)
	c.touch()
	return nil
}

// SelectByID selects the item with the given timeline ID.
func (c *Controller) SelectByID(id string) error {
	if c.closed {
		return newClosedError("select")
	}
	it, ok := c.index.Lookup(id)
	if !ok {
		return newUnknownItemError(id)
	}
	return c.SelectItem(it)
}

// SelectIndex selects the i-th visible item.
func (c *Controller) SelectIndex(i int) error {
	if c.closed {
		return newClosedError("select")
	}
	it, ok := c.view.At(i)
	if !ok {
		return &PlaybackError{Code: ErrCodeUnknownItem, Message: "index out of range"}
	}
	return c.SelectItem(it)
}

// Step selects the visible item delta positions away from the current one,
// stopping at either end. With nothing selected, a forward step selects the
// first item and a backward step the last.
func (c *Controller) Step(delta int) error {
	if c.closed {
		return newClosedError("step")
	}
	n := c.view.Len()
	if n == 0 || delta == 0 {
		return nil
	}
	i := c.currentIndex + delta
	if c.currentIndex < 0 {
		i = 0
		if delta < 0 {
			i = n - 1
		}
	}
	i = max(0, min(i, n-1))
	return c.SelectIndex(i)
}

// SetFilter replaces the visible timeline. The mode is unchanged.
//
// In media-playing the position is re-derived from the video time.
// Otherwise a selection that is still visible keeps its item; one that was
// filtered out is clamped to the last visible item before it and reported
// with exactly one callback pair.
func (c *Controller) SetFilter(f timeline.Filter) error {
	if c.closed {
		return newClosedError("filter")
	}
	prev, hadPrev := c.Current()
	c.filter = f
	c.view = c.index.Apply(f)
	c.strip = nil
	c.reposition(prev, hadPrev)
	c.touch()
	return nil
}

// Filter is the active filter.
func (c *Controller) Filter() timeline.Filter {
	return c.filter
}

// Reload swaps in freshly normalized run data, keeping the filter and mode.
// A selected step that disappeared is unset.
func (c *Controller) Reload(index *timeline.Index) error {
	if c.closed {
		return newClosedError("reload")
	}
	prev, hadPrev := c.Current()
	c.index = index
	c.view = index.Apply(c.filter)
	c.strip = nil
	if c.selectedStepID != "" && !index.HasStep(c.selectedStepID) {
		c.logger.Debug("selected step removed by reload", "step", c.selectedStepID)
		c.selectedStepID = ""
	}
	c.reposition(prev, hadPrev)
	c.logger.Debug("timeline reloaded", "items", index.Len(), "visible", c.view.Len())
	c.touch()
	return nil
}

// Close ends the session in one step: the tour timer is cancelled and the
// media subscription removed. Later calls return CLOSED errors; late media
// events and ticks are ignored.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.cancelTour()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.closed = true
	c.mode = ModeIdle
	c.scrub.active, c.scrub.resume = false, false
	c.logger.Debug("playback session closed")
	c.touch()
}

// reposition re-derives CurrentIndex after the visible sequence changed.
//
// During a drag the position follows the drag time and nothing is reported
// or seeked; EndScrub reports where the drag settles.
func (c *Controller) reposition(prev ir.TimelineItem, hadPrev bool) {
	if c.scrub.active {
		c.currentIndex = c.view.LastAtOrBefore(c.currentVideoTime)
		return
	}
	if c.mode == ModeMediaPlaying {
		c.followVideoTime(c.currentVideoTime)
		return
	}
	if !hadPrev {
		c.currentIndex = -1
		return
	}
	if i := c.view.IndexOf(prev.ID); i >= 0 {
		c.currentIndex = i
		return
	}

	stale := newStaleSelectionError(prev.ID)
	i := c.view.Clamp(prev)
	if i < 0 {
		c.logger.Debug("selection cleared", "error", stale)
		c.clearSelection()
		return
	}
	it, _ := c.view.At(i)
	c.logger.Debug("selection clamped", "error", stale, "to", it.ID)
	c.applySelection(it, i)
	c.emit(it)
}

// applySelection updates position fields for a newly focused item and seeks
// the media when the item is correlated with it.
func (c *Controller) applySelection(it ir.TimelineItem, idx int) {
	c.currentIndex = idx
	c.setSelectedStep(it)
	if off, ok := it.VideoOffset(); ok {
		c.currentVideoTime = off
		c.seek(off)
	}
}

func (c *Controller) setSelectedStep(it ir.TimelineItem) {
	stepID := it.StepID()
	if c.index.HasStep(stepID) {
		c.selectedStepID = stepID
		return
	}
	if stepID != "" {
		c.logger.Debug("step no longer exists", "step", stepID, "item", it.ID)
	}
	c.selectedStepID = ""
}

// followVideoTime makes the video time authoritative: the current item is
// the last visible one whose offset is at or before t. Callbacks fire only
// when that item changes.
func (c *Controller) followVideoTime(t float64) {
	c.currentVideoTime = t
	i := c.view.LastAtOrBefore(t)
	c.currentIndex = i
	if i < 0 {
		return
	}
	it, _ := c.view.At(i)
	if it.ID == c.lastEmittedID {
		return
	}
	c.setSelectedStep(it)
	c.emit(it)
}

// syncVideoTimeFromIndex re-derives the video time when the index becomes
// authoritative.
func (c *Controller) syncVideoTimeFromIndex() {
	if it, ok := c.Current(); ok {
		if off, ok := it.VideoOffset(); ok {
			c.currentVideoTime = off
		}
	}
}

// clearSelection drops the focus and reports it with OnStepSelect("") alone;
// there is no timestamp to report.
func (c *Controller) clearSelection() {
	c.currentIndex = -1
	c.selectedStepID = ""
	c.lastEmittedID = ""
	c.listener.OnStepSelect("")
}

func (c *Controller) emit(it ir.TimelineItem) {
	c.lastEmittedID = it.ID
	c.listener.OnStepSelect(c.selectedStepID)
	c.listener.OnTimeSelect(it.Timestamp)
}

func (c *Controller) seek(t float64) {
	if c.media == nil || !c.mediaAvailable {
		return
	}
	epoch, err := c.media.Seek(t)
	if err != nil {
		c.mediaFailed(err)
		return
	}
	c.seekEpoch = epoch
}

func (c *Controller) touch() {
	c.version = c.clock.Next()
}
