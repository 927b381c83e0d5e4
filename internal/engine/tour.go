package engine

import (
	"time"

	"github.com/roach88/tracesync/internal/ir"
)

// StartTour steps through the visible items that have a step, one per tour
// interval. While media is usable only items with a video offset qualify.
//
// The first qualifying item after the current one is selected immediately;
// when the current item is the last qualifying one the tour restarts from
// the top. A no-op while already touring or when nothing qualifies.
func (c *Controller) StartTour() error {
	if c.closed {
		return newClosedError("start-tour")
	}
	if c.mode == ModeTourPlaying {
		return nil
	}

	start := c.nextTourIndex(c.currentIndex)
	if start < 0 {
		start = c.nextTourIndex(-1)
	}
	if start < 0 {
		c.logger.Debug("tour has no eligible items", "visible", c.view.Len())
		return nil
	}

	if c.mode == ModeMediaPlaying && c.mediaAvailable {
		if err := c.media.Pause(); err != nil {
			c.mediaFailed(err)
			return nil
		}
	}

	c.cancelTour()
	c.scrub.active, c.scrub.resume = false, false
	c.mode = ModeTourPlaying
	c.logger.Debug("tour started", "from", start, "interval", c.tourInterval())
	c.tourSelect(start)
	if c.mode == ModeTourPlaying {
		c.scheduleTick()
	}
	c.touch()
	return nil
}

// StopTour leaves tour-playing for manual-scrub. The timer is cancelled
// before anything else happens. A no-op in any other mode.
func (c *Controller) StopTour() error {
	if c.closed {
		return newClosedError("stop-tour")
	}
	if c.mode != ModeTourPlaying {
		return nil
	}
	c.cancelTour()
	c.mode = ModeManualScrub
	c.syncVideoTimeFromIndex()
	c.touch()
	return nil
}

// ToggleTour stops a running tour and starts one otherwise.
func (c *Controller) ToggleTour() error {
	if c.mode == ModeTourPlaying {
		return c.StopTour()
	}
	return c.StartTour()
}

func (c *Controller) tourEligible(it ir.TimelineItem) bool {
	if it.StepID() == "" {
		return false
	}
	if c.media != nil && c.mediaAvailable && !it.HasVideoOffset() {
		return false
	}
	return true
}

// nextTourIndex is the first eligible visible index after i, or -1.
func (c *Controller) nextTourIndex(i int) int {
	items := c.view.Items()
	for j := max(i+1, 0); j < len(items); j++ {
		if c.tourEligible(items[j]) {
			return j
		}
	}
	return -1
}

func (c *Controller) tourSelect(i int) {
	it, ok := c.view.At(i)
	if !ok {
		return
	}
	c.applySelection(it, i)
	c.emit(it)
}

// tick advances the tour. Ticks from a cancelled or superseded timer carry
// an old generation and are dropped.
func (c *Controller) tick(gen uint64) {
	if c.closed || gen != c.tour.gen || c.mode != ModeTourPlaying {
		c.logger.Debug("dropping stale tour tick", "gen", gen, "current_gen", c.tour.gen)
		return
	}
	c.tour.cancel = nil

	next := c.nextTourIndex(c.currentIndex)
	if next < 0 {
		c.mode = ModeIdle
		c.logger.Debug("tour finished")
		c.touch()
		return
	}
	c.tourSelect(next)
	if c.mode == ModeTourPlaying {
		c.scheduleTick()
	}
	c.touch()
}

// scheduleTick arms the single tour timer. Any previous timer must already
// be cancelled or fired.
func (c *Controller) scheduleTick() {
	c.tour.gen++
	gen := c.tour.gen
	c.tour.cancel = c.sched.AfterFunc(c.tourInterval(), func() {
		c.exec(func() { c.tick(gen) })
	})
}

// cancelTour stops the pending timer and invalidates any tick already in
// flight. It does not change the mode.
func (c *Controller) cancelTour() {
	if c.tour.cancel != nil {
		c.tour.cancel()
		c.tour.cancel = nil
	}
	c.tour.gen++
}

// rescheduleTour restarts the pending timer at the current interval.
func (c *Controller) rescheduleTour() {
	if c.mode != ModeTourPlaying || c.tour.cancel == nil {
		return
	}
	c.tour.cancel()
	c.tour.cancel = nil
	c.scheduleTick()
}

func (c *Controller) tourInterval() time.Duration {
	return TourInterval(c.baseInterval, c.rate)
}
