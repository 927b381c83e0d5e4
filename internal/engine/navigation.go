package engine

import (
	"github.com/roach88/tracesync/internal/markers"
	"github.com/roach88/tracesync/internal/media"
)

// BeginScrub starts a manual drag. Playing media is paused for the duration
// of the drag and resumed by EndScrub.
func (c *Controller) BeginScrub() error {
	if c.closed {
		return newClosedError("begin-scrub")
	}
	if c.scrub.active {
		return nil
	}
	c.cancelTour()

	resume := false
	if c.mode == ModeMediaPlaying && c.mediaAvailable {
		if err := c.media.Pause(); err != nil {
			c.mediaFailed(err)
		} else {
			resume = true
		}
	}
	c.scrub.active, c.scrub.resume = true, resume
	c.mode = ModeManualScrub
	c.touch()
	return nil
}

// ScrubTo moves the playhead during a drag. The position follows t but no
// listener callback fires until EndScrub.
func (c *Controller) ScrubTo(t float64) error {
	if c.closed {
		return newClosedError("scrub")
	}
	if !c.scrub.active {
		return &PlaybackError{Code: ErrCodeNotScrubbing, Message: "scrub without begin"}
	}
	t = media.ClampTime(t, c.duration())
	c.currentVideoTime = t
	c.currentIndex = c.view.LastAtOrBefore(t)
	c.seek(t)
	c.touch()
	return nil
}

// EndScrub finishes a drag at t and reports the settled position. Ending
// before every marker clears a previous selection.
func (c *Controller) EndScrub(t float64) error {
	if err := c.ScrubTo(t); err != nil {
		return err
	}
	resume := c.scrub.resume
	c.scrub.active, c.scrub.resume = false, false

	if it, ok := c.Current(); ok {
		c.setSelectedStep(it)
		c.emit(it)
	} else if c.selectedStepID != "" || c.lastEmittedID != "" {
		// Released before the first marker: the old focus no longer applies.
		c.clearSelection()
	}
	if resume && c.mediaAvailable {
		if err := c.media.Play(); err != nil {
			c.mediaFailed(err)
		} else {
			c.mode = ModeMediaPlaying
		}
	}
	c.touch()
	return nil
}

// JumpToRatio selects the marker nearest to a click at ratio along the
// marker strip. A no-op when the strip is empty.
func (c *Controller) JumpToRatio(ratio float64) error {
	if c.closed {
		return newClosedError("jump")
	}
	m, ok := c.Strip().Nearest(ratio)
	if !ok {
		return nil
	}
	return c.SelectItem(m.Item)
}

// NextMarker selects the first marker after the current video time.
func (c *Controller) NextMarker() error {
	return c.jumpMarker("next-marker", (*markers.Strip).Next)
}

// PrevMarker selects the last marker before the current video time.
func (c *Controller) PrevMarker() error {
	return c.jumpMarker("prev-marker", (*markers.Strip).Prev)
}

func (c *Controller) jumpMarker(op string, find func(*markers.Strip, float64) (markers.Marker, bool)) error {
	if c.closed {
		return newClosedError(op)
	}
	m, ok := find(c.Strip(), c.currentVideoTime)
	if !ok {
		return nil
	}
	return c.SelectItem(m.Item)
}
