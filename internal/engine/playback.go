package engine

import (
	"github.com/roach88/tracesync/internal/media"
)

// Play starts media playback. Allowed from any mode; a running tour is
// cancelled first. Without usable media this only stops the tour.
func (c *Controller) Play() error {
	if c.closed {
		return newClosedError("play")
	}
	if c.mode == ModeTourPlaying {
		c.cancelTour()
		c.mode = ModeManualScrub
		c.syncVideoTimeFromIndex()
	}
	if c.media == nil || !c.mediaAvailable {
		c.touch()
		return nil
	}
	if err := c.media.Play(); err != nil {
		c.mediaFailed(err)
		return nil
	}
	c.scrub.active, c.scrub.resume = false, false
	c.mode = ModeMediaPlaying
	c.touch()
	return nil
}

// Pause pauses media playback. A no-op outside media-playing.
func (c *Controller) Pause() error {
	if c.closed {
		return newClosedError("pause")
	}
	if c.mode != ModeMediaPlaying {
		return nil
	}
	if err := c.media.Pause(); err != nil {
		c.mediaFailed(err)
		return nil
	}
	c.mode = ModeMediaPaused
	c.currentVideoTime = c.media.CurrentTime()
	c.touch()
	return nil
}

// TogglePlay pauses while playing and plays otherwise.
func (c *Controller) TogglePlay() error {
	if c.mode == ModeMediaPlaying {
		return c.Pause()
	}
	return c.Play()
}

// SetRate changes the playback rate for both the media and the tour.
// Rates outside media.AllowedRates return media.InvalidRateError and
// change nothing. A running tour is rescheduled at the new interval.
func (c *Controller) SetRate(rate float64) error {
	if c.closed {
		return newClosedError("set-rate")
	}
	if !media.ValidRate(rate) {
		return &media.InvalidRateError{Rate: rate}
	}
	prev := c.rate
	c.rate = rate
	if c.media != nil && c.mediaAvailable {
		if err := c.media.SetRate(rate); err != nil {
			c.mediaFailed(err)
		}
	}
	if rate != prev {
		c.rescheduleTour()
	}
	c.touch()
	return nil
}

// handleMedia applies one adapter event. Runs on the owner goroutine.
func (c *Controller) handleMedia(ev media.Event) {
	if c.closed {
		return
	}

	switch ev.Type {
	case media.EventTimeUpdated:
		if ev.Epoch < c.seekEpoch {
			c.logger.Debug("dropping stale time update",
				"time", ev.Time,
				"epoch", ev.Epoch,
				"seek_epoch", c.seekEpoch,
			)
			return
		}
		if c.mode == ModeTourPlaying || c.scrub.active {
			return
		}
		// The element may already have stopped by the time an update is
		// handled (the last one before ended, or one queued before a pause),
		// so the index follows every update while a media mode owns the
		// position. In idle or manual-scrub a settled seek only records time.
		if c.media.Playing() {
			c.mode = ModeMediaPlaying
		}
		if c.mode == ModeMediaPlaying || c.mode == ModeMediaPaused {
			c.followVideoTime(ev.Time)
		} else {
			c.currentVideoTime = ev.Time
		}

	case media.EventPlayStarted:
		if c.scrub.active {
			return
		}
		if c.mode == ModeTourPlaying {
			c.cancelTour()
		}
		c.mode = ModeMediaPlaying

	case media.EventPaused, media.EventEnded:
		if c.mode != ModeMediaPlaying {
			return
		}
		c.mode = ModeMediaPaused
		c.followVideoTime(ev.Time)

	case media.EventRateChanged:
		if !media.ValidRate(ev.Rate) || ev.Rate == c.rate {
			return
		}
		c.rate = ev.Rate
		c.rescheduleTour()

	case media.EventFailed:
		c.mediaFailed(ev.Err)
		return

	default:
		return
	}
	c.touch()
}

// mediaFailed falls back to timeline-only playback: idle, selection kept,
// transport calls become no-ops.
func (c *Controller) mediaFailed(err error) {
	if !c.mediaAvailable {
		return
	}
	c.cancelTour()
	c.mediaAvailable = false
	c.mode = ModeIdle
	c.scrub.resume = false
	c.logger.Warn("media unavailable, continuing without video",
		"error", err,
		"selected_step", c.selectedStepID,
	)
	if l, ok := c.listener.(MediaUnavailableListener); ok {
		l.OnMediaUnavailable(err)
	}
	c.touch()
}
