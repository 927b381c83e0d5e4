package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/media"
	"github.com/roach88/tracesync/internal/testutil"
	"github.com/roach88/tracesync/internal/timeline"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func item(ord int, kind ir.Kind, src string, offset *float64) ir.TimelineItem {
	return ir.TimelineItem{
		ID:                 ir.ItemID(kind, src),
		SourceID:           src,
		Ordinal:            ord,
		Kind:               kind,
		Timestamp:          base.Add(time.Duration(ord) * time.Second),
		VideoOffsetSeconds: offset,
		Title:              src,
	}
}

// fixture: steps at 1.0/5.0/9.0s with logs and a network call between them.
// l2 belongs to no step.
func fixture() *timeline.Index {
	items := []ir.TimelineItem{
		item(0, ir.KindStep, "s1", ir.Float(1)),
		item(1, ir.KindLog, "l1", nil),
		item(2, ir.KindStep, "s2", ir.Float(5)),
		item(3, ir.KindNetwork, "n1", nil),
		item(4, ir.KindLog, "l2", nil),
		item(5, ir.KindStep, "s3", ir.Float(9)),
	}
	items[1].RelatedStepID = "s1"
	items[3].RelatedStepID = "s2"
	items[3].Status = ir.StatusFailed
	items[2].Status = ir.StatusFailed
	return timeline.New(items)
}

// recorder captures listener callbacks in order.
type recorder struct {
	calls       []string
	unavailable []error
}

func (r *recorder) OnStepSelect(stepID string) {
	r.calls = append(r.calls, "step:"+stepID)
}

func (r *recorder) OnTimeSelect(ts time.Time) {
	r.calls = append(r.calls, fmt.Sprintf("time:+%s", ts.Sub(base)))
}

func (r *recorder) OnMediaUnavailable(err error) {
	r.unavailable = append(r.unavailable, err)
}

func (r *recorder) pairs() int {
	return len(r.calls) / 2
}

func (r *recorder) reset() {
	r.calls = nil
}

type harness struct {
	c     *Controller
	rec   *recorder
	sched *testutil.FakeScheduler
	el    *testutil.FakeElement
	media *media.Adapter
}

func newHarness(t *testing.T, withMedia bool, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		rec:   &recorder{},
		sched: testutil.NewFakeScheduler(),
	}
	all := []Option{
		WithListener(h.rec),
		WithScheduler(h.sched),
		WithClock(testutil.NewDeterministicClock()),
		WithSessionGenerator(testutil.NewFixedSessionGenerator("test-session")),
		WithVideoDuration(10),
	}
	if withMedia {
		h.el = testutil.NewFakeElement(10)
		h.media = media.NewAdapter(h.el)
		all = append(all, WithMedia(h.media))
	}
	h.c = New(fixture(), append(all, opts...)...)
	t.Cleanup(h.c.Close)
	return h
}

func TestController_StartsIdle(t *testing.T) {
	h := newHarness(t, true)
	s := h.c.State()

	assert.Equal(t, ModeIdle, s.Mode)
	assert.Equal(t, -1, s.CurrentIndex)
	assert.Empty(t, s.SelectedStepID)
	assert.Equal(t, 1.0, s.PlaybackRate)
	assert.Equal(t, int64(1000), s.TourIntervalMs())
	assert.True(t, s.MediaAvailable)
	assert.Equal(t, "test-session", h.c.SessionID())
	assert.Empty(t, h.rec.calls)
}

func TestController_SelectItemSeeksAndReports(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.c.SelectByID("step/s2"))

	s := h.c.State()
	assert.Equal(t, ModeManualScrub, s.Mode)
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Equal(t, "s2", s.SelectedStepID)
	assert.Equal(t, 5.0, s.CurrentVideoTime)
	assert.Equal(t, []string{"seek(5)"}, h.el.Calls())
	assert.Equal(t, []string{"step:s2", "time:+2s"}, h.rec.calls)
}

func TestController_SelectionConsistency(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.c.SelectByID("step/s3"))
	assert.Equal(t, 9.0, h.c.State().CurrentVideoTime, "offset sets the video time")

	require.NoError(t, h.c.SelectByID("network-call/n1"))
	s := h.c.State()
	assert.Equal(t, 9.0, s.CurrentVideoTime, "no offset leaves the video time unchanged")
	assert.Equal(t, "s2", s.SelectedStepID, "log and network items focus their step")
	assert.Equal(t, 3, s.CurrentIndex)
	assert.Equal(t, []string{"seek(9)"}, h.el.Calls(), "no seek without an offset")
}

func TestController_SelectMissingStepLeavesStepUnset(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.c.SelectByID("step/s1"))
	h.rec.reset()

	ghost := item(7, ir.KindLog, "orphan", nil)
	ghost.RelatedStepID = "deleted-step"
	require.NoError(t, h.c.SelectItem(ghost))

	s := h.c.State()
	assert.Equal(t, ModeManualScrub, s.Mode)
	assert.Empty(t, s.SelectedStepID)
	assert.Equal(t, -1, s.CurrentIndex)
	assert.Equal(t, []string{"step:", "time:+7s"}, h.rec.calls)
}

func TestController_SelectByUnknownID(t *testing.T) {
	h := newHarness(t, false)
	err := h.c.SelectByID("step/nope")
	require.Error(t, err)
	assert.True(t, IsUnknownItem(err))

	err = h.c.SelectIndex(99)
	assert.True(t, IsUnknownItem(err))
}

func TestController_ClickNearestMarkerScenario(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.c.JumpToRatio(0.52))

	s := h.c.State()
	assert.Equal(t, "s2", s.SelectedStepID)
	assert.Equal(t, 5.0, s.CurrentVideoTime)
	assert.Equal(t, []string{"seek(5)"}, h.el.Calls())
}

func TestController_ClickWithoutDurationIsNoop(t *testing.T) {
	h := newHarness(t, false, WithVideoDuration(0))
	require.NoError(t, h.c.JumpToRatio(0.5))
	assert.Equal(t, -1, h.c.State().CurrentIndex)
	assert.Empty(t, h.rec.calls)
}

func TestController_NextPrevMarker(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.c.NextMarker())
	assert.Equal(t, "s1", h.c.State().SelectedStepID)
	require.NoError(t, h.c.NextMarker())
	assert.Equal(t, "s2", h.c.State().SelectedStepID)
	require.NoError(t, h.c.PrevMarker())
	assert.Equal(t, "s1", h.c.State().SelectedStepID)

	require.NoError(t, h.c.PrevMarker())
	assert.Equal(t, "s1", h.c.State().SelectedStepID, "no marker before the first")
}

func TestController_Step(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.c.Step(1))
	assert.Equal(t, 0, h.c.State().CurrentIndex)
	require.NoError(t, h.c.Step(3))
	assert.Equal(t, 3, h.c.State().CurrentIndex)
	require.NoError(t, h.c.Step(10))
	assert.Equal(t, 5, h.c.State().CurrentIndex, "stops at the end")
	require.NoError(t, h.c.Step(-10))
	assert.Equal(t, 0, h.c.State().CurrentIndex)
}

func TestController_FilterKeepsVisibleSelection(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.c.SelectByID("step/s3"))
	h.rec.reset()

	f, err := timeline.NewFilter([]string{"step"}, nil, "", false, false)
	require.NoError(t, err)
	require.NoError(t, h.c.SetFilter(f))

	s := h.c.State()
	assert.Equal(t, ModeManualScrub, s.Mode, "filtering never changes mode")
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Empty(t, h.rec.calls, "a surviving selection is not re-reported")
}

func TestController_StaleSelectionClamp(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.SelectByID("network-call/n1"))
	h.rec.reset()
	h.el.ResetCalls()

	f, err := timeline.NewFilter([]string{"step"}, nil, "", false, false)
	require.NoError(t, err)
	require.NoError(t, h.c.SetFilter(f))

	s := h.c.State()
	assert.Equal(t, 1, s.CurrentIndex, "clamped to the last visible item before it")
	assert.Equal(t, "s2", s.SelectedStepID)
	assert.Equal(t, 5.0, s.CurrentVideoTime)
	assert.Equal(t, []string{"step:s2", "time:+2s"}, h.rec.calls, "exactly one callback pair")
	assert.Equal(t, []string{"seek(5)"}, h.el.Calls())
}

func TestController_StaleSelectionNothingBefore(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.c.SelectByID("step/s1"))
	h.rec.reset()

	f, err := timeline.NewFilter([]string{"network-call"}, nil, "", false, false)
	require.NoError(t, err)
	require.NoError(t, h.c.SetFilter(f))

	assert.Equal(t, 0, h.c.State().CurrentIndex, "falls back to the first visible item")
	assert.Equal(t, 1, h.rec.pairs())
}

func TestController_FilterToEmptyClearsSelection(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.c.SelectByID("step/s2"))
	h.rec.reset()

	require.NoError(t, h.c.SetFilter(timeline.Filter{Search: "no such text"}))

	s := h.c.State()
	assert.Equal(t, -1, s.CurrentIndex)
	assert.Empty(t, s.SelectedStepID)
	assert.Equal(t, []string{"step:"}, h.rec.calls)
}

func TestController_ReloadUnsetsRemovedStep(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.c.SelectByID("step/s2"))
	h.rec.reset()

	reloaded := timeline.New([]ir.TimelineItem{
		item(0, ir.KindStep, "s1", ir.Float(1)),
		item(5, ir.KindStep, "s3", ir.Float(9)),
	})
	require.NoError(t, h.c.Reload(reloaded))

	s := h.c.State()
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, "s1", s.SelectedStepID)
	assert.Equal(t, 1, h.rec.pairs())
}

func TestController_MediaPlaybackDrivesIndex(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.c.Play())
	assert.Equal(t, ModeMediaPlaying, h.c.State().Mode)

	h.el.EmitTimeUpdate(0.5)
	assert.Equal(t, -1, h.c.State().CurrentIndex, "nothing has an offset at or before 0.5")
	assert.Empty(t, h.rec.calls)

	h.el.EmitTimeUpdate(1.2)
	h.el.EmitTimeUpdate(3.0)
	h.el.EmitTimeUpdate(5.5)

	s := h.c.State()
	assert.Equal(t, ModeMediaPlaying, s.Mode)
	assert.Equal(t, 5.5, s.CurrentVideoTime)
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Equal(t, "s2", s.SelectedStepID)
	assert.Equal(t, []string{"step:s1", "time:+0s", "step:s2", "time:+2s"}, h.rec.calls,
		"callbacks only when the focused item changes")
}

func TestController_PlaysToEndOfSimulatedVideo(t *testing.T) {
	rec := &recorder{}
	el := media.NewSimulatedElement(10, time.Second)
	c := New(fixture(),
		WithListener(rec),
		WithScheduler(testutil.NewFakeScheduler()),
		WithClock(testutil.NewDeterministicClock()),
		WithSessionGenerator(testutil.NewFixedSessionGenerator("test-session")),
		WithVideoDuration(10),
		WithMedia(media.NewAdapter(el)),
	)
	t.Cleanup(c.Close)

	require.NoError(t, c.Play())
	el.Advance(8900 * time.Millisecond)
	assert.Equal(t, 2, c.State().CurrentIndex)

	// The element stops itself before reporting its final position.
	el.Advance(2 * time.Second)

	s := c.State()
	assert.Equal(t, ModeMediaPaused, s.Mode)
	assert.Equal(t, 10.0, s.CurrentVideoTime)
	assert.Equal(t, 5, s.CurrentIndex, "the last step is reached at the end")
	assert.Equal(t, "s3", s.SelectedStepID)
	assert.Equal(t, []string{"step:s2", "time:+2s", "step:s3", "time:+5s"}, rec.calls)
}

func TestController_TimeUpdateAfterPauseMovesIndex(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.Play())
	h.el.EmitTimeUpdate(5.5)
	require.NoError(t, h.c.Pause())
	h.rec.reset()

	// Produced while playing, handled after the pause.
	h.el.EmitTimeUpdate(9.2)

	s := h.c.State()
	assert.Equal(t, ModeMediaPaused, s.Mode)
	assert.Equal(t, 9.2, s.CurrentVideoTime)
	assert.Equal(t, 5, s.CurrentIndex)
	assert.Equal(t, []string{"step:s3", "time:+5s"}, h.rec.calls)
}

func TestController_StaleTimeUpdateDiscarded(t *testing.T) {
	h := newHarness(t, true)
	h.el.DeferSeeked = true

	require.NoError(t, h.c.Play())
	require.NoError(t, h.c.SelectByID("step/s3"))
	h.rec.reset()

	// Produced before the element reached the new position.
	h.el.EmitTimeUpdate(2.0)

	s := h.c.State()
	assert.Equal(t, 9.0, s.CurrentVideoTime)
	assert.Equal(t, 5, s.CurrentIndex)
	assert.Empty(t, h.rec.calls)

	h.el.Settle()
	h.el.EmitTimeUpdate(9.3)
	s = h.c.State()
	assert.Equal(t, ModeMediaPlaying, s.Mode)
	assert.Equal(t, 9.3, s.CurrentVideoTime)
	assert.Empty(t, h.rec.calls, "same item, no callback")
}

func TestController_PauseAndToggle(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.c.Pause())
	assert.Equal(t, ModeIdle, h.c.State().Mode, "pause outside playback is a no-op")

	require.NoError(t, h.c.TogglePlay())
	assert.Equal(t, ModeMediaPlaying, h.c.State().Mode)
	h.el.EmitTimeUpdate(6)

	require.NoError(t, h.c.TogglePlay())
	s := h.c.State()
	assert.Equal(t, ModeMediaPaused, s.Mode)
	assert.Equal(t, 6.0, s.CurrentVideoTime)
	assert.Equal(t, []string{"play", "pause"}, h.el.Calls())
}

func TestController_EndedPauses(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.Play())
	h.el.Emit(media.ElementEvent{Type: media.ElementEnded, Time: 10})
	assert.Equal(t, ModeMediaPaused, h.c.State().Mode)
	assert.Equal(t, 10.0, h.c.State().CurrentVideoTime)
}

func TestController_SetRate(t *testing.T) {
	h := newHarness(t, true)
	before := h.c.State()

	err := h.c.SetRate(3)
	require.Error(t, err)
	assert.True(t, media.IsInvalidRate(err))
	assert.Equal(t, before, h.c.State(), "rejected rate leaves state unchanged")

	require.NoError(t, h.c.SetRate(2))
	s := h.c.State()
	assert.Equal(t, 2.0, s.PlaybackRate)
	assert.Equal(t, int64(500), s.TourIntervalMs())
	assert.Equal(t, 2.0, h.el.Rate())
}

func TestController_ElementRateChangeIsAdopted(t *testing.T) {
	h := newHarness(t, true)
	h.el.Emit(media.ElementEvent{Type: media.ElementRateChanged, Rate: 0.5})
	assert.Equal(t, 0.5, h.c.State().PlaybackRate)

	h.el.Emit(media.ElementEvent{Type: media.ElementRateChanged, Rate: 7})
	assert.Equal(t, 0.5, h.c.State().PlaybackRate, "rates outside the allowed set are ignored")
}

func TestController_MediaLoadFailure(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.SelectByID("step/s2"))
	require.NoError(t, h.c.Play())
	h.el.ResetCalls()

	h.el.Fail(errors.New("404 video"))

	s := h.c.State()
	assert.Equal(t, ModeIdle, s.Mode)
	assert.False(t, s.MediaAvailable)
	assert.Equal(t, "s2", s.SelectedStepID, "selection survives")
	require.Len(t, h.rec.unavailable, 1)
	assert.True(t, media.IsTransport(h.rec.unavailable[0]))

	// Transport becomes a no-op; selection still works.
	require.NoError(t, h.c.SelectByID("step/s3"))
	require.NoError(t, h.c.Play())
	assert.Empty(t, h.el.Calls())
	assert.Equal(t, 9.0, h.c.State().CurrentVideoTime)
	assert.Len(t, h.rec.unavailable, 1, "reported once")
}

func TestController_SeekFailure(t *testing.T) {
	h := newHarness(t, true)
	h.el.SeekErr = errors.New("decode error")

	require.NoError(t, h.c.SelectByID("step/s2"))

	s := h.c.State()
	assert.Equal(t, ModeIdle, s.Mode)
	assert.False(t, s.MediaAvailable)
	assert.Equal(t, "s2", s.SelectedStepID)
	assert.Equal(t, 5.0, s.CurrentVideoTime)
}

func TestController_ScrubReportsOnlyOnRelease(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.c.BeginScrub())
	assert.True(t, h.c.State().Scrubbing)
	require.NoError(t, h.c.ScrubTo(3))
	require.NoError(t, h.c.ScrubTo(6))

	s := h.c.State()
	assert.Equal(t, ModeManualScrub, s.Mode)
	assert.Equal(t, 6.0, s.CurrentVideoTime)
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Empty(t, h.rec.calls, "no callbacks mid-drag")

	require.NoError(t, h.c.EndScrub(9.5))
	s = h.c.State()
	assert.False(t, s.Scrubbing)
	assert.Equal(t, "s3", s.SelectedStepID)
	assert.Equal(t, []string{"step:s3", "time:+5s"}, h.rec.calls)
	assert.Equal(t, []string{"seek(3)", "seek(6)", "seek(9.5)"}, h.el.Calls())
}

func TestController_FilterDuringScrubStaysSilent(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.SelectByID("network-call/n1"))
	require.NoError(t, h.c.BeginScrub())
	require.NoError(t, h.c.ScrubTo(6))
	h.rec.reset()
	h.el.ResetCalls()

	f, err := timeline.NewFilter([]string{"step"}, nil, "", false, false)
	require.NoError(t, err)
	require.NoError(t, h.c.SetFilter(f))

	s := h.c.State()
	assert.True(t, s.Scrubbing)
	assert.Equal(t, 1, s.CurrentIndex, "position follows the drag time in the new view")
	assert.Equal(t, 6.0, s.CurrentVideoTime)
	assert.Empty(t, h.rec.calls, "no callbacks mid-drag")
	assert.Empty(t, h.el.Calls(), "no seek mid-drag")

	require.NoError(t, h.c.EndScrub(6))
	assert.Equal(t, []string{"step:s2", "time:+2s"}, h.rec.calls)
}

func TestController_ScrubEndingBeforeFirstMarkerClearsSelection(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.SelectByID("step/s2"))
	h.rec.reset()

	require.NoError(t, h.c.BeginScrub())
	require.NoError(t, h.c.EndScrub(0.5))

	s := h.c.State()
	assert.Equal(t, -1, s.CurrentIndex)
	assert.Empty(t, s.SelectedStepID)
	assert.Equal(t, 0.5, s.CurrentVideoTime)
	assert.Equal(t, []string{"step:"}, h.rec.calls)
}

func TestController_ScrubEndingBeforeFirstMarkerWithoutSelection(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.BeginScrub())
	require.NoError(t, h.c.EndScrub(0.5))
	assert.Empty(t, h.rec.calls, "nothing was focused, nothing to clear")
}

func TestController_ScrubResumesPlayback(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.Play())
	h.el.ResetCalls()

	require.NoError(t, h.c.BeginScrub())
	require.NoError(t, h.c.EndScrub(4))

	assert.Equal(t, ModeMediaPlaying, h.c.State().Mode)
	assert.Equal(t, []string{"pause", "seek(4)", "play"}, h.el.Calls())
}

func TestController_ScrubWithoutBegin(t *testing.T) {
	h := newHarness(t, false)
	err := h.c.ScrubTo(3)
	require.Error(t, err)
	assert.True(t, IsNotScrubbing(err))
	assert.True(t, IsNotScrubbing(h.c.EndScrub(3)))
}

func TestController_ScrubClampsToDuration(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.c.BeginScrub())
	require.NoError(t, h.c.ScrubTo(42))
	assert.Equal(t, 10.0, h.c.State().CurrentVideoTime)
	require.NoError(t, h.c.ScrubTo(-1))
	assert.Equal(t, 0.0, h.c.State().CurrentVideoTime)
}

func TestController_CloseReleasesEverything(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.c.StartTour())
	require.Equal(t, 1, h.sched.Active())
	require.Equal(t, 1, h.media.Subscribers())

	h.c.Close()
	h.c.Close()

	assert.True(t, h.c.Closed())
	assert.Zero(t, h.sched.Active(), "no timer survives close")
	assert.Zero(t, h.media.Subscribers(), "no media subscription survives close")
	assert.Equal(t, ModeIdle, h.c.State().Mode)

	assert.True(t, IsClosed(h.c.SelectByID("step/s1")))
	assert.True(t, IsClosed(h.c.StartTour()))
	assert.True(t, IsClosed(h.c.SetRate(2)))
	assert.True(t, IsClosed(h.c.Play()))
	assert.True(t, IsClosed(h.c.SetFilter(timeline.Filter{})))
}

func TestController_VersionIncreases(t *testing.T) {
	h := newHarness(t, false)
	v0 := h.c.State().Version
	require.NoError(t, h.c.SelectByID("step/s1"))
	v1 := h.c.State().Version
	require.NoError(t, h.c.Step(1))
	assert.Greater(t, v1, v0)
	assert.Greater(t, h.c.State().Version, v1)
}

func TestController_StripCachedPerView(t *testing.T) {
	h := newHarness(t, false)
	s1 := h.c.Strip()
	assert.Same(t, s1, h.c.Strip())
	assert.Equal(t, 3, s1.Len())

	f, err := timeline.NewFilter(nil, []string{"failed"}, "", false, false)
	require.NoError(t, err)
	require.NoError(t, h.c.SetFilter(f))
	assert.Equal(t, 1, h.c.Strip().Len())
}
