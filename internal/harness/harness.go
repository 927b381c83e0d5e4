package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/roach88/tracesync/internal/engine"
	"github.com/roach88/tracesync/internal/loader"
	"github.com/roach88/tracesync/internal/media"
	"github.com/roach88/tracesync/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a real playback controller backed by a
// scripted media element and a manually advanced scheduler.
type Harness struct {
	ctrl    *engine.Controller
	element *testutil.FakeElement
	adapter *media.Adapter
	sched   *testutil.FakeScheduler
	seq     *testutil.DeterministicClock
	result  *Result
	calls   int
}

// Run executes a test scenario and returns the result.
//
// Each scenario gets fresh fakes and a fresh controller. Deterministic
// helpers ensure reproducible traces.
//
// Execution flow:
// 1. Load the fixture export and build the timeline
// 2. Open a controller with the scenario's media, filter and tour settings
// 3. Execute steps, recording commands, transport calls and callbacks
// 4. Snapshot the final state and evaluate assertions
//
// A returned error means the scenario could not run at all. Failed steps
// and assertions are reported on Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with controller logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	run, err := loader.Load(scenario.Fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	filter, err := scenario.Filter.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	h := &Harness{
		sched:  testutil.NewFakeScheduler(),
		seq:    testutil.NewDeterministicClock(),
		result: NewResult(),
	}

	duration := scenario.VideoDuration
	if duration == 0 {
		duration = run.VideoDuration()
	}
	opts := []engine.Option{
		engine.WithScheduler(h.sched),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.SessionID)),
		engine.WithListener(h),
		engine.WithLogger(logger),
		engine.WithVideoDuration(duration),
		engine.WithFilter(filter),
	}
	if scenario.BaseTourIntervalMs > 0 {
		opts = append(opts, engine.WithBaseTourInterval(time.Duration(scenario.BaseTourIntervalMs)*time.Millisecond))
	}
	if scenario.Media != nil {
		h.element = testutil.NewFakeElement(scenario.Media.Duration)
		h.element.DeferSeeked = scenario.Media.DeferSeeked
		h.adapter = media.NewAdapter(h.element, media.WithLogger(logger))
		opts = append(opts, engine.WithMedia(h.adapter))
	}

	h.ctrl = engine.New(run.Index, opts...)
	defer func() {
		h.ctrl.Close()
		if h.adapter != nil {
			h.adapter.Close()
		}
	}()

	for i, step := range scenario.Steps {
		h.result.add(EventCommand, describe(step), h.seq.Next())
		err := h.execute(step)
		h.flushTransport()
		h.checkStep(i, step, err)
	}

	h.result.State = h.snapshot()
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(errMsg)
	}
	return h.result, nil
}

func (h *Harness) execute(st Step) error {
	c := h.ctrl
	switch st.Do {
	case CmdSelect:
		return c.SelectByID(st.ID)
	case CmdSelectIndex:
		return c.SelectIndex(st.Index)
	case CmdStep:
		return c.Step(st.Delta)
	case CmdPlay:
		return c.Play()
	case CmdPause:
		return c.Pause()
	case CmdTogglePlay:
		return c.TogglePlay()
	case CmdRate:
		return c.SetRate(st.Rate)
	case CmdTourStart:
		return c.StartTour()
	case CmdTourStop:
		return c.StopTour()
	case CmdTourToggle:
		return c.ToggleTour()
	case CmdAdvance:
		h.sched.Advance(time.Duration(st.Ms) * time.Millisecond)
		return nil
	case CmdTimeUpdate:
		h.element.EmitTimeUpdate(st.Time)
		return nil
	case CmdSettle:
		h.element.Settle()
		return nil
	case CmdEnded:
		h.element.SetPlaying(false)
		h.element.Emit(media.ElementEvent{Type: media.ElementEnded, Time: h.element.CurrentTime()})
		return nil
	case CmdScrubBegin:
		return c.BeginScrub()
	case CmdScrubTo:
		return c.ScrubTo(st.Time)
	case CmdScrubEnd:
		return c.EndScrub(st.Time)
	case CmdJump:
		return c.JumpToRatio(st.Ratio)
	case CmdNextMarker:
		return c.NextMarker()
	case CmdPrevMarker:
		return c.PrevMarker()
	case CmdFilter:
		f, err := st.Filter.Build()
		if err != nil {
			return err
		}
		return c.SetFilter(f)
	case CmdReload:
		run, err := loader.Load(st.Fixture)
		if err != nil {
			return err
		}
		return c.Reload(run.Index)
	case CmdMediaFail:
		msg := st.Message
		if msg == "" {
			msg = "media error"
		}
		h.element.Fail(errors.New(msg))
		return nil
	case CmdClose:
		c.Close()
		return nil
	}
	return fmt.Errorf("unknown command %q", st.Do)
}

// checkStep compares a command's outcome with its expect_error.
func (h *Harness) checkStep(i int, st Step, err error) {
	code := errorCode(err)
	if err != nil {
		h.result.add(EventError, code, h.seq.Next())
	}
	switch {
	case st.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, st.Do, err))
	case st.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got none", i, st.Do, st.ExpectError))
	case st.ExpectError != "" && code != st.ExpectError:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s", i, st.Do, st.ExpectError, code))
	}
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var pe *engine.PlaybackError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	var re *media.InvalidRateError
	if errors.As(err, &re) {
		return string(re.Code())
	}
	var te *media.TransportError
	if errors.As(err, &te) {
		return string(te.Code())
	}
	return "ERROR"
}

// flushTransport records element calls made since the last flush. It runs
// before every callback so calls and callbacks interleave in trace order.
func (h *Harness) flushTransport() {
	if h.element == nil {
		return
	}
	calls := h.element.Calls()
	for _, call := range calls[h.calls:] {
		h.result.add(EventTransport, call, h.seq.Next())
	}
	h.calls = len(calls)
}

// OnStepSelect implements engine.Listener.
func (h *Harness) OnStepSelect(stepID string) {
	h.flushTransport()
	h.result.add(EventStep, stepID, h.seq.Next())
}

// OnTimeSelect implements engine.Listener.
func (h *Harness) OnTimeSelect(ts time.Time) {
	h.flushTransport()
	h.result.add(EventTime, ts.UTC().Format(time.RFC3339Nano), h.seq.Next())
}

// OnMediaUnavailable implements engine.MediaUnavailableListener.
func (h *Harness) OnMediaUnavailable(err error) {
	h.flushTransport()
	h.result.add(EventUnavailable, errorCode(err), h.seq.Next())
}

func (h *Harness) snapshot() FinalState {
	s := h.ctrl.State()
	return FinalState{
		Mode:             s.Mode.String(),
		CurrentIndex:     s.CurrentIndex,
		CurrentVideoTime: s.CurrentVideoTime,
		SelectedStepID:   s.SelectedStepID,
		PlaybackRate:     s.PlaybackRate,
		TourIntervalMs:   s.TourIntervalMs(),
		MediaAvailable:   s.MediaAvailable,
		Scrubbing:        s.Scrubbing,
		ActiveTimers:     h.sched.Active(),
		Visible:          h.ctrl.View().Len(),
	}
}

// describe renders a step for the trace: the command plus its argument.
func describe(st Step) string {
	num := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	switch st.Do {
	case CmdSelect:
		return st.Do + " " + st.ID
	case CmdSelectIndex:
		return st.Do + " " + strconv.Itoa(st.Index)
	case CmdStep:
		return st.Do + " " + strconv.Itoa(st.Delta)
	case CmdRate:
		return st.Do + " " + num(st.Rate)
	case CmdAdvance:
		return st.Do + " " + strconv.FormatInt(st.Ms, 10) + "ms"
	case CmdTimeUpdate, CmdScrubTo, CmdScrubEnd:
		return st.Do + " " + num(st.Time)
	case CmdJump:
		return st.Do + " " + num(st.Ratio)
	case CmdFilter:
		f, _ := st.Filter.Build()
		return st.Do + " " + f.String()
	}
	return st.Do
}
