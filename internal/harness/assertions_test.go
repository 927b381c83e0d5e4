package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventCommand, Value: "select step/st-2", Seq: 1},
		{Type: EventTransport, Value: "seek(5)", Seq: 2},
		{Type: EventStep, Value: "st-2", Seq: 3},
		{Type: EventTime, Value: "2024-03-01T12:00:04Z", Seq: 4},
		{Type: EventCommand, Value: "tour_start", Seq: 5},
		{Type: EventStep, Value: "st-2", Seq: 6},
		{Type: EventStep, Value: "st-3", Seq: 7},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceContains(trace, Assertion{Type: AssertTraceContains, Event: "transport:seek(5)"}))

	err := assertTraceContains(trace, Assertion{Type: AssertTraceContains, Event: "transport:seek(9)"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "not found in trace", ae.Actual)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name    string
		events  []string
		wantErr string
	}{
		{name: "in order", events: []string{"command:select step/st-2", "step:st-2", "step:st-3"}},
		{name: "intervening allowed", events: []string{"transport:seek(5)", "step:st-3"}},
		{name: "repeated key", events: []string{"step:st-2", "step:st-2", "step:st-3"}},
		{name: "wrong order", events: []string{"step:st-3", "step:st-2"}, wantErr: "appears only before"},
		{name: "missing", events: []string{"step:st-9"}, wantErr: "missing event: step:st-9"},
		{name: "repeat too many", events: []string{"step:st-2", "step:st-2", "step:st-2"}, wantErr: "appears only before"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Events: tt.events})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "step:st-2", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "transport:play", Count: 0}))

	err := assertTraceCount(trace, Assertion{Event: "step:st-2", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences of step:st-2")
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	state := FinalState{
		Mode:             "media-paused",
		CurrentIndex:     5,
		CurrentVideoTime: 9.2,
		SelectedStepID:   "st-3",
		PlaybackRate:     2,
		TourIntervalMs:   500,
		MediaAvailable:   true,
		ActiveTimers:     0,
		Visible:          8,
	}

	assert.NoError(t, assertFinalState(state, Assertion{Expect: map[string]any{
		"mode":               "media-paused",
		"current_index":      5,
		"current_video_time": 9.2,
		"playback_rate":      2,
		"tour_interval_ms":   500,
		"media_available":    true,
		"scrubbing":          false,
		"active_timers":      0,
	}}))

	err := assertFinalState(state, Assertion{Expect: map[string]any{"mode": "idle"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "mode" = idle`)

	err = assertFinalState(state, Assertion{Expect: map[string]any{"media_available": "yes"}})
	assert.Error(t, err, "type mismatch")

	err = assertFinalState(state, Assertion{Expect: map[string]any{"volume": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a state field")
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual(3, int64(3)))
	assert.True(t, stateValuesEqual(3, 3.0))
	assert.True(t, stateValuesEqual(0.1+0.2, 0.3))
	assert.False(t, stateValuesEqual(3, "3"))
	assert.True(t, stateValuesEqual("a", "a"))
	assert.False(t, stateValuesEqual("a", "b"))
	assert.True(t, stateValuesEqual(true, true))
	assert.False(t, stateValuesEqual(true, 1))
	assert.True(t, stateValuesEqual(nil, ""), "null matches an unset step")
	assert.False(t, stateValuesEqual([]int{1}, []int{1}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace(), State: FinalState{Mode: "tour-playing"}}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: "step:st-3"},
		{Type: AssertTraceCount, Event: "step:st-3", Count: 5},
		{Type: AssertFinalState, Expect: map[string]any{"mode": "tour-playing"}},
		{Type: "eventually"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `unknown assertion type "eventually"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences of step:st-1",
		Actual:   "0 occurrences",
		Trace:    sampleTrace()[:2],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 occurrences of step:st-1")
	assert.Contains(t, msg, "Actual: 0 occurrences")
	assert.Contains(t, msg, "[2] transport:seek(5)")
}
