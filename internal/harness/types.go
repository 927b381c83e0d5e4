package harness

// Trace event types.
const (
	EventCommand     = "command"
	EventTransport   = "transport"
	EventStep        = "step"
	EventTime        = "time"
	EventUnavailable = "unavailable"
	EventError       = "error"
)

// TraceEvent is one observable effect of a scenario: a command issued to the
// controller, a transport call it made on the media element, a listener
// callback, or an error a command returned.
type TraceEvent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Seq   int64  `json:"seq"`
}

// Key is the "type:value" form used by trace assertions.
func (e TraceEvent) Key() string {
	return e.Type + ":" + e.Value
}

// FinalState is the controller snapshot taken after the last step.
type FinalState struct {
	Mode             string  `json:"mode"`
	CurrentIndex     int     `json:"current_index"`
	CurrentVideoTime float64 `json:"current_video_time"`
	SelectedStepID   string  `json:"selected_step_id"`
	PlaybackRate     float64 `json:"playback_rate"`
	TourIntervalMs   int64   `json:"tour_interval_ms"`
	MediaAvailable   bool    `json:"media_available"`
	Scrubbing        bool    `json:"scrubbing"`
	ActiveTimers     int     `json:"active_timers"`
	Visible          int     `json:"visible"`
}

// fields exposes the snapshot by its YAML/JSON names for final_state
// assertions and golden output.
func (s FinalState) fields() map[string]any {
	return map[string]any{
		"mode":               s.Mode,
		"current_index":      s.CurrentIndex,
		"current_video_time": s.CurrentVideoTime,
		"selected_step_id":   s.SelectedStepID,
		"playback_rate":      s.PlaybackRate,
		"tour_interval_ms":   s.TourIntervalMs,
		"media_available":    s.MediaAvailable,
		"scrubbing":          s.Scrubbing,
		"active_timers":      s.ActiveTimers,
		"visible":            s.Visible,
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every recorded event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the controller snapshot after the last step.
	State FinalState `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// add appends an event stamped with seq.
func (r *Result) add(typ, value string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: typ, Value: value, Seq: seq})
}
