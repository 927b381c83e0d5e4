package ir

// RunExport is the run detail payload consumed from the dashboard API.
// It is decoded once per view-open and never written back.
type RunExport struct {
	Run                RunInfo                   `json:"run"`
	Steps              []StepRecord              `json:"steps"`
	Artifacts          []ArtifactRecord          `json:"artifacts,omitempty"`
	ConsoleLogs        []ConsoleLogRecord        `json:"console_logs,omitempty"`
	NetworkLogs        []NetworkLogRecord        `json:"network_logs,omitempty"`
	PerformanceMarkers []PerformanceMarkerRecord `json:"performance_markers,omitempty"`
	Video              *VideoInfo                `json:"video,omitempty"`
}

// RunInfo identifies the run.
type RunInfo struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Suite     string  `json:"suite,omitempty"`
	Status    string  `json:"status,omitempty"`
	StartedAt RawTime `json:"started_at,omitempty"`
	EndedAt   RawTime `json:"ended_at,omitempty"`
}

// StepRecord is one discrete test action as recorded by the runner.
type StepRecord struct {
	ID           string  `json:"id"`
	Index        int     `json:"index"`
	Name         string  `json:"name"`
	Action       string  `json:"action,omitempty"`
	Selector     string  `json:"selector,omitempty"`
	Status       string  `json:"status,omitempty"`
	TestName     string  `json:"test_name,omitempty"`
	StartedAt    RawTime `json:"started_at"`
	EndedAt      RawTime `json:"ended_at,omitempty"`
	DurationMs   *int64  `json:"duration_ms,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ErrorStack   string  `json:"error_stack,omitempty"`
	RetryCount   int     `json:"retry_count,omitempty"`

	// VideoOffsetSeconds is set by the recorder only when the step was
	// correlated with the video during capture.
	VideoOffsetSeconds *float64 `json:"video_offset_seconds,omitempty"`
}

// Artifact types.
const (
	ArtifactScreenshot = "screenshot"
	ArtifactVideo      = "video"
	ArtifactTrace      = "trace"
)

// ArtifactRecord is a stored file produced by the run (screenshot, video, trace).
type ArtifactRecord struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	URL             string   `json:"url"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	StepID          string   `json:"step_id,omitempty"`
	Width           int      `json:"width,omitempty"`
	Height          int      `json:"height,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// ConsoleLogRecord is one browser console entry.
type ConsoleLogRecord struct {
	ID                 string   `json:"id,omitempty"`
	Level              string   `json:"level"`
	Message            string   `json:"message"`
	Timestamp          RawTime  `json:"timestamp"`
	StackTrace         string   `json:"stack_trace,omitempty"`
	StepID             string   `json:"step_id,omitempty"`
	VideoOffsetSeconds *float64 `json:"video_offset_seconds,omitempty"`
}

// NetworkLogRecord is one captured HTTP exchange.
type NetworkLogRecord struct {
	ID                 string            `json:"id,omitempty"`
	Method             string            `json:"method"`
	URL                string            `json:"url"`
	Status             int               `json:"status"`
	StartedAt          RawTime           `json:"started_at"`
	DurationMs         *int64            `json:"duration_ms,omitempty"`
	RequestHeaders     map[string]string `json:"request_headers,omitempty"`
	ResponseHeaders    map[string]string `json:"response_headers,omitempty"`
	RequestBody        string            `json:"request_body,omitempty"`
	ResponseBody       string            `json:"response_body,omitempty"`
	StepID             string            `json:"step_id,omitempty"`
	VideoOffsetSeconds *float64          `json:"video_offset_seconds,omitempty"`
}

// PerformanceMarkerRecord is a performance.mark()/measure() style entry.
type PerformanceMarkerRecord struct {
	ID                 string   `json:"id,omitempty"`
	Name               string   `json:"name"`
	Timestamp          RawTime  `json:"timestamp"`
	DurationMs         *int64   `json:"duration_ms,omitempty"`
	Value              *float64 `json:"value,omitempty"`
	Unit               string   `json:"unit,omitempty"`
	StepID             string   `json:"step_id,omitempty"`
	VideoOffsetSeconds *float64 `json:"video_offset_seconds,omitempty"`
}

// VideoInfo describes the run's screen recording.
type VideoInfo struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"duration_seconds"`
	StartedAt       RawTime `json:"started_at,omitempty"`
}

// ResolveVideo returns the export's video description, falling back to the
// first video artifact when the dedicated field is absent.
func (e *RunExport) ResolveVideo() (VideoInfo, bool) {
	if e.Video != nil && e.Video.URL != "" {
		return *e.Video, true
	}
	for _, a := range e.Artifacts {
		if a.Type != ArtifactVideo || a.URL == "" {
			continue
		}
		v := VideoInfo{URL: a.URL}
		if a.DurationSeconds != nil {
			v.DurationSeconds = *a.DurationSeconds
		}
		return v, true
	}
	return VideoInfo{}, false
}
