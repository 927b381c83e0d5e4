package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tracesync/internal/timeline"
)

// Scenario defines a playback conformance scenario.
// A scenario loads a run export, drives a playback controller through a list
// of steps, and asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the run export JSON to load.
	// Relative paths are resolved against the scenario file's directory.
	Fixture string `yaml:"fixture"`

	// SessionID is a fixed session ID for deterministic logs.
	// Defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`

	// Media attaches a scripted media element. Without it the controller
	// runs timeline-only.
	Media *MediaSetup `yaml:"media,omitempty"`

	// BaseTourIntervalMs overrides the 1s tour period at 1x.
	BaseTourIntervalMs int64 `yaml:"base_tour_interval_ms,omitempty"`

	// VideoDuration supplies the marker projection length when there is no
	// media. Defaults to the fixture's video duration.
	VideoDuration float64 `yaml:"video_duration,omitempty"`

	// Filter is the initial filter.
	Filter *FilterSpec `yaml:"filter,omitempty"`

	// Steps are the commands to run, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// MediaSetup configures the scripted media element.
type MediaSetup struct {
	// Duration is the element's length in seconds.
	Duration float64 `yaml:"duration"`

	// DeferSeeked holds seeks unsettled until a "settle" step.
	DeferSeeked bool `yaml:"defer_seeked,omitempty"`
}

// FilterSpec is the YAML form of timeline.Filter.
type FilterSpec struct {
	Kinds       []string `yaml:"kinds,omitempty"`
	Statuses    []string `yaml:"statuses,omitempty"`
	Search      string   `yaml:"search,omitempty"`
	ErrorsOnly  bool     `yaml:"errors_only,omitempty"`
	GroupByTest bool     `yaml:"group_by_test,omitempty"`
}

// Build converts the YAML filter into a timeline.Filter.
func (f *FilterSpec) Build() (timeline.Filter, error) {
	if f == nil {
		return timeline.Filter{}, nil
	}
	return timeline.NewFilter(f.Kinds, f.Statuses, f.Search, f.ErrorsOnly, f.GroupByTest)
}

// Step is one command issued to the controller.
type Step struct {
	// Do names the command; see the Cmd* constants.
	Do string `yaml:"do"`

	// ID is the timeline item for "select".
	ID string `yaml:"id,omitempty"`

	// Index is the visible position for "select_index".
	Index int `yaml:"index,omitempty"`

	// Delta is the offset for "step".
	Delta int `yaml:"delta,omitempty"`

	// Time is the playhead for "time_update", "scrub_to" and "scrub_end".
	Time float64 `yaml:"time,omitempty"`

	// Ratio is the click position for "jump".
	Ratio float64 `yaml:"ratio,omitempty"`

	// Rate is the multiplier for "rate".
	Rate float64 `yaml:"rate,omitempty"`

	// Ms is the virtual time for "advance".
	Ms int64 `yaml:"ms,omitempty"`

	// Filter is the new filter for "filter".
	Filter *FilterSpec `yaml:"filter,omitempty"`

	// Fixture is the replacement export for "reload".
	Fixture string `yaml:"fixture,omitempty"`

	// Message is the element error for "media_fail".
	Message string `yaml:"message,omitempty"`

	// ExpectError is the error code the command must return. When empty
	// the command must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step commands.
const (
	CmdSelect      = "select"
	CmdSelectIndex = "select_index"
	CmdStep        = "step"
	CmdPlay        = "play"
	CmdPause       = "pause"
	CmdTogglePlay  = "toggle_play"
	CmdRate        = "rate"
	CmdTourStart   = "tour_start"
	CmdTourStop    = "tour_stop"
	CmdTourToggle  = "tour_toggle"
	CmdAdvance     = "advance"
	CmdTimeUpdate  = "time_update"
	CmdSettle      = "settle"
	CmdEnded       = "ended"
	CmdScrubBegin  = "scrub_begin"
	CmdScrubTo     = "scrub_to"
	CmdScrubEnd    = "scrub_end"
	CmdJump        = "jump"
	CmdNextMarker  = "next_marker"
	CmdPrevMarker  = "prev_marker"
	CmdFilter      = "filter"
	CmdReload      = "reload"
	CmdMediaFail   = "media_fail"
	CmdClose       = "close"
)

var mediaCommands = []string{CmdTimeUpdate, CmdSettle, CmdEnded, CmdMediaFail}

var knownCommands = []string{
	CmdSelect, CmdSelectIndex, CmdStep, CmdPlay, CmdPause, CmdTogglePlay,
	CmdRate, CmdTourStart, CmdTourStop, CmdTourToggle, CmdAdvance,
	CmdTimeUpdate, CmdSettle, CmdEnded, CmdScrubBegin, CmdScrubTo,
	CmdScrubEnd, CmdJump, CmdNextMarker, CmdPrevMarker, CmdFilter,
	CmdReload, CmdMediaFail, CmdClose,
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an event appears in the trace
	// - "trace_order": Check events appear in order
	// - "trace_count": Check an event appears exactly N times
	// - "final_state": Check fields of the final controller snapshot
	Type string `yaml:"type"`

	// Event is a "type:value" trace key, e.g. "step:st-1" or
	// "transport:seek(5)" (used by trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected snapshot fields (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Fixture paths are resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving fixture paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Fixture = resolve(basePath, scenario.Fixture)
	for i := range scenario.Steps {
		scenario.Steps[i].Fixture = resolve(basePath, scenario.Steps[i].Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// Discover lists the scenario files under dir, sorted by path. A non-empty
// pattern is matched against each file's base name without extension.
func Discover(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if pattern != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(pattern, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
		return fmt.Errorf("fixture file not found: %s", s.Fixture)
	}

	if s.Media != nil && s.Media.Duration < 0 {
		return fmt.Errorf("media.duration must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := s.Filter.Build(); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, s.Media != nil); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step, hasMedia bool) error {
	if st.Do == "" {
		return fmt.Errorf("steps[%d]: do is required", index)
	}
	if !slices.Contains(knownCommands, st.Do) {
		return fmt.Errorf("steps[%d]: unknown command %q", index, st.Do)
	}
	if !hasMedia && slices.Contains(mediaCommands, st.Do) {
		return fmt.Errorf("steps[%d]: %s requires media", index, st.Do)
	}

	switch st.Do {
	case CmdSelect:
		if st.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for select", index)
		}
	case CmdAdvance:
		if st.Ms <= 0 {
			return fmt.Errorf("steps[%d]: ms must be positive for advance", index)
		}
	case CmdFilter:
		if _, err := st.Filter.Build(); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case CmdReload:
		if st.Fixture == "" {
			return fmt.Errorf("steps[%d]: fixture is required for reload", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for key := range a.Expect {
			if _, ok := (FinalState{}).fields()[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown state field %q", index, key)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
