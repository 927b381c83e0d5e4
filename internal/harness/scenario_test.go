package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createFixture copies the checkout run into dir and returns its path.
func createFixture(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(projectRoot(), "testdata", "runs", "checkout.json"))
	require.NoError(t, err)
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createFixture(t, dir)

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
fixture: run.json
media:
  duration: 12
  defer_seeked: true
steps:
  - do: select
    id: step/st-1
  - do: rate
    rate: 1.5
assertions:
  - type: trace_contains
    event: "step:st-1"
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(dir, "run.json"), scenario.Fixture, "fixture resolved against scenario dir")
	require.NotNil(t, scenario.Media)
	assert.Equal(t, 12.0, scenario.Media.Duration)
	assert.True(t, scenario.Media.DeferSeeked)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, CmdSelect, scenario.Steps[0].Do)
	assert.Equal(t, "step/st-1", scenario.Steps[0].ID)
	assert.Equal(t, 1.5, scenario.Steps[1].Rate)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "d"
fixture: run.json
steps: [{do: play}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
fixture: run.json
steps: [{do: play}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing fixture",
			content: `
name: n
description: "d"
steps: [{do: play}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "fixture is required",
		},
		{
			name: "fixture not found",
			content: `
name: n
description: "d"
fixture: missing.json
steps: [{do: play}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "fixture file not found",
		},
		{
			name: "no steps",
			content: `
name: n
description: "d"
fixture: run.json
steps: []
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "steps list is required",
		},
		{
			name: "no assertions",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: play}]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown command",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: rewind}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: `unknown command "rewind"`,
		},
		{
			name: "media command without media",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: time_update, time: 3}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "time_update requires media",
		},
		{
			name: "select without id",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: select}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "id is required for select",
		},
		{
			name: "advance without ms",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: advance}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: "ms must be positive",
		},
		{
			name: "bad filter kind",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: filter, filter: {kinds: [video]}}]
assertions: [{type: trace_contains, event: "command:play"}]
`,
			wantErr: `unknown kind "video"`,
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: play}]
assertions: [{type: eventually}]
`,
			wantErr: `unknown assertion type "eventually"`,
		},
		{
			name: "unknown state field",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: play}]
assertions: [{type: final_state, expect: {volume: 3}}]
`,
			wantErr: `unknown state field "volume"`,
		},
		{
			name: "negative count",
			content: `
name: n
description: "d"
fixture: run.json
steps: [{do: play}]
assertions: [{type: trace_count, event: "command:play", count: -1}]
`,
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			createFixture(t, dir)
			_, err := LoadScenario(writeScenario(t, dir, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadScenario(writeScenario(t, dir, "name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	dir := t.TempDir()
	createFixture(t, dir)

	_, err := LoadScenario(writeScenario(t, dir, `
name: n
description: "d"
fixture: run.json
steps: [{do: play}]
assertion: [{type: trace_contains, event: "command:play"}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_TraceCountZeroAllowed(t *testing.T) {
	dir := t.TempDir()
	createFixture(t, dir)

	scenario, err := LoadScenario(writeScenario(t, dir, `
name: n
description: "d"
fixture: run.json
steps: [{do: play}]
assertions: [{type: trace_count, event: "transport:play", count: 0}]
`))
	require.NoError(t, err)
	assert.Zero(t, scenario.Assertions[0].Count)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	fixtures := filepath.Join(dir, "runs")
	require.NoError(t, os.MkdirAll(fixtures, 0755))
	createFixture(t, fixtures)

	path := writeScenario(t, dir, `
name: n
description: "d"
fixture: run.json
steps:
  - do: reload
    fixture: run.json
assertions: [{type: trace_contains, event: "command:reload"}]
`)
	scenario, err := LoadScenarioWithBasePath(path, fixtures)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fixtures, "run.json"), scenario.Fixture)
	assert.Equal(t, filepath.Join(fixtures, "run.json"), scenario.Steps[0].Fixture)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_tour.yaml", "a_play.yml", "notes.txt", "nested/c_tour.yaml"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, nil, 0644))
	}

	all, err := Discover(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_play.yml"),
		filepath.Join(dir, "b_tour.yaml"),
		filepath.Join(dir, "nested", "c_tour.yaml"),
	}, all)

	tours, err := Discover(dir, "*_tour")
	require.NoError(t, err)
	assert.Len(t, tours, 2)

	_, err = Discover(dir, "[")
	assert.Error(t, err)
}

func TestLoadExampleScenarios(t *testing.T) {
	files, err := Discover(filepath.Join(projectRoot(), "testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		scenario, err := LoadScenario(f)
		require.NoError(t, err, f)
		assert.NotEmpty(t, scenario.Steps, f)
	}
}
