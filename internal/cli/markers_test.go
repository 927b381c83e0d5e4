package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracesync/internal/markers"
)

func TestMarkers_Text(t *testing.T) {
	out, err := execute(t, "markers", fixture("checkout.json"), "--kind", "step", "--width", "12")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Run run-42: 3 markers over 12.0s", lines[0])
	// Steps at 1s, 5s and 9s on a 12-column bar.
	assert.Equal(t, "|-P---W---F--|", lines[1])
	assert.Contains(t, out, "0.750")
}

func TestMarkers_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "markers", fixture("checkout.json"), "--errors-only")
	require.NoError(t, err)

	var resp struct {
		Data MarkersResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 12.0, resp.Data.Duration)
	require.NotEmpty(t, resp.Data.Markers)
	first := resp.Data.Markers[0]
	assert.Equal(t, "step/st-3", first.ID)
	assert.Equal(t, 0.75, first.Ratio)
	assert.Equal(t, markers.Column(0.75, 60), first.Column)
}

func TestMarkers_NoVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novideo.json")
	writeFile(t, path, `{"run": {"id": "run-7"}, "steps": [{"id": "s", "name": "n", "started_at": "2024-03-01T12:00:00Z"}]}`)

	_, err := execute(t, "markers", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "-F*", renderBar([]markers.Cell{{}, {Count: 2, Status: "failed"}, {Count: 1}}))
}
