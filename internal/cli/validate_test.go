package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestValidate_Valid(t *testing.T) {
	out, err := execute(t, "validate", fixture("checkout.json"), fixture("checkout_rerun.json"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ "+fixture("checkout.json")+": run run-42, 9 items, 1 dropped")
	assert.Contains(t, out, "run run-43, 7 items")
	assert.Contains(t, out, "dropped log[2] (id=c-3)")
}

func TestValidate_ValidJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", fixture("checkout.json"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 1)
	assert.Equal(t, "run-42", resp.Data.Files[0].RunID)
	require.Len(t, resp.Data.Files[0].Dropped, 1)
	assert.Equal(t, "c-3", resp.Data.Files[0].Dropped[0].SourceID)
}

func TestValidate_StrictFailsOnDropped(t *testing.T) {
	out, err := execute(t, "validate", "--strict", fixture("checkout.json"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+fixture("checkout.json"))
}

func TestValidate_SchemaViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, "{\n  \"run\": {\"id\": \"\"},\n  \"steps\": []\n}\n")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+path)
	assert.Contains(t, out, "run.id")
}

func TestValidate_SchemaViolationJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, `{"run": {"id": ""}, "steps": []}`)

	out, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.True(t, ErrorReported(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRun, resp.Error.Code)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_NOT_FOUND]")
}

func TestValidate_NoArgs(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}
