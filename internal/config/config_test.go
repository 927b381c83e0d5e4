package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracesync/internal/ir"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.BaseTourInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.TimeUpdateInterval())
	assert.Equal(t, 1.0, cfg.DefaultRate)

	f, err := cfg.Filter()
	require.NoError(t, err)
	assert.True(t, f.IsZero())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "tracesync.yaml", `
base_tour_interval_ms: 1500
default_rate: 2
default_filter:
  kinds: [step, network]
  errors_only: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.BaseTourInterval())
	assert.Equal(t, 2.0, cfg.DefaultRate)
	assert.Equal(t, 250, cfg.TimeUpdateIntervalMs, "unset keys keep defaults")

	f, err := cfg.Filter()
	require.NoError(t, err)
	assert.ElementsMatch(t, []ir.Kind{ir.KindStep, ir.KindNetwork}, f.Kinds)
	assert.True(t, f.ErrorsOnly)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "tracesync.toml", `
default_rate = 0.5
time_update_interval_ms = 100
db_path = "/tmp/runs.db"

[default_filter]
statuses = ["failed", "warning"]
search = "checkout"
group_by_test = true
`)
	t.Setenv(EnvDBPath, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.DefaultRate)
	assert.Equal(t, 100*time.Millisecond, cfg.TimeUpdateInterval())
	assert.Equal(t, "/tmp/runs.db", cfg.DBPath)
	assert.Equal(t, "checkout", cfg.DefaultFilter.Search)
	assert.True(t, cfg.DefaultFilter.GroupByTest)
}

func TestLoad_EmptyYAMLFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.DefaultRate)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "typo.yaml", "default_rat: 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_rat")

	_, err = Load(writeFile(t, "typo.toml", "tour_interval = 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys: tour_interval")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	_, err := Load(writeFile(t, "rate.yaml", "default_rate: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_rate 3")

	_, err = Load(writeFile(t, "interval.toml", "base_tour_interval_ms = 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_tour_interval_ms must be positive")

	_, err = Load(writeFile(t, "filter.yaml", "default_filter:\n  kinds: [video]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_filter")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "config.json", "{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "db.toml", `db_path = "/from/file.db"`+"\n")
	t.Setenv(EnvDBPath, "/from/env.db")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.DBPath)
}
