// Package config loads tracesync playback settings.
//
// Precedence is Env > file > Default. The file is optional; its format is
// chosen by extension (.yaml/.yml or .toml) and unknown keys are rejected
// in both formats so typos do not silently fall back to defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tracesync/internal/engine"
	"github.com/roach88/tracesync/internal/media"
	"github.com/roach88/tracesync/internal/timeline"
)

// EnvDBPath overrides Config.DBPath.
const EnvDBPath = "TRACESYNC_DB"

// Config holds playback settings.
type Config struct {
	// BaseTourIntervalMs is the tour step period at 1x.
	BaseTourIntervalMs int `toml:"base_tour_interval_ms" yaml:"base_tour_interval_ms"`

	// DefaultRate is the playback rate a session opens with.
	DefaultRate float64 `toml:"default_rate" yaml:"default_rate"`

	// TimeUpdateIntervalMs is how often the simulated media element reports
	// its playhead.
	TimeUpdateIntervalMs int `toml:"time_update_interval_ms" yaml:"time_update_interval_ms"`

	// DBPath is the local run cache.
	DBPath string `toml:"db_path" yaml:"db_path"`

	DefaultFilter FilterConfig `toml:"default_filter" yaml:"default_filter"`
}

// FilterConfig is the filter a session opens with.
type FilterConfig struct {
	Kinds       []string `toml:"kinds" yaml:"kinds"`
	Statuses    []string `toml:"statuses" yaml:"statuses"`
	Search      string   `toml:"search" yaml:"search"`
	ErrorsOnly  bool     `toml:"errors_only" yaml:"errors_only"`
	GroupByTest bool     `toml:"group_by_test" yaml:"group_by_test"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BaseTourIntervalMs:   int(engine.DefaultTourInterval / time.Millisecond),
		DefaultRate:          1,
		TimeUpdateIntervalMs: int(media.DefaultTickInterval / time.Millisecond),
		DBPath:               DefaultDBPath(),
	}
}

// DefaultDBPath is runs.db under the user cache directory, or the working
// directory when no cache directory is known.
func DefaultDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "tracesync.db"
	}
	return filepath.Join(dir, "tracesync", "runs.db")
}

// Load reads path over the defaults and applies environment overrides.
// An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if db := os.Getenv(EnvDBPath); db != "" {
		cfg.DBPath = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseTourIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("base_tour_interval_ms must be positive, got %d", c.BaseTourIntervalMs))
	}
	if !media.ValidRate(c.DefaultRate) {
		errs = append(errs, fmt.Errorf("default_rate %v is not one of %v", c.DefaultRate, media.AllowedRates))
	}
	if c.TimeUpdateIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("time_update_interval_ms must be positive, got %d", c.TimeUpdateIntervalMs))
	}
	if _, err := c.Filter(); err != nil {
		errs = append(errs, fmt.Errorf("default_filter: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// BaseTourInterval is BaseTourIntervalMs as a duration.
func (c *Config) BaseTourInterval() time.Duration {
	return time.Duration(c.BaseTourIntervalMs) * time.Millisecond
}

// TimeUpdateInterval is TimeUpdateIntervalMs as a duration.
func (c *Config) TimeUpdateInterval() time.Duration {
	return time.Duration(c.TimeUpdateIntervalMs) * time.Millisecond
}

// Filter converts DefaultFilter.
func (c *Config) Filter() (timeline.Filter, error) {
	f := c.DefaultFilter
	return timeline.NewFilter(f.Kinds, f.Statuses, f.Search, f.ErrorsOnly, f.GroupByTest)
}
