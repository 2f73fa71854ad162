package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Color modes accepted by the color setting.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database
	DBPath string `yaml:"db_path"`

	// KeepRunsDays is the number of days to keep run history (0 = forever)
	KeepRunsDays int `yaml:"keep_runs_days"`
}

// TracingConfig represents OpenTelemetry export configuration
type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address; empty disables export
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute
	ServiceName string `yaml:"service_name"`

	// SampleRate is the fraction of runs traced, between 0 and 1
	SampleRate float64 `yaml:"sample_rate"`
}

// Config represents snippetcheck configuration options
type Config struct {
	// Parallel is the number of snippets run concurrently (1 = sequential)
	Parallel int `yaml:"parallel"`

	// Timeout is the default per-snippet time budget
	Timeout time.Duration `yaml:"timeout"`

	// RunTimeout bounds the whole run (0 = no limit)
	RunTimeout time.Duration `yaml:"run_timeout"`

	// Seed feeds Math.random in every evaluation context
	Seed int64 `yaml:"seed"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written (empty disables file logs)
	LogDir string `yaml:"log_dir"`

	// Color selects colored output: auto, always or never
	Color string `yaml:"color"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`

	// Tracing contains tracing configuration
	Tracing TracingConfig `yaml:"tracing"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Parallel:   1,
		Timeout:    5 * time.Second,
		RunTimeout: 0,
		LogLevel:   "info",
		LogDir:     filepath.Join(DirName, "logs"),
		Color:      ColorAuto,
		History: HistoryConfig{
			Enabled:      true,
			DBPath:       filepath.Join(DirName, "history.db"),
			KeepRunsDays: 90,
		},
		Tracing: TracingConfig{
			ServiceName: "snippetcheck",
			SampleRate:  1.0,
		},
	}
}

// fileConfig mirrors Config with pointer fields so keys present in the file
// can be told apart from zero values.
type fileConfig struct {
	Parallel   *int    `yaml:"parallel"`
	Timeout    *string `yaml:"timeout"`
	RunTimeout *string `yaml:"run_timeout"`
	Seed       *int64  `yaml:"seed"`
	LogLevel   *string `yaml:"log_level"`
	LogDir     *string `yaml:"log_dir"`
	Color      *string `yaml:"color"`
	History    *struct {
		Enabled      *bool   `yaml:"enabled"`
		DBPath       *string `yaml:"db_path"`
		KeepRunsDays *int    `yaml:"keep_runs_days"`
	} `yaml:"history"`
	Tracing *struct {
		Endpoint    *string  `yaml:"endpoint"`
		ServiceName *string  `yaml:"service_name"`
		SampleRate  *float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Parallel != nil {
		cfg.Parallel = *fc.Parallel
	}
	if fc.Timeout != nil {
		if cfg.Timeout, err = parseDuration("timeout", *fc.Timeout); err != nil {
			return nil, err
		}
	}
	if fc.RunTimeout != nil {
		if cfg.RunTimeout, err = parseDuration("run_timeout", *fc.RunTimeout); err != nil {
			return nil, err
		}
	}
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*fc.LogLevel))
	}
	if fc.LogDir != nil {
		cfg.LogDir = *fc.LogDir
	}
	if fc.Color != nil {
		cfg.Color = strings.ToLower(strings.TrimSpace(*fc.Color))
	}
	if h := fc.History; h != nil {
		if h.Enabled != nil {
			cfg.History.Enabled = *h.Enabled
		}
		if h.DBPath != nil {
			cfg.History.DBPath = *h.DBPath
		}
		if h.KeepRunsDays != nil {
			cfg.History.KeepRunsDays = *h.KeepRunsDays
		}
	}
	if tr := fc.Tracing; tr != nil {
		if tr.Endpoint != nil {
			cfg.Tracing.Endpoint = *tr.Endpoint
		}
		if tr.ServiceName != nil {
			cfg.Tracing.ServiceName = *tr.ServiceName
		}
		if tr.SampleRate != nil {
			cfg.Tracing.SampleRate = *tr.SampleRate
		}
	}

	return cfg, nil
}

// parseDuration accepts Go durations ("1500ms", "2s") and bare integers as milliseconds.
func parseDuration(key, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("invalid %s format %q", key, value)
}

// LoadConfigFromDir loads configuration from .snippetcheck/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DirName, "config.yaml"))
}

// FlagOverrides carries CLI flag values; nil fields were not set on the command line.
type FlagOverrides struct {
	Parallel   *int
	Timeout    *time.Duration
	RunTimeout *time.Duration
	LogLevel   *string
	LogDir     *string
	Color      *string
	NoHistory  *bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(f FlagOverrides) {
	if f.Parallel != nil {
		c.Parallel = *f.Parallel
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.RunTimeout != nil {
		c.RunTimeout = *f.RunTimeout
	}
	if f.LogLevel != nil {
		c.LogLevel = strings.ToLower(*f.LogLevel)
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.Color != nil {
		c.Color = strings.ToLower(*f.Color)
	}
	if f.NoHistory != nil && *f.NoHistory {
		c.History.Enabled = false
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be >= 1, got %d", c.Parallel)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run_timeout must be >= 0, got %v", c.RunTimeout)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q, must be one of: auto, always, never", c.Color)
	}

	if c.History.Enabled {
		if c.History.DBPath == "" {
			return fmt.Errorf("history.db_path cannot be empty when history is enabled")
		}
		if c.History.KeepRunsDays < 0 {
			return fmt.Errorf("history.keep_runs_days must be >= 0, got %d", c.History.KeepRunsDays)
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate)
	}

	return nil
}
