// Package config defines the evaluation run configuration and its loading.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and STREAMREC_ env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Config contains the settings of one evaluation run.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ItemsFile and ClicksFile are the dataset CSV files.
	ItemsFile  string `koanf:"items_file"`
	ClicksFile string `koanf:"clicks_file"`
	// OldFileFormat reads item, user and time from click columns 2, 3 and 4.
	OldFileFormat bool `koanf:"old_file_format"`

	// Deduplicate drops repeated clicks of a user on an item within DedupeWindowMS.
	Deduplicate    bool `koanf:"deduplicate"`
	DedupeWindowMS int  `koanf:"dedupe_window_ms"`

	// AlgorithmConfig and MetricsConfig are the JSON component definitions.
	AlgorithmConfig string `koanf:"algorithm_config"`
	MetricsConfig   string `koanf:"metrics_config"`

	// SessionInactivityThreshold splits sessions after SessionTimeThresholdMS of
	// inactivity instead of at midnight in SessionTimezone.
	SessionInactivityThreshold bool   `koanf:"session_inactivity_threshold"`
	SessionTimeThresholdMS     int64  `koanf:"session_time_threshold_ms"`
	SessionTimezone            string `koanf:"session_timezone"`
	// SessionLengthFilter removes sessions with at most this many clicks.
	SessionLengthFilter int `koanf:"session_length_filter"`

	// OutputStats prints dataset statistics and significance tests.
	OutputStats bool `koanf:"output_stats"`

	// SplitThreshold is the training share; SplitByTime splits on time instead of event count.
	SplitThreshold float64 `koanf:"split_threshold"`
	SplitByTime    bool    `koanf:"split_by_time"`

	// ThreadCount bounds the number of algorithms evaluated at once.
	ThreadCount int `koanf:"thread_count"`

	// OutputDir receives one folder per run.
	OutputDir string `koanf:"output_dir"`

	// StatTest is "ttest" or "smirnov".
	StatTest string `koanf:"stat_test"`

	// MetricsAddr serves Prometheus metrics during the run when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		ItemsFile:              "data/Items.csv",
		ClicksFile:             "data/Clicks.csv",
		DedupeWindowMS:         60_000,
		AlgorithmConfig:        "config/algorithm-config-simple.json",
		MetricsConfig:          "config/metrics-config.json",
		SessionTimeThresholdMS: (20 * time.Minute).Milliseconds(),
		SessionTimezone:        "Local",
		SessionLengthFilter:    1,
		SplitThreshold:         0.7,
		ThreadCount:            max(1, runtime.NumCPU()-1),
		OutputDir:              "results",
		StatTest:               "ttest",
	}
}

// SessionThreshold returns the inactivity threshold as a duration.
func (c *Config) SessionThreshold() time.Duration {
	return time.Duration(c.SessionTimeThresholdMS) * time.Millisecond
}

// DedupeWindow returns the deduplication window as a duration.
func (c *Config) DedupeWindow() time.Duration {
	return time.Duration(c.DedupeWindowMS) * time.Millisecond
}

// Location resolves SessionTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.SessionTimezone == "" || c.SessionTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.SessionTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: session_timezone: %w", ErrInvalidConfig, err)
	}
	return loc, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.ItemsFile == "" || c.ClicksFile == "":
		return fmt.Errorf("%w: items_file and clicks_file must not be empty", ErrInvalidConfig)
	case c.AlgorithmConfig == "" || c.MetricsConfig == "":
		return fmt.Errorf("%w: algorithm_config and metrics_config must not be empty", ErrInvalidConfig)
	case c.SplitThreshold <= 0 || c.SplitThreshold >= 1:
		return fmt.Errorf("%w: split_threshold must be in (0, 1), got %v", ErrInvalidConfig, c.SplitThreshold)
	case c.ThreadCount < 1:
		return fmt.Errorf("%w: thread_count must be positive, got %d", ErrInvalidConfig, c.ThreadCount)
	case c.SessionInactivityThreshold && c.SessionTimeThresholdMS <= 0:
		return fmt.Errorf("%w: session_time_threshold_ms must be positive", ErrInvalidConfig)
	case c.Deduplicate && c.DedupeWindowMS <= 0:
		return fmt.Errorf("%w: dedupe_window_ms must be positive", ErrInvalidConfig)
	case c.StatTest != "ttest" && c.StatTest != "smirnov":
		return fmt.Errorf("%w: stat_test must be ttest or smirnov, got %q", ErrInvalidConfig, c.StatTest)
	case c.OutputDir == "":
		return fmt.Errorf("%w: output_dir must not be empty", ErrInvalidConfig)
	}
	_, err := c.Location()
	return err
}
