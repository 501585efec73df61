// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file and PITWALL_* env vars.
// - Validation errors wrap ErrInvalidConfig; loading errors wrap ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"

	"github.com/okian/pitwall/internal/domain/label"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// DataDir holds results.csv, races.csv, qualifying.csv, ...
	DataDir string `koanf:"data_dir"`
	// Output is the feature matrix CSV path; "-" writes to stdout.
	Output string `koanf:"output"`
	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `koanf:"metrics_file"`

	// WindowSize is the look-back length, in timeline points, of bounded statistics.
	WindowSize int `koanf:"window_size"`

	// WorkerCount sets the number of aggregation workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the timeline job queue.
	QueueSize int `koanf:"queue_size"`

	// Target picks the supervised label: win or points.
	Target string `koanf:"target"`

	// MinYear and MaxYear bound the validity era (inclusive). MaxYear 0 is open ended.
	MinYear int `koanf:"min_year"`
	MaxYear int `koanf:"max_year"`
	// RequireGrid and RequireQualifying drop rows lacking those inputs.
	RequireGrid       bool `koanf:"require_grid"`
	RequireQualifying bool `koanf:"require_qualifying"`

	// FinishedStatus is the statusId meaning "classified / finished".
	FinishedStatus string `koanf:"finished_status"`
	// NAValues are source strings coerced to MISSING.
	NAValues []string `koanf:"na_values"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		DataDir:           "./F1",
		Output:            "training_data.csv",
		WindowSize:        10,
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         4096,
		Target:            label.TargetWin,
		MinYear:           2003, // qualifying format changed in 2003
		RequireGrid:       true,
		RequireQualifying: true,
		FinishedStatus:    "1",
		NAValues:          []string{`\N`, ""},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be >= 1, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if _, err := label.RuleByName(c.Target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.MaxYear != 0 && c.MaxYear < c.MinYear {
		return fmt.Errorf("%w: max_year %d is before min_year %d", ErrInvalidConfig, c.MaxYear, c.MinYear)
	}
	if c.FinishedStatus == "" {
		return fmt.Errorf("%w: finished_status must not be empty", ErrInvalidConfig)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	}
	return nil
}
