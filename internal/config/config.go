/*
PURPOSE:
  Defines the configuration structure and loading logic for Forest Energy.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of log locations, the collector clock offset,
    correlation tolerance and canonical trace length.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Durations are written as Go duration strings ("10s", "-5h").
  - The demo server has its own block of settings.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/demo
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - No config file found falls back to defaults.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (e.g., 10s tolerance, 100 trace points).

USAGE:
  cfg, err := config.Load("forest_energy.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig().

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for Forest Energy.
type Config struct {
	// DataDir holds the raw_cpu_power_* / raw_gpu_power_* trace files.
	DataDir      string `yaml:"data_dir"`
	LatencyFile  string `yaml:"latency_file"`
	PowerLogFile string `yaml:"power_log_file"`

	OutputDir  string `yaml:"output_dir"`
	ExportFile string `yaml:"export_file"`
	ReportFile string `yaml:"report_file"`
	StatsFile  string `yaml:"stats_file"`
	SyncFile   string `yaml:"sync_file"`

	// LocalOffset is the naive local collector clock minus UTC.
	LocalOffset time.Duration `yaml:"local_offset"`
	// Tolerance is the largest start delta for fallback correlation.
	Tolerance      time.Duration `yaml:"tolerance"`
	TracePoints    int           `yaml:"trace_points"`
	FallbackPoints int           `yaml:"fallback_points"`
	// SampleInterval is the sensor sampling period used for integration.
	SampleInterval time.Duration `yaml:"sample_interval"`
	SyncStep       time.Duration `yaml:"sync_step"`

	Server ServerConfig `yaml:"server"`
}

// ServerConfig configures the demo server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// StepDelay is the pause between progress steps before replay starts.
	StepDelay time.Duration `yaml:"step_delay"`
	// PointDelay is the replay pause per trace point.
	PointDelay time.Duration `yaml:"point_delay"`
	// ResetDelay is how long the completed state stays visible.
	ResetDelay time.Duration `yaml:"reset_delay"`
	Mock       bool          `yaml:"mock"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:        "data",
		LatencyFile:    filepath.Join("data", "latency_results.csv"),
		PowerLogFile:   filepath.Join("data", "power_logs.csv"),
		OutputDir:      "data",
		ExportFile:     "gamemaker_export.json",
		ReportFile:     "correlation_report.csv",
		StatsFile:      "stats_summary.csv",
		SyncFile:       "synchronized_power.csv",
		LocalOffset:    -5 * time.Hour,
		Tolerance:      10 * time.Second,
		TracePoints:    100,
		FallbackPoints: 10,
		SampleInterval: 100 * time.Millisecond,
		SyncStep:       200 * time.Millisecond,
		Server: ServerConfig{
			Addr:       ":5000",
			StepDelay:  500 * time.Millisecond,
			PointDelay: 100 * time.Millisecond,
			ResetDelay: 2 * time.Second,
		},
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"forest_energy.yaml", "energy.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the pipelines cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.TracePoints <= 0 {
		errs = append(errs, fmt.Errorf("trace_points must be > 0, got %d", c.TracePoints))
	}
	if c.FallbackPoints <= 0 {
		errs = append(errs, fmt.Errorf("fallback_points must be > 0, got %d", c.FallbackPoints))
	}
	if c.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("tolerance must be > 0, got %s", c.Tolerance))
	}
	if c.SampleInterval <= 0 {
		errs = append(errs, fmt.Errorf("sample_interval must be > 0, got %s", c.SampleInterval))
	}
	if c.SyncStep <= 0 {
		errs = append(errs, fmt.Errorf("sync_step must be > 0, got %s", c.SyncStep))
	}
	return errors.Join(errs...)
}

// OutputPath joins name onto the output directory.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.OutputDir, name)
}
