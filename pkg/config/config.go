// Package config provides configuration for reconstruction runs.
// Priority: defaults < user < project < explicit file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all CaseFlow configuration.
type Config struct {
	Version int `yaml:"version"`

	Log       LogConfig       `yaml:"log"`
	Matching  MatchingConfig  `yaml:"matching"`
	Compute   ComputeConfig   `yaml:"compute"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig maps the event-log columns.
type LogConfig struct {
	CaseIDColumn    string `yaml:"case_id_column"`
	ActivityColumn  string `yaml:"activity_column"`
	ResourceColumn  string `yaml:"resource_column"`
	EnabledColumn   string `yaml:"enabled_column"`
	StartColumn     string `yaml:"start_column"`
	EndColumn       string `yaml:"end_column"`
	TimestampFormat string `yaml:"timestamp_format"`
	Delimiter       string `yaml:"delimiter"`
}

// MatchingConfig controls the trace matcher.
type MatchingConfig struct {
	// NGramSizeLimit bounds how many trailing activities a marking lookup
	// considers.
	NGramSizeLimit int `yaml:"ngram_size_limit"`
}

// ComputeConfig controls the state computer.
type ComputeConfig struct {
	// Workers is the number of parallel case workers. 0 = sequential.
	Workers int `yaml:"workers"`
}

// TelemetryConfig for optional OTLP tracing.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Log: LogConfig{
			CaseIDColumn:    "case_id",
			ActivityColumn:  "activity",
			ResourceColumn:  "resource",
			EnabledColumn:   "enable_time",
			StartColumn:     "start_time",
			EndColumn:       "end_time",
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			Delimiter:       ",",
		},
		Matching: MatchingConfig{
			NGramSizeLimit: 5,
		},
		Compute: ComputeConfig{
			Workers: 0,
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
	}
}

// Load builds the effective configuration: defaults, then the user and
// project files when present, then the explicit path when given. Missing
// files are skipped; unreadable or invalid ones fail.
func Load(explicitPath string) (*Config, error) {
	cfg := Default()

	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".caseflow", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".caseflow.yaml"))
	}

	for _, path := range paths {
		if err := mergeFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if explicitPath != "" {
		if err := mergeFile(cfg, explicitPath); err != nil {
			return nil, fmt.Errorf("config %s: %w", explicitPath, err)
		}
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}
	merge(cfg, &partial)
	return nil
}

// merge copies non-zero values from src.
func merge(dst, src *Config) {
	if src.Version != 0 {
		dst.Version = src.Version
	}
	if src.Log.CaseIDColumn != "" {
		dst.Log.CaseIDColumn = src.Log.CaseIDColumn
	}
	if src.Log.ActivityColumn != "" {
		dst.Log.ActivityColumn = src.Log.ActivityColumn
	}
	if src.Log.ResourceColumn != "" {
		dst.Log.ResourceColumn = src.Log.ResourceColumn
	}
	if src.Log.EnabledColumn != "" {
		dst.Log.EnabledColumn = src.Log.EnabledColumn
	}
	if src.Log.StartColumn != "" {
		dst.Log.StartColumn = src.Log.StartColumn
	}
	if src.Log.EndColumn != "" {
		dst.Log.EndColumn = src.Log.EndColumn
	}
	if src.Log.TimestampFormat != "" {
		dst.Log.TimestampFormat = src.Log.TimestampFormat
	}
	if src.Log.Delimiter != "" {
		dst.Log.Delimiter = src.Log.Delimiter
	}
	if src.Matching.NGramSizeLimit != 0 {
		dst.Matching.NGramSizeLimit = src.Matching.NGramSizeLimit
	}
	if src.Compute.Workers != 0 {
		dst.Compute.Workers = src.Compute.Workers
	}
	if src.Telemetry.Enabled {
		dst.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		dst.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}
