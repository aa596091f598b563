// Package config loads the aqguard YAML configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hed1ad/aqguard/pkg/preprocess"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultAugmentedPath  = "data/air_quality_processed.csv"
	DefaultProjectionPath = "data/pca_coordinates.csv"
	DefaultContamination  = 0.05
	DefaultSeed           = 42
	DefaultTrees          = 100
	DefaultSampleSize     = 256
	DefaultComponents     = 2
)

// Config holds all configuration for a pipeline run.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Cleaning  CleaningConfig  `yaml:"cleaning"`
	Detector  DetectorConfig  `yaml:"detector"`
	Reduction ReductionConfig `yaml:"reduction"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InputConfig describes the raw CSV file.
type InputConfig struct {
	Path string `yaml:"path"`
	// Delimiter is a single character; the UCI file uses ";".
	Delimiter    string `yaml:"delimiter"`
	DecimalComma bool   `yaml:"decimal_comma"`
}

// OutputConfig lists the persisted artifacts.
type OutputConfig struct {
	AugmentedPath  string `yaml:"augmented_path"`
	ProjectionPath string `yaml:"projection_path"`
	// SQLitePath enables the SQLite row store when set.
	SQLitePath string `yaml:"sqlite_path"`
	// IncludeScore adds the decision score column to the augmented dataset.
	IncludeScore bool `yaml:"include_score"`
	// ModelPath, when set, receives the serialized detector.
	ModelPath string `yaml:"model_path"`
}

// CleaningConfig tunes the cleaner.
type CleaningConfig struct {
	MaxMissing  *int     `yaml:"max_missing"`
	Sentinel    *float64 `yaml:"sentinel"`
	DropColumns []string `yaml:"drop_columns"`
}

// DetectorConfig tunes the isolation forest.
type DetectorConfig struct {
	Contamination float64 `yaml:"contamination"`
	Seed          *int64  `yaml:"seed"`
	Trees         int     `yaml:"trees"`
	SampleSize    int     `yaml:"sample_size"`
}

// ReductionConfig tunes the projection.
type ReductionConfig struct {
	Components int `yaml:"components"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file. An empty path yields defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults sets default values for any unset fields.
func (c *Config) ApplyDefaults() {
	if c.Input.Delimiter == "" {
		c.Input.Delimiter = ","
	}
	if c.Output.AugmentedPath == "" {
		c.Output.AugmentedPath = DefaultAugmentedPath
	}
	if c.Output.ProjectionPath == "" {
		c.Output.ProjectionPath = DefaultProjectionPath
	}
	if c.Cleaning.MaxMissing == nil {
		n := preprocess.MaxMissing
		c.Cleaning.MaxMissing = &n
	}
	if c.Cleaning.Sentinel == nil {
		v := preprocess.Sentinel
		c.Cleaning.Sentinel = &v
	}
	if c.Cleaning.DropColumns == nil {
		c.Cleaning.DropColumns = append([]string(nil), preprocess.DefaultDropColumns...)
	}
	if c.Detector.Contamination == 0 {
		c.Detector.Contamination = DefaultContamination
	}
	if c.Detector.Seed == nil {
		s := int64(DefaultSeed)
		c.Detector.Seed = &s
	}
	if c.Detector.Trees == 0 {
		c.Detector.Trees = DefaultTrees
	}
	if c.Detector.SampleSize == 0 {
		c.Detector.SampleSize = DefaultSampleSize
	}
	if c.Reduction.Components == 0 {
		c.Reduction.Components = DefaultComponents
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// OverrideFromEnv overrides config values from environment variables.
func (c *Config) OverrideFromEnv() error {
	if v := os.Getenv("AQGUARD_INPUT"); v != "" {
		c.Input.Path = v
	}
	if v := os.Getenv("AQGUARD_OUTPUT"); v != "" {
		c.Output.AugmentedPath = v
	}
	if v := os.Getenv("AQGUARD_SQLITE"); v != "" {
		c.Output.SQLitePath = v
	}
	if v := os.Getenv("AQGUARD_CONTAMINATION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AQGUARD_CONTAMINATION: %w", err)
		}
		c.Detector.Contamination = f
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len([]rune(c.Input.Delimiter)) != 1 {
		return fmt.Errorf("input delimiter must be a single character, got %q", c.Input.Delimiter)
	}
	if c.Detector.Contamination <= 0 || c.Detector.Contamination > 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5], got %v", c.Detector.Contamination)
	}
	if c.Detector.Trees < 1 {
		return fmt.Errorf("trees must be positive, got %d", c.Detector.Trees)
	}
	if c.Detector.SampleSize < 2 {
		return fmt.Errorf("sample size must be at least 2, got %d", c.Detector.SampleSize)
	}
	if *c.Cleaning.MaxMissing < 0 {
		return fmt.Errorf("max missing must not be negative, got %d", *c.Cleaning.MaxMissing)
	}
	if c.Reduction.Components < 1 {
		return fmt.Errorf("components must be positive, got %d", c.Reduction.Components)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Delimiter returns the input delimiter as a rune.
func (c *Config) Delimiter() rune {
	return []rune(c.Input.Delimiter)[0]
}
