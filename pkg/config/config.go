// Package config provides configuration loading and management for rloess.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Smoothing parameters
	Smoothing struct {
		// Span is the neighbourhood size: a neighbour count when greater
		// than one, otherwise a fraction of the input size
		Span float64 `yaml:"span"`

		// Iterations is the number of robustness passes
		Iterations int `yaml:"iterations"`

		// Order is the degree of the local polynomial (1 or 2)
		Order int `yaml:"order"`

		// NumThreads specifies how many goroutines fit in parallel (0 = all CPUs)
		NumThreads int `yaml:"numThreads"`

		// PollInterval is the progress reporting period
		PollInterval time.Duration `yaml:"pollInterval"`
	} `yaml:"smoothing"`

	// Grid parameters, used when no query file is given
	Grid struct {
		// Points is the number of grid nodes along each axis
		Points int `yaml:"points"`

		// Widen scales the data bounding box around its centre
		Widen float64 `yaml:"widen"`
	} `yaml:"grid"`

	// Output parameters
	Output struct {
		// Precision is the number of decimals written for estimates
		Precision int `yaml:"precision"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// SaveImages writes grid slices as images after smoothing
		SaveImages bool `yaml:"saveImages"`

		// ImageDir is the directory for grid slice images
		ImageDir string `yaml:"imageDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default smoothing parameters
	cfg.Smoothing.Span = 0.25
	cfg.Smoothing.Iterations = 3
	cfg.Smoothing.Order = 1
	cfg.Smoothing.NumThreads = runtime.NumCPU() // Use all available cores by default
	cfg.Smoothing.PollInterval = time.Second

	// Set default grid parameters
	cfg.Grid.Points = 50
	cfg.Grid.Widen = 1.0

	// Set default output parameters
	cfg.Output.Precision = 6
	cfg.Output.Verbose = true
	cfg.Output.SaveImages = false
	cfg.Output.ImageDir = "grid_slices"

	return cfg
}

// Validate checks the configuration for values the smoother cannot use
func (c *Config) Validate() error {
	var errs []error
	if !(c.Smoothing.Span > 0) {
		errs = append(errs, fmt.Errorf("smoothing.span must be positive, got %v", c.Smoothing.Span))
	}
	if c.Smoothing.Iterations < 0 {
		errs = append(errs, fmt.Errorf("smoothing.iterations must not be negative, got %d", c.Smoothing.Iterations))
	}
	if c.Smoothing.Order != 1 && c.Smoothing.Order != 2 {
		errs = append(errs, fmt.Errorf("smoothing.order must be 1 or 2, got %d", c.Smoothing.Order))
	}
	if c.Smoothing.NumThreads < 0 {
		errs = append(errs, fmt.Errorf("smoothing.numThreads must not be negative, got %d", c.Smoothing.NumThreads))
	}
	if c.Grid.Points < 2 {
		errs = append(errs, fmt.Errorf("grid.points must be at least 2, got %d", c.Grid.Points))
	}
	if !(c.Grid.Widen > 0) {
		errs = append(errs, fmt.Errorf("grid.widen must be positive, got %v", c.Grid.Widen))
	}
	if c.Output.Precision < 0 {
		errs = append(errs, fmt.Errorf("output.precision must not be negative, got %d", c.Output.Precision))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
