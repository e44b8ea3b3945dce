// Package config provides configuration loading and management for ctraysim.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"ctraysim/pkg/filter"
	"ctraysim/pkg/raytracer"
	"ctraysim/pkg/reconstruction"
)

// ErrInvalid indicates a configuration value outside its valid range
var ErrInvalid = errors.New("config: invalid value")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Simulation parameters
	Simulation struct {
		// Angles is the number of projections, equally spaced over [0, 360) degrees
		Angles int `yaml:"angles"`

		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`
	} `yaml:"simulation"`

	// Ray tracer parameters
	Tracer struct {
		// StepSize is the integration step along each ray in pixels
		StepSize float64 `yaml:"stepSize"`

		// PartialStep weights the last sample of each ray by the remaining distance
		PartialStep bool `yaml:"partialStep"`
	} `yaml:"tracer"`

	// Reconstruction parameters
	Reconstruction struct {
		// Filter is the projection filter: "normalize" or "ramp"
		Filter string `yaml:"filter"`
	} `yaml:"reconstruction"`

	// Output parameters
	Output struct {
		// OutputPath is the directory the images are written to
		OutputPath string `yaml:"outputPath"`

		// Save16Bit additionally writes a 16-bit reconstruction
		Save16Bit bool `yaml:"save16Bit"`

		// SaveDebugDensityMap writes the loaded field back out when verbose
		SaveDebugDensityMap bool `yaml:"saveDebugDensityMap"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Metrics prints reconstruction quality metrics
		Metrics bool `yaml:"metrics"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Simulation.Angles = 512
	cfg.Simulation.NumCores = runtime.NumCPU()

	cfg.Tracer.StepSize = raytracer.DefaultStepSize
	cfg.Tracer.PartialStep = false

	cfg.Reconstruction.Filter = string(filter.ModeNormalize)

	cfg.Output.OutputPath = "output"
	cfg.Output.Save16Bit = true
	cfg.Output.SaveDebugDensityMap = true
	cfg.Output.Verbose = false
	cfg.Output.Metrics = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if c.Simulation.Angles <= 0 {
		return fmt.Errorf("%w: angles must be positive, got %d", ErrInvalid, c.Simulation.Angles)
	}
	if c.Simulation.NumCores < 1 {
		return fmt.Errorf("%w: numCores must be at least 1, got %d", ErrInvalid, c.Simulation.NumCores)
	}
	if c.Tracer.StepSize <= 0 {
		return fmt.Errorf("%w: stepSize must be positive, got %g", ErrInvalid, c.Tracer.StepSize)
	}
	if _, err := filter.ParseMode(c.Reconstruction.Filter); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Output.OutputPath == "" {
		return fmt.Errorf("%w: outputPath must not be empty", ErrInvalid)
	}
	return nil
}

// Params converts the configuration to simulator parameters
func (c *Config) Params() (reconstruction.Params, error) {
	mode, err := filter.ParseMode(c.Reconstruction.Filter)
	if err != nil {
		return reconstruction.Params{}, err
	}
	return reconstruction.Params{
		NumCores: c.Simulation.NumCores,
		Filter:   mode,
		Tracer: raytracer.Options{
			StepSize:    c.Tracer.StepSize,
			PartialStep: c.Tracer.PartialStep,
		},
	}, nil
}
