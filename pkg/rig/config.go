// Package rig loads and saves the configuration of a mechseq rig.
package rig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/mechseq/pkg/legs"
	"github.com/gwillem/mechseq/pkg/servo"
	"github.com/gwillem/mechseq/pkg/turret"
)

const DefaultConfigFile = "mechseq.yaml"

// Config holds the rig configuration
type Config struct {
	Hz     int           `yaml:"hz"`
	Legs   legs.Config   `yaml:"legs"`
	Turret turret.Config `yaml:"turret"`
	Servo  ServoConfig   `yaml:"servo,omitempty"`
}

// ServoConfig holds the serial bus used for physical rigs
type ServoConfig struct {
	Port            string            `yaml:"port,omitempty"`
	CalibrationFile string            `yaml:"calibration_file,omitempty"`
	Calibration     servo.Calibration `yaml:"calibration,omitempty"`
	Latches         []string          `yaml:"latches,omitempty"`
}

// IsCalibrated returns true if the bus has calibration data
func (s *ServoConfig) IsCalibrated() bool {
	return len(s.Calibration) > 0
}

// LoadCalibration returns the inline calibration, or reads CalibrationFile
// when none is inlined.
func (s *ServoConfig) LoadCalibration() (servo.Calibration, error) {
	if s.IsCalibrated() {
		return s.Calibration, nil
	}
	if s.CalibrationFile == "" {
		return nil, errors.New("servo bus is not calibrated")
	}
	return servo.LoadCalibration(s.CalibrationFile)
}

// Default returns the built-in walker and turret at 60 Hz.
func Default() Config {
	return Config{
		Hz:     60,
		Legs:   legs.DefaultConfig(),
		Turret: turret.DefaultConfig(),
	}
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom loads configuration from a specific file. Keys the file leaves
// out keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Hz <= 0 {
		return fmt.Errorf("hz must be positive, got %d", c.Hz)
	}
	if err := c.Legs.Validate(); err != nil {
		return fmt.Errorf("legs: %w", err)
	}
	if err := c.Turret.Validate(); err != nil {
		return fmt.Errorf("turret: %w", err)
	}
	if err := c.Servo.Calibration.Validate(); err != nil {
		return fmt.Errorf("servo: %w", err)
	}
	return nil
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
