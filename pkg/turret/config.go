package turret

import (
	"fmt"
	"time"

	"github.com/gwillem/mechseq/pkg/actuator"
)

// Part names of the default turret.
const (
	PitchRotor  = "Rotor (Pitch)"
	YawRotor    = "Rotor (Yaw)"
	LaunchRotor = "Rotor (Launch)"
	ArmRotor    = "Rotor (Arm)"
)

// Config describes the turret hardware and its cycle.
type Config struct {
	Pitch     string   `yaml:"pitch"`
	Yaw       string   `yaml:"yaw"`
	Launcher  string   `yaml:"launcher"`
	Extenders []string `yaml:"extenders"`

	RotateSpeed float64        `yaml:"rotate_speed"`
	AngleJitter float64        `yaml:"angle_jitter"`
	PitchRange  actuator.Range `yaml:"pitch_range"`
	YawRange    actuator.Range `yaml:"yaw_range"`

	// Displacement is applied to extenders on Retract (Min) and Extend (Max).
	Displacement actuator.Range `yaml:"displacement"`
	// PowerRange bounds the Extend displacement drawn by RandomizePower.
	PowerRange actuator.Range `yaml:"power_range"`

	Wait     time.Duration `yaml:"wait"`
	Sequence []State       `yaml:"sequence"`
}

// DefaultConfig returns the rock-tossing turret.
func DefaultConfig() Config {
	return Config{
		Pitch:        PitchRotor,
		Yaw:          YawRotor,
		Launcher:     LaunchRotor,
		Extenders:    []string{LaunchRotor, ArmRotor},
		RotateSpeed:  3.5,
		AngleJitter:  20,
		PitchRange:   actuator.Range{Min: -20, Max: 20},
		YawRange:     actuator.Range{Min: -360, Max: 360},
		Displacement: actuator.Range{Min: -0.11, Max: -0.07},
		PowerRange:   actuator.Range{Min: -0.11, Max: -0.07},
		Wait:         2 * time.Second,
		Sequence:     DefaultSequence(),
	}
}

// Validate checks part names, ranges and the state sequence.
func (c Config) Validate() error {
	if c.Pitch == "" || c.Yaw == "" {
		return fmt.Errorf("pitch and yaw rotors are required")
	}
	if c.Pitch == c.Yaw {
		return fmt.Errorf("pitch and yaw must be different rotors")
	}
	if c.RotateSpeed <= 0 {
		return fmt.Errorf("rotate_speed must be positive, got %v", c.RotateSpeed)
	}
	if c.AngleJitter < 0 {
		return fmt.Errorf("angle_jitter must not be negative, got %v", c.AngleJitter)
	}
	if c.Wait < 0 {
		return fmt.Errorf("wait must not be negative, got %v", c.Wait)
	}
	for name, r := range map[string]actuator.Range{
		"pitch_range":  c.PitchRange,
		"yaw_range":    c.YawRange,
		"displacement": c.Displacement,
		"power_range":  c.PowerRange,
	} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if len(c.Sequence) == 0 {
		return fmt.Errorf("sequence is empty")
	}
	for _, s := range c.Sequence {
		if s < WaitForReload || s > Wait {
			return fmt.Errorf("sequence contains invalid state %v", s)
		}
	}
	return nil
}
