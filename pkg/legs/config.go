package legs

import (
	"fmt"
	"time"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/pose"
)

// Part names of the default walker.
const (
	HipRight   = "Rotor Hip Right"
	AnkleRight = "Rotor Ankle Right"
	HipLeft    = "Rotor Hip Left"
	AnkleLeft  = "Rotor Ankle Left"
	LegRight   = "Piston Leg Right"
	LegLeft    = "Piston Leg Left"
	FootRight  = "Landing Gear Foot Right"
	FootLeft   = "Landing Gear Foot Left"
)

// Part declares one actuator of the walker.
type Part struct {
	ID    string        `yaml:"id"`
	Kind  actuator.Kind `yaml:"kind"`
	Group string        `yaml:"group,omitempty"`
	Speed float64       `yaml:"speed,omitempty"` // overrides Config.MoveSpeed
}

// Config describes the walker: its parts in evaluation order and the
// animations it can play.
type Config struct {
	MoveSpeed    float64          `yaml:"move_speed"`
	LockInterval time.Duration    `yaml:"lock_interval"`
	Initial      string           `yaml:"initial"`
	Parts        []Part           `yaml:"parts"`
	Animations   []pose.Animation `yaml:"animations"`
}

// DefaultConfig returns the two-legged walker.
func DefaultConfig() Config {
	const (
		legAngle   = 45.0
		legRetract = 0.5
		stride     = 1.3
	)

	return Config{
		MoveSpeed:    1.0,
		LockInterval: actuator.DefaultLockInterval,
		Initial:      "still",
		Parts: []Part{
			{ID: HipRight, Kind: actuator.Rotary},
			{ID: AnkleRight, Kind: actuator.Rotary},
			{ID: HipLeft, Kind: actuator.Rotary},
			{ID: AnkleLeft, Kind: actuator.Rotary},
			{ID: LegRight, Kind: actuator.Linear},
			{ID: LegLeft, Kind: actuator.Linear},
			{ID: FootRight, Kind: actuator.Lock, Group: "feet"},
			{ID: FootLeft, Kind: actuator.Lock, Group: "feet"},
		},
		Animations: []pose.Animation{
			{
				Name: "still",
				Frames: []pose.Pose{
					stance(0, 0, 1.0, 1, 0, 0, 1.0, 1),
				},
			},
			{
				Name: "stand",
				Frames: []pose.Pose{
					stance(0, 0, 0.8, 1, 0, 0, 1.0, 1),
					stance(0, 0, 1.0, 1, 0, 0, 0.8, 1),
				},
			},
			{
				Name: "walk",
				Frames: []pose.Pose{
					stance(-legAngle, legAngle, legRetract, 0, -legAngle, legAngle, stride, 1),
					stance(0, 0, 1.0, 1, 0, 0, legRetract, 0),
					stance(legAngle, -legAngle, stride, 1, legAngle, -legAngle, legRetract, 0),
					stance(0, 0, legRetract, 0, 0, 0, 1.0, 1),
				},
			},
		},
	}
}

// stance builds a frame from right leg then left leg values.
func stance(hipR, ankleR, legR, footR, hipL, ankleL, legL, footL float64) pose.Pose {
	return pose.Pose{
		HipRight:   hipR,
		AnkleRight: ankleR,
		LegRight:   legR,
		FootRight:  footR,
		HipLeft:    hipL,
		AnkleLeft:  ankleL,
		LegLeft:    legL,
		FootLeft:   footL,
	}
}

// Validate checks part ids, speeds and that every frame only names declared parts.
func (c Config) Validate() error {
	if c.MoveSpeed <= 0 {
		return fmt.Errorf("move_speed must be positive, got %v", c.MoveSpeed)
	}
	if c.LockInterval < 0 {
		return fmt.Errorf("lock_interval must not be negative, got %v", c.LockInterval)
	}

	parts := make(map[string]bool, len(c.Parts))
	for _, p := range c.Parts {
		if p.ID == "" {
			return fmt.Errorf("part without id")
		}
		if parts[p.ID] {
			return fmt.Errorf("part %q declared twice", p.ID)
		}
		parts[p.ID] = true
	}

	names := make(map[string]bool, len(c.Animations))
	for _, anim := range c.Animations {
		if len(anim.Frames) == 0 {
			return fmt.Errorf("animation %q has no frames", anim.Name)
		}
		if names[anim.Name] {
			return fmt.Errorf("animation %q declared twice", anim.Name)
		}
		names[anim.Name] = true
		for i, frame := range anim.Frames {
			for id := range frame {
				if !parts[id] {
					return fmt.Errorf("animation %q frame %d: unknown part %q", anim.Name, i, id)
				}
			}
		}
	}

	if !names[c.Initial] {
		return fmt.Errorf("initial animation %q not declared", c.Initial)
	}
	return nil
}
