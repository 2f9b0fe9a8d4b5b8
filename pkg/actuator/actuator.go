// Package actuator models single controllable degrees of freedom and the
// policies that drive them toward a setpoint.
package actuator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gwillem/mechseq/pkg/host"
)

// Kind selects the stepping and convergence policy of an actuator.
type Kind int

const (
	Rotary Kind = iota
	Linear
	Lock
)

func (k Kind) String() string {
	switch k {
	case Rotary:
		return "rotary"
	case Linear:
		return "linear"
	case Lock:
		return "lock"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind name as written in configuration.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rotary", "rotor", "hinge":
		return Rotary, nil
	case "linear", "piston", "slide":
		return Linear, nil
	case "lock", "latch", "landing_gear":
		return Lock, nil
	}
	return 0, fmt.Errorf("unknown actuator kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Default damping and tolerance per kind.
const (
	RotaryDamping   = 0.01
	LinearDamping   = 0.05
	RotaryTolerance = 1.0
	LinearTolerance = 0.05
)

// Policy holds the tunables of the stepping and convergence rules.
type Policy struct {
	Damping   float64
	Tolerance float64
}

// DefaultPolicy returns the policy for kind k.
func DefaultPolicy(k Kind) Policy {
	switch k {
	case Rotary:
		return Policy{Damping: RotaryDamping, Tolerance: RotaryTolerance}
	case Linear:
		return Policy{Damping: LinearDamping, Tolerance: LinearTolerance}
	}
	return Policy{}
}

// Actuator is one degree of freedom. Position and Velocity mirror the last
// reading from the host; Target is the last setpoint stepped toward.
type Actuator struct {
	ID       string
	Kind     Kind
	MaxSpeed float64
	Policy   Policy
	Group    string // latch exclusion group

	Position float64
	Velocity float64
	Target   float64
	Locked   bool
	Present  bool

	lastToggle time.Time
}

// New creates an actuator with the default policy for its kind.
func New(id string, kind Kind, maxSpeed float64) *Actuator {
	return &Actuator{
		ID:       id,
		Kind:     kind,
		MaxSpeed: maxSpeed,
		Policy:   DefaultPolicy(kind),
	}
}

// Sync refreshes the cached reading from src. A missing actuator is not an
// error; it is marked absent and reported as false.
func (a *Actuator) Sync(src host.Source) (bool, error) {
	r, err := src.Read(a.ID)
	if errors.Is(err, host.ErrNotFound) {
		a.Present = false
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", a.ID, err)
	}
	a.Present = true
	a.Position = r.Position
	a.Velocity = r.Velocity
	a.Locked = r.Locked
	return true, nil
}

// IsConverged reports whether the cached reading is within tolerance of
// target. Absent actuators have nothing to do and count as converged.
func (a *Actuator) IsConverged(target float64) bool {
	if !a.Present {
		return true
	}
	switch a.Kind {
	case Lock:
		return a.Locked == (target != 0)
	case Linear:
		return math.Abs(target-a.Position) < a.Policy.Tolerance
	default:
		tol := a.Policy.Tolerance
		return a.Position > target-tol && a.Position < target+tol
	}
}

// StepToward sends one damped step toward target: the limit that stops the
// actuator on target, then the new velocity.
func (a *Actuator) StepToward(src host.Source, target float64) error {
	if !a.Present {
		return nil
	}

	var limit host.Command
	switch a.Kind {
	case Rotary:
		limit = RotaryLimit(target, a.Position)
	case Linear:
		limit = host.Command{Op: host.OpUpperLimit, Value: target}
	default:
		return fmt.Errorf("step %s: %s actuators toggle, they do not step", a.ID, a.Kind)
	}
	a.Target = target

	v := DampedVelocity(a.Velocity, target, a.Position, a.MaxSpeed, a.Policy.Damping)
	if err := a.apply(src, limit); err != nil {
		return err
	}
	if err := a.apply(src, host.Command{Op: host.OpVelocity, Value: v}); err != nil {
		return err
	}
	a.Velocity = v
	return nil
}

// Settle zeroes the velocity of a moving actuator.
func (a *Actuator) Settle(src host.Source) error {
	if !a.Present || a.Velocity == 0 {
		return nil
	}
	if err := a.apply(src, host.Command{Op: host.OpVelocity, Value: 0}); err != nil {
		return err
	}
	a.Velocity = 0
	return nil
}

func (a *Actuator) apply(src host.Source, cmd host.Command) error {
	err := src.Apply(a.ID, cmd)
	if errors.Is(err, host.ErrNotFound) {
		a.Present = false
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", a.ID, cmd.Op, err)
	}
	return nil
}

// Direction is -1 when target lies below position, +1 otherwise.
func Direction(target, position float64) float64 {
	if target < position {
		return -1
	}
	return 1
}

// Lerp interpolates linearly from a to b by t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// DampedVelocity low-pass filters the velocity toward full speed in the
// direction of target.
func DampedVelocity(current, target, position, maxSpeed, damping float64) float64 {
	return Lerp(current, Direction(target, position)*maxSpeed, damping)
}

// RotaryLimit returns the single limit command that stops a rotary actuator
// on target. A nonzero target moves the bound on its own side. Zero relaxes
// the bound opposite to the current position's sign and leaves the other
// one alone.
func RotaryLimit(target, position float64) host.Command {
	switch {
	case target < 0:
		return host.Command{Op: host.OpLowerLimit, Value: target}
	case target > 0:
		return host.Command{Op: host.OpUpperLimit, Value: target}
	case position < 0:
		return host.Command{Op: host.OpUpperLimit, Value: 0}
	default:
		return host.Command{Op: host.OpLowerLimit, Value: 0}
	}
}
