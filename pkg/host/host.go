// Package host defines the capabilities the sequencer consumes from the
// world it drives: actuator readings and commands, time, randomness and a
// status display.
package host

import (
	"errors"
	"math/rand/v2"
	"time"
)

// ErrNotFound is returned by a Source for identifiers it cannot resolve.
var ErrNotFound = errors.New("actuator not found")

// ErrUnsupported is returned by a Source for commands its backend cannot apply.
var ErrUnsupported = errors.New("command not supported")

// Reading is a snapshot of one actuator as reported by the host.
type Reading struct {
	Position float64
	Velocity float64
	Locked   bool
}

// Op identifies the kind of a Command.
type Op int

const (
	OpVelocity Op = iota
	OpLowerLimit
	OpUpperLimit
	OpDisplacement
	OpToggleLock
	OpAttach
	OpDetach
)

func (o Op) String() string {
	switch o {
	case OpVelocity:
		return "velocity"
	case OpLowerLimit:
		return "lower_limit"
	case OpUpperLimit:
		return "upper_limit"
	case OpDisplacement:
		return "displacement"
	case OpToggleLock:
		return "toggle_lock"
	case OpAttach:
		return "attach"
	case OpDetach:
		return "detach"
	}
	return "unknown"
}

// Command is a single instruction for one actuator.
type Command struct {
	Op    Op
	Value float64
}

// Source reads live actuator state and accepts commands for it.
type Source interface {
	Read(id string) (Reading, error)
	Apply(id string, cmd Command) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Random supplies uniform doubles in [min, max).
type Random interface {
	Float64Range(min, max float64) float64
}

// PCG is a seeded Random.
type PCG struct {
	r *rand.Rand
}

// NewPCG creates a Random seeded with seed.
func NewPCG(seed uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *PCG) Float64Range(min, max float64) float64 {
	return p.r.Float64()*(max-min) + min
}

// Display accepts a status block for presentation.
type Display interface {
	Show(lines []string)
}
