// Package bench provides an in-memory host for running rigs without a game
// or hardware attached. It integrates commanded velocities between the
// commanded limits and records every command it receives.
package bench

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gwillem/mechseq/pkg/host"
)

// DegreesPerRadian converts rotary velocities (rad/s) into angle units.
const DegreesPerRadian = 180 / math.Pi

// Linear travel of a bench slide.
const (
	LinearMin = 0.0
	LinearMax = 10.0
)

// Joint is the simulated state behind one actuator id.
type Joint struct {
	Position     float64
	Velocity     float64
	Lower        float64 // commanded lower limit
	Upper        float64 // commanded upper limit
	Min          float64 // hard travel
	Max          float64
	Rate         float64 // position units per velocity unit per second
	Locked       bool
	Displacement float64
	Attached     bool
}

// Entry is one recorded command.
type Entry struct {
	ID  string
	Cmd host.Command
}

// World is a set of joints addressed by id.
type World struct {
	mu       sync.Mutex
	joints   map[string]*Joint
	commands []Entry
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{joints: make(map[string]*Joint)}
}

// AddRotary adds an unlimited hinge at angle position (degrees).
func (w *World) AddRotary(id string, position float64) *Joint {
	return w.add(id, &Joint{
		Position: position,
		Lower:    math.Inf(-1),
		Upper:    math.Inf(1),
		Min:      math.Inf(-1),
		Max:      math.Inf(1),
		Rate:     DegreesPerRadian,
	})
}

// AddLinear adds a slide extended to position.
func (w *World) AddLinear(id string, position float64) *Joint {
	return w.add(id, &Joint{
		Position: position,
		Lower:    LinearMin,
		Upper:    LinearMax,
		Min:      LinearMin,
		Max:      LinearMax,
		Rate:     1,
	})
}

// AddLatch adds a binary latch.
func (w *World) AddLatch(id string, locked bool) *Joint {
	return w.add(id, &Joint{Locked: locked})
}

func (w *World) add(id string, j *Joint) *Joint {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.joints[id] = j
	return j
}

// Remove detaches id from the world, as if the part were destroyed.
func (w *World) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.joints, id)
}

// Joint returns a copy of the joint state for id.
func (w *World) Joint(id string) (Joint, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	j, ok := w.joints[id]
	if !ok {
		return Joint{}, false
	}
	return *j, true
}

// Set overwrites position and velocity of id.
func (w *World) Set(id string, position, velocity float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if j, ok := w.joints[id]; ok {
		j.Position = position
		j.Velocity = velocity
	}
}

func (w *World) Read(id string) (host.Reading, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	j, ok := w.joints[id]
	if !ok {
		return host.Reading{}, fmt.Errorf("%q: %w", id, host.ErrNotFound)
	}
	return host.Reading{Position: j.Position, Velocity: j.Velocity, Locked: j.Locked}, nil
}

func (w *World) Apply(id string, cmd host.Command) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	j, ok := w.joints[id]
	if !ok {
		return fmt.Errorf("%q: %w", id, host.ErrNotFound)
	}
	w.commands = append(w.commands, Entry{ID: id, Cmd: cmd})

	switch cmd.Op {
	case host.OpVelocity:
		j.Velocity = cmd.Value
	case host.OpLowerLimit:
		j.Lower = cmd.Value
	case host.OpUpperLimit:
		j.Upper = cmd.Value
	case host.OpDisplacement:
		j.Displacement = cmd.Value
	case host.OpToggleLock:
		j.Locked = !j.Locked
	case host.OpAttach:
		j.Attached = true
	case host.OpDetach:
		j.Attached = false
	default:
		return fmt.Errorf("%q %s: %w", id, cmd.Op, host.ErrUnsupported)
	}
	return nil
}

// Commands returns the commands received since the last Reset.
func (w *World) Commands() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entry, len(w.commands))
	copy(out, w.commands)
	return out
}

// Reset clears the command log.
func (w *World) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commands = nil
}

// Advance moves every joint by its velocity over dt. A joint moving toward a
// commanded limit stops on it; hard travel always applies.
func (w *World) Advance(_ context.Context, dt time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	secs := dt.Seconds()
	for _, j := range w.joints {
		if j.Rate == 0 || j.Velocity == 0 {
			continue
		}
		next := j.Position + j.Velocity*j.Rate*secs
		if j.Velocity > 0 && j.Position <= j.Upper && next > j.Upper {
			next = j.Upper
		}
		if j.Velocity < 0 && j.Position >= j.Lower && next < j.Lower {
			next = j.Lower
		}
		j.Position = math.Min(math.Max(next, j.Min), j.Max)
	}
	return nil
}
