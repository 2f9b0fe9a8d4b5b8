// Package servo drives physical rigs built from Feetech STS serial bus
// servos. Each actuator id maps to one servo through the calibration.
package servo

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/gwillem/mechseq/pkg/host"
)

// DegreesPerUnit maps a normalized servo position [-100, 100] onto ±180 degrees.
const DegreesPerUnit = 1.8

// Config describes one servo bus.
type Config struct {
	Port        string
	Calibration Calibration
	// Latches lists actuator ids driven as two-position latches
	// (locked at range_max, released at range_min).
	Latches []string
	Timeout time.Duration
}

// joint is the setpoint state the source keeps for one servo.
type joint struct {
	cal      MotorCalibration
	latch    bool
	position float64
	velocity float64
	lower    float64
	upper    float64
	locked   bool
	dirty    bool
	present  bool
}

// Source is a host.Source backed by a servo bus. Read and Apply only touch
// the cached setpoints; Advance exchanges them with the hardware.
//
// A servo that stops answering reads as missing and is dropped from the
// sync group. Missing servos are polled again every rejoinEvery refreshes.
type Source struct {
	bus       positionBus
	refreshes int

	mu     sync.Mutex
	joints map[string]*joint
}

const rejoinEvery = 60

// Open connects to the bus and reads the initial positions. Servos that do
// not answer start out missing; Open fails only when none answer.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	if len(cfg.Calibration) == 0 {
		return nil, fmt.Errorf("calibration: no servos")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}

	bus, err := dial(ctx, cfg.Port, cfg.Timeout, cfg.Calibration.MotorIDs())
	if err != nil {
		return nil, err
	}

	s := newSource(bus, cfg.Calibration, cfg.Latches)
	if err := s.refresh(ctx); err != nil {
		bus.Close()
		return nil, err
	}
	return s, nil
}

func newSource(bus positionBus, cal Calibration, latches []string) *Source {
	joints := newJoints(cal, latches)
	for _, j := range joints {
		j.present = true
	}
	bus.Use(cal.MotorIDs())
	return &Source{bus: bus, joints: joints}
}

func newJoints(cal Calibration, latches []string) map[string]*joint {
	joints := make(map[string]*joint, len(cal))
	for name, mc := range cal {
		joints[name] = &joint{
			cal:   mc,
			lower: math.Inf(-1),
			upper: math.Inf(1),
		}
	}
	for _, name := range latches {
		if j, ok := joints[name]; ok {
			j.latch = true
		}
	}
	return joints
}

// Close closes the bus connection.
func (s *Source) Close() error {
	return s.bus.Close()
}

// Enable enables torque on all servos.
func (s *Source) Enable(ctx context.Context) error {
	return s.bus.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (s *Source) Disable(ctx context.Context) error {
	return s.bus.DisableAll(ctx)
}

func (s *Source) Read(id string) (host.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.joints[id]
	if !ok || !j.present {
		return host.Reading{}, fmt.Errorf("%q: %w", id, host.ErrNotFound)
	}
	return host.Reading{Position: j.position, Velocity: j.velocity, Locked: j.locked}, nil
}

func (s *Source) Apply(id string, cmd host.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.joints[id]
	if !ok || !j.present {
		return fmt.Errorf("%q: %w", id, host.ErrNotFound)
	}
	return j.apply(cmd)
}

func (j *joint) apply(cmd host.Command) error {
	switch cmd.Op {
	case host.OpVelocity:
		j.velocity = cmd.Value
	case host.OpLowerLimit:
		j.lower = cmd.Value
	case host.OpUpperLimit:
		j.upper = cmd.Value
	case host.OpToggleLock:
		if !j.latch {
			return fmt.Errorf("%s on a non-latch servo: %w", cmd.Op, host.ErrUnsupported)
		}
		j.locked = !j.locked
		j.dirty = true
	default:
		return fmt.Errorf("%s: %w", cmd.Op, host.ErrUnsupported)
	}
	return nil
}

// step integrates the commanded velocity (rad/s) over secs and reports the
// normalized setpoint to write, or false when the servo should hold.
func (j *joint) step(secs float64) (float64, bool) {
	if j.latch {
		if !j.dirty {
			return 0, false
		}
		j.dirty = false
		if j.locked {
			return 100, true
		}
		return -100, true
	}
	if j.velocity == 0 {
		return 0, false
	}
	next := j.position + j.velocity*(180/math.Pi)*secs
	if j.velocity > 0 && j.position <= j.upper && next > j.upper {
		next = j.upper
	}
	if j.velocity < 0 && j.position >= j.lower && next < j.lower {
		next = j.lower
	}
	next = math.Min(math.Max(next, -180), 180)
	j.position = next
	return next / DegreesPerUnit, true
}

// Advance writes the setpoints reached after dt and reads back the
// measured positions.
func (s *Source) Advance(ctx context.Context, dt time.Duration) error {
	s.mu.Lock()
	raw := make(map[int]int, len(s.joints))
	for _, j := range s.joints {
		if !j.present {
			continue
		}
		if norm, ok := j.step(dt.Seconds()); ok {
			raw[j.cal.ID] = j.cal.Denormalize(norm)
		}
	}
	s.mu.Unlock()

	if len(raw) > 0 {
		if err := s.bus.SetPositions(ctx, raw); err != nil {
			return fmt.Errorf("write positions: %w", err)
		}
	}
	return s.refresh(ctx)
}

func (s *Source) refresh(ctx context.Context) error {
	var active, missing []int
	s.mu.Lock()
	for _, j := range s.joints {
		if j.present {
			active = append(active, j.cal.ID)
		} else {
			missing = append(missing, j.cal.ID)
		}
	}
	s.mu.Unlock()
	slices.Sort(active)
	slices.Sort(missing)

	positions := make(map[int]int, len(active))
	var err error
	if len(active) > 0 {
		var synced map[int]int
		if synced, err = s.bus.Positions(ctx); err == nil {
			maps.Copy(positions, synced)
		} else {
			// One silent servo fails the whole sync read.
			maps.Copy(positions, s.readEach(ctx, active))
		}
	}
	s.refreshes++
	if len(missing) > 0 && s.refreshes%rejoinEvery == 0 {
		maps.Copy(positions, s.readEach(ctx, missing))
	}

	var answered []int
	s.mu.Lock()
	for _, j := range s.joints {
		r, ok := positions[j.cal.ID]
		j.present = ok
		if !ok {
			continue
		}
		answered = append(answered, j.cal.ID)
		if !j.latch {
			j.position = j.cal.Normalize(r) * DegreesPerUnit
		}
	}
	s.mu.Unlock()

	slices.Sort(answered)
	if !slices.Equal(answered, active) {
		s.bus.Use(answered)
	}
	if err != nil && len(answered) == 0 {
		return fmt.Errorf("read positions: %w", err)
	}
	return nil
}

// readEach reads the given servos one by one and returns those that answered.
func (s *Source) readEach(ctx context.Context, ids []int) map[int]int {
	out := make(map[int]int, len(ids))
	for _, id := range ids {
		if r, err := s.bus.Position(ctx, id); err == nil {
			out[id] = r
		}
	}
	return out
}
