// Package turret runs a throwing turret through a fixed cycle of states:
// reload, aim at a jittered angle, wait until aimed, wind the arm, release
// and cool down.
package turret

import (
	"errors"
	"fmt"
	"time"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/command"
	"github.com/gwillem/mechseq/pkg/host"
)

// Turret owns the aiming rotors and the state machine that sequences them.
type Turret struct {
	cfg     Config
	bank    *actuator.Bank
	clock   host.Clock
	rnd     host.Random
	machine *Machine

	pitchTarget float64
	yawTarget   float64
	extendTo    float64
	waitStart   time.Time
}

// New builds a stopped turret from cfg.
func New(cfg Config, src host.Source, clock host.Clock, rnd host.Random) (*Turret, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("turret config: %w", err)
	}
	if clock == nil {
		clock = host.SystemClock{}
	}
	if rnd == nil {
		rnd = host.NewPCG(uint64(time.Now().UnixNano()))
	}

	machine, err := NewMachine(cfg.Sequence)
	if err != nil {
		return nil, err
	}

	bank := actuator.NewBank(src, clock)
	for _, id := range []string{cfg.Pitch, cfg.Yaw} {
		if err := bank.Add(actuator.New(id, actuator.Rotary, cfg.RotateSpeed)); err != nil {
			return nil, err
		}
	}

	return &Turret{
		cfg:      cfg,
		bank:     bank,
		clock:    clock,
		rnd:      rnd,
		machine:  machine,
		extendTo: cfg.Displacement.Max,
	}, nil
}

// Bank returns the aiming rotors.
func (t *Turret) Bank() *actuator.Bank { return t.bank }

// Machine returns the state machine.
func (t *Turret) Machine() *Machine { return t.machine }

// Targets returns the current pitch and yaw target angles.
func (t *Turret) Targets() (pitch, yaw float64) {
	return t.pitchTarget, t.yawTarget
}

// Toggle flips the run gate.
func (t *Turret) Toggle() { t.machine.Toggle() }

// IncreaseStep force-advances to the next state.
func (t *Turret) IncreaseStep() { t.machine.IncreaseStep() }

// Tick applies cmd and runs one update.
func (t *Turret) Tick(cmd command.Command) error {
	switch cmd {
	case command.Toggle:
		t.machine.Toggle()
	case command.Advance:
		t.machine.IncreaseStep()
	}
	return t.Update()
}

// Update performs the current state's action and advances when its
// transition rule holds. It does nothing while the turret is stopped.
func (t *Turret) Update() error {
	if !t.machine.Running() {
		return nil
	}

	var advance bool
	var err error

	switch t.machine.Current() {
	case WaitForReload:
		err = t.bank.Apply(t.cfg.Launcher, host.Command{Op: host.OpAttach})
		advance = true
	case RandomizeAngles:
		t.randomizeAngles()
		advance = true
	case WaitUntilAnglesMet:
		advance, err = t.aim()
	case RandomizePower:
		t.extendTo = t.rnd.Float64Range(t.cfg.PowerRange.Min, t.cfg.PowerRange.Max)
		advance = true
	case Retract:
		err = t.displace(t.cfg.Displacement.Min)
		advance = true
	case Extend:
		err = t.displace(t.extendTo)
		advance = true
	case Fire:
		err = t.bank.Apply(t.cfg.Launcher, host.Command{Op: host.OpDetach})
		advance = true
	case BeginWait:
		t.waitStart = t.clock.Now()
		advance = true
	case Wait:
		advance = !t.clock.Now().Before(t.waitStart.Add(t.cfg.Wait))
	}

	if advance {
		t.machine.IncreaseStep()
	}
	return err
}

func (t *Turret) randomizeAngles() {
	j := t.cfg.AngleJitter
	t.pitchTarget = t.cfg.PitchRange.Clamp(t.pitchTarget + t.rnd.Float64Range(-j, j))
	t.yawTarget = t.cfg.YawRange.Clamp(t.yawTarget + t.rnd.Float64Range(-j, j))
}

// aim steps pitch and yaw toward their targets and stops each axis that
// arrived. It reports whether both arrived.
func (t *Turret) aim() (bool, error) {
	all := true
	errs := []error{t.bank.Sync()}
	for _, axis := range []struct {
		id     string
		target float64
	}{
		{t.cfg.Pitch, t.pitchTarget},
		{t.cfg.Yaw, t.yawTarget},
	} {
		ok, err := t.bank.Converged(axis.id, axis.target)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			err = t.bank.Settle(axis.id)
		} else {
			all = false
			err = t.bank.Step(axis.id, axis.target)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return all, errors.Join(errs...)
}

func (t *Turret) displace(v float64) error {
	var errs []error
	for _, id := range t.cfg.Extenders {
		if err := t.bank.Apply(id, host.Command{Op: host.OpDisplacement, Value: v}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns the run flag, current state and target angles.
func (t *Turret) Status() []string {
	return []string{
		fmt.Sprintf("running: %t", t.machine.Running()),
		t.machine.Current().String(),
		fmt.Sprintf("pitch: %.2f", t.pitchTarget),
		fmt.Sprintf("yaw: %.2f", t.yawTarget),
	}
}
