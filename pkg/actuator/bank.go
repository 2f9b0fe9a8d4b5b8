package actuator

import (
	"errors"
	"fmt"
	"time"

	"github.com/gwillem/mechseq/pkg/host"
)

// DefaultLockInterval is the minimum time between two toggles of one latch.
const DefaultLockInterval = 100 * time.Millisecond

// Bank is the ordered set of actuators owned by one rig, together with the
// host they are commanded through.
type Bank struct {
	src          host.Source
	clock        host.Clock
	order        []*Actuator
	byID         map[string]*Actuator
	LockInterval time.Duration
}

// NewBank creates an empty bank. A nil clock uses the system clock.
func NewBank(src host.Source, clock host.Clock) *Bank {
	if clock == nil {
		clock = host.SystemClock{}
	}
	return &Bank{
		src:          src,
		clock:        clock,
		byID:         make(map[string]*Actuator),
		LockInterval: DefaultLockInterval,
	}
}

// Add appends a to the bank. Ids must be unique.
func (b *Bank) Add(a *Actuator) error {
	if _, exists := b.byID[a.ID]; exists {
		return fmt.Errorf("actuator %q already in bank", a.ID)
	}
	b.byID[a.ID] = a
	b.order = append(b.order, a)
	return nil
}

// Get returns the actuator with the given id.
func (b *Bank) Get(id string) (*Actuator, bool) {
	a, ok := b.byID[id]
	return a, ok
}

// Actuators returns all actuators in configuration order.
func (b *Bank) Actuators() []*Actuator {
	return b.order
}

// Source returns the host the bank commands.
func (b *Bank) Source() host.Source {
	return b.src
}

// Positions returns the cached position of every present actuator.
func (b *Bank) Positions() map[string]float64 {
	out := make(map[string]float64, len(b.order))
	for _, a := range b.order {
		if a.Present {
			out[a.ID] = a.Position
		}
	}
	return out
}

// Sync refreshes every actuator from the host.
func (b *Bank) Sync() error {
	var errs []error
	for _, a := range b.order {
		if _, err := a.Sync(b.src); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Converged reports whether id is within tolerance of target. Unknown ids
// count as converged. A linear actuator is stopped once inside tolerance.
func (b *Bank) Converged(id string, target float64) (bool, error) {
	a, ok := b.byID[id]
	if !ok {
		return true, nil
	}
	if !a.IsConverged(target) {
		return false, nil
	}
	if a.Kind == Linear {
		return true, a.Settle(b.src)
	}
	return true, nil
}

// Step moves id one tick toward target. Latches toggle instead of stepping.
func (b *Bank) Step(id string, target float64) error {
	a, ok := b.byID[id]
	if !ok {
		return nil
	}
	if a.Kind == Lock {
		return b.toggle(a, target)
	}
	return a.StepToward(b.src, target)
}

// Settle zeroes the velocity of id.
func (b *Bank) Settle(id string) error {
	a, ok := b.byID[id]
	if !ok {
		return nil
	}
	return a.Settle(b.src)
}

// Apply sends cmd to id directly. Missing actuators are skipped.
func (b *Bank) Apply(id string, cmd host.Command) error {
	err := b.src.Apply(id, cmd)
	if errors.Is(err, host.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", id, cmd.Op, err)
	}
	return nil
}

// toggle flips latch a toward target != 0, at most once per LockInterval.
// When the latch ends up unlocked, every other locked latch of its group is
// released in the same call.
func (b *Bank) toggle(a *Actuator, target float64) error {
	if !a.Present {
		return nil
	}
	a.Target = target
	desired := target != 0
	now := b.clock.Now()
	if a.Locked == desired || now.Sub(a.lastToggle) <= b.LockInterval {
		return nil
	}

	if err := a.apply(b.src, host.Command{Op: host.OpToggleLock}); err != nil {
		return err
	}
	a.lastToggle = now
	if _, err := a.Sync(b.src); err != nil {
		return err
	}
	if !a.Present || a.Locked {
		return nil
	}

	var errs []error
	for _, peer := range b.order {
		if peer == a || peer.Kind != Lock || peer.Group != a.Group {
			continue
		}
		if _, err := peer.Sync(b.src); err != nil {
			errs = append(errs, err)
			continue
		}
		if !peer.Present || !peer.Locked {
			continue
		}
		if err := peer.apply(b.src, host.Command{Op: host.OpToggleLock}); err != nil {
			errs = append(errs, err)
			continue
		}
		peer.lastToggle = now
		if _, err := peer.Sync(b.src); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
