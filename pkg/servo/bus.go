package servo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

var errSilent = errors.New("no response")

// positionBus is the part of a servo bus the source exchanges positions
// with. The group calls cover the servos last passed to Use.
type positionBus interface {
	// Positions sync-reads the group. It fails when any member is silent.
	Positions(ctx context.Context) (map[int]int, error)
	// Position reads a single servo.
	Position(ctx context.Context, id int) (int, error)
	SetPositions(ctx context.Context, raw map[int]int) error
	Use(ids []int)
	EnableAll(ctx context.Context) error
	DisableAll(ctx context.Context) error
	Close() error
}

type feetechBus struct {
	bus    *feetech.Bus
	servos map[int]*feetech.Servo
	group  *feetech.ServoGroup
}

// dial opens the port and scans for the calibrated servos.
func dial(ctx context.Context, port string, timeout time.Duration, ids []int) (*feetechBus, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	found, err := bus.Scan(ctx, 1, slices.Max(ids))
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("scan bus: %w", err)
	}

	b := &feetechBus{bus: bus, servos: make(map[int]*feetech.Servo, len(found))}
	for _, s := range found {
		b.servos[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}
	return b, nil
}

func (b *feetechBus) Positions(ctx context.Context) (map[int]int, error) {
	raw, err := b.group.Positions(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]int, len(raw))
	for id, r := range raw {
		out[id] = r
	}
	return out, nil
}

// Position reads one servo, scanning for it first if it was not on the
// bus before.
func (b *feetechBus) Position(ctx context.Context, id int) (int, error) {
	s, ok := b.servos[id]
	if !ok {
		found, err := b.bus.Scan(ctx, id, id)
		if err != nil {
			return 0, err
		}
		if len(found) == 0 {
			return 0, fmt.Errorf("servo %d: %w", id, errSilent)
		}
		s = feetech.NewServo(b.bus, found[0].ID, found[0].Model)
		b.servos[id] = s
	}
	return s.Position(ctx)
}

func (b *feetechBus) SetPositions(ctx context.Context, raw map[int]int) error {
	pm := make(feetech.PositionMap, len(raw))
	for id, r := range raw {
		pm[id] = r
	}
	return b.group.SetPositions(ctx, pm)
}

func (b *feetechBus) Use(ids []int) {
	b.group = feetech.NewServoGroupByIDs(b.bus, ids...)
}

func (b *feetechBus) EnableAll(ctx context.Context) error  { return b.group.EnableAll(ctx) }
func (b *feetechBus) DisableAll(ctx context.Context) error { return b.group.DisableAll(ctx) }
func (b *feetechBus) Close() error                         { return b.bus.Close() }
