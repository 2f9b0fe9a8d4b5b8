package servo

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/gwillem/mechseq/pkg/host"
)

func testJoints() map[string]*joint {
	cal := Calibration{
		"Rotor (Pitch)": {ID: 1, RangeMin: 0, RangeMax: 4000},
		"Foot Lock":     {ID: 2, RangeMin: 1000, RangeMax: 3000},
	}
	joints := newJoints(cal, []string{"Foot Lock", "unknown"})
	for _, j := range joints {
		j.present = true
	}
	return joints
}

func TestJoint_StepIntegratesVelocity(t *testing.T) {
	j := testJoints()["Rotor (Pitch)"]
	if err := j.apply(host.Command{Op: host.OpVelocity, Value: 1}); err != nil {
		t.Fatal(err)
	}

	norm, ok := j.step(0.5)
	if !ok {
		t.Fatal("moving joint should write a setpoint")
	}
	want := 0.5 * 180 / math.Pi
	if math.Abs(j.position-want) > 1e-9 {
		t.Errorf("position = %v, want %v", j.position, want)
	}
	if math.Abs(norm-want/DegreesPerUnit) > 1e-9 {
		t.Errorf("setpoint = %v, want %v", norm, want/DegreesPerUnit)
	}
}

func TestJoint_StepStopsOnLimit(t *testing.T) {
	tests := []struct {
		name     string
		velocity float64
		limit    host.Command
		want     float64
	}{
		{"upper", 2, host.Command{Op: host.OpUpperLimit, Value: 10}, 10},
		{"lower", -2, host.Command{Op: host.OpLowerLimit, Value: -10}, -10},
		{"hard travel", 100, host.Command{Op: host.OpUpperLimit, Value: math.Inf(1)}, 180},
	}

	for _, tt := range tests {
		j := testJoints()["Rotor (Pitch)"]
		j.apply(tt.limit)
		j.apply(host.Command{Op: host.OpVelocity, Value: tt.velocity})
		for i := 0; i < 100; i++ {
			j.step(time.Second.Seconds() / 10)
		}
		if j.position != tt.want {
			t.Errorf("%s: position = %v, want %v", tt.name, j.position, tt.want)
		}
	}
}

func TestJoint_StepHoldsAtZeroVelocity(t *testing.T) {
	j := testJoints()["Rotor (Pitch)"]
	if _, ok := j.step(1); ok {
		t.Error("stationary joint should not write")
	}
}

func TestJoint_Latch(t *testing.T) {
	j := testJoints()["Foot Lock"]

	if _, ok := j.step(1); ok {
		t.Error("untouched latch should not write")
	}

	if err := j.apply(host.Command{Op: host.OpToggleLock}); err != nil {
		t.Fatal(err)
	}
	norm, ok := j.step(1)
	if !ok || norm != 100 || !j.locked {
		t.Errorf("lock: setpoint %v %t locked %t, want 100 true true", norm, ok, j.locked)
	}
	if _, ok := j.step(1); ok {
		t.Error("latch should write once per toggle")
	}

	j.apply(host.Command{Op: host.OpToggleLock})
	if norm, _ := j.step(1); norm != -100 {
		t.Errorf("release setpoint = %v, want -100", norm)
	}
}

func TestJoint_Unsupported(t *testing.T) {
	joints := testJoints()

	for _, op := range []host.Op{host.OpDisplacement, host.OpAttach, host.OpDetach} {
		err := joints["Rotor (Pitch)"].apply(host.Command{Op: op})
		if !errors.Is(err, host.ErrUnsupported) {
			t.Errorf("%s: err = %v, want ErrUnsupported", op, err)
		}
	}

	err := joints["Rotor (Pitch)"].apply(host.Command{Op: host.OpToggleLock})
	if !errors.Is(err, host.ErrUnsupported) {
		t.Errorf("toggle on rotor: err = %v, want ErrUnsupported", err)
	}
}

func TestSource_MissingServo(t *testing.T) {
	joints := testJoints()
	joints["Rotor (Pitch)"].present = false
	s := &Source{joints: joints}

	if _, err := s.Read("Rotor (Pitch)"); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("Read of silent servo: err = %v, want ErrNotFound", err)
	}
	if err := s.Apply("nope", host.Command{Op: host.OpVelocity}); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("Apply of unknown id: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Read("Foot Lock"); err != nil {
		t.Errorf("Read of present latch: %v", err)
	}
}

// stubBus answers for the servos in raw. Like a sync read on real hardware,
// Positions fails as soon as one member of the group is silent.
type stubBus struct {
	raw   map[int]int
	group []int
}

func (b *stubBus) Positions(ctx context.Context) (map[int]int, error) {
	out := make(map[int]int, len(b.group))
	for _, id := range b.group {
		r, ok := b.raw[id]
		if !ok {
			return nil, errSilent
		}
		out[id] = r
	}
	return out, nil
}

func (b *stubBus) Position(ctx context.Context, id int) (int, error) {
	r, ok := b.raw[id]
	if !ok {
		return 0, errSilent
	}
	return r, nil
}

func (b *stubBus) SetPositions(ctx context.Context, raw map[int]int) error { return nil }
func (b *stubBus) Use(ids []int)                                           { b.group = slices.Clone(ids) }
func (b *stubBus) EnableAll(ctx context.Context) error                     { return nil }
func (b *stubBus) DisableAll(ctx context.Context) error                    { return nil }
func (b *stubBus) Close() error                                            { return nil }

func testCalibration() Calibration {
	return Calibration{
		"Rotor (Pitch)": {ID: 1, RangeMin: 0, RangeMax: 4000},
		"Foot Lock":     {ID: 2, RangeMin: 1000, RangeMax: 3000},
	}
}

func TestSource_SilentServos(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		start    map[int]int
		after    map[int]int
		present  []string
		missing  []string
		group    []int
		position float64
	}{
		{
			name:     "partly assembled",
			start:    map[int]int{1: 3000},
			present:  []string{"Rotor (Pitch)"},
			missing:  []string{"Foot Lock"},
			group:    []int{1},
			position: 90,
		},
		{
			name:     "drops out while running",
			start:    map[int]int{1: 2000, 2: 2000},
			after:    map[int]int{2: 2000},
			present:  []string{"Foot Lock"},
			missing:  []string{"Rotor (Pitch)"},
			group:    []int{2},
			position: 0,
		},
		{
			name:     "all answering",
			start:    map[int]int{1: 1000, 2: 2000},
			after:    map[int]int{1: 1000, 2: 2000},
			present:  []string{"Rotor (Pitch)", "Foot Lock"},
			group:    []int{1, 2},
			position: -90,
		},
	}

	for _, tt := range tests {
		bus := &stubBus{raw: tt.start}
		s := newSource(bus, testCalibration(), []string{"Foot Lock"})
		if err := s.refresh(ctx); err != nil {
			t.Errorf("%s: first refresh: %v", tt.name, err)
			continue
		}
		if tt.after != nil {
			bus.raw = tt.after
			if err := s.Advance(ctx, time.Second/60); err != nil {
				t.Errorf("%s: Advance: %v", tt.name, err)
				continue
			}
		}

		for _, id := range tt.missing {
			if _, err := s.Read(id); !errors.Is(err, host.ErrNotFound) {
				t.Errorf("%s: Read(%q) err = %v, want ErrNotFound", tt.name, id, err)
			}
		}
		for _, id := range tt.present {
			if _, err := s.Read(id); err != nil {
				t.Errorf("%s: Read(%q): %v", tt.name, id, err)
			}
		}
		if !slices.Equal(bus.group, tt.group) {
			t.Errorf("%s: sync group = %v, want %v", tt.name, bus.group, tt.group)
		}
		if slices.Contains(tt.present, "Rotor (Pitch)") {
			r, _ := s.Read("Rotor (Pitch)")
			if math.Abs(r.Position-tt.position) > 1e-9 {
				t.Errorf("%s: pitch at %v, want %v", tt.name, r.Position, tt.position)
			}
		}
	}
}

func TestSource_Rejoin(t *testing.T) {
	ctx := context.Background()
	bus := &stubBus{raw: map[int]int{2: 2000}}
	s := newSource(bus, testCalibration(), []string{"Foot Lock"})
	if err := s.refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read("Rotor (Pitch)"); !errors.Is(err, host.ErrNotFound) {
		t.Fatalf("Read before rejoin: err = %v, want ErrNotFound", err)
	}

	bus.raw = map[int]int{1: 3000, 2: 2000}
	for i := 0; i < rejoinEvery; i++ {
		if err := s.refresh(ctx); err != nil {
			t.Fatal(err)
		}
	}

	r, err := s.Read("Rotor (Pitch)")
	if err != nil {
		t.Fatalf("Read after rejoin: %v", err)
	}
	if math.Abs(r.Position-90) > 1e-9 {
		t.Errorf("pitch at %v, want 90", r.Position)
	}
	if !slices.Equal(bus.group, []int{1, 2}) {
		t.Errorf("sync group = %v, want [1 2]", bus.group)
	}
}

func TestSource_NoServoAnswers(t *testing.T) {
	bus := &stubBus{raw: map[int]int{}}
	s := newSource(bus, testCalibration(), nil)
	if err := s.refresh(context.Background()); !errors.Is(err, errSilent) {
		t.Errorf("refresh err = %v, want errSilent", err)
	}
	if _, err := s.Read("Foot Lock"); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("Read err = %v, want ErrNotFound", err)
	}
}
