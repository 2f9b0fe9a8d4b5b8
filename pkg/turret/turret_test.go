package turret

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/gwillem/mechseq/pkg/bench"
	"github.com/gwillem/mechseq/pkg/command"
	"github.com/gwillem/mechseq/pkg/host"
)

type rig struct {
	world  *bench.World
	clock  *bench.Clock
	turret *Turret
}

func newRig(t *testing.T, cfg Config, rnd host.Random) *rig {
	t.Helper()
	world := bench.NewWorld()
	world.AddRotary(cfg.Pitch, 0)
	world.AddRotary(cfg.Yaw, 0)
	for _, id := range cfg.Extenders {
		world.AddRotary(id, 0)
	}
	clock := bench.NewClock(time.Unix(5000, 0))

	tr, err := New(cfg, world, clock, rnd)
	if err != nil {
		t.Fatal(err)
	}
	return &rig{world: world, clock: clock, turret: tr}
}

// run ticks until the machine reaches state want or the budget runs out.
func (r *rig) run(t *testing.T, want State, budget int) {
	t.Helper()
	dt := time.Second / 60
	for i := 0; ; i++ {
		if r.turret.Machine().Current() == want {
			return
		}
		if i == budget {
			break
		}
		if err := r.turret.Update(); err != nil {
			t.Fatal(err)
		}
		r.world.Advance(context.Background(), dt)
		r.clock.Advance(dt)
	}
	t.Fatalf("state %v not reached, stuck in %v", want, r.turret.Machine().Current())
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no pitch", func(c *Config) { c.Pitch = "" }},
		{"same rotor", func(c *Config) { c.Yaw = c.Pitch }},
		{"zero speed", func(c *Config) { c.RotateSpeed = 0 }},
		{"negative jitter", func(c *Config) { c.AngleJitter = -1 }},
		{"negative wait", func(c *Config) { c.Wait = -time.Second }},
		{"inverted range", func(c *Config) { c.YawRange.Min = 400 }},
		{"empty sequence", func(c *Config) { c.Sequence = nil }},
		{"bad state", func(c *Config) { c.Sequence = []State{State(42)} }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
		}
	}
}

func TestUpdate_StoppedIsNoop(t *testing.T) {
	r := newRig(t, DefaultConfig(), bench.Constant(3))

	for i := 0; i < 10; i++ {
		if err := r.turret.Update(); err != nil {
			t.Fatal(err)
		}
	}
	if r.turret.Machine().Current() != WaitForReload {
		t.Errorf("stopped turret moved to %v", r.turret.Machine().Current())
	}
	if n := len(r.world.Commands()); n != 0 {
		t.Errorf("stopped turret issued %d commands", n)
	}
}

func TestTick_Commands(t *testing.T) {
	r := newRig(t, DefaultConfig(), bench.Constant(3))

	r.turret.Tick(command.Advance)
	if got := r.turret.Machine().Current(); got != RandomizeAngles {
		t.Errorf("advance while stopped: state %v, want RandomizeAngles", got)
	}

	r.turret.Tick(command.Walk)
	if r.turret.Machine().Running() {
		t.Error("walk should not start the turret")
	}

	r.turret.Tick(command.Toggle)
	if !r.turret.Machine().Running() {
		t.Fatal("toggle should start the turret")
	}
	if got := r.turret.Machine().Current(); got != WaitUntilAnglesMet {
		t.Errorf("state %v, want WaitUntilAnglesMet after randomizing", got)
	}
	if p, y := r.turret.Targets(); p != 3 || y != 3 {
		t.Errorf("targets = %v, %v; want 3, 3", p, y)
	}
}

func TestFullCycle(t *testing.T) {
	cfg := DefaultConfig()
	r := newRig(t, cfg, bench.Constant(10))
	r.turret.Machine().Start()

	r.run(t, RandomizeAngles, 2)
	j, _ := r.world.Joint(LaunchRotor)
	if !j.Attached {
		t.Error("reload should attach the launcher")
	}

	r.run(t, Retract, 60*30)
	for _, id := range []string{PitchRotor, YawRotor} {
		j, _ := r.world.Joint(id)
		if j.Position <= 9 || j.Position >= 11 {
			t.Errorf("%s at %v, want within 1 of 10", id, j.Position)
		}
		if j.Velocity != 0 {
			t.Errorf("%s velocity %v, want 0 once aimed", id, j.Velocity)
		}
	}

	r.run(t, Extend, 1)
	j, _ = r.world.Joint(ArmRotor)
	if j.Displacement != cfg.Displacement.Min {
		t.Errorf("retract displacement = %v, want %v", j.Displacement, cfg.Displacement.Min)
	}

	r.run(t, Fire, 1)
	j, _ = r.world.Joint(ArmRotor)
	if j.Displacement != cfg.Displacement.Max {
		t.Errorf("extend displacement = %v, want %v", j.Displacement, cfg.Displacement.Max)
	}

	r.run(t, BeginWait, 1)
	j, _ = r.world.Joint(LaunchRotor)
	if j.Attached {
		t.Error("fire should detach the launcher")
	}

	r.run(t, WaitForReload, 60*3)
	if r.turret.Machine().Step() != 0 {
		t.Errorf("cycle did not wrap to step 0")
	}
}

func TestWaitBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sequence = []State{BeginWait, Wait, Fire}
	r := newRig(t, cfg, nil)
	r.turret.Machine().Start()

	r.turret.Update() // BeginWait at t0
	for _, d := range []time.Duration{0, time.Second, cfg.Wait - time.Nanosecond} {
		r.turret.clock = bench.NewClock(time.Unix(5000, 0).Add(d))
		r.turret.Update()
		if got := r.turret.Machine().Current(); got != Wait {
			t.Fatalf("at t0+%v state %v, want Wait", d, got)
		}
	}

	r.turret.clock = bench.NewClock(time.Unix(5000, 0).Add(cfg.Wait))
	r.turret.Update()
	if got := r.turret.Machine().Current(); got != Fire {
		t.Errorf("at t0+wait state %v, want Fire", got)
	}
}

func TestRandomizeAngles_Clamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sequence = []State{RandomizeAngles}
	cfg.AngleJitter = 1000
	r := newRig(t, cfg, bench.Constant(1000))
	r.turret.Machine().Start()

	for i := 0; i < 5; i++ {
		r.turret.Update()
		p, y := r.turret.Targets()
		if p < cfg.PitchRange.Min || p > cfg.PitchRange.Max {
			t.Errorf("pitch target %v outside %v", p, cfg.PitchRange)
		}
		if y < cfg.YawRange.Min || y > cfg.YawRange.Max {
			t.Errorf("yaw target %v outside %v", y, cfg.YawRange)
		}
	}

	r2 := newRig(t, cfg, bench.Constant(-1000))
	r2.turret.Machine().Start()
	r2.turret.Update()
	if p, y := r2.turret.Targets(); p != -20 || y != -360 {
		t.Errorf("targets = %v, %v; want -20, -360", p, y)
	}
}

func TestRandomizePower(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sequence = []State{RandomizePower, Extend}
	r := newRig(t, cfg, bench.Constant(-0.09))
	r.turret.Machine().Start()

	r.turret.Update()
	r.turret.Update()

	j, _ := r.world.Joint(ArmRotor)
	if j.Displacement != -0.09 {
		t.Errorf("displacement = %v, want -0.09", j.Displacement)
	}
}

func TestDeterministic(t *testing.T) {
	trajectory := func() ([]State, [][2]float64) {
		r := newRig(t, DefaultConfig(), bench.Constant(7))
		r.turret.Machine().Start()
		var states []State
		var targets [][2]float64
		for i := 0; i < 60*20; i++ {
			r.turret.Update()
			states = append(states, r.turret.Machine().Current())
			p, y := r.turret.Targets()
			targets = append(targets, [2]float64{p, y})
			r.world.Advance(context.Background(), time.Second/60)
			r.clock.Advance(time.Second / 60)
		}
		return states, targets
	}

	s1, t1 := trajectory()
	s2, t2 := trajectory()
	if !reflect.DeepEqual(s1, s2) {
		t.Error("state trajectories differ")
	}
	if !reflect.DeepEqual(t1, t2) {
		t.Error("target trajectories differ")
	}
}

func TestMissingRotors(t *testing.T) {
	cfg := DefaultConfig()
	world := bench.NewWorld()
	tr, err := New(cfg, world, bench.NewClock(time.Unix(0, 0)), bench.Constant(5))
	if err != nil {
		t.Fatal(err)
	}
	tr.Machine().Start()

	for i := 0; i < 6; i++ {
		if err := tr.Update(); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	if got := tr.Machine().Current(); got != BeginWait {
		t.Errorf("state %v, want BeginWait with every part missing", got)
	}
}

func TestStatus(t *testing.T) {
	r := newRig(t, DefaultConfig(), bench.Constant(2.5))
	r.turret.Tick(command.Advance)
	r.turret.Tick(command.Toggle)

	want := []string{"running: true", "WaitUntilAnglesMet", "pitch: 2.50", "yaw: 2.50"}
	if got := r.turret.Status(); !reflect.DeepEqual(got, want) {
		t.Errorf("Status() = %q, want %q", got, want)
	}
}
