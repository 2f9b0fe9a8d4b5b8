package legs

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/bench"
	"github.com/gwillem/mechseq/pkg/command"
	"github.com/gwillem/mechseq/pkg/pose"
)

func newWorld(cfg Config) *bench.World {
	world := bench.NewWorld()
	for _, p := range cfg.Parts {
		switch p.Kind {
		case actuator.Rotary:
			world.AddRotary(p.ID, 0)
		case actuator.Linear:
			world.AddLinear(p.ID, 1.0)
		case actuator.Lock:
			world.AddLatch(p.ID, true)
		}
	}
	return world
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
		{"zero speed", func(c *Config) { c.MoveSpeed = 0 }},
		{"negative lock interval", func(c *Config) { c.LockInterval = -time.Second }},
		{"duplicate part", func(c *Config) { c.Parts = append(c.Parts, Part{ID: HipLeft}) }},
		{"empty part id", func(c *Config) { c.Parts = append(c.Parts, Part{}) }},
		{"unknown initial", func(c *Config) { c.Initial = "dance" }},
		{"frame names unknown part", func(c *Config) {
			c.Animations = append(c.Animations, pose.Animation{Name: "kick", Frames: []pose.Pose{{"Rotor Knee": 10}}})
		}},
		{"animation without frames", func(c *Config) {
			c.Animations = append(c.Animations, pose.Animation{Name: "empty"})
		}},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
		}
	}
}

func TestRobot_Handle(t *testing.T) {
	cfg := DefaultConfig()
	r, err := New(cfg, newWorld(cfg), bench.NewClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}

	if r.Animation() != "still" {
		t.Fatalf("initial animation = %s, want still", r.Animation())
	}

	tests := []struct {
		cmd      command.Command
		switched bool
		anim     string
	}{
		{command.Walk, true, "walk"},
		{command.Toggle, false, "walk"},
		{command.Unrecognized, false, "walk"},
		{command.None, false, "walk"},
		{command.Stand, true, "stand"},
		{command.Still, true, "still"},
	}

	for _, tt := range tests {
		if got := r.Handle(tt.cmd); got != tt.switched {
			t.Errorf("Handle(%v) = %v, want %v", tt.cmd, got, tt.switched)
		}
		if r.Animation() != tt.anim {
			t.Errorf("after %v animation = %s, want %s", tt.cmd, r.Animation(), tt.anim)
		}
	}
}

func TestRobot_HandleUndeclaredAnimation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Animations = cfg.Animations[:1] // still only
	r, err := New(cfg, newWorld(cfg), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Handle(command.Walk) {
		t.Error("walk should be ignored when not declared")
	}
	if r.Animation() != "still" {
		t.Errorf("animation = %s, want still", r.Animation())
	}
}

func TestRobot_Status(t *testing.T) {
	cfg := DefaultConfig()
	r, _ := New(cfg, newWorld(cfg), nil)

	want := []string{"still", "frame 0/0"}
	if got := r.Status(); !reflect.DeepEqual(got, want) {
		t.Errorf("Status() = %q, want %q", got, want)
	}

	r.Handle(command.Walk)
	want = []string{"walk", "frame 0/3"}
	if got := r.Status(); !reflect.DeepEqual(got, want) {
		t.Errorf("Status() = %q, want %q", got, want)
	}
}

func TestRobot_WalkCycle(t *testing.T) {
	cfg := DefaultConfig()
	world := newWorld(cfg)
	clock := bench.NewClock(time.Unix(0, 0))
	r, err := New(cfg, world, clock)
	if err != nil {
		t.Fatal(err)
	}

	dt := time.Second / 60
	ctx := context.Background()
	visited := []int{0}
	cmd := command.Walk
	for i := 0; i < 60*60 && len(visited) < 5; i++ {
		if err := r.Tick(cmd); err != nil {
			t.Fatal(err)
		}
		cmd = command.None
		if f := r.Frame(); f != visited[len(visited)-1] {
			visited = append(visited, f)
		}
		world.Advance(ctx, dt)
		clock.Advance(dt)
	}

	want := []int{0, 1, 2, 3, 0}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited frames %v, want %v", visited, want)
	}
}

func TestRobot_PartiallyAssembled(t *testing.T) {
	cfg := DefaultConfig()
	world := newWorld(cfg)
	world.Remove(HipLeft)
	world.Remove(LegLeft)
	world.Remove(FootLeft)
	clock := bench.NewClock(time.Unix(0, 0))
	r, err := New(cfg, world, clock)
	if err != nil {
		t.Fatal(err)
	}

	r.Handle(command.Walk)
	moved := false
	for i := 0; i < 600 && !moved; i++ {
		if err := r.Tick(command.None); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		moved = r.Frame() != 0
		world.Advance(context.Background(), time.Second/60)
		clock.Advance(time.Second / 60)
	}
	if !moved {
		t.Error("walker missing a leg should still step through frames")
	}
}
