package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/bench"
	"github.com/gwillem/mechseq/pkg/host"
	"github.com/gwillem/mechseq/pkg/legs"
	"github.com/gwillem/mechseq/pkg/rig"
	"github.com/gwillem/mechseq/pkg/runner"
	"github.com/gwillem/mechseq/pkg/servo"
	"github.com/gwillem/mechseq/pkg/trace"
	"github.com/gwillem/mechseq/pkg/turret"
)

type RunOptions struct {
	Hz     int    `long:"hz" description:"Tick frequency (overrides the config)"`
	Sim    bool   `long:"sim" description:"Run against the in-memory bench instead of the servo bus"`
	Plain  bool   `long:"plain" description:"Print status lines and read commands from stdin instead of the dashboard"`
	Record string `long:"record" value-name:"FILE" description:"Write a compressed trace of every tick"`
}

type LegsCommand struct {
	RunOptions
}

type TurretCommand struct {
	RunOptions
	Seed uint64 `long:"seed" description:"Random seed (default: current time)"`
}

// backend is the host a program runs against.
type backend struct {
	src   host.Source
	sim   runner.Simulator
	close func() error
}

func (c *LegsCommand) Execute(args []string) error {
	cfg := loadConfig()

	b, err := c.open(cfg, func(w *bench.World) {
		for _, p := range cfg.Legs.Parts {
			switch p.Kind {
			case actuator.Rotary:
				w.AddRotary(p.ID, 0)
			case actuator.Linear:
				w.AddLinear(p.ID, 1.0)
			case actuator.Lock:
				w.AddLatch(p.ID, true)
			}
		}
	})
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer b.close()

	robot, err := legs.New(cfg.Legs, b.src, nil)
	if err != nil {
		log.Fatalf("Failed to build legs: %v", err)
	}

	return c.run(cfg, b, robot, "mechseq legs", legsChartRange(cfg.Legs))
}

func (c *TurretCommand) Execute(args []string) error {
	cfg := loadConfig()

	b, err := c.open(cfg, func(w *bench.World) {
		w.AddRotary(cfg.Turret.Pitch, 0)
		w.AddRotary(cfg.Turret.Yaw, 0)
		for _, id := range cfg.Turret.Extenders {
			if _, ok := w.Joint(id); !ok {
				w.AddRotary(id, 0)
			}
		}
	})
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer b.close()

	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	tr, err := turret.New(cfg.Turret, b.src, nil, host.NewPCG(seed))
	if err != nil {
		log.Fatalf("Failed to build turret: %v", err)
	}

	return c.run(cfg, b, tr, "mechseq turret", cfg.Turret.YawRange.Max)
}

func loadConfig() *rig.Config {
	if _, err := os.Stat(opts.Config); errors.Is(err, os.ErrNotExist) {
		cfg := rig.Default()
		return &cfg
	}
	cfg, err := rig.LoadFrom(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// open returns the bench world built by populate, or the servo bus.
func (o *RunOptions) open(cfg *rig.Config, populate func(*bench.World)) (*backend, error) {
	if o.Sim {
		w := bench.NewWorld()
		populate(w)
		return &backend{src: w, sim: w, close: func() error { return nil }}, nil
	}

	if cfg.Servo.Port == "" {
		fmt.Fprintln(os.Stderr, "No servo bus configured. Run 'mechseq setup' first or pass --sim.")
		os.Exit(1)
	}
	cal, err := cfg.Servo.LoadCalibration()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	src, err := servo.Open(ctx, servo.Config{
		Port:        cfg.Servo.Port,
		Calibration: cal,
		Latches:     cfg.Servo.Latches,
	})
	if err != nil {
		return nil, err
	}
	return &backend{src: src, sim: src, close: src.Close}, nil
}

func (o *RunOptions) run(cfg *rig.Config, b *backend, prog runner.Program, title string, yRange float64) error {
	hz := cfg.Hz
	if o.Hz > 0 {
		hz = o.Hz
	}

	var rec *trace.Writer
	if o.Record != "" {
		var err error
		if rec, err = trace.Create(o.Record); err != nil {
			log.Fatalf("Failed to create trace: %v", err)
		}
	}

	var display host.Display
	if o.Plain {
		display = newLineDisplay(os.Stdout)
	}

	ctrl, err := runner.NewController(runner.Config{
		Program:  prog,
		Hz:       hz,
		Sim:      b.sim,
		Display:  display,
		Recorder: rec,
	})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	defer ctrl.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if o.Plain {
		return runPlain(ctx, ctrl, os.Stdin, os.Stderr)
	}

	p := tea.NewProgram(newDashboard(ctrl, title, prog.Bank(), yRange), tea.WithAltScreen())
	return serveUI(ctx, ctrl, func() error {
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run dashboard: %w", err)
		}
		return nil
	})
}

// serveUI runs the tick loop while ui runs, then stops the loop and waits
// for its shutdown so torque is off before the bus closes.
func serveUI(ctx context.Context, ctrl *runner.Controller, ui func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Controller error: %v", err)
		}
	}()

	err := ui()
	cancel()
	<-done
	return err
}
