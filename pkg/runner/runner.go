// Package runner drives a rig program at a fixed rate.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/command"
	"github.com/gwillem/mechseq/pkg/host"
	"github.com/gwillem/mechseq/pkg/trace"
)

// Program is one aggregate ticked by the runner: a legged walker or a turret.
type Program interface {
	Tick(cmd command.Command) error
	Status() []string
	Bank() *actuator.Bank
}

// Simulator moves the world forward between ticks.
type Simulator interface {
	Advance(ctx context.Context, dt time.Duration) error
}

// Torquer is implemented by backends that hold their joints under power.
type Torquer interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// State is the snapshot published after every tick.
type State struct {
	Tick      uint64
	Command   command.Command
	Status    []string
	Positions map[string]float64
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	Program  Program
	Hz       int
	Sim      Simulator     // optional
	Display  host.Display  // optional
	Recorder *trace.Writer // optional
	Clock    host.Clock
}

// Controller manages the tick loop.
type Controller struct {
	prog     Program
	hz       int
	sim      Simulator
	display  host.Display
	recorder *trace.Writer
	clock    host.Clock

	mu      sync.Mutex
	running bool
	tick    uint64

	cmdCh   chan command.Command
	stateCh chan State
	logCh   chan string
}

// NewController creates a controller for cfg.Program.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Program == nil {
		return nil, errors.New("no program")
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	if cfg.Clock == nil {
		cfg.Clock = host.SystemClock{}
	}

	return &Controller{
		prog:     cfg.Program,
		hz:       cfg.Hz,
		sim:      cfg.Sim,
		display:  cfg.Display,
		recorder: cfg.Recorder,
		clock:    cfg.Clock,
		cmdCh:    make(chan command.Command, 16),
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 10),
	}, nil
}

// Send queues cmd for a coming tick. It reports false when the queue is full.
func (c *Controller) Send(cmd command.Command) bool {
	select {
	case c.cmdCh <- cmd:
		return true
	default:
		return false
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the tick frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Period returns the time between ticks.
func (c *Controller) Period() time.Duration {
	return time.Second / time.Duration(c.hz)
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", c.clock.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the tick loop until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	if t, ok := c.sim.(Torquer); ok {
		if err := t.Enable(ctx); err != nil {
			c.log("Warning: failed to enable torque: %v", err)
		} else {
			c.log("Torque enabled")
		}
	}

	c.log("Started at %d Hz", c.hz)

	ticker := time.NewTicker(c.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.Step(ctx)
		}
	}
}

// Step runs one tick: it consumes at most one queued command, ticks the
// program, advances the simulator and publishes the result.
func (c *Controller) Step(ctx context.Context) State {
	cmd := command.None
	select {
	case cmd = <-c.cmdCh:
	default:
	}
	if cmd == command.Unrecognized {
		c.log("Ignored unrecognized command")
	}

	err := c.prog.Tick(cmd)
	if err != nil {
		c.log("Tick error: %v", err)
	}

	if c.sim != nil {
		if serr := c.sim.Advance(ctx, c.Period()); serr != nil {
			c.log("Simulator error: %v", serr)
			err = errors.Join(err, serr)
		}
	}

	c.mu.Lock()
	s := State{
		Tick:      c.tick,
		Command:   cmd,
		Status:    c.prog.Status(),
		Positions: c.prog.Bank().Positions(),
		Timestamp: c.clock.Now(),
		Error:     err,
	}
	c.tick++
	c.mu.Unlock()

	if c.display != nil {
		c.display.Show(s.Status)
	}
	c.record(s)
	c.sendState(s)
	return s
}

func (c *Controller) record(s State) {
	if c.recorder == nil {
		return
	}
	r := trace.Record{
		Tick:      s.Tick,
		Time:      s.Timestamp,
		Status:    s.Status,
		Positions: s.Positions,
	}
	if s.Command != command.None {
		r.Command = s.Command.String()
	}
	if s.Error != nil {
		r.Error = s.Error.Error()
	}
	if err := c.recorder.Write(r); err != nil {
		c.log("Trace error: %v", err)
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if t, ok := c.sim.(Torquer); ok {
		if err := t.Disable(context.Background()); err != nil {
			c.log("Warning: failed to disable torque: %v", err)
		} else {
			c.log("Torque disabled")
		}
	}
	c.log("Stopped")
}

// Close stops the loop and flushes the recorder.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if c.recorder != nil {
		return c.recorder.Close()
	}
	return nil
}
