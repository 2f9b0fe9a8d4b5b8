// Package legs drives a walking rig: hinged hips and ankles, sliding legs
// and latching feet, animated through named cyclic poses.
package legs

import (
	"fmt"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/command"
	"github.com/gwillem/mechseq/pkg/host"
	"github.com/gwillem/mechseq/pkg/pose"
)

// Robot owns the walker's actuators and the sequencer playing on them.
type Robot struct {
	bank       *actuator.Bank
	seq        *pose.Sequencer
	animations map[string]pose.Animation
}

// New builds a walker from cfg, commanding it through src.
func New(cfg Config, src host.Source, clock host.Clock) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("legs config: %w", err)
	}

	bank := actuator.NewBank(src, clock)
	bank.LockInterval = cfg.LockInterval
	for _, p := range cfg.Parts {
		speed := cfg.MoveSpeed
		if p.Speed > 0 {
			speed = p.Speed
		}
		a := actuator.New(p.ID, p.Kind, speed)
		a.Group = p.Group
		if err := bank.Add(a); err != nil {
			return nil, err
		}
	}

	animations := make(map[string]pose.Animation, len(cfg.Animations))
	for _, anim := range cfg.Animations {
		animations[anim.Name] = anim
	}

	return &Robot{
		bank:       bank,
		seq:        pose.NewSequencer(bank, animations[cfg.Initial]),
		animations: animations,
	}, nil
}

// Bank returns the walker's actuators.
func (r *Robot) Bank() *actuator.Bank {
	return r.bank
}

// Animation returns the name of the animation being played.
func (r *Robot) Animation() string {
	return r.seq.Animation().Name
}

// Frame returns the current frame index.
func (r *Robot) Frame() int {
	return r.seq.Frame()
}

// Handle switches animation on walk, stand and still. Other commands, and
// animations the rig does not declare, leave the current one playing.
func (r *Robot) Handle(cmd command.Command) bool {
	switch cmd {
	case command.Walk, command.Stand, command.Still:
		anim, ok := r.animations[cmd.String()]
		if !ok {
			return false
		}
		r.seq.Play(anim)
		return true
	default:
		return false
	}
}

// Tick applies cmd and runs one sequencer step.
func (r *Robot) Tick(cmd command.Command) error {
	r.Handle(cmd)
	_, err := r.seq.Tick()
	return err
}

// Status returns the animation name and frame position.
func (r *Robot) Status() []string {
	anim := r.seq.Animation()
	return []string{
		anim.Name,
		fmt.Sprintf("frame %d/%d", r.seq.Frame(), anim.Len()-1),
	}
}
