// Package pose sequences multi-actuator motion: a pose is one frame of
// setpoints, an animation is a cyclic list of poses, and the sequencer
// advances through it only when every actuator of the current frame has
// converged.
package pose

import (
	"errors"
	"fmt"

	"github.com/gwillem/mechseq/pkg/actuator"
)

// Pose maps actuator ids to target positions.
type Pose map[string]float64

// Animation is a named, cyclic sequence of poses.
type Animation struct {
	Name   string `yaml:"name"`
	Frames []Pose `yaml:"frames"`
}

// NewAnimation creates an animation. It needs at least one frame.
func NewAnimation(name string, frames ...Pose) (Animation, error) {
	if len(frames) == 0 {
		return Animation{}, fmt.Errorf("animation %q has no frames", name)
	}
	return Animation{Name: name, Frames: frames}, nil
}

// Len returns the number of frames.
func (a Animation) Len() int {
	return len(a.Frames)
}

// Next returns the frame index after i, wrapping to 0.
func (a Animation) Next(i int) int {
	return (i + 1) % len(a.Frames)
}

// Reverses reports whether moving from target to next turns a rotary
// actuator around.
func Reverses(target, next float64) bool {
	return (target <= 0 && next > target) || (target >= 0 && next < target)
}

// Sequencer plays one animation at a time on a bank of actuators.
type Sequencer struct {
	bank  *actuator.Bank
	anim  Animation
	frame int
}

// NewSequencer creates a sequencer playing anim from its first frame.
func NewSequencer(bank *actuator.Bank, anim Animation) *Sequencer {
	return &Sequencer{bank: bank, anim: anim}
}

// Play switches to anim and rewinds to frame 0.
func (s *Sequencer) Play(anim Animation) {
	s.anim = anim
	s.frame = 0
}

// Animation returns the animation being played.
func (s *Sequencer) Animation() Animation {
	return s.anim
}

// Frame returns the current frame index.
func (s *Sequencer) Frame() int {
	return s.frame
}

// AdvanceIfConverged checks every actuator of current in configuration
// order. Each one that has not converged gets a step command. It returns
// true only if all of them had already converged. A converged rotary
// actuator whose target in next reverses direction is stopped right away.
func (s *Sequencer) AdvanceIfConverged(current, next Pose) (bool, error) {
	all := true
	var errs []error

	for _, a := range s.bank.Actuators() {
		target, ok := current[a.ID]
		if !ok {
			continue
		}

		converged, err := s.bank.Converged(a.ID, target)
		if err != nil {
			errs = append(errs, err)
		}
		if converged {
			if upcoming, ok := next[a.ID]; ok && a.Kind == actuator.Rotary && Reverses(target, upcoming) {
				if err := s.bank.Settle(a.ID); err != nil {
					errs = append(errs, err)
				}
			}
			continue
		}

		all = false
		if err := s.bank.Step(a.ID, target); err != nil {
			errs = append(errs, err)
		}
	}

	return all, errors.Join(errs...)
}

// Tick refreshes the bank, evaluates the current frame and moves the cursor
// on when it converged. Errors are returned after the whole frame was
// evaluated.
func (s *Sequencer) Tick() (bool, error) {
	syncErr := s.bank.Sync()
	if s.anim.Len() == 0 {
		return false, syncErr
	}

	current := s.anim.Frames[s.frame]
	next := s.anim.Frames[s.anim.Next(s.frame)]
	advanced, err := s.AdvanceIfConverged(current, next)
	if advanced {
		s.frame = s.anim.Next(s.frame)
	}
	return advanced, errors.Join(syncErr, err)
}
