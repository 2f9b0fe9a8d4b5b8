package turret

import (
	"fmt"
	"strings"
)

// State is one phase of the turret cycle.
type State int

const (
	WaitForReload State = iota
	RandomizeAngles
	WaitUntilAnglesMet
	RandomizePower
	Retract
	Extend
	Fire
	BeginWait
	Wait
)

var stateNames = [...]string{
	WaitForReload:      "WaitForReload",
	RandomizeAngles:    "RandomizeAngles",
	WaitUntilAnglesMet: "WaitUntilAnglesMet",
	RandomizePower:     "RandomizePower",
	Retract:            "Retract",
	Extend:             "Extend",
	Fire:               "Fire",
	BeginWait:          "BeginWait",
	Wait:               "Wait",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState resolves a state name, ignoring case.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown turret state %q", name)
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DefaultSequence is the aim, load and throw cycle.
func DefaultSequence() []State {
	return []State{
		WaitForReload,
		RandomizeAngles,
		WaitUntilAnglesMet,
		Retract,
		Extend,
		Fire,
		BeginWait,
		Wait,
	}
}

// Machine is a cyclic sequence of states with a cursor and a run gate.
type Machine struct {
	states  []State
	cursor  int
	running bool
}

// NewMachine creates a stopped machine at the first state of states.
func NewMachine(states []State) (*Machine, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("state sequence is empty")
	}
	return &Machine{states: append([]State(nil), states...)}, nil
}

// Current returns the state under the cursor.
func (m *Machine) Current() State {
	return m.states[m.cursor]
}

// Step returns the cursor position.
func (m *Machine) Step() int {
	return m.cursor
}

// Len returns the number of states in the cycle.
func (m *Machine) Len() int {
	return len(m.states)
}

// IncreaseStep moves the cursor to the next state, wrapping to the first.
func (m *Machine) IncreaseStep() {
	m.cursor = (m.cursor + 1) % len(m.states)
}

func (m *Machine) Running() bool { return m.running }
func (m *Machine) Start()        { m.running = true }
func (m *Machine) Stop()         { m.running = false }
func (m *Machine) Toggle()       { m.running = !m.running }
