package turret

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
	}{
		{"WaitForReload", WaitForReload},
		{"randomizepower", RandomizePower},
		{" Fire ", Fire},
		{"wait", Wait},
	}

	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if err != nil {
			t.Errorf("ParseState(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseState("Reload"); err == nil {
		t.Error("ParseState(Reload) should fail")
	}
}

func TestState_YAML(t *testing.T) {
	var seq []State
	if err := yaml.Unmarshal([]byte("[retract, Extend, fire]"), &seq); err != nil {
		t.Fatal(err)
	}
	if len(seq) != 3 || seq[0] != Retract || seq[1] != Extend || seq[2] != Fire {
		t.Errorf("decoded %v", seq)
	}

	out, err := yaml.Marshal([]State{BeginWait})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "- BeginWait\n" {
		t.Errorf("encoded %q", out)
	}
}

func TestMachine(t *testing.T) {
	if _, err := NewMachine(nil); err == nil {
		t.Error("empty machine should fail")
	}

	m, err := NewMachine([]State{Retract, Extend, Fire})
	if err != nil {
		t.Fatal(err)
	}
	if m.Running() {
		t.Error("new machine should be stopped")
	}
	if m.Current() != Retract || m.Step() != 0 || m.Len() != 3 {
		t.Errorf("start at %v step %d len %d", m.Current(), m.Step(), m.Len())
	}

	for _, want := range []State{Extend, Fire, Retract} {
		m.IncreaseStep()
		if m.Current() != want {
			t.Errorf("after IncreaseStep: %v, want %v", m.Current(), want)
		}
	}

	m.Toggle()
	if !m.Running() {
		t.Error("Toggle should start")
	}
	m.Stop()
	if m.Running() {
		t.Error("Stop should stop")
	}
	m.Start()
	m.Toggle()
	if m.Running() {
		t.Error("Toggle should stop a running machine")
	}
}

func TestMachine_SingleState(t *testing.T) {
	m, _ := NewMachine([]State{Wait})
	m.IncreaseStep()
	if m.Current() != Wait || m.Step() != 0 {
		t.Errorf("single state machine at %v step %d", m.Current(), m.Step())
	}
}
