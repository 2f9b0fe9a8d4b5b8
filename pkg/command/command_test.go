package command

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		arg      string
		expected Command
	}{
		{"", None},
		{"walk", Walk},
		{"stand", Stand},
		{" still\n", Still},
		{"toggle", Toggle},
		{"advance", Advance},
		{"Walk", Unrecognized}, // arguments are case sensitive
		{"fire", Unrecognized},
	}

	for _, tt := range tests {
		if got := Parse(tt.arg); got != tt.expected {
			t.Errorf("Parse(%q) = %v, want %v", tt.arg, got, tt.expected)
		}
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, c := range []Command{Walk, Stand, Still, Toggle, Advance} {
		if got := Parse(c.String()); got != c {
			t.Errorf("Parse(%q) = %v, want %v", c.String(), got, c)
		}
	}
}
