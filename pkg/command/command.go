// Package command resolves the free-text tick argument into a Command.
package command

import "strings"

// Command is an operator request delivered with a tick.
type Command int

const (
	None Command = iota
	Walk
	Stand
	Still
	Toggle
	Advance
	Unrecognized
)

func (c Command) String() string {
	switch c {
	case None:
		return ""
	case Walk:
		return "walk"
	case Stand:
		return "stand"
	case Still:
		return "still"
	case Toggle:
		return "toggle"
	case Advance:
		return "advance"
	}
	return "unrecognized"
}

// Parse resolves a tick argument. The empty argument is None; anything not
// listed is Unrecognized.
func Parse(arg string) Command {
	switch strings.TrimSpace(arg) {
	case "":
		return None
	case "walk":
		return Walk
	case "stand":
		return Stand
	case "still":
		return Still
	case "toggle":
		return Toggle
	case "advance":
		return Advance
	}
	return Unrecognized
}
