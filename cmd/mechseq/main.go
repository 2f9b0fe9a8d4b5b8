package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" default:"mechseq.yaml" description:"Rig configuration file"`

	Legs   LegsCommand   `command:"legs" description:"Run the walking legs"`
	Turret TurretCommand `command:"turret" description:"Run the throwing turret"`
	Setup  SetupCommand  `command:"setup" description:"Scan for a servo bus and write a rig configuration"`
	Replay ReplayCommand `command:"replay" description:"Print a recorded trace"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "mechseq - actuator sequencer for walking legs and throwing turrets"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
