// Package mechseq sequences actuator motion for game-style mechanical rigs:
// a two-legged walker that steps through pose animations and a throwing
// turret that cycles through aim, wind-up and release.
//
// Every actuator is driven toward its setpoint with damped velocity
// commands and a pose only advances once all of its actuators converged.
// Rigs run against an in-memory bench or a Feetech STS servo bus.
//
// # Installation
//
//	go install github.com/gwillem/mechseq/cmd/mechseq@latest
//
// # Usage
//
// Try a rig on the bench first:
//
//	mechseq legs --sim
//	mechseq turret --sim --seed 7 --record runs/turret.jsonl.zst
//
// Map servos to parts and record their ranges:
//
//	mechseq setup
//
// Then drive the hardware, or inspect a recorded run:
//
//	mechseq legs
//	mechseq replay --changes runs/turret.jsonl.zst
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/mechseq: CLI with legs, turret, setup and replay commands
//   - pkg/host: capabilities consumed from the driven world
//   - pkg/actuator: actuator kinds, convergence and stepping, the bank
//   - pkg/pose: poses, animations and the converge-then-advance sequencer
//   - pkg/legs: the walker
//   - pkg/turret: the turret state machine
//   - pkg/command: tick command parsing
//   - pkg/runner: fixed-rate tick loop
//   - pkg/bench: in-memory host
//   - pkg/servo: servo bus host and calibration
//   - pkg/trace: compressed tick traces
//   - pkg/rig: configuration
package mechseq
