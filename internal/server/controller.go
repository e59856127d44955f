// Package server defines the ServerController collaborator: the
// vendor-specific knowledge of how to spawn and talk to a particular
// gdbserver (J-Link, OpenOCD, pyOCD, ...). This module never implements a
// concrete vendor controller — that is explicitly out of scope (spec §1
// Non-goals: "Server controller specifics (how each vendor gdbserver is
// spawned)").
package server

import "context"

// Controller is the seam a concrete vendor integration implements. Each
// method returns the GDB/MI (or GDB console) command list Session should
// run at the matching lifecycle point (spec §1: "modeled as a
// ServerController trait with connect_commands, launch_commands,
// attach_commands, reset_commands, swo_rtt_commands").
type Controller interface {
	// Start spawns the vendor gdbserver process (or connects to one
	// already running) and blocks until it is ready to accept a GDB
	// "target extended-remote" connection, or ctx is done.
	Start(ctx context.Context) error

	// Stop tears down the vendor gdbserver process this Controller
	// started, if any.
	Stop() error

	// ConnectCommands returns the commands that attach GDB to the
	// gdbserver's remote target (spec §4.2 startup contract step 4,
	// "target extended-remote" or vendor equivalent).
	ConnectCommands() []string

	// LaunchCommands returns the commands that flash and reset the
	// target for a fresh "launch" request, run after ConnectCommands.
	LaunchCommands() []string

	// AttachCommands returns the commands run instead of LaunchCommands
	// for an "attach" request, where the target is already running and
	// must not be reset or reflashed.
	AttachCommands() []string

	// ResetCommands returns the commands the "reset-device" custom
	// request (spec §6) sends to reset the target without relaunching
	// the session.
	ResetCommands() []string

	// SwoRttCommands returns any vendor-specific commands needed to
	// enable SWO/RTT capture on the target before RttEngine/the SWO
	// stream starts polling (spec §6 "swo-connected").
	SwoRttCommands() []string
}
