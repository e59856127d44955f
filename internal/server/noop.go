package server

import "context"

// Noop is a Controller that issues no commands and starts/stops nothing.
// It is not a vendor implementation: it exists so Session and its tests
// have something to wire against when no ServerController is configured
// (e.g. a bare "gdb --interpreter=mi3" session against a target already
// reachable via ConnectCommands alone).
type Noop struct{}

func (Noop) Start(ctx context.Context) error { return nil }
func (Noop) Stop() error                     { return nil }
func (Noop) ConnectCommands() []string       { return nil }
func (Noop) LaunchCommands() []string        { return nil }
func (Noop) AttachCommands() []string        { return nil }
func (Noop) ResetCommands() []string         { return nil }
func (Noop) SwoRttCommands() []string        { return nil }
