package gdbmi

import (
	"fmt"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

// TimeoutError is returned by SendCommand when a reply does not arrive
// before the command's deadline (spec §7 CommandTimeout).
type TimeoutError struct {
	Command string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gdbmi: command %q timed out", e.Command)
}

func (e *TimeoutError) Is(target error) bool { return target == mi.ErrCommandTimeout }

// ShutdownError is returned to every pending command when Stop is called
// (spec §4.2 Shutdown contract step 1).
type ShutdownError struct{}

func (e *ShutdownError) Error() string { return "gdbmi: instance is shutting down" }

// ProcessSpawnFailedError wraps a failure to start the GDB child process
// (spec §7 ProcessSpawnFailed).
type ProcessSpawnFailedError struct {
	Path string
	Err  error
}

func (e *ProcessSpawnFailedError) Error() string {
	return fmt.Sprintf("gdbmi: failed to spawn %q: %v", e.Path, e.Err)
}

func (e *ProcessSpawnFailedError) Unwrap() error { return e.Err }

func (e *ProcessSpawnFailedError) Is(target error) bool { return target == mi.ErrProcessSpawnFailed }

// TerminatedError is returned by SendCommand once the instance has
// observed its child process exit (spec §4.2 "Failure semantics").
type TerminatedError struct{}

func (e *TerminatedError) Error() string { return "gdbmi: instance has terminated" }
