package rtt

import (
	"fmt"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

// AbortError is returned when the control block could not be located
// within the configured retry budget, or reported implausible channel
// counts; RTT is disabled for the session but debugging continues (spec
// §7 "RttAbort").
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string { return fmt.Sprintf("rtt: aborted: %s", e.Reason) }

func (e *AbortError) Is(target error) bool { return target == mi.ErrRttAbort }

// DisabledError describes an engine that has aborted or been disposed.
// The Engine methods in this package do not return it.
type DisabledError struct{}

func (e *DisabledError) Error() string { return "rtt: engine is disabled" }
