package mi

import "errors"

// Taxonomy sentinels (spec §7 "Error taxonomy"). Every component that can
// raise one of these conditions defines its own concrete error type
// carrying request-specific context (gdbmi.TimeoutError, rtt.AbortError,
// variables.NoSuchVariableError, ...) and implements
// Is(target error) bool against the matching sentinel here, so a caller
// anywhere in the module can test with errors.Is(err, mi.ErrCommandTimeout)
// without importing the raising package's concrete type.
var (
	ErrProcessSpawnFailed     = errors.New("process spawn failed")
	ErrCommandTimeout         = errors.New("command timed out")
	ErrMalformedRecord        = errors.New("malformed mi record")
	ErrBreakpointInsertFailed = errors.New("breakpoint insert failed")
	ErrTargetBusy             = errors.New("target busy")
	ErrNoSuchVariable         = errors.New("no such variable")
	ErrInvalidReference       = errors.New("invalid reference")
	ErrRttAbort               = errors.New("rtt aborted")
)
