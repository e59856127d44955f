package variables

import (
	"fmt"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

// NoSuchVariableError is returned when a DAP request names a variable
// handle the engine never issued or has already released (spec §7
// "NoSuchVariable").
type NoSuchVariableError struct {
	Handle uint64
}

func (e *NoSuchVariableError) Error() string {
	return fmt.Sprintf("variables: unknown variable handle %d", e.Handle)
}

func (e *NoSuchVariableError) Is(target error) bool { return target == mi.ErrNoSuchVariable }

// InvalidReferenceError is returned when a DAP "variables" request names a
// frame-scope handle (the "variablesReference" the client echoes back from
// a prior "scopes" response) that the engine does not recognize (spec §7
// "InvalidReference").
type InvalidReferenceError struct {
	Ref uint64
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("variables: invalid variables reference %d", e.Ref)
}

func (e *InvalidReferenceError) Is(target error) bool { return target == mi.ErrInvalidReference }
