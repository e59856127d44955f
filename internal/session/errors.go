package session

import (
	"errors"
	"fmt"

	"github.com/google/go-dap"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

// DAP error response ids (spec §7 "Propagation policy"), grounded on the
// docker-buildx monitor/dap unsupportedError/failedError/unknownError
// taxonomy, extended with the one machine-readable id the spec calls out
// by name: "notStopped" for TargetBusy (spec §7 "response message set to
// notStopped so the editor can retry after a stop").
const (
	errIDUnsupported = 1000
	errIDFailed      = 1001
	errIDNotStopped  = 1002
	errIDUnknown     = 9999
)

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: 0, Type: "response"},
		Command:         command,
		RequestSeq:      requestSeq,
		Success:         true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: 0, Type: "event"},
		Event:           event,
	}
}

// wrapSessionErr prefixes err's message with "mcu-debug:" exactly as spec
// §7 requires at the session boundary ("converts them into DAP error
// responses with a short message prefixed mcu-debug:").
func wrapSessionErr(err error) string {
	return fmt.Sprintf("mcu-debug: %v", err)
}

// errorIDFor classifies err against the mi sentinel taxonomy (spec §7) so
// sendError can pick the right DAP error id/showUser pair.
func errorIDFor(err error) int {
	switch {
	case errors.Is(err, mi.ErrTargetBusy):
		return errIDNotStopped
	case errors.Is(err, mi.ErrNoSuchVariable), errors.Is(err, mi.ErrInvalidReference):
		return errIDFailed
	case errors.Is(err, mi.ErrCommandTimeout), errors.Is(err, mi.ErrProcessSpawnFailed):
		return errIDFailed
	default:
		return errIDUnknown
	}
}

// sendError answers requestSeq/command with a DAP ErrorResponse carrying
// err's mcu-debug-prefixed message, or "notStopped" for a TargetBusy
// error; Body.Error.Format always carries the prefixed text (spec §7).
func (s *Session) sendError(requestSeq int, command string, err error) {
	r := &dap.ErrorResponse{}
	r.Response = *newResponse(requestSeq, command)
	r.Success = false
	id := errorIDFor(err)
	r.Message = wrapSessionErr(err)
	if id == errIDNotStopped {
		r.Message = "notStopped"
	}
	r.Body.Error = &dap.ErrorMessage{
		Id:       id,
		Format:   wrapSessionErr(err),
		ShowUser: id != errIDNotStopped,
	}
	s.send(r)
	if s.logger.Verbose() {
		s.logf("session: stderr: %s", r.Message)
	}
}

// sendUnsupported answers a request this module intentionally does not
// implement (e.g. reverse debugging, spec §1 Non-goals) with an
// "unsupported" error, matching the docker-buildx reference's
// sendUnsupportedResponse idiom.
func (s *Session) sendUnsupported(requestSeq int, command string) {
	r := &dap.ErrorResponse{}
	r.Response = *newResponse(requestSeq, command)
	r.Success = false
	r.Message = "unsupported"
	r.Body.Error = &dap.ErrorMessage{Id: errIDUnsupported, Format: fmt.Sprintf("mcu-debug: %s is not supported", command)}
	s.send(r)
}
