package session

import (
	"encoding/json"

	"github.com/google/go-dap"
)

// customEvent is the wire shape for an event this module emits that
// isn't one of go-dap's typed events (e.g. "liveVariablesUpdated"),
// mirroring customResponse's approach to custom response bodies.
type customEvent struct {
	dap.Event
	Body json.RawMessage `json:"body,omitempty"`
}

// onRttPoll answers §6's "rtt-poll": a diagnostic query for RttEngine's
// current phase, used by editors that show a connection indicator rather
// than driving the poll loop themselves (the loop runs on its own timer
// regardless, spec §4.7).
func (s *Session) onRttPoll(req *customCommand) {
	if s.rtt == nil {
		s.sendCustomResponse(req, struct {
			Phase string `json:"phase"`
		}{"disabled"})
		return
	}
	s.sendCustomResponse(req, struct {
		Phase string `json:"phase"`
	}{s.rtt.Phase().String()})
}

// onSwoConnected answers §6's "swo-connected": whether the
// ServerController's SwoRttCommands were issued for this launch (actual
// SWO byte decoding is outside this module's scope; the vendor-specific
// capture/forward path lives behind ServerController, spec §1 Non-goals).
func (s *Session) onSwoConnected(req *customCommand) {
	connected := s.args.Swo.Enabled && s.live != nil
	s.sendCustomResponse(req, struct {
		Connected bool `json:"connected"`
	}{connected})
}

// onCustomStopDebugging answers §6's "custom-stop-debugging": an
// editor-initiated hard stop distinct from the standard "disconnect"/
// "terminate" requests (no TerminateDebuggee ambiguity to resolve, always
// tears the debuggee down).
func (s *Session) onCustomStopDebugging(req *customCommand) {
	s.finish(true)
	s.sendCustomResponse(req, nil)
}

// onNotifiedChildrenToTerminate acknowledges §6's
// "notified-children-to-terminate": the editor's confirmation that any
// client-side child processes it spawned alongside the debug session
// have been told to exit, so it's safe for this module to proceed with
// its own teardown without a races-with-the-editor's-cleanup window.
func (s *Session) onNotifiedChildrenToTerminate(req *customCommand) {
	s.logf("session: client confirmed child processes notified to terminate")
	s.sendCustomResponse(req, nil)
}
