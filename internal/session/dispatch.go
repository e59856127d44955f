package session

import (
	"github.com/google/go-dap"
)

// handle is Transport's per-message entry point (spec §6 "External
// interfaces"). It type-switches over every standard DAP request this
// module answers plus the *customCommand wire shape transport.go routes
// unrecognized-to-go-dap command names into, mirroring the docker-buildx
// reference's handle() shape but adding the custom-command branch that
// reference doesn't need.
func (s *Session) handle(msg dap.Message) error {
	switch req := msg.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(req)
	case *dap.LaunchRequest:
		s.onLaunchOrAttach(req.Seq, req.Command, req.Arguments, false)
	case *dap.AttachRequest:
		s.onLaunchOrAttach(req.Seq, req.Command, req.Arguments, true)
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(req)
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(req)
	case *dap.SetFunctionBreakpointsRequest:
		s.onSetFunctionBreakpointsRequest(req)
	case *dap.DataBreakpointInfoRequest:
		s.onDataBreakpointInfoRequest(req)
	case *dap.SetDataBreakpointsRequest:
		s.onSetDataBreakpointsRequest(req)
	case *dap.ContinueRequest:
		s.onContinueRequest(req)
	case *dap.NextRequest:
		s.onNextRequest(req)
	case *dap.StepInRequest:
		s.onStepInRequest(req)
	case *dap.StepOutRequest:
		s.onStepOutRequest(req)
	case *dap.PauseRequest:
		s.onPauseRequest(req)
	case *dap.StackTraceRequest:
		s.onStackTraceRequest(req)
	case *dap.ScopesRequest:
		s.onScopesRequest(req)
	case *dap.VariablesRequest:
		s.onVariablesRequest(req)
	case *dap.SetVariableRequest:
		s.onSetVariableRequest(req)
	case *dap.SetExpressionRequest:
		s.onSetExpressionRequest(req)
	case *dap.EvaluateRequest:
		s.onEvaluateRequest(req)
	case *dap.ThreadsRequest:
		s.onThreadsRequest(req)
	case *dap.ReadMemoryRequest:
		s.onReadMemoryRequest(req)
	case *dap.WriteMemoryRequest:
		s.onWriteMemoryRequest(req)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(req)
	case *dap.TerminateRequest:
		s.onTerminateRequest(req)
	case *dap.GotoTargetsRequest:
		s.onGotoTargetsRequest(req)
	case *customCommand:
		s.onCustomCommand(req)
	case *dap.Request:
		s.sendUnsupported(req.Seq, req.Command)
	default:
		s.logf("session: unhandled message type %T", msg)
	}
	return nil
}

// onGotoTargetsRequest answers with an empty target list: non-stop/
// reverse goto execution is a Non-goal (spec §1), but the capability is
// still advertised (spec §6) so clients that probe it before offering
// "restart frame" degrade gracefully instead of erroring.
func (s *Session) onGotoTargetsRequest(req *dap.GotoTargetsRequest) {
	resp := &dap.GotoTargetsResponse{Response: *newResponse(req.Seq, req.Command)}
	s.send(resp)
}
