package session

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/google/go-dap"

	"github.com/mcu-debug/mcu-debug-core/internal/breakpoints"
	"github.com/mcu-debug/mcu-debug-core/internal/variables"
)

// encodeFrameID and decodeFrameID fold a (threadId, frameId) pair the
// client never sees separately into the single int DAP's
// stackFrame.id/scopes.frameId/evaluate.frameId fields carry, using the
// same (thread_id, frame_id, scope) packing as a frame scope handle
// (spec §3 "Variable reference"). DAP's StackFrame.Id has no scope of
// its own, so it is packed with a fixed sentinel scope; decodeFrameID
// discards that field and only ever returns thread/frame.
const frameIDSentinelScope = variables.ScopeGlobal

func encodeFrameID(threadID, frameID int) int {
	return int(variables.EncodeFrameReference(uint32(threadID), uint32(frameID), frameIDSentinelScope))
}
func decodeFrameID(id int) (threadID, frameID uint32) {
	threadID, frameID, _ = variables.DecodeFrameReference(uint64(id))
	return threadID, frameID
}

func (s *Session) onThreadsRequest(req *dap.ThreadsRequest) {
	info, err := s.cmds.ThreadInfo(s.ctx)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.ThreadsResponse{Response: *newResponse(req.Seq, req.Command)}
	for _, t := range info.Threads {
		name := t.TargetID
		if name == "" {
			name = "Thread " + t.ID
		}
		resp.Body.Threads = append(resp.Body.Threads, dap.Thread{
			Id:   atoiOr(t.ID, 0),
			Name: name,
		})
	}
	s.send(resp)
}

func (s *Session) onStackTraceRequest(req *dap.StackTraceRequest) {
	threadID := strconv.Itoa(req.Arguments.ThreadId)
	frames, err := s.cmds.StackListFrames(s.ctx, threadID)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}

	start := req.Arguments.StartFrame
	levels := req.Arguments.Levels
	if start < 0 || start > len(frames) {
		start = 0
	}
	end := len(frames)
	if levels > 0 && start+levels < end {
		end = start + levels
	}

	resp := &dap.StackTraceResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.TotalFrames = len(frames)
	for _, f := range frames[start:end] {
		sf := dap.StackFrame{
			Id:   encodeFrameID(req.Arguments.ThreadId, f.Level),
			Name: f.Func,
			Line: f.Line,
		}
		if f.FullName != "" {
			sf.Source = &dap.Source{Name: f.File, Path: f.FullName}
		}
		resp.Body.StackFrames = append(resp.Body.StackFrames, sf)
	}
	s.send(resp)
}

func (s *Session) onScopesRequest(req *dap.ScopesRequest) {
	threadID, frameID := decodeFrameID(req.Arguments.FrameId)
	handles := s.vars.Scopes(threadID, frameID)

	resp := &dap.ScopesResponse{Response: *newResponse(req.Seq, req.Command)}
	for _, h := range handles {
		resp.Body.Scopes = append(resp.Body.Scopes, dap.Scope{
			Name:               h.Name,
			VariablesReference: int(h.Handle),
			Expensive:          h.Name == "Registers",
		})
	}
	s.send(resp)
}

func (s *Session) onVariablesRequest(req *dap.VariablesRequest) {
	objs, err := s.vars.Variables(s.ctx, uint64(req.Arguments.VariablesReference))
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.VariablesResponse{Response: *newResponse(req.Seq, req.Command)}
	for _, o := range objs {
		resp.Body.Variables = append(resp.Body.Variables, variableObjectToDAP(o))
	}
	s.send(resp)
}

func variableObjectToDAP(o *variables.VariableObject) dap.Variable {
	v := dap.Variable{
		Name:         o.Name,
		Value:        o.Value,
		Type:         o.Type,
		EvaluateName: o.EvaluateName,
	}
	if o.NumChild > 0 || o.Dynamic {
		v.VariablesReference = int(o.Handle)
	}
	return v
}

func (s *Session) onSetVariableRequest(req *dap.SetVariableRequest) {
	obj, err := s.vars.SetValue(s.ctx, uint64(req.Arguments.VariablesReference), req.Arguments.Value)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.SetVariableResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Value = obj.Value
	resp.Body.Type = obj.Type
	if obj.NumChild > 0 {
		resp.Body.VariablesReference = int(obj.Handle)
	}
	s.send(resp)
}

func (s *Session) onSetExpressionRequest(req *dap.SetExpressionRequest) {
	threadID, frameID, haveFrame := frameArgOrNone(req.Arguments.FrameId)
	obj, err := s.vars.SetExpressionValue(s.ctx, req.Arguments.Expression, req.Arguments.Value, threadID, frameID, haveFrame)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.SetExpressionResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Value = obj.Value
	resp.Body.Type = obj.Type
	if obj.NumChild > 0 {
		resp.Body.VariablesReference = int(obj.Handle)
	}
	s.send(resp)
}

func frameArgOrNone(frameID int) (threadID, frame uint32, haveFrame bool) {
	if frameID == 0 {
		return 0, 0, false
	}
	t, f := decodeFrameID(frameID)
	return t, f, true
}

func (s *Session) onEvaluateRequest(req *dap.EvaluateRequest) {
	threadID, frameID, haveFrame := frameArgOrNone(req.Arguments.FrameId)
	obj, err := s.vars.CreateWatch(s.ctx, req.Arguments.Expression, threadID, frameID, haveFrame)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.EvaluateResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Result = obj.Value
	resp.Body.Type = obj.Type
	if obj.NumChild > 0 {
		resp.Body.VariablesReference = int(obj.Handle)
	}
	s.send(resp)
}

func (s *Session) onContinueRequest(req *dap.ContinueRequest) {
	if err := s.requireState(req.Command, StateStopped); err != nil {
		s.sendError(req.Seq, req.Command, errTargetBusy(req.Command))
		return
	}
	s.continueAll(s.ctx)
	resp := &dap.ContinueResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.AllThreadsContinued = true
	s.send(resp)
}

func (s *Session) onStepRequest(requestSeq int, command string, step func(context.Context) error) {
	if err := s.requireState(command, StateStopped); err != nil {
		s.sendError(requestSeq, command, errTargetBusy(command))
		return
	}
	if err := step(s.ctx); err != nil {
		s.sendError(requestSeq, command, err)
		return
	}
	s.send(newResponseFor(requestSeq, command))
}

func newResponseFor(requestSeq int, command string) dap.Message {
	switch command {
	case "next":
		return &dap.NextResponse{Response: *newResponse(requestSeq, command)}
	case "stepIn":
		return &dap.StepInResponse{Response: *newResponse(requestSeq, command)}
	case "stepOut":
		return &dap.StepOutResponse{Response: *newResponse(requestSeq, command)}
	case "pause":
		return &dap.PauseResponse{Response: *newResponse(requestSeq, command)}
	default:
		return newResponse(requestSeq, command)
	}
}

func (s *Session) onNextRequest(req *dap.NextRequest) {
	s.onStepRequest(req.Seq, req.Command, s.cmds.ExecNext)
}

func (s *Session) onStepInRequest(req *dap.StepInRequest) {
	s.onStepRequest(req.Seq, req.Command, s.cmds.ExecStep)
}

func (s *Session) onStepOutRequest(req *dap.StepOutRequest) {
	s.onStepRequest(req.Seq, req.Command, s.cmds.ExecFinish)
}

func (s *Session) onPauseRequest(req *dap.PauseRequest) {
	if err := s.requireState(req.Command, StateRunning); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	if err := s.cmds.ExecInterrupt(s.ctx); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.send(&dap.PauseResponse{Response: *newResponse(req.Seq, req.Command)})
}

func (s *Session) onSetBreakpointsRequest(req *dap.SetBreakpointsRequest) {
	path := ""
	if req.Arguments.Source.Path != "" {
		path = req.Arguments.Source.Path
	}
	reqs := make([]breakpoints.SourceBreakpoint, 0, len(req.Arguments.Breakpoints))
	for _, b := range req.Arguments.Breakpoints {
		reqs = append(reqs, breakpoints.SourceBreakpoint{
			Line:          b.Line,
			Condition:     b.Condition,
			HasCondition:  b.Condition != "",
			HitCondition:  b.HitCondition,
			HasHitCond:    b.HitCondition != "",
			LogMessage:    b.LogMessage,
			HasLogMessage: b.LogMessage != "",
		})
	}
	results, err := s.bps.SetSourceBreakpoints(s.ctx, path, reqs)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.SetBreakpointsResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Breakpoints = breakpointResultsToDAP(results)
	s.send(resp)
}

func breakpointResultsToDAP(results []breakpoints.Result) []dap.Breakpoint {
	out := make([]dap.Breakpoint, 0, len(results))
	for _, r := range results {
		out = append(out, dap.Breakpoint{
			Id:       atoiOr(r.GdbID, 0),
			Verified: r.Verified,
			Line:     r.Line,
			Message:  r.Message,
		})
	}
	return out
}

func (s *Session) onSetFunctionBreakpointsRequest(req *dap.SetFunctionBreakpointsRequest) {
	reqs := make([]breakpoints.FunctionBreakpoint, 0, len(req.Arguments.Breakpoints))
	for _, b := range req.Arguments.Breakpoints {
		reqs = append(reqs, breakpoints.FunctionBreakpoint{
			Name:         b.Name,
			Condition:    b.Condition,
			HasCondition: b.Condition != "",
			HitCondition: b.HitCondition,
			HasHitCond:   b.HitCondition != "",
		})
	}
	results, err := s.bps.SetFunctionBreakpoints(s.ctx, reqs)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.SetFunctionBreakpointsResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Breakpoints = breakpointResultsToDAP(results)
	s.send(resp)
}

func (s *Session) onDataBreakpointInfoRequest(req *dap.DataBreakpointInfoRequest) {
	name, err := s.vars.CanonicalEvaluateName(s.ctx, uint64(req.Arguments.VariablesReference))
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.DataBreakpointInfoResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.DataId = name
	resp.Body.Description = req.Arguments.Name
	resp.Body.AccessTypes = []string{"read", "write", "readWrite"}
	resp.Body.CanPersist = false
	s.send(resp)
}

func (s *Session) onSetDataBreakpointsRequest(req *dap.SetDataBreakpointsRequest) {
	reqs := make([]breakpoints.DataBreakpoint, 0, len(req.Arguments.Breakpoints))
	for _, b := range req.Arguments.Breakpoints {
		reqs = append(reqs, breakpoints.DataBreakpoint{
			DataID: b.DataId,
			Access: dataAccessMode(b.AccessType),
		})
	}
	results, err := s.bps.SetDataBreakpoints(s.ctx, reqs)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.SetDataBreakpointsResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Breakpoints = breakpointResultsToDAP(results)
	s.send(resp)
}

func dataAccessMode(accessType string) breakpoints.AccessMode {
	switch accessType {
	case "read":
		return breakpoints.AccessRead
	case "write":
		return breakpoints.AccessWrite
	default:
		return breakpoints.AccessReadWrite
	}
}

func (s *Session) onReadMemoryRequest(req *dap.ReadMemoryRequest) {
	addr := parseMemoryReference(req.Arguments.MemoryReference) + uint64(req.Arguments.Offset)
	data, err := s.mem.ReadMemory(s.ctx, addr, req.Arguments.Count)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.ReadMemoryResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Address = "0x" + strconv.FormatUint(addr, 16)
	resp.Body.Data = base64.StdEncoding.EncodeToString(data)
	s.send(resp)
}

func (s *Session) onWriteMemoryRequest(req *dap.WriteMemoryRequest) {
	addr := parseMemoryReference(req.Arguments.MemoryReference) + uint64(req.Arguments.Offset)
	data, err := base64.StdEncoding.DecodeString(req.Arguments.Data)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	if err := s.mem.WriteMemory(s.ctx, addr, data); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	resp := &dap.WriteMemoryResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.BytesWritten = len(data)
	s.send(resp)
}

func parseMemoryReference(ref string) uint64 {
	s := ref
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *Session) onDisconnectRequest(req *dap.DisconnectRequest) {
	s.finish(req.Arguments.TerminateDebuggee)
	s.send(&dap.DisconnectResponse{Response: *newResponse(req.Seq, req.Command)})
}

func (s *Session) onTerminateRequest(req *dap.TerminateRequest) {
	s.finish(true)
	s.send(&dap.TerminateResponse{Response: *newResponse(req.Seq, req.Command)})
}

// finish implements the client-initiated teardown path (spec §4.4
// "Terminating"): if the target is mid-run, interrupt it first so the
// breakpoint/var cleanup commands below have a halted target to talk to,
// without leaking a client-visible "stopped" event for that interrupt
// (spec §8 scenario 6).
func (s *Session) finish(terminateDebuggee bool) {
	wasRunning := s.State() == StateRunning
	s.setState(StateTerminating)
	if wasRunning {
		s.withSuppressedStops(func() {
			_ = s.cmds.ExecInterrupt(s.ctx)
		})
	}
	s.vars.DeleteAll(s.ctx)
	_ = s.bps.DeleteAll(s.ctx)
	if terminateDebuggee && s.gdb != nil {
		_, _ = s.cmds.Send(s.ctx, "-exec-abort")
	}
	s.Shutdown()
	s.setState(StateTerminated)
}
