package session

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/mcu-debug/mcu-debug-core/internal/variables"
)

// The live* handlers mirror their standard-DAP counterparts in
// standard.go but operate on the LiveWatch GdbInstance's independent
// VariableEngine, so RTT/SWO polling and the primary session's own
// stepping never contend for the same GDB child (spec §4.7, §6
// "Live-target custom requests").

func (s *Session) requireLiveWatch(req *customCommand) bool {
	if s.live == nil {
		s.sendError(req.Seq, req.Command, errLiveWatchDisabled)
		return false
	}
	return true
}

var errLiveWatchDisabled = &liveWatchDisabledError{}

type liveWatchDisabledError struct{}

func (e *liveWatchDisabledError) Error() string {
	return "session: rtt/liveWatch was not enabled for this launch"
}

func (s *Session) onReadMemoryLive(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	var args struct {
		MemoryReference string `json:"memoryReference"`
		Offset          int    `json:"offset"`
		Count           int    `json:"count"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	addr := parseMemoryReference(args.MemoryReference) + uint64(args.Offset)
	data, err := s.live.ReadMemory(s.ctx, addr, args.Count)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.sendCustomResponse(req, struct {
		Data string `json:"data"`
	}{base64.StdEncoding.EncodeToString(data)})
}

func (s *Session) onWriteMemoryLive(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	var args struct {
		MemoryReference string `json:"memoryReference"`
		Offset          int    `json:"offset"`
		Data            string `json:"data"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(args.Data)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	addr := parseMemoryReference(args.MemoryReference) + uint64(args.Offset)
	if err := s.live.WriteMemory(s.ctx, addr, data); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.sendCustomResponse(req, struct {
		BytesWritten int `json:"bytesWritten"`
	}{len(data)})
}

func (s *Session) onEvaluateLive(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	var args struct {
		Expression string `json:"expression"`
		FrameId    int    `json:"frameId"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	threadID, frameID, haveFrame := frameArgOrNone(args.FrameId)
	obj, err := s.live.Evaluate(s.ctx, args.Expression, threadID, frameID, haveFrame)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.sendCustomResponse(req, liveVariableResult(obj))
}

func (s *Session) onVariablesLive(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	var args struct {
		VariablesReference int `json:"variablesReference"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	objs, err := s.live.Variables(s.ctx, uint64(args.VariablesReference))
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	out := make([]liveVariable, 0, len(objs))
	for _, o := range objs {
		out = append(out, liveVariableResult(o))
	}
	s.sendCustomResponse(req, struct {
		Variables []liveVariable `json:"variables"`
	}{out})
}

func (s *Session) onSetVariableLive(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	var args struct {
		VariablesReference int    `json:"variablesReference"`
		Value               string `json:"value"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	obj, err := s.live.SetVariable(s.ctx, uint64(args.VariablesReference), args.Value)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.sendCustomResponse(req, liveVariableResult(obj))
}

func (s *Session) onSetExpressionLive(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	var args struct {
		Expression string `json:"expression"`
		Value      string `json:"value"`
		FrameId    int    `json:"frameId"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	threadID, frameID, haveFrame := frameArgOrNone(args.FrameId)
	obj, err := s.live.SetExpression(s.ctx, args.Expression, args.Value, threadID, frameID, haveFrame)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.sendCustomResponse(req, liveVariableResult(obj))
}

func (s *Session) onDeleteLiveGdbVariables(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	s.live.DeleteLiveGdbVariables(s.ctx)
	s.sendCustomResponse(req, nil)
}

// onRegisterClient implements §6 "registerClient": the editor asks to be
// pushed LiveWatch updates at a poll interval instead of re-issuing
// variablesLive itself. Forwards each tick as a "liveVariablesUpdated"
// custom event until the session shuts down or a new registerClient call
// replaces it: the session holds one registration at a time and
// unregisters the previous one. (livewatch.Engine.RegisterClient itself
// accepts several registrants sharing one refresh loop, whose interval is
// set by the first, internal/livewatch/registry.go.)
func (s *Session) onRegisterClient(req *customCommand) {
	if !s.requireLiveWatch(req) {
		return
	}
	var args struct {
		PollIntervalMs int `json:"pollIntervalMs"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	interval := time.Duration(args.PollIntervalMs) * time.Millisecond
	updates, unregister := s.live.RegisterClient(interval)

	s.liveClientMu.Lock()
	if s.liveUnregister != nil {
		s.liveUnregister()
	}
	s.liveUnregister = unregister
	s.liveClientMu.Unlock()

	go func() {
		for batch := range updates {
			out := make([]liveVariable, 0, len(batch))
			for _, o := range batch {
				out = append(out, liveVariableResult(o))
			}
			raw, err := json.Marshal(struct {
				Variables []liveVariable `json:"variables"`
			}{out})
			if err != nil {
				continue
			}
			s.send(&customEvent{Event: *newEvent("liveVariablesUpdated"), Body: raw})
		}
	}()

	s.sendCustomResponse(req, nil)
}

type liveVariable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type"`
	VariablesReference int    `json:"variablesReference"`
}

func liveVariableResult(o *variables.VariableObject) liveVariable {
	v := liveVariable{Name: o.Name, Value: o.Value, Type: o.Type}
	if o.NumChild > 0 || o.Dynamic {
		v.VariablesReference = int(o.Handle)
	}
	return v
}
