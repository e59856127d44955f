package session

import (
	"encoding/json"
	"os"

	"github.com/google/go-dap"
)

// onCustomCommand dispatches the fixed set of custom DAP requests this
// module adds (spec §6 "Custom requests") by command name.
func (s *Session) onCustomCommand(req *customCommand) {
	switch req.Command {
	case "execute-command":
		s.onExecuteCommand(req)
	case "reset-device":
		s.onResetDevice(req)
	case "set-var-format":
		s.onSetVarFormat(req)
	case "load-function-symbols":
		s.onLoadFunctionSymbols(req)
	case "readMemoryLive":
		s.onReadMemoryLive(req)
	case "writeMemoryLive":
		s.onWriteMemoryLive(req)
	case "evaluateLive":
		s.onEvaluateLive(req)
	case "variablesLive":
		s.onVariablesLive(req)
	case "setVariableLive":
		s.onSetVariableLive(req)
	case "setExpressionLive":
		s.onSetExpressionLive(req)
	case "deleteLiveGdbVariables":
		s.onDeleteLiveGdbVariables(req)
	case "registerClient":
		s.onRegisterClient(req)
	case "rtt-poll":
		s.onRttPoll(req)
	case "swo-connected":
		s.onSwoConnected(req)
	case "custom-stop-debugging":
		s.onCustomStopDebugging(req)
	case "notified-children-to-terminate":
		s.onNotifiedChildrenToTerminate(req)
	default:
		s.sendUnsupported(req.Seq, req.Command)
	}
}

func (s *Session) sendCustomResponse(req *customCommand, body interface{}) {
	r := &dap.Response{}
	r.ProtocolMessage = dap.ProtocolMessage{Seq: 0, Type: "response"}
	r.RequestSeq = req.Seq
	r.Command = req.Command
	r.Success = true
	if body == nil {
		s.send(r)
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.send(&customResponse{Response: *r, Body: raw})
}

// customResponse is the wire shape sent back for a customCommand: a
// plain dap.Response whose Body is this module's own payload rather than
// one of go-dap's typed bodies.
type customResponse struct {
	dap.Response
	Body json.RawMessage `json:"body,omitempty"`
}

// onExecuteCommand implements spec §4.4's command interpolation rule and
// §6's "execute-command {command} -> {miOutput}".
func (s *Session) onExecuteCommand(req *customCommand) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	miCmd, isBareContinue := interpolateCommand(args.Command)
	if isBareContinue {
		s.continueAll(s.ctx)
		s.sendCustomResponse(req, struct {
			MiOutput string `json:"miOutput"`
		}{""})
		return
	}
	result, err := s.cmds.Send(s.ctx, miCmd)
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.sendCustomResponse(req, struct {
		MiOutput string `json:"miOutput"`
	}{string(result.Class)})
}

// onResetDevice implements §6 "reset-device {} -> void" via the
// ServerController's reset command list, halt-apply-resume style so a
// running target is interrupted first and resumed after (mirrors
// internal/breakpoints' discipline, spec §4.3).
func (s *Session) onResetDevice(req *customCommand) {
	wasRunning := s.State() == StateRunning
	var resetErr error
	s.withSuppressedStops(func() {
		if wasRunning {
			_ = s.cmds.ExecInterrupt(s.ctx)
		}
		for _, cmd := range s.serverCtl.ResetCommands() {
			if _, err := s.cmds.Send(s.ctx, cmd); err != nil {
				resetErr = err
				return
			}
		}
	})
	if resetErr != nil {
		s.sendError(req.Seq, req.Command, resetErr)
		return
	}
	if wasRunning {
		s.continueAll(s.ctx)
	}
	s.sendCustomResponse(req, nil)
}

// onSetVarFormat implements §6 "set-var-format {hex: bool} -> void".
func (s *Session) onSetVarFormat(req *customCommand) {
	var args struct {
		Hex bool `json:"hex"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	if args.Hex {
		s.vars.SetRegisterFormat("x")
	} else {
		s.vars.SetRegisterFormat("d")
	}
	s.sendCustomResponse(req, nil)
}

// onLoadFunctionSymbols implements §6 "load-function-symbols {} ->
// {file: path}": dumps SymbolIndex.FunctionRanges() as JSON to a temp
// file and returns its path, since the editor reads function symbols as
// a file rather than over the DAP channel directly.
func (s *Session) onLoadFunctionSymbols(req *customCommand) {
	ranges, err := s.symbolIndex.FunctionRanges()
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	f, err := os.CreateTemp("", "mcu-debug-functions-*.json")
	if err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(ranges); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.sendCustomResponse(req, struct {
		File string `json:"file"`
	}{f.Name()})
}
