package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-dap"
	"golang.org/x/sync/errgroup"
)

// customCommand is the wire shape of the custom DAP requests this module
// adds (spec §6 "Custom requests"). It is structurally identical to
// dap.Request (ProtocolMessage + Command + Arguments) but isn't one of
// the built-in command names requestFactories recognizes, so it's
// decoded directly against this struct instead (see DESIGN.md).
type customCommand struct {
	dap.ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

var customCommandNames = map[string]bool{
	"execute-command":                true,
	"reset-device":                   true,
	"set-var-format":                 true,
	"load-function-symbols":          true,
	"readMemoryLive":                 true,
	"writeMemoryLive":                true,
	"evaluateLive":                   true,
	"variablesLive":                  true,
	"setVariableLive":                true,
	"setExpressionLive":              true,
	"deleteLiveGdbVariables":         true,
	"registerClient":                 true,
	"rtt-poll":                       true,
	"swo-connected":                  true,
	"custom-stop-debugging":          true,
	"notified-children-to-terminate": true,
}

// readFrame reads one "Content-Length: N\r\n\r\n<N bytes of JSON>" framed
// message body, the same header framing DAP (and LSP) use on the wire.
// go-dap's own header/body split (the unexported half of its
// ReadProtocolMessage) isn't part of its public API, so this module owns
// framing itself rather than depend on an internal it can't call.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var length int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			n, err := strconv.Atoi(strings.TrimSpace(line[len("Content-Length:"):]))
			if err != nil {
				return nil, fmt.Errorf("session: bad Content-Length header %q: %w", line, err)
			}
			length = n
		}
	}
	if length == 0 {
		return nil, fmt.Errorf("session: missing Content-Length header")
	}
	content := make([]byte, length)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, err
	}
	return content, nil
}

// readMessage reads one framed DAP message from r. Requests whose
// "command" is one of this module's custom names decode directly into
// customCommand; everything else is decoded into the matching go-dap
// request type by this module's own dispatch table (go-dap's decoder is
// reached only through its combined ReadProtocolMessage, which can't be
// taught this module's custom command names, spec §6 "Custom requests").
func readMessage(r *bufio.Reader) (dap.Message, error) {
	content, err := readFrame(r)
	if err != nil {
		return nil, err
	}

	var peek struct {
		Type    string `json:"type"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal(content, &peek); err != nil {
		return nil, fmt.Errorf("session: decoding protocol message: %w", err)
	}

	if peek.Type != "request" {
		return nil, fmt.Errorf("session: unsupported message type %q", peek.Type)
	}

	if customCommandNames[peek.Command] {
		var req customCommand
		if err := json.Unmarshal(content, &req); err != nil {
			return nil, fmt.Errorf("session: decoding custom request %q: %w", peek.Command, err)
		}
		return &req, nil
	}

	factory, ok := requestFactories[peek.Command]
	if !ok {
		var req dap.Request
		if err := json.Unmarshal(content, &req); err != nil {
			return nil, fmt.Errorf("session: decoding request %q: %w", peek.Command, err)
		}
		return &req, nil
	}
	req := factory()
	if err := json.Unmarshal(content, req); err != nil {
		return nil, fmt.Errorf("session: decoding request %q: %w", peek.Command, err)
	}
	return req, nil
}

// requestFactories maps every standard DAP command this module's
// dispatch handles (dispatch.go's handle()) to a constructor for its
// go-dap request type. A command with no entry here decodes to a bare
// *dap.Request and lands on handle()'s sendUnsupported fallback.
var requestFactories = map[string]func() dap.Message{
	"initialize":             func() dap.Message { return &dap.InitializeRequest{} },
	"launch":                 func() dap.Message { return &dap.LaunchRequest{} },
	"attach":                 func() dap.Message { return &dap.AttachRequest{} },
	"configurationDone":      func() dap.Message { return &dap.ConfigurationDoneRequest{} },
	"setBreakpoints":         func() dap.Message { return &dap.SetBreakpointsRequest{} },
	"setFunctionBreakpoints": func() dap.Message { return &dap.SetFunctionBreakpointsRequest{} },
	"dataBreakpointInfo":     func() dap.Message { return &dap.DataBreakpointInfoRequest{} },
	"setDataBreakpoints":     func() dap.Message { return &dap.SetDataBreakpointsRequest{} },
	"continue":               func() dap.Message { return &dap.ContinueRequest{} },
	"next":                   func() dap.Message { return &dap.NextRequest{} },
	"stepIn":                 func() dap.Message { return &dap.StepInRequest{} },
	"stepOut":                func() dap.Message { return &dap.StepOutRequest{} },
	"pause":                  func() dap.Message { return &dap.PauseRequest{} },
	"stackTrace":             func() dap.Message { return &dap.StackTraceRequest{} },
	"scopes":                 func() dap.Message { return &dap.ScopesRequest{} },
	"variables":              func() dap.Message { return &dap.VariablesRequest{} },
	"setVariable":            func() dap.Message { return &dap.SetVariableRequest{} },
	"setExpression":          func() dap.Message { return &dap.SetExpressionRequest{} },
	"evaluate":               func() dap.Message { return &dap.EvaluateRequest{} },
	"threads":                func() dap.Message { return &dap.ThreadsRequest{} },
	"readMemory":             func() dap.Message { return &dap.ReadMemoryRequest{} },
	"writeMemory":            func() dap.Message { return &dap.WriteMemoryRequest{} },
	"disconnect":             func() dap.Message { return &dap.DisconnectRequest{} },
	"terminate":              func() dap.Message { return &dap.TerminateRequest{} },
	"gotoTargets":            func() dap.Message { return &dap.GotoTargetsRequest{} },
}

// Transport owns the DAP connection's read loop and serialized writes
// (spec §6 "Client-facing protocol: DAP over stdio (or TCP in server
// mode)"), grounded on the docker-buildx monitor/dap Server.Serve/send
// pair: a plain read loop dispatching each request concurrently via
// errgroup, and a mutex-guarded writer so concurrent responses/events
// never interleave on the wire.
type Transport struct {
	rw io.ReadWriter

	sendMu sync.Mutex
	r      *bufio.Reader
}

// NewTransport wraps rw (a stdio pipe pair or a net.Conn in TCP server
// mode, spec §6 "Ports").
func NewTransport(rw io.ReadWriter) *Transport {
	return &Transport{rw: rw, r: bufio.NewReader(rw)}
}

// Send writes one DAP message, serialized against concurrent writers.
func (t *Transport) Send(message dap.Message) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return dap.WriteProtocolMessage(t.rw, message)
}

// Serve reads messages until EOF or a fatal transport error, dispatching
// each to handle concurrently (one editor request must never block
// another from being answered, e.g. a slow "evaluate" shouldn't stall
// "threads").
func (t *Transport) Serve(handle func(dap.Message) error) error {
	var eg errgroup.Group
	for {
		msg, err := readMessage(t.r)
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		eg.Go(func() error { return handle(msg) })
	}
	return eg.Wait()
}
