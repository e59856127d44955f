package session

import (
	"context"
	"time"

	"github.com/google/go-dap"

	"github.com/mcu-debug/mcu-debug-core/internal/breakpoints"
	"github.com/mcu-debug/mcu-debug-core/internal/config"
	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/livewatch"
	"github.com/mcu-debug/mcu-debug-core/internal/membridge"
	"github.com/mcu-debug/mcu-debug-core/internal/micmds"
	"github.com/mcu-debug/mcu-debug-core/internal/rtt"
	"github.com/mcu-debug/mcu-debug-core/internal/variables"
)

func (s *Session) onInitializeRequest(req *dap.InitializeRequest) {
	resp := &dap.InitializeResponse{Response: *newResponse(req.Seq, req.Command)}
	// Capabilities required by spec §6: "configurationDone,
	// hit-conditional, conditional, log-points, function breakpoints,
	// evaluate-for-hovers, set variable, set expression, terminate,
	// goto-targets, suspend-debuggee, value-formatting, data
	// breakpoints, read/write memory".
	resp.Body.SupportsConfigurationDoneRequest = true
	resp.Body.SupportsHitConditionalBreakpoints = true
	resp.Body.SupportsConditionalBreakpoints = true
	resp.Body.SupportsLogPoints = true
	resp.Body.SupportsFunctionBreakpoints = true
	resp.Body.SupportsEvaluateForHovers = true
	resp.Body.SupportsSetVariable = true
	resp.Body.SupportsSetExpression = true
	resp.Body.SupportTerminateDebuggee = true
	resp.Body.SupportsTerminateRequest = true
	resp.Body.SupportsGotoTargetsRequest = true
	resp.Body.SupportSuspendDebuggee = true
	resp.Body.SupportsValueFormattingOptions = true
	resp.Body.SupportsDataBreakpoints = true
	resp.Body.SupportsReadMemoryRequest = true
	resp.Body.SupportsWriteMemoryRequest = true
	s.send(resp)
}

// onLaunchOrAttach drives Idle -> Launching -> Configured (spec §4.4):
// normalize args, start the GDB child in the foreground, run the
// ServerController's connect/launch-or-attach command lists, wire every
// component, then answer the request and emit "initialized".
func (s *Session) onLaunchOrAttach(requestSeq int, command string, rawArgs []byte, attach bool) {
	if err := s.requireState(command, StateIdle); err != nil {
		s.sendError(requestSeq, command, err)
		return
	}
	s.setState(StateLaunching)

	args, err := config.DecodeLaunchArgs(rawArgs)
	if err != nil {
		s.sendError(requestSeq, command, err)
		return
	}
	args.Attach = attach
	s.args = args

	initCmds := append([]string{}, s.serverCtl.ConnectCommands()...)
	if attach {
		initCmds = append(initCmds, s.serverCtl.AttachCommands()...)
	} else {
		initCmds = append(initCmds, s.serverCtl.LaunchCommands()...)
	}

	s.gdb = gdbmi.New(s.logger.Verbosef)
	if err := s.gdb.Start(s.ctx, args.GdbExecutable, nil, args.Cwd, initCmds); err != nil {
		s.setState(StateTerminating)
		s.sendError(requestSeq, command, err)
		return
	}

	s.cmds = micmds.New(s.gdb)
	s.mem = membridge.New(s.cmds)
	s.bps = breakpoints.New(s.cmds, s.gdb, s.logger.Verbosef)
	s.vars = variables.New(s.cmds, s.logger.Verbosef)
	s.vars.SetRegisterFormat("x")

	if args.Rtt.Enabled {
		s.live = livewatch.New(gdbmi.New(s.logger.Verbosef), s.logger.Verbosef)
		liveCmds := append([]string{}, s.serverCtl.ConnectCommands()...)
		liveCmds = append(liveCmds, s.serverCtl.SwoRttCommands()...)
		if err := s.live.Start(s.ctx, args.GdbExecutable, nil, args.Cwd, liveCmds); err != nil {
			s.logf("session: livewatch start failed, RTT disabled: %v", err)
		} else {
			// The control block isn't read until setupChannels runs inside
			// rtt.Engine, so numUp+numDown isn't known yet (spec §4.7
			// "Multiplexing": one listener per channel) — hand the real
			// allocator through instead of pre-reserving a fixed count.
			s.rtt = rtt.New(s.live, s.gdb, s.ports, rtt.Config{
				CBAddr:       args.Rtt.Address,
				SearchString: "SEGGER RTT",
				PollInterval: time.Duration(args.Rtt.PollIntervalMs) * time.Millisecond,
			}, s.logger.Verbosef)
			s.rtt.Start(s.ctx)
		}
	}

	go s.eventLoop()

	s.setState(StateConfigured)
	s.sendLaunchResponse(requestSeq, command)
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
}

func (s *Session) sendLaunchResponse(requestSeq int, command string) {
	if command == "attach" {
		s.send(&dap.AttachResponse{Response: *newResponse(requestSeq, command)})
		return
	}
	s.send(&dap.LaunchResponse{Response: *newResponse(requestSeq, command)})
}

// onConfigurationDoneRequest implements Configured -> Running|Stopped
// (spec §4.4: "execute session-mode commands; break-after-reset =>
// Stopped; run-to-entry-point => set temp breakpoint, continue; noDebug
// => continue"). Precedence decision (spec §9 Open Question, recorded in
// DESIGN.md: the three modes are not defined as mutually exclusive by the
// source): mutually exclusive, checked in this order: noDebug (always
// just continues, no breakpoints matter) > runToEntryPoint (temp
// breakpoint at entry, continue) > breakAfterReset (stay stopped).
func (s *Session) onConfigurationDoneRequest(req *dap.ConfigurationDoneRequest) {
	if err := s.requireState(req.Command, StateConfigured); err != nil {
		s.sendError(req.Seq, req.Command, err)
		return
	}
	s.mu.Lock()
	s.configurationDoneReceived = true
	s.mu.Unlock()

	s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(req.Seq, req.Command)})

	switch {
	case s.args.NoDebug:
		s.continueAll(context.Background())
	case s.args.RunToEntryPoint:
		if _, err := s.cmds.Send(s.ctx, `-break-insert -t main`); err != nil {
			s.logf("session: run-to-entry-point temp breakpoint failed: %v", err)
		}
		s.continueAll(context.Background())
	case s.args.BreakAfterReset:
		s.setState(StateStopped)
	default:
		s.continueAll(context.Background())
	}
}

func (s *Session) continueAll(ctx context.Context) {
	s.mu.Lock()
	if s.continuing {
		s.mu.Unlock()
		return
	}
	s.continuing = true
	s.mu.Unlock()

	if err := s.cmds.ExecContinue(ctx, true); err != nil {
		s.logf("session: -exec-continue --all failed: %v", err)
		s.mu.Lock()
		s.continuing = false
		s.mu.Unlock()
	}
}

