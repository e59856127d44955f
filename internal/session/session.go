package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/mcu-debug/mcu-debug-core/internal/breakpoints"
	"github.com/mcu-debug/mcu-debug-core/internal/config"
	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/livewatch"
	"github.com/mcu-debug/mcu-debug-core/internal/membridge"
	"github.com/mcu-debug/mcu-debug-core/internal/mi"
	"github.com/mcu-debug/mcu-debug-core/internal/micmds"
	"github.com/mcu-debug/mcu-debug-core/internal/portalloc"
	"github.com/mcu-debug/mcu-debug-core/internal/rtt"
	"github.com/mcu-debug/mcu-debug-core/internal/server"
	"github.com/mcu-debug/mcu-debug-core/internal/symbols"
	"github.com/mcu-debug/mcu-debug-core/internal/variables"
)

const stopAwaitTimeout = 5 * time.Second

// Session is the state machine plus DAP surface for one debug connection
// (spec §4.4). It owns every other component's lifetime: the GdbInstance,
// the breakpoint/variable engines, the optional RttEngine/LiveWatch, and
// the port allocator they share.
type Session struct {
	transport *Transport
	logger    *config.Logger
	logf      func(format string, args ...interface{})

	serverCtl   server.Controller
	symbolIndex symbols.Index

	mu    sync.Mutex
	state State

	// suppressStoppedEvents gates forwarding a GDB *stopped record into a
	// DAP "stopped" event during the session's own internal
	// interrupt/resume cycles (spec §4.4, §8 scenario 6
	// "Stop-event suppression").
	suppressStoppedEvents bool
	// continuing prevents a second continue request from racing ahead of
	// the *running async record the first one produces.
	continuing bool
	// configurationDoneReceived defers the first auto-continue (per the
	// session-mode commands applied in Configured -> Running/Stopped)
	// until the client has finished issuing its breakpoint requests.
	configurationDoneReceived bool

	args config.LaunchArgs

	gdb  *gdbmi.GdbInstance
	cmds *micmds.Commands
	mem  *membridge.Bridge
	bps  *breakpoints.Manager
	vars *variables.Engine

	ports *portalloc.PortAllocator
	rtt   *rtt.Engine
	live  *livewatch.Engine

	liveClientMu   sync.Mutex
	liveUnregister func()

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Session bound to one DAP transport. serverCtl/symIdx
// may be server.Noop{}/symbols.Empty{} when the launch doesn't need a
// vendor server controller or a symbol source.
func New(transport *Transport, logger *config.Logger, serverCtl server.Controller, symIdx symbols.Index, ports *portalloc.PortAllocator) *Session {
	if logger == nil {
		logger = config.NewLogger(false)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		transport:   transport,
		logger:      logger,
		logf:        logger.Verbosef,
		serverCtl:   serverCtl,
		symbolIndex: symIdx,
		ports:       ports,
		ctx:         ctx,
		cancel:      cancel,
	}
	return s
}

func (s *Session) send(message dap.Message) {
	if err := s.transport.Send(message); err != nil {
		s.logf("session: send failed: %v", err)
	}
}

// Serve runs the session's DAP read loop until the client disconnects or
// the transport errors out.
func (s *Session) Serve() error {
	return s.transport.Serve(s.handle)
}

// Shutdown tears down every owned component. Safe to call more than
// once.
func (s *Session) Shutdown() {
	s.cancel()
	s.liveClientMu.Lock()
	if s.liveUnregister != nil {
		s.liveUnregister()
		s.liveUnregister = nil
	}
	s.liveClientMu.Unlock()
	if s.rtt != nil {
		s.rtt.Dispose()
	}
	if s.live != nil {
		s.live.Stop()
	}
	if s.gdb != nil {
		s.gdb.Stop()
	}
}

// eventLoop reads GdbInstance's async events and turns stop/exit
// notifications into DAP events, applying the thread-bookkeeping rule and
// the suppress-while-configuring guard (spec §4.4).
func (s *Session) eventLoop() {
	for ev := range s.gdb.Events {
		switch ev.Kind {
		case gdbmi.EventStopped:
			s.onTargetStopped(ev)
		case gdbmi.EventRunning:
			s.onTargetRunning()
		case gdbmi.EventExit:
			s.onTargetExit()
		case gdbmi.EventConsoleStream, gdbmi.EventTargetStream:
			s.send(&dap.OutputEvent{
				Event: *newEvent("output"),
				Body:  dap.OutputEventBody{Category: "console", Output: ev.Text},
			})
		case gdbmi.EventLogStream:
			if s.logger.Verbose() {
				s.logf("session: gdb log: %s", ev.Text)
			}
		}
	}
}

func (s *Session) onTargetRunning() {
	s.mu.Lock()
	s.continuing = false
	s.mu.Unlock()
	s.vars.ClearFrameContainers(s.ctx)
	s.setState(StateRunning)
}

func (s *Session) onTargetStopped(ev gdbmi.Event) {
	s.mu.Lock()
	suppressed := s.suppressStoppedEvents
	s.continuing = false
	s.mu.Unlock()

	s.vars.ClearFrameContainers(s.ctx)
	s.setState(StateStopped)

	if suppressed {
		// An internal interrupt (e.g. finish's interrupt-before-teardown)
		// must not surface a client-visible "stopped"; GdbInstance has
		// already delivered the event to its Subscribe channels, and per
		// spec §4.4 thread bookkeeping only runs for every *stopped* that
		// is not suppressed.
		return
	}

	threadID := s.bookkeepThreads()

	body := dap.StoppedEventBody{
		Reason:            string(ev.Reason),
		ThreadId:          threadID,
		AllThreadsStopped: true,
	}
	s.send(&dap.StoppedEvent{Event: *newEvent("stopped"), Body: body})
}

// bookkeepThreads implements spec §4.4's thread-bookkeeping rule: on
// every unsuppressed stop, issue -thread-info; if GDB's reported current
// thread id is absent, fall back to the first thread and -thread-select
// it explicitly.
func (s *Session) bookkeepThreads() int {
	info, err := s.cmds.ThreadInfo(s.ctx)
	if err != nil {
		s.logf("session: -thread-info failed after stop: %v", err)
		return 0
	}
	if info.CurrentThreadID != "" {
		return atoiOr(info.CurrentThreadID, 0)
	}
	if len(info.Threads) == 0 {
		return 0
	}
	first := info.Threads[0].ID
	if err := s.cmds.ThreadSelect(s.ctx, first); err != nil {
		s.logf("session: -thread-select %s failed: %v", first, err)
	}
	return atoiOr(first, 0)
}

func (s *Session) onTargetExit() {
	s.setState(StateTerminating)
	s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	s.setState(StateTerminated)
}

func atoiOr(s string, fallback int) int {
	n := 0
	ok := false
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		ok = true
		n = n*10 + int(r-'0')
	}
	if !ok {
		return fallback
	}
	return n
}

// withSuppressedStops runs fn with suppressStoppedEvents set, restoring
// the previous value afterward (spec §8 scenario 6).
func (s *Session) withSuppressedStops(fn func()) {
	s.mu.Lock()
	prev := s.suppressStoppedEvents
	s.suppressStoppedEvents = true
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	s.suppressStoppedEvents = prev
	s.mu.Unlock()
}

// errTargetBusy wraps mi.ErrTargetBusy with the specific operation name,
// for requests that require a Stopped target (spec §7 "TargetBusy").
func errTargetBusy(op string) error {
	return fmt.Errorf("%s requires a stopped target: %w", op, mi.ErrTargetBusy)
}
