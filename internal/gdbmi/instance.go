// Package gdbmi owns a single long-lived GDB child process speaking
// --interpreter=mi3, multiplexing token-tagged command replies away from
// asynchronous notifications (spec §4.2).
package gdbmi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Masterminds/semver"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

// Status is the coarse run/stop state GdbInstance itself tracks from the
// async record stream (spec §4.2).
type Status int32

const (
	StatusUnknown Status = iota
	StatusRunning
	StatusStopped
	StatusTerminated
)

const (
	defaultCommandTimeout = 5 * time.Second
	gracefulExitWait      = 500 * time.Millisecond
	killWait              = 100 * time.Millisecond
	minSupportedGdbMajor  = 9
	minSupportedGdbMinor  = 1
)

var versionLineRe = regexp.MustCompile(`GNU gdb(?:\s+\([^)]*\))?\s+(\d+)\.(\d+)`)

type pendingCmd struct {
	cmd      string
	deadline time.Time
	sink     chan pendingResult
}

type pendingResult struct {
	rec *mi.ResultRecord
	err error
}

// GdbInstance owns the GDB child process and its command/event plumbing.
type GdbInstance struct {
	// Events is the default event subscriber, always live; Session reads
	// from it directly. Additional subscribers (BreakpointManager,
	// RttEngine) register through Subscribe so they can each wait on
	// their own stop notifications without racing Session for the same
	// channel (spec §4.3 "install a one-shot stopped handler").
	Events chan Event

	logf func(format string, args ...interface{})

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	pending     map[int]*pendingCmd
	nextSeq     int64
	status      int32 // atomic Status
	firstStop   bool
	subscribers map[int]chan Event
	nextSubID   int

	shutdownOnce sync.Once
	exited       chan struct{}
}

// New constructs a GdbInstance. logf may be nil (messages are discarded).
func New(logf func(format string, args ...interface{})) *GdbInstance {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &GdbInstance{
		Events:      make(chan Event, 256),
		logf:        logf,
		pending:     make(map[int]*pendingCmd),
		subscribers: make(map[int]chan Event),
		exited:      make(chan struct{}),
	}
}

// Subscribe registers an additional event channel fed the same events as
// Events. Callers must drain it promptly (it is buffered, but a full
// buffer causes dropped events, logged but not fatal) and call the
// returned cancel func when done.
func (g *GdbInstance) Subscribe() (ch <-chan Event, cancel func()) {
	g.mu.Lock()
	id := g.nextSubID
	g.nextSubID++
	c := make(chan Event, 32)
	g.subscribers[id] = c
	g.mu.Unlock()

	return c, func() {
		g.mu.Lock()
		delete(g.subscribers, id)
		g.mu.Unlock()
	}
}

// Status returns the instance's current coarse run/stop state.
func (g *GdbInstance) Status() Status {
	return Status(atomic.LoadInt32(&g.status))
}

func (g *GdbInstance) setStatus(s Status) {
	atomic.StoreInt32(&g.status, int32(s))
}

// Start spawns "path argv..." in cwd, wires stdio, probes the GDB
// version, and runs init_cmds serially (spec §4.2 "Startup contract").
func (g *GdbInstance) Start(ctx context.Context, path string, argv []string, cwd string, initCmds []string) error {
	cmd := exec.Command(path, argv...)
	cmd.Dir = cwd
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ProcessSpawnFailedError{Path: path, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ProcessSpawnFailedError{Path: path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ProcessSpawnFailedError{Path: path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &ProcessSpawnFailedError{Path: path, Err: err}
	}

	g.mu.Lock()
	g.cmd = cmd
	g.stdin = stdin
	g.mu.Unlock()

	go g.readStdout(stdout)
	go g.drainStderr(stderr)
	go g.waitForExit()

	if err := g.probeVersion(ctx); err != nil {
		g.logf("gdbmi: version probe failed: %v", err)
	}

	for _, c := range initCmds {
		if _, err := g.SendCommand(ctx, c, defaultCommandTimeout); err != nil {
			return fmt.Errorf("gdbmi: init command %q failed: %w", c, err)
		}
	}

	return nil
}

func (g *GdbInstance) probeVersion(ctx context.Context) error {
	rec, err := g.SendCommand(ctx, `-interpreter-exec console "show version"`, defaultCommandTimeout)
	if err != nil {
		return err
	}
	_ = rec // the version text itself arrives as console stream events, not in the result.
	return nil
}

// observeVersionLine is called by dispatchLine with the text of every
// stream record, so the version text is picked up without a separate
// subscription mechanism.
func (g *GdbInstance) observeVersionLine(line string) {
	m := versionLineRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	v, err := semver.NewVersion(fmt.Sprintf("%s.%s.0", m[1], m[2]))
	if err != nil {
		return
	}
	constraint, _ := semver.NewConstraint(fmt.Sprintf(">= %d.%d.0", minSupportedGdbMajor, minSupportedGdbMinor))
	if constraint != nil && !constraint.Check(v) {
		g.logf("gdbmi: warning: GDB version %s is older than the minimum supported %d.%d", v.String(), minSupportedGdbMajor, minSupportedGdbMinor)
	}
}

// SendCommand allocates a fresh seq, writes "seq<cmd>\n" to GDB's stdin,
// and waits for the matching result record or timeout (spec §4.2
// "Command contract"). cmd must already be in "-..." form.
func (g *GdbInstance) SendCommand(ctx context.Context, cmd string, timeout time.Duration) (*mi.ResultRecord, error) {
	if g.Status() == StatusTerminated {
		return nil, &TerminatedError{}
	}

	seq := int(atomic.AddInt64(&g.nextSeq, 1))
	sink := make(chan pendingResult, 1)
	pc := &pendingCmd{cmd: cmd, deadline: time.Now().Add(timeout), sink: sink}

	g.mu.Lock()
	g.pending[seq] = pc
	line := fmt.Sprintf("%d%s\n", seq, cmd)
	stdin := g.stdin
	g.mu.Unlock()

	if _, err := io.WriteString(stdin, line); err != nil {
		g.mu.Lock()
		delete(g.pending, seq)
		g.mu.Unlock()
		g.handleStdinError(err)
		return nil, err
	}

	select {
	case res := <-sink:
		return res.rec, res.err
	case <-time.After(timeout):
		g.mu.Lock()
		delete(g.pending, seq)
		g.mu.Unlock()
		return nil, &TimeoutError{Command: cmd}
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.pending, seq)
		g.mu.Unlock()
		return nil, ctx.Err()
	case <-g.exited:
		g.mu.Lock()
		delete(g.pending, seq)
		g.mu.Unlock()
		return nil, &TerminatedError{}
	}
}

func (g *GdbInstance) handleStdinError(err error) {
	g.setStatus(StatusTerminated)
	g.failAllPending(err)
	g.emit(Event{Kind: EventExit})
}

func (g *GdbInstance) failAllPending(err error) {
	g.mu.Lock()
	pending := g.pending
	g.pending = make(map[int]*pendingCmd)
	g.mu.Unlock()
	for _, pc := range pending {
		pc.sink <- pendingResult{err: err}
	}
}

func (g *GdbInstance) readStdout(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		g.dispatchLine(line)
	}
}

func (g *GdbInstance) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		g.logf("gdbmi: stderr: %s", scanner.Text())
	}
}

func (g *GdbInstance) dispatchLine(line string) {
	rec, err := mi.Parse(line)
	if err != nil {
		g.logf("gdbmi: malformed record: %v", err)
		return
	}

	switch r := rec.(type) {
	case mi.Terminator:
		return
	case *mi.ResultRecord:
		g.resolveResult(r)
	case *mi.AsyncRecord:
		g.routeAsync(r)
	case *mi.StreamRecord:
		g.observeVersionLine(r.Text)
		g.routeStream(r)
	}
}

func (g *GdbInstance) resolveResult(r *mi.ResultRecord) {
	if r.Token == nil {
		g.logf("gdbmi: result record with no token: %s", mi.Render(r))
		return
	}
	g.mu.Lock()
	pc, ok := g.pending[*r.Token]
	if ok {
		delete(g.pending, *r.Token)
	}
	g.mu.Unlock()
	if !ok {
		// Late reply for an already-timed-out command: discard silently.
		return
	}
	pc.sink <- pendingResult{rec: r}
}

func (g *GdbInstance) routeAsync(r *mi.AsyncRecord) {
	switch r.Name {
	case "running":
		g.setStatus(StatusRunning)
		g.emit(Event{Kind: EventRunning, Record: r})
	case "stopped":
		g.setStatus(StatusStopped)
		reason := StopReason(r.Fields.StrOr("reason", ""))
		g.mu.Lock()
		first := !g.firstStop
		g.firstStop = true
		g.mu.Unlock()
		if reason == "" {
			if first {
				reason = ReasonEntry
			} else {
				reason = ReasonNone
			}
		}
		g.emit(Event{Kind: EventStopped, Reason: reason, Record: r})
	case "breakpoint-deleted":
		g.emit(Event{Kind: EventBreakpointDeleted, Record: r})
	case "thread-created":
		g.emit(Event{Kind: EventThreadCreated, Record: r})
	case "thread-exited":
		g.emit(Event{Kind: EventThreadExited, Record: r})
	case "thread-selected":
		g.emit(Event{Kind: EventThreadSelected, Record: r})
	case "thread-group-exited":
		g.emit(Event{Kind: EventThreadGroupExited, Record: r})
	}
}

func (g *GdbInstance) routeStream(r *mi.StreamRecord) {
	switch r.Kind {
	case mi.StreamConsole:
		g.emit(Event{Kind: EventConsoleStream, Text: r.Text, Record: r})
	case mi.StreamTarget:
		g.emit(Event{Kind: EventTargetStream, Text: r.Text, Record: r})
	case mi.StreamLog:
		g.emit(Event{Kind: EventLogStream, Text: r.Text, Record: r})
	}
}

func (g *GdbInstance) emit(ev Event) {
	select {
	case g.Events <- ev:
	default:
		g.logf("gdbmi: event channel full, dropping %v event", ev.Kind)
	}

	g.mu.Lock()
	subs := make([]chan Event, 0, len(g.subscribers))
	for _, c := range g.subscribers {
		subs = append(subs, c)
	}
	g.mu.Unlock()

	for _, c := range subs {
		select {
		case c <- ev:
		default:
			g.logf("gdbmi: subscriber channel full, dropping %v event", ev.Kind)
		}
	}
}

func (g *GdbInstance) waitForExit() {
	g.mu.Lock()
	cmd := g.cmd
	g.mu.Unlock()
	_ = cmd.Wait()
	g.setStatus(StatusTerminated)
	close(g.exited)
	g.failAllPending(&TerminatedError{})
	g.emit(Event{Kind: EventExit})
}

// Stop performs the graceful/forced shutdown sequence (spec §4.2
// "Shutdown contract"). It is safe to call multiple times.
func (g *GdbInstance) Stop() {
	g.shutdownOnce.Do(func() {
		g.failAllPending(&ShutdownError{})

		g.mu.Lock()
		stdin := g.stdin
		cmd := g.cmd
		g.mu.Unlock()

		if stdin != nil {
			io.WriteString(stdin, "-gdb-exit\n")
		}

		select {
		case <-g.exited:
			return
		case <-time.After(gracefulExitWait):
		}

		if cmd != nil && cmd.Process != nil {
			cmd.Process.Signal(syscall.SIGKILL)
		}

		select {
		case <-g.exited:
		case <-time.After(killWait):
		}
	})
}
