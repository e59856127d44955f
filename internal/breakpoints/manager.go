package breakpoints

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

// interruptAwaitTimeout bounds how long the manager waits for the stop
// event its own -exec-interrupt is expected to produce.
const interruptAwaitTimeout = 5 * time.Second

// commandSender is the slice of *micmds.Commands the manager calls,
// declared as an interface so tests can drive the halt-apply-resume
// discipline with a fake instead of a live GdbInstance.
type commandSender interface {
	ExecInterrupt(ctx context.Context) error
	ExecContinue(ctx context.Context, allThreads bool) error
	BreakDelete(ctx context.Context, ids []string) error
	Send(ctx context.Context, cmd string) (*mi.ResultRecord, error)
}

// targetStatus is the slice of *gdbmi.GdbInstance the manager calls.
type targetStatus interface {
	Status() gdbmi.Status
	Subscribe() (<-chan gdbmi.Event, func())
}

// Manager owns the three breakpoint books and enforces the halt-apply-
// resume discipline around every mutation (spec §4.3).
type Manager struct {
	cmds commandSender
	gdb  targetStatus
	logf func(format string, args ...interface{})

	mu        sync.Mutex
	perSource map[string]map[string]sourceEntry // canonical path -> gdb id -> entry
	perFunc   map[string]functionEntry           // gdb id -> entry
	perData   map[string]dataEntry               // gdb id -> entry
}

func New(cmds commandSender, gdb targetStatus, logf func(string, ...interface{})) *Manager {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Manager{
		cmds:      cmds,
		gdb:       gdb,
		logf:      logf,
		perSource: make(map[string]map[string]sourceEntry),
		perFunc:   make(map[string]functionEntry),
		perData:   make(map[string]dataEntry),
	}
}

// CanonicalPath resolves path to its canonical absolute form: symlinks
// resolved, case-normalized on case-insensitive filesystems (spec §4.3
// "Path canonicalization").
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("breakpoints: cannot make %q absolute: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The file may not exist yet (breakpoints can be set before a
		// rebuild); fall back to the absolute form rather than failing.
		resolved = abs
	}
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		resolved = strings.ToLower(resolved)
	}
	return filepath.Clean(resolved), nil
}

// haltApplyResume implements the five-step discipline shared by every
// public operation (spec §4.3 steps 1,2,3(partial),6 — step 3's delete
// and step 4's insert are supplied by fn, which runs while halted).
func (m *Manager) haltApplyResume(ctx context.Context, fn func(ctx context.Context) error) error {
	wasRunning := m.gdb.Status() == gdbmi.StatusRunning

	if wasRunning {
		sub, cancel := m.gdb.Subscribe()
		defer cancel()

		if err := m.cmds.ExecInterrupt(ctx); err != nil {
			return fmt.Errorf("breakpoints: interrupt failed: %w", err)
		}
		if err := awaitStop(ctx, sub, interruptAwaitTimeout); err != nil {
			return fmt.Errorf("breakpoints: waiting for interrupt to take effect: %w", err)
		}
	}

	err := fn(ctx)

	if wasRunning {
		if contErr := m.cmds.ExecContinue(ctx, true); contErr != nil && err == nil {
			err = fmt.Errorf("breakpoints: resume after mutation failed: %w", contErr)
		}
	}

	return err
}

func awaitStop(ctx context.Context, sub <-chan gdbmi.Event, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub:
			if ev.Kind == gdbmi.EventStopped {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("timed out waiting for stop")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetSourceBreakpoints replaces every breakpoint previously set for path
// with the given requests (spec §4.3).
func (m *Manager) SetSourceBreakpoints(ctx context.Context, path string, reqs []SourceBreakpoint) ([]Result, error) {
	canon, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}

	var results []Result
	err = m.haltApplyResume(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		existing := m.perSource[canon]
		ids := idsOf(existing)
		m.mu.Unlock()

		if err := m.cmds.BreakDelete(ctx, ids); err != nil {
			return fmt.Errorf("deleting previous breakpoints for %s: %w", canon, err)
		}

		fresh := make(map[string]sourceEntry, len(reqs))
		results = m.insertParallel(ctx, len(reqs), func(i int) (string, int, error) {
			loc := fmt.Sprintf("%s:%d", canon, reqs[i].Line)
			return m.insertOne(ctx, loc, sourceCommand(canon, reqs[i], m.logf))
		}, func(i int, id string) {
			fresh[id] = sourceEntry{req: reqs[i]}
		})

		m.mu.Lock()
		m.perSource[canon] = fresh
		m.mu.Unlock()
		return nil
	})
	return results, err
}

// SetFunctionBreakpoints replaces all function breakpoints.
func (m *Manager) SetFunctionBreakpoints(ctx context.Context, reqs []FunctionBreakpoint) ([]Result, error) {
	var results []Result
	err := m.haltApplyResume(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		ids := idsOfFunc(m.perFunc)
		m.mu.Unlock()

		if err := m.cmds.BreakDelete(ctx, ids); err != nil {
			return fmt.Errorf("deleting previous function breakpoints: %w", err)
		}

		fresh := make(map[string]functionEntry, len(reqs))
		results = m.insertParallel(ctx, len(reqs), func(i int) (string, int, error) {
			return m.insertOne(ctx, reqs[i].Name, functionCommand(reqs[i].Name, reqs[i], m.logf))
		}, func(i int, id string) {
			fresh[id] = functionEntry{req: reqs[i]}
		})

		m.mu.Lock()
		m.perFunc = fresh
		m.mu.Unlock()
		return nil
	})
	return results, err
}

// SetDataBreakpoints replaces all data (watchpoint) breakpoints.
func (m *Manager) SetDataBreakpoints(ctx context.Context, reqs []DataBreakpoint) ([]Result, error) {
	var results []Result
	err := m.haltApplyResume(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		ids := idsOfData(m.perData)
		m.mu.Unlock()

		if err := m.cmds.BreakDelete(ctx, ids); err != nil {
			return fmt.Errorf("deleting previous data breakpoints: %w", err)
		}

		fresh := make(map[string]dataEntry, len(reqs))
		results = m.insertParallel(ctx, len(reqs), func(i int) (string, int, error) {
			return m.insertOne(ctx, reqs[i].DataID, dataCommand(reqs[i]))
		}, func(i int, id string) {
			fresh[id] = dataEntry{req: reqs[i]}
		})

		m.mu.Lock()
		m.perData = fresh
		m.mu.Unlock()
		return nil
	})
	return results, err
}

// DeleteAll removes every breakpoint the manager owns, across all three
// books, in a single -break-delete.
func (m *Manager) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	var ids []string
	for _, book := range m.perSource {
		ids = append(ids, idsOf(book)...)
	}
	ids = append(ids, idsOfFunc(m.perFunc)...)
	ids = append(ids, idsOfData(m.perData)...)
	m.mu.Unlock()

	if err := m.cmds.BreakDelete(ctx, ids); err != nil {
		return err
	}

	m.mu.Lock()
	m.perSource = make(map[string]map[string]sourceEntry)
	m.perFunc = make(map[string]functionEntry)
	m.perData = make(map[string]dataEntry)
	m.mu.Unlock()
	return nil
}

// insertParallel fans n inserts out concurrently via errgroup (spec
// §4.3 step 4: "build the command, send in parallel, await all"), then
// applies each success to the caller's fresh book. Failures of one
// insert never cancel the others (spec "Partial failure").
func (m *Manager) insertParallel(ctx context.Context, n int, send func(i int) (string, int, error), onSuccess func(i int, id string)) []Result {
	results := make([]Result, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			id, line, err := send(i)
			if err != nil {
				results[i] = Result{Verified: false, Message: err.Error()}
				return nil
			}
			results[i] = Result{GdbID: id, Verified: true, Line: line}
			onSuccess(i, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// insertOne sends cmd and extracts the new breakpoint/watchpoint number
// and, when present, the line GDB actually snapped to.
func (m *Manager) insertOne(ctx context.Context, loc, cmd string) (string, int, error) {
	rec, err := m.cmds.Send(ctx, cmd)
	if err != nil {
		return "", 0, err
	}
	if rec.Class == mi.ClassError {
		return "", 0, fmt.Errorf("%s", rec.Fields.StrOr("msg", "gdb error"))
	}

	for _, field := range []string{"bkpt", "wpt", "hw-rwpt", "hw-awpt"} {
		t, err := rec.Fields.SubTuple(field)
		if err == nil {
			id := t.StrOr("number", "")
			if id == "" {
				return "", 0, fmt.Errorf("breakpoints: %s result missing number", field)
			}
			line, _ := strconv.Atoi(t.StrOr("line", "0"))
			return id, line, nil
		}
	}
	return "", 0, fmt.Errorf("breakpoints: %s: no bkpt/wpt field in result", loc)
}

func idsOf(m map[string]sourceEntry) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func idsOfFunc(m map[string]functionEntry) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func idsOfData(m map[string]dataEntry) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// escapeCondition escapes a GDB breakpoint condition for inclusion in a
// double-quoted -c argument (spec §4.3 "Condition and hit-count syntax").
func escapeCondition(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// hitConditionFlags translates the hit_condition shorthand into GDB
// flags, or returns ok=false with a warning logged if the form is
// unrecognized (spec §4.3).
func hitConditionFlags(hitCond string, logf func(string, ...interface{})) (flags string, ok bool) {
	if strings.HasPrefix(hitCond, ">") {
		n, err := strconv.Atoi(strings.TrimPrefix(hitCond, ">"))
		if err != nil {
			logf("breakpoints: unrecognized hit_condition %q, dropping", hitCond)
			return "", false
		}
		return fmt.Sprintf("-i %d", n), true
	}
	if n, err := strconv.Atoi(hitCond); err == nil {
		return fmt.Sprintf("-t -i %d", n), true
	}
	logf("breakpoints: unrecognized hit_condition %q, dropping", hitCond)
	return "", false
}

// sourceLocation renders the explicit-location form spec §8 scenario 2
// expects (`--source "<path>" --line <n>`) instead of a bare
// "path:line" linespec.
func sourceLocation(path string, line int) string {
	return fmt.Sprintf(`--source "%s" --line %d`, path, line)
}

func sourceCommand(path string, bp SourceBreakpoint, logf func(string, ...interface{})) string {
	loc := sourceLocation(path, bp.Line)
	if bp.HasLogMessage {
		hw := bp.HardwareReq
		if hw {
			logf("breakpoints: logpoints cannot be hardware breakpoints, dropping -h for %s:%d", path, bp.Line)
		}
		return fmt.Sprintf(`-dprintf-insert %s "%s"`, loc, escapeCondition(bp.LogMessage))
	}

	var b strings.Builder
	b.WriteString("-break-insert")
	if bp.HardwareReq {
		b.WriteString(" -h")
	}
	if bp.HasCondition {
		fmt.Fprintf(&b, ` -c "%s"`, escapeCondition(bp.Condition))
	}
	if bp.HasHitCond {
		if flags, ok := hitConditionFlags(bp.HitCondition, logf); ok {
			b.WriteString(" " + flags)
		}
	}
	b.WriteString(" " + loc)
	return b.String()
}

func functionCommand(loc string, bp FunctionBreakpoint, logf func(string, ...interface{})) string {
	var b strings.Builder
	b.WriteString("-break-insert")
	if bp.HasCondition {
		fmt.Fprintf(&b, ` -c "%s"`, escapeCondition(bp.Condition))
	}
	if bp.HasHitCond {
		if flags, ok := hitConditionFlags(bp.HitCondition, logf); ok {
			b.WriteString(" " + flags)
		}
	}
	b.WriteString(" " + loc)
	return b.String()
}

func dataCommand(bp DataBreakpoint) string {
	switch bp.Access {
	case AccessRead:
		return fmt.Sprintf("-break-watch -r %s", bp.DataID)
	case AccessReadWrite:
		return fmt.Sprintf("-break-watch -a %s", bp.DataID)
	default:
		return fmt.Sprintf("-break-watch %s", bp.DataID)
	}
}
