package micmds

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

const defaultTimeout = 5 * time.Second

// Commands wraps a GdbInstance with typed accessors for the handful of MI
// commands the bridge issues from more than one place.
type Commands struct {
	Gdb     *gdbmi.GdbInstance
	Timeout time.Duration
}

func New(g *gdbmi.GdbInstance) *Commands {
	return &Commands{Gdb: g, Timeout: defaultTimeout}
}

func (c *Commands) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c *Commands) send(ctx context.Context, cmd string) (*mi.ResultRecord, error) {
	return c.Gdb.SendCommand(ctx, cmd, c.timeout())
}

// Send issues an arbitrary already-built "-..." MI command and returns
// its result record. Exported for packages (breakpoints, variables) that
// need to build commands Commands itself has no typed wrapper for, while
// still going through the same timeout/instance plumbing.
func (c *Commands) Send(ctx context.Context, cmd string) (*mi.ResultRecord, error) {
	return c.send(ctx, cmd)
}

// requireClass returns an error if the result record's class is not
// want.
func requireClass(rec *mi.ResultRecord, want mi.ResultClass) error {
	if rec.Class != want {
		msg := rec.Fields.StrOr("msg", "")
		return fmt.Errorf("micmds: expected class %q, got %q: %s", want, rec.Class, msg)
	}
	return nil
}

// ExecContinue issues -exec-continue, optionally with --all.
func (c *Commands) ExecContinue(ctx context.Context, allThreads bool) error {
	cmd := "-exec-continue"
	if allThreads {
		cmd += " --all"
	}
	rec, err := c.send(ctx, cmd)
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassRunning)
}

// ExecInterrupt issues -exec-interrupt.
func (c *Commands) ExecInterrupt(ctx context.Context) error {
	rec, err := c.send(ctx, "-exec-interrupt")
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassDone)
}

// ExecStep/Next/Finish issue the corresponding step commands.
func (c *Commands) ExecStep(ctx context.Context) error  { return c.execRun(ctx, "-exec-step") }
func (c *Commands) ExecNext(ctx context.Context) error  { return c.execRun(ctx, "-exec-next") }
func (c *Commands) ExecFinish(ctx context.Context) error { return c.execRun(ctx, "-exec-finish") }
func (c *Commands) ExecStepInstruction(ctx context.Context) error {
	return c.execRun(ctx, "-exec-step-instruction")
}
func (c *Commands) ExecNextInstruction(ctx context.Context) error {
	return c.execRun(ctx, "-exec-next-instruction")
}

func (c *Commands) execRun(ctx context.Context, cmd string) error {
	rec, err := c.send(ctx, cmd)
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassRunning)
}

// InterpreterExecConsole wraps a free-form console command the way the
// spec requires ("Console commands are wrapped as -interpreter-exec
// console ... by the caller", spec §4.2).
func (c *Commands) InterpreterExecConsole(ctx context.Context, consoleCmd string) (*mi.ResultRecord, error) {
	escaped := strings.ReplaceAll(consoleCmd, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return c.send(ctx, fmt.Sprintf(`-interpreter-exec console "%s"`, escaped))
}

// ThreadInfo issues -thread-info and parses the thread list plus the
// current thread id (spec §4.4 "Thread bookkeeping on stop").
func (c *Commands) ThreadInfo(ctx context.Context) (*ThreadInfoList, error) {
	rec, err := c.send(ctx, "-thread-info")
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	return parseThreadInfo(rec)
}

func parseThreadInfo(rec *mi.ResultRecord) (*ThreadInfoList, error) {
	threadsVal, err := rec.Fields.SubList("threads")
	if err != nil {
		return nil, err
	}
	out := &ThreadInfoList{CurrentThreadID: rec.Fields.StrOr("current-thread-id", "")}
	for _, t := range mi.AsTuples(threadsVal) {
		out.Threads = append(out.Threads, ThreadInfo{
			ID:       t.StrOr("id", ""),
			TargetID: t.StrOr("target-id", ""),
			State:    t.StrOr("state", ""),
			Core:     t.StrOr("core", ""),
		})
	}
	return out, nil
}

// ThreadSelect issues -thread-select <id>.
func (c *Commands) ThreadSelect(ctx context.Context, id string) error {
	rec, err := c.send(ctx, fmt.Sprintf("-thread-select %s", id))
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassDone)
}

// StackListFrames issues -stack-list-frames for the given thread.
func (c *Commands) StackListFrames(ctx context.Context, threadID string) ([]Frame, error) {
	cmd := "-stack-list-frames"
	if threadID != "" {
		cmd += " --thread " + threadID
	}
	rec, err := c.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	return parseFrames(rec, "stack")
}

// StackListVariables issues -stack-list-variables --no-values for the
// given thread/frame and returns the in-scope variable names (spec §4.5
// "Creating a variable", Local case: the engine needs a name list before
// it can issue -var-create for each one).
func (c *Commands) StackListVariables(ctx context.Context, threadID, frameID string) ([]string, error) {
	cmd := fmt.Sprintf("-stack-list-variables --thread %s --frame %s --no-values", threadID, frameID)
	rec, err := c.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	vars, err := rec.Fields.SubList("variables")
	if err != nil {
		return nil, nil
	}
	var out []string
	for _, t := range mi.AsTuples(vars) {
		if name := t.StrOr("name", ""); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

// SymbolVariable is one entry of a -symbol-info-variables result.
type SymbolVariable struct {
	FileName string
	Name     string
	Static   bool
}

// SymbolInfoVariables issues -symbol-info-variables and flattens the
// per-file symbol groups GDB returns into a single list, tagging each
// with whether GDB reported it as a file-static symbol (its description
// field contains "static"). Used to seed the Globals/Statics scopes
// (spec §4.5 "Global/Static").
func (c *Commands) SymbolInfoVariables(ctx context.Context) ([]SymbolVariable, error) {
	rec, err := c.send(ctx, "-symbol-info-variables")
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	symbols, err := rec.Fields.SubTuple("symbols")
	if err != nil {
		return nil, nil
	}
	groups := []mi.Value{{Kind: mi.TupleKind, Tuple: symbols}}
	var out []SymbolVariable
	// "symbols" is itself a tuple with a single "debug" list field, each
	// entry of which is a {filename, symbols: [...]} tuple.
	for _, g := range groups {
		if g.Kind != mi.TupleKind {
			continue
		}
		debugList, err := g.Tuple.SubList("debug")
		if err != nil {
			continue
		}
		for _, fileGroup := range mi.AsTuples(debugList) {
			fileName := fileGroup.StrOr("filename", "")
			syms, err := fileGroup.SubList("symbols")
			if err != nil {
				continue
			}
			for _, s := range mi.AsTuples(syms) {
				desc := s.StrOr("description", "")
				out = append(out, SymbolVariable{
					FileName: fileName,
					Name:     s.StrOr("name", ""),
					Static:   strings.Contains(desc, "static "),
				})
			}
		}
	}
	return out, nil
}

func parseFrames(rec *mi.ResultRecord, field string) ([]Frame, error) {
	framesVal, err := rec.Fields.SubList(field)
	if err != nil {
		return nil, err
	}
	var out []Frame
	for _, ft := range mi.AsTuples(framesVal) {
		level, _ := strconv.Atoi(ft.StrOr("level", "0"))
		line, _ := strconv.Atoi(ft.StrOr("line", "0"))
		out = append(out, Frame{
			Level:    level,
			Addr:     ft.StrOr("addr", ""),
			Func:     ft.StrOr("func", ""),
			File:     ft.StrOr("file", ""),
			FullName: ft.StrOr("fullname", ""),
			Line:     line,
		})
	}
	return out, nil
}

// StackInfoDepth issues -stack-info-depth.
func (c *Commands) StackInfoDepth(ctx context.Context) (int, error) {
	rec, err := c.send(ctx, "-stack-info-depth")
	if err != nil {
		return 0, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return 0, err
	}
	depth, err := rec.Fields.Str("depth")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(depth)
}

// DataEvaluateExpression issues -data-evaluate-expression <expr>.
func (c *Commands) DataEvaluateExpression(ctx context.Context, threadID, frameID, expr string) (string, error) {
	cmd := fmt.Sprintf(`-data-evaluate-expression "%s"`, escapeQuotes(expr))
	if threadID != "" {
		cmd = fmt.Sprintf("-data-evaluate-expression --thread %s --frame %s \"%s\"", threadID, frameID, escapeQuotes(expr))
	}
	rec, err := c.send(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return "", err
	}
	return rec.Fields.Str("value")
}

// DataListRegisterNames issues -data-list-register-names.
func (c *Commands) DataListRegisterNames(ctx context.Context) ([]RegisterName, error) {
	rec, err := c.send(ctx, "-data-list-register-names")
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	names, err := rec.Fields.SubList("register-names")
	if err != nil {
		return nil, err
	}
	out := make([]RegisterName, 0, len(names))
	for i, n := range names {
		if n.Str == "" {
			continue
		}
		out = append(out, RegisterName{Number: i, Name: n.Str})
	}
	return out, nil
}

// DataListRegisterValues issues -data-list-register-values <fmt>.
func (c *Commands) DataListRegisterValues(ctx context.Context, format string) ([]RegisterValue, error) {
	rec, err := c.send(ctx, fmt.Sprintf("-data-list-register-values %s", format))
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	values, err := rec.Fields.SubList("register-values")
	if err != nil {
		return nil, err
	}
	var out []RegisterValue
	for _, v := range mi.AsTuples(values) {
		out = append(out, RegisterValue{Number: v.StrOr("number", ""), Value: v.StrOr("value", "")})
	}
	return out, nil
}

// DataReadMemoryBytes issues -data-read-memory-bytes "<addr>" <count> and
// returns the raw bytes of the (single) memory chunk GDB reports. Callers expect
// exactly one chunk per call (membridge never asks for more than 512 B
// at a time, spec §4.6).
func (c *Commands) DataReadMemoryBytes(ctx context.Context, addr string, count int) ([]byte, error) {
	rec, err := c.send(ctx, fmt.Sprintf(`-data-read-memory-bytes "%s" %d`, addr, count))
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	memVal, err := rec.Fields.SubList("memory")
	if err != nil {
		return nil, err
	}
	chunks := mi.AsTuples(memVal)
	if len(chunks) != 1 {
		return nil, fmt.Errorf("micmds: expected exactly one memory chunk, got %d", len(chunks))
	}
	contents, err := chunks[0].Str("contents")
	if err != nil {
		return nil, err
	}
	return decodeHex(contents)
}

// DataWriteMemoryBytes issues -data-write-memory-bytes "<addr>" "<hex>".
func (c *Commands) DataWriteMemoryBytes(ctx context.Context, addr string, data []byte) error {
	rec, err := c.send(ctx, fmt.Sprintf(`-data-write-memory-bytes "%s" "%s"`, addr, encodeHex(data)))
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassDone)
}

func encodeHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("micmds: odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexVal(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexVal(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("micmds: invalid hex digit %q", c)
	}
}

// BreakDelete issues -break-delete with the given ids (no-op if empty).
func (c *Commands) BreakDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rec, err := c.send(ctx, fmt.Sprintf("-break-delete %s", strings.Join(ids, " ")))
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassDone)
}

// GdbSetPrintElementsUnlimited issues "-gdb-set print elements 0" (no
// limit) so large results are never truncated mid-record.
func (c *Commands) GdbSetPrintElementsUnlimited(ctx context.Context) error {
	rec, err := c.send(ctx, "-gdb-set print elements 0")
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassDone)
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
