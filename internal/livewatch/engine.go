// Package livewatch implements LiveWatch: a second GdbInstance attached
// in extended-remote mode that is allowed to run its own memory
// reads/writes and variable-object traffic while the primary target is
// free-running (spec §4 "Live-target RTT transport" overview, §6
// "readMemoryLive / writeMemoryLive / evaluateLive / variablesLive /
// setVariableLive / setExpressionLive / deleteLiveGdbVariables /
// registerClient", §9 "Two GDB instances sharing a target").
//
// LiveWatch never issues an -exec-* command: its public API only exposes
// the memory and variable operations, never run control, so it cannot
// steal the primary session's run state.
package livewatch

import (
	"context"
	"sync"
	"time"

	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/membridge"
	"github.com/mcu-debug/mcu-debug-core/internal/micmds"
	"github.com/mcu-debug/mcu-debug-core/internal/variables"
)

const defaultPollInterval = 500 * time.Millisecond

// Engine owns the LiveWatch GdbInstance and the MemoryBridge/VariableEngine
// bound to it.
type Engine struct {
	gdb  *gdbmi.GdbInstance
	mem  *membridge.Bridge
	vars *variables.Engine
	logf func(string, ...interface{})

	// refreshFn backs the periodic poll tick; defaulted to vars.UpdateOnStop
	// and overridden in tests so the poll-lifecycle logic can be exercised
	// without a live GDB child.
	refreshFn func(ctx context.Context) ([]*variables.VariableObject, error)

	mu           sync.Mutex
	pollInterval time.Duration
	clientCount  int
	cancel       context.CancelFunc
	subs         map[int]chan []*variables.VariableObject
	nextSubID    int
}

// New constructs an Engine wired to its own GDB/MI command path, separate
// from the primary session's (spec §9: "The LiveWatch instance connects in
// extended-remote to read memory while the primary is running").
func New(gdb *gdbmi.GdbInstance, logf func(string, ...interface{})) *Engine {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	cmds := micmds.New(gdb)
	varsEngine := variables.New(cmds, logf)
	e := &Engine{
		gdb:          gdb,
		mem:          membridge.New(cmds),
		vars:         varsEngine,
		logf:         logf,
		pollInterval: defaultPollInterval,
		subs:         map[int]chan []*variables.VariableObject{},
	}
	e.refreshFn = varsEngine.UpdateOnStop
	return e
}

// Start spawns the LiveWatch GDB child and runs its extended-remote
// attach sequence as a plain init-command list (the same startup contract
// as the primary GdbInstance).
func (e *Engine) Start(ctx context.Context, path string, argv []string, cwd string, initCmds []string) error {
	return e.gdb.Start(ctx, path, argv, cwd, initCmds)
}

// Stop shuts down the LiveWatch GDB child.
func (e *Engine) Stop() {
	e.gdb.Stop()
}

// ReadMemory backs the "readMemoryLive" custom request.
func (e *Engine) ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error) {
	return e.mem.ReadMemory(ctx, addr, length)
}

// ReadMemoryStreaming exposes this engine's MemoryBridge chunked read
// directly, so the RTT engine advances a ring-buffer read pointer only
// after each ≤512 B chunk is actually delivered (spec §4.7 "after each
// successful chunk, advance the descriptor's rd_off").
func (e *Engine) ReadMemoryStreaming(ctx context.Context, addr uint64, length int, cb membridge.ChunkCallback) error {
	return e.mem.ReadMemoryStreaming(ctx, addr, length, cb)
}

// WriteMemory backs the "writeMemoryLive" custom request.
func (e *Engine) WriteMemory(ctx context.Context, addr uint64, data []byte) error {
	return e.mem.WriteMemory(ctx, addr, data)
}

// Evaluate backs the "evaluateLive" custom request: creates (or reuses)
// a watch var-object for expr against this engine's own GdbInstance.
func (e *Engine) Evaluate(ctx context.Context, expr string, threadID, frameID uint32, haveFrame bool) (*variables.VariableObject, error) {
	return e.vars.CreateWatch(ctx, expr, threadID, frameID, haveFrame)
}

// Variables backs the "variablesLive" custom request.
func (e *Engine) Variables(ctx context.Context, ref uint64) ([]*variables.VariableObject, error) {
	return e.vars.Variables(ctx, ref)
}

// SetVariable backs the "setVariableLive" custom request.
func (e *Engine) SetVariable(ctx context.Context, handle uint64, value string) (*variables.VariableObject, error) {
	return e.vars.SetValue(ctx, handle, value)
}

// SetExpression backs the "setExpressionLive" custom request.
func (e *Engine) SetExpression(ctx context.Context, expr, value string, threadID, frameID uint32, haveFrame bool) (*variables.VariableObject, error) {
	return e.vars.SetExpressionValue(ctx, expr, value, threadID, frameID, haveFrame)
}

// DeleteLiveGdbVariables backs the "deleteLiveGdbVariables" custom
// request: discards every watch/variable object this engine has created.
func (e *Engine) DeleteLiveGdbVariables(ctx context.Context) {
	e.vars.DeleteAll(ctx)
}
