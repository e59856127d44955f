package variables

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mcu-debug/mcu-debug-core/internal/micmds"
)

// gdbVarCommands is the slice of *micmds.Commands the engine actually
// calls, kept as an interface so tests can exercise the engine without a
// live GDB child process (the same pattern used by internal/breakpoints
// and internal/membridge).
type gdbVarCommands interface {
	VarCreateLocal(ctx context.Context, gdbName, threadID, frameID, expr string) (*micmds.VarObjectCreateResult, error)
	VarCreateFloating(ctx context.Context, gdbName, expr string) (*micmds.VarObjectCreateResult, error)
	VarDelete(ctx context.Context, gdbName string) error
	VarAssign(ctx context.Context, gdbName, value string) (string, error)
	VarSetFormat(ctx context.Context, gdbName, format string) error
	VarListChildren(ctx context.Context, gdbName string) ([]micmds.VarChild, error)
	VarUpdateAll(ctx context.Context) ([]micmds.VarUpdateChange, error)
	VarInfoPathExpression(ctx context.Context, gdbName string) (string, error)
	StackListVariables(ctx context.Context, threadID, frameID string) ([]string, error)
	SymbolInfoVariables(ctx context.Context) ([]micmds.SymbolVariable, error)
	DataListRegisterNames(ctx context.Context) ([]micmds.RegisterName, error)
	DataListRegisterValues(ctx context.Context, format string) ([]micmds.RegisterValue, error)
	ConsoleCaptured(ctx context.Context, consoleCmd string) ([]string, error)
}

// transparentWrapperName reports whether a GDB child name is a
// transparent wrapper node to recurse through and merge rather than
// expose directly (spec §4.5 "Listing children").
func transparentWrapperName(name string) bool {
	return strings.HasPrefix(name, "<anonymous ") || name == "public" || name == "private" || name == "protected"
}

// ScopeHandle is one entry of the DAP "scopes" response: a human name
// plus the frame-scope handle the client will echo back in a later
// "variables" request.
type ScopeHandle struct {
	Name   string
	Handle uint64
}

// Engine is the VariableEngine (spec §4.5): it keeps every variable
// object in one HandleRegistry, each tagged with its Container
// (Local/Global/Dynamic); frame scope handles are not stored but packed
// and unpacked by EncodeFrameReference/DecodeFrameReference. It turns DAP
// scope/variable requests into GDB var-object commands.
type Engine struct {
	cmds gdbVarCommands
	logf func(string, ...interface{})

	mu         sync.Mutex
	objects    *HandleRegistry // variable handles (VariableTypeMask set when exposed to the client)
	nextGdbSeq uint64

	regGroupsOnce sync.Once
	regGroups     []RegGroup
	registerRows  []RegisterRow
	regErr        error
	regFormat     atomic.Value // string
}

func New(cmds gdbVarCommands, logf func(string, ...interface{})) *Engine {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Engine{
		cmds:    cmds,
		logf:    logf,
		objects: NewHandleRegistry(),
	}
}

func (e *Engine) nextGdbName() string {
	n := atomic.AddUint64(&e.nextGdbSeq, 1)
	return "mcudbgvar" + strconv.FormatUint(n, 10)
}

// SetRegisterFormat changes the format string used for
// -data-list-register-values on subsequent register expansions (spec §6
// custom request "set-var-format"). Defaults to "x".
func (e *Engine) SetRegisterFormat(format string) {
	e.regFormat.Store(format)
}

func (e *Engine) registerFormat() string {
	if f, ok := e.regFormat.Load().(string); ok && f != "" {
		return f
	}
	return "x"
}

// Scopes returns the DAP scope handles for one stack frame (spec §4.5
// "Containers"). Global/Static are exposed per-frame for convenience but
// resolve to the same underlying container regardless of which frame's
// handle was used to reach them.
func (e *Engine) Scopes(threadID, frameID uint32) []ScopeHandle {
	mk := func(scope Scope, name string) ScopeHandle {
		h := EncodeFrameReference(threadID, frameID, scope)
		return ScopeHandle{Name: name, Handle: h}
	}
	return []ScopeHandle{
		mk(ScopeLocal, "Locals"),
		mk(ScopeRegisters, "Registers"),
		mk(ScopeGlobal, "Globals"),
		mk(ScopeStatic, "Statics"),
	}
}

// Variables resolves a DAP variablesReference to its children: a
// reference with VariableTypeMask set is looked up in the variable object
// table, any other is decoded as a frame scope handle (spec §4.5 "Frame
// handle table").
func (e *Engine) Variables(ctx context.Context, ref uint64) ([]*VariableObject, error) {
	if IsVariableHandle(ref) {
		return e.listChildren(ctx, ref&^VariableTypeMask)
	}
	key := DecodeFrameKey(ref)
	switch key.Scope {
	case ScopeLocal:
		return e.listLocals(ctx, key)
	case ScopeRegisters:
		return e.listRegisters(ctx, key)
	case ScopeGlobal:
		return e.listGlobalsOrStatics(ctx, key, false)
	case ScopeStatic:
		return e.listGlobalsOrStatics(ctx, key, true)
	default:
		return nil, fmt.Errorf("variables: frame scope handle %d has unsupported scope %d: %w", ref, key.Scope, &InvalidReferenceError{Ref: ref})
	}
}

func (e *Engine) listLocals(ctx context.Context, key FrameKey) ([]*VariableObject, error) {
	threadID := strconv.FormatUint(uint64(key.ThreadID), 10)
	frameID := strconv.FormatUint(uint64(key.FrameID), 10)
	names, err := e.cmds.StackListVariables(ctx, threadID, frameID)
	if err != nil {
		return nil, err
	}
	scopeHandle := key.Handle()
	out := make([]*VariableObject, 0, len(names))
	for _, name := range names {
		obj, err := e.createLocal(ctx, scopeHandle, key, threadID, frameID, name, name)
		if err != nil {
			e.logf("variables: create local %q failed: %v", name, err)
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

func (e *Engine) createLocal(ctx context.Context, parentHandle uint64, key FrameKey, threadID, frameID, name, expr string) (*VariableObject, error) {
	gdbName := e.nextGdbName()
	res, err := e.cmds.VarCreateLocal(ctx, gdbName, threadID, frameID, expr)
	if err != nil {
		return nil, err
	}
	obj := &VariableObject{
		ParentHandle: parentHandle,
		Container:    ContainerLocal,
		Scope:        key.Scope,
		Name:         name,
		GdbName:      gdbName,
		EvaluateName: expr,
		Value:        res.Value,
		Type:         res.Type,
		NumChild:     res.NumChild,
		FrameRef:     parentHandle,
		Dynamic:      res.Dynamic,
	}
	h := e.objects.AddObject(obj.valueKey(), obj)
	obj.Handle = h
	return obj, nil
}

func (e *Engine) listGlobalsOrStatics(ctx context.Context, key FrameKey, statics bool) ([]*VariableObject, error) {
	syms, err := e.cmds.SymbolInfoVariables(ctx)
	if err != nil {
		return nil, err
	}
	scopeHandle := key.Handle()
	var out []*VariableObject
	for _, s := range syms {
		if s.Static != statics {
			continue
		}
		obj, err := e.createFloating(ctx, scopeHandle, key.Scope, s.FileName, s.Name, s.Name)
		if err != nil {
			e.logf("variables: create global %q failed: %v", s.Name, err)
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

func (e *Engine) createFloating(ctx context.Context, parentHandle uint64, scope Scope, fileID, name, expr string) (*VariableObject, error) {
	gdbName := e.nextGdbName()
	res, err := e.cmds.VarCreateFloating(ctx, gdbName, expr)
	if err != nil {
		return nil, err
	}
	obj := &VariableObject{
		ParentHandle: parentHandle,
		Container:    ContainerGlobal,
		Scope:        scope,
		Name:         name,
		GdbName:      gdbName,
		EvaluateName: expr,
		Value:        res.Value,
		Type:         res.Type,
		NumChild:     res.NumChild,
		FileID:       fileID,
		Dynamic:      res.Dynamic,
	}
	h := e.objects.AddObject(obj.valueKey(), obj)
	obj.Handle = h
	return obj, nil
}

// CreateWatch creates (or reuses) a watch expression's variable object
// (spec §4.5 "Watch: as global if frame unspecified, else as local.
// Suffix ,<fmt> ... triggers a post-creation -var-set-format").
// haveFrame == false means "no frame in context", forcing the floating
// form.
func (e *Engine) CreateWatch(ctx context.Context, expr string, threadID, frameID uint32, haveFrame bool) (*VariableObject, error) {
	baseExpr, format, hasFormat := splitWatchFormat(expr)

	var obj *VariableObject
	var err error
	if haveFrame {
		tID := strconv.FormatUint(uint64(threadID), 10)
		fID := strconv.FormatUint(uint64(frameID), 10)
		key := FrameKey{ThreadID: threadID, FrameID: frameID, Scope: ScopeWatch}
		obj, err = e.createWatchVar(ctx, key.Handle(), ContainerDynamic, tID, fID, baseExpr, true)
	} else {
		key := FrameKey{Scope: ScopeWatch}
		obj, err = e.createWatchVar(ctx, key.Handle(), ContainerDynamic, "", "", baseExpr, false)
	}
	if err != nil {
		return nil, err
	}
	if hasFormat {
		if err := e.cmds.VarSetFormat(ctx, obj.GdbName, format); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (e *Engine) createWatchVar(ctx context.Context, parentHandle uint64, container Container, threadID, frameID, expr string, local bool) (*VariableObject, error) {
	gdbName := e.nextGdbName()
	var value, typ string
	var numchild int
	var dynamic bool
	if local {
		res, err := e.cmds.VarCreateLocal(ctx, gdbName, threadID, frameID, expr)
		if err != nil {
			return nil, err
		}
		value, typ, numchild, dynamic = res.Value, res.Type, res.NumChild, res.Dynamic
	} else {
		res, err := e.cmds.VarCreateFloating(ctx, gdbName, expr)
		if err != nil {
			return nil, err
		}
		value, typ, numchild, dynamic = res.Value, res.Type, res.NumChild, res.Dynamic
	}
	obj := &VariableObject{
		ParentHandle: parentHandle,
		Container:    container,
		Scope:        ScopeWatch,
		Name:         expr,
		GdbName:      gdbName,
		EvaluateName: expr,
		Value:        value,
		Type:         typ,
		NumChild:     numchild,
		FrameRef:     parentHandle,
		Dynamic:      dynamic,
	}
	h := e.objects.AddObject(obj.valueKey(), obj)
	obj.Handle = h
	return obj, nil
}

// splitWatchFormat splits a trailing ",<fmt>" suffix off a watch
// expression (spec §4.5: "Suffix ,<fmt> on the expression (b,d,o,t,x,X)
// triggers a post-creation -var-set-format").
func splitWatchFormat(expr string) (base, format string, ok bool) {
	i := strings.LastIndexByte(expr, ',')
	if i < 0 || i == len(expr)-1 {
		return expr, "", false
	}
	suffix := expr[i+1:]
	switch suffix {
	case "b", "d", "o", "t", "x", "X":
		return expr[:i], suffix, true
	default:
		return expr, "", false
	}
}

// DeleteWatch removes a watch's backing GDB variable and releases its
// handle (spec §3 "Watch: individual entries survive until the client
// removes them").
func (e *Engine) DeleteWatch(ctx context.Context, handle uint64) error {
	handle &^= VariableTypeMask
	obj, ok := e.objects.Lookup(handle)
	if !ok {
		return nil
	}
	v := obj.(*VariableObject)
	e.objects.Release(handle)
	return e.cmds.VarDelete(ctx, v.GdbName)
}

// SetValue assigns value to an existing variable object identified by
// handle via -var-assign, and updates the cached Value in place (spec
// §4.5/§6 "setVariable": the DAP client resolves variablesReference+name
// to a handle by first listing children, then calls this with that
// handle).
func (e *Engine) SetValue(ctx context.Context, handle uint64, value string) (*VariableObject, error) {
	handle &^= VariableTypeMask
	obj, ok := e.objects.Lookup(handle)
	if !ok {
		return nil, &NoSuchVariableError{Handle: handle}
	}
	v := obj.(*VariableObject)
	newValue, err := e.cmds.VarAssign(ctx, v.GdbName, value)
	if err != nil {
		return nil, err
	}
	v.Value = newValue
	return v, nil
}

// SetExpressionValue assigns value to an arbitrary expression (spec §6
// "setExpression"), creating a scratch watch var-object to host the
// assignment and leaving it registered exactly like any other watch
// created through CreateWatch: it stays until DeleteWatch or DeleteAll
// removes it.
func (e *Engine) SetExpressionValue(ctx context.Context, expr, value string, threadID, frameID uint32, haveFrame bool) (*VariableObject, error) {
	obj, err := e.CreateWatch(ctx, expr, threadID, frameID, haveFrame)
	if err != nil {
		return nil, err
	}
	return e.SetValue(ctx, obj.Handle, value)
}

// DeleteAll tears down every live variable object and its backing GDB
// var-object (spec §6 "deleteLiveGdbVariables": LiveWatch keeps its own
// object table separate from the primary session's and needs a way to
// discard all of it, e.g. when its DAP client disconnects). Frame scope
// handles need no cleanup: they are a pure encoding of (thread, frame,
// scope), not a registered object.
func (e *Engine) DeleteAll(ctx context.Context) {
	var all []*VariableObject
	e.objects.Each(func(_ uint64, v interface{}) {
		all = append(all, v.(*VariableObject))
	})
	for _, obj := range all {
		if obj.GdbName == "" {
			e.objects.Release(obj.Handle)
			continue
		}
		if err := e.cmds.VarDelete(ctx, obj.GdbName); err != nil {
			e.logf("variables: -var-delete %s failed: %v", obj.GdbName, err)
		}
		e.objects.Release(obj.Handle)
	}
}

func (e *Engine) listChildren(ctx context.Context, handle uint64) ([]*VariableObject, error) {
	obj, ok := e.objects.Lookup(handle)
	if !ok {
		return nil, &NoSuchVariableError{Handle: handle}
	}
	parent := obj.(*VariableObject)
	return e.listChildrenOf(ctx, parent)
}

func (e *Engine) listChildrenOf(ctx context.Context, parent *VariableObject) ([]*VariableObject, error) {
	if parent.GdbName == "" && parent.Scope == ScopeRegisters {
		return e.listRegisterLeaves(ctx, parent)
	}
	raw, err := e.cmds.VarListChildren(ctx, parent.GdbName)
	if err != nil {
		return nil, err
	}
	var out []*VariableObject
	for _, c := range raw {
		if transparentWrapperName(c.Exp) {
			// The wrapper itself is never exposed to the client: it
			// inherits the real parent's handle/scope/container so its
			// children attach directly to the struct, not to a
			// never-registered pseudo-object.
			wrapper := &VariableObject{
				Handle:       parent.Handle,
				GdbName:      c.GdbName,
				EvaluateName: parent.EvaluateName,
				Type:         parent.Type,
				Container:    parent.Container,
				Scope:        parent.Scope,
				FrameRef:     parent.FrameRef,
				FileID:       parent.FileID,
			}
			nested, err := e.listChildrenOf(ctx, wrapper)
			if err != nil {
				e.logf("variables: expand wrapper %q failed: %v", c.GdbName, err)
				continue
			}
			out = append(out, nested...)
			continue
		}
		evalName := childEvaluateName(parent.EvaluateName, parent.Type, c.Exp)
		child := &VariableObject{
			ParentHandle: parent.Handle,
			Container:    parent.Container,
			Scope:        parent.Scope,
			Name:         c.Exp,
			GdbName:      c.GdbName,
			EvaluateName: evalName,
			Value:        c.Value,
			Type:         c.Type,
			NumChild:     c.NumChild,
			FrameRef:     parent.FrameRef,
			FileID:       parent.FileID,
			Dynamic:      c.Dynamic,
		}
		h := e.objects.AddObject(child.valueKey(), child)
		child.Handle = h
		out = append(out, child)
	}
	return out, nil
}

// CanonicalEvaluateName returns the GDB-authoritative evaluateName for a
// variable handle, asking -var-info-path-expression rather than trusting
// the textual construction in childEvaluateName (spec §4.5 "If the above
// doesn't yield the canonical expression, attempt
// -var-info-path-expression for a GDB-authoritative answer"). Callers
// use this when a client re-evaluate of the constructed name fails.
func (e *Engine) CanonicalEvaluateName(ctx context.Context, handle uint64) (string, error) {
	handle &^= VariableTypeMask
	obj, ok := e.objects.Lookup(handle)
	if !ok {
		return "", &NoSuchVariableError{Handle: handle}
	}
	v := obj.(*VariableObject)
	if v.GdbName == "" {
		return v.EvaluateName, nil
	}
	path, err := e.cmds.VarInfoPathExpression(ctx, v.GdbName)
	if err != nil || path == "" {
		return v.EvaluateName, nil
	}
	return path, nil
}

// VariablesReferenceFor returns the DAP variablesReference for obj: 0 if
// it has no children, else its handle with VariableTypeMask set.
func VariablesReferenceFor(obj *VariableObject) uint64 {
	if obj.NumChild == 0 && !obj.Dynamic {
		return 0
	}
	return obj.Handle | VariableTypeMask
}

// UpdateOnStop refreshes every Global/Static and Watch variable object
// via a single -var-update --all-values * and returns the objects that
// changed (spec §4.5 "Updating on stop"). Local/Registers objects are
// not touched here: they are torn down by ClearFrameContainers instead.
func (e *Engine) UpdateOnStop(ctx context.Context) ([]*VariableObject, error) {
	changes, err := e.cmds.VarUpdateAll(ctx)
	if err != nil {
		return nil, err
	}
	byGdbName := make(map[string]*VariableObject)
	e.objects.Each(func(_ uint64, v interface{}) {
		obj := v.(*VariableObject)
		if obj.Container == ContainerLocal {
			return
		}
		byGdbName[obj.GdbName] = obj
	})

	var out []*VariableObject
	for _, c := range changes {
		obj, ok := byGdbName[c.GdbName]
		if !ok {
			continue
		}
		if !c.InScope {
			continue
		}
		obj.Value = c.Value
		if c.TypeChanged {
			obj.Type = c.NewType
		}
		obj.Dynamic = c.Dynamic
		obj.DisplayHint = c.DisplayHint
		obj.HasMore = c.HasMore
		obj.Changed = true
		out = append(out, obj)
	}
	return out, nil
}

// ClearFrameContainers tears down every Local/Registers variable object
// and its backing GDB var-object, since frame numbers are only
// meaningful for the stop that produced them (spec §3 "Local and
// Registers containers: cleared on every continue, and again on every
// stop"). The frame scope handles that named them need no separate
// cleanup: they are a pure encoding of (thread, frame, scope), not a
// registered object, so there is nothing to release.
func (e *Engine) ClearFrameContainers(ctx context.Context) {
	var stale []*VariableObject
	e.objects.Each(func(_ uint64, v interface{}) {
		obj := v.(*VariableObject)
		if obj.Container == ContainerLocal {
			stale = append(stale, obj)
		}
	})
	for _, obj := range stale {
		if err := e.cmds.VarDelete(ctx, obj.GdbName); err != nil {
			e.logf("variables: -var-delete %s failed: %v", obj.GdbName, err)
		}
		e.objects.Release(obj.Handle)
	}
}

// loadRegisterGroups fetches and parses the two "maint print ..." tables
// exactly once per Engine lifetime: group membership is a target
// property that doesn't change mid-session (spec §4.5 "Registers", "On
// the first registers request").
func (e *Engine) loadRegisterGroups(ctx context.Context) {
	e.regGroupsOnce.Do(func() {
		groupLines, err := e.cmds.ConsoleCaptured(ctx, "maint print reggroups")
		if err != nil {
			e.regErr = err
			return
		}
		e.regGroups = ParseRegGroups(groupLines)

		rowLines, err := e.cmds.ConsoleCaptured(ctx, "maint print register-groups")
		if err != nil {
			e.regErr = err
			return
		}
		e.registerRows = ParseRegisterGroups(rowLines)
	})
}

// listRegisters returns one pseudo-variable per non-internal register
// group (plus a synthetic "Misc" group for registers with no
// non-internal membership); expanding one of these lists its member
// registers (spec §4.5 "Registers").
func (e *Engine) listRegisters(ctx context.Context, key FrameKey) ([]*VariableObject, error) {
	e.loadRegisterGroups(ctx)
	if e.regErr != nil {
		return nil, e.regErr
	}
	scopeHandle := key.Handle()

	nonInternal := make(map[string]bool)
	for _, g := range e.regGroups {
		if !g.Internal {
			nonInternal[g.Name] = true
		}
	}

	membersByGroup := make(map[string][]RegisterRow)
	var misc []RegisterRow
	for _, row := range e.registerRows {
		matched := false
		for _, g := range row.Groups {
			if nonInternal[g] {
				membersByGroup[g] = append(membersByGroup[g], row)
				matched = true
			}
		}
		if !matched {
			misc = append(misc, row)
		}
	}

	var out []*VariableObject
	for _, g := range e.regGroups {
		if g.Internal {
			continue
		}
		members := membersByGroup[g.Name]
		if len(members) == 0 {
			continue
		}
		out = append(out, e.makeRegisterGroupVar(scopeHandle, g.Name, members))
	}
	if len(misc) > 0 {
		out = append(out, e.makeRegisterGroupVar(scopeHandle, MiscGroupName, misc))
	}
	return out, nil
}

func (e *Engine) makeRegisterGroupVar(parentHandle uint64, name string, members []RegisterRow) *VariableObject {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	obj := &VariableObject{
		ParentHandle:  parentHandle,
		Container:     ContainerLocal,
		Scope:         ScopeRegisters,
		Name:          name,
		NumChild:      len(members),
		FrameRef:      parentHandle,
		RegisterNames: names,
	}
	h := e.objects.AddObject(obj.valueKey(), obj)
	obj.Handle = h
	return obj
}

// listRegisterLeaves creates (or reuses) one var-object per register in
// a group, displaying the group-formatted value from
// -data-list-register-values and decoding $xpsr/$control into a
// bitfield description (spec §4.5 "Inside a group, each register is a
// leaf created via -var-create ... displayed with the group-formatted
// value", and "$xpsr / $control decoding").
func (e *Engine) listRegisterLeaves(ctx context.Context, parent *VariableObject) ([]*VariableObject, error) {
	values, err := e.cmds.DataListRegisterValues(ctx, e.registerFormat())
	if err != nil {
		return nil, err
	}
	formattedByNumber := make(map[string]string, len(values))
	for _, v := range values {
		formattedByNumber[v.Number] = v.Value
	}

	names, err := e.cmds.DataListRegisterNames(ctx)
	if err != nil {
		return nil, err
	}
	numberByName := make(map[string]int, len(names))
	for _, n := range names {
		numberByName[n.Name] = n.Number
	}

	out := make([]*VariableObject, 0, len(parent.RegisterNames))
	for _, regName := range parent.RegisterNames {
		gdbName := e.nextGdbName()
		res, err := e.cmds.VarCreateFloating(ctx, gdbName, "$"+regName)
		if err != nil {
			e.logf("variables: create register $%s failed: %v", regName, err)
			continue
		}
		obj := &VariableObject{
			ParentHandle: parent.Handle,
			Container:    ContainerLocal,
			Scope:        ScopeRegisters,
			Name:         regName,
			GdbName:      gdbName,
			EvaluateName: "$" + regName,
			Value:        res.Value,
			Type:         res.Type,
			NumChild:     res.NumChild,
			FrameRef:     parent.FrameRef,
			Dynamic:      res.Dynamic,
		}
		if num, ok := numberByName[regName]; ok {
			if formatted, ok := formattedByNumber[strconv.Itoa(num)]; ok {
				obj.Value = formatted
			}
		}
		if raw, ok := parseHexRegisterValue(obj.Value); ok {
			if decoded, ok := DecodeSpecialRegister(strings.TrimPrefix(regName, "$"), raw); ok {
				obj.Type = decoded
			}
		}
		h := e.objects.AddObject(obj.valueKey(), obj)
		obj.Handle = h
		out = append(out, obj)
	}
	return out, nil
}

// parseHexRegisterValue accepts a -data-list-register-values formatted
// value in whatever base the caller's configured format produces
// ("0x..." hex, or a plain decimal string) and returns its numeric
// value.
func parseHexRegisterValue(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if hex := strings.TrimPrefix(s, "0x"); hex != s {
		v, err := strconv.ParseUint(hex, 16, 64)
		return v, err == nil
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}
