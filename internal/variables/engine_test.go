package variables

import (
	"context"
	"testing"

	"github.com/mcu-debug/mcu-debug-core/internal/micmds"
)

type fakeCmds struct {
	nextNum int

	localNames    []string
	createResults map[string]micmds.VarObjectCreateResult // keyed by expr
	children      map[string][]micmds.VarChild             // keyed by gdbName
	updates       []micmds.VarUpdateChange
	symbols       []micmds.SymbolVariable
	regNames      []micmds.RegisterName
	regValues     []micmds.RegisterValue
	consoleLines  map[string][]string
	pathExpr      map[string]string

	deleted  []string
	formats  map[string]string
	assigned map[string]string
}

func newFakeCmds() *fakeCmds {
	return &fakeCmds{
		createResults: map[string]micmds.VarObjectCreateResult{},
		children:      map[string][]micmds.VarChild{},
		consoleLines:  map[string][]string{},
		pathExpr:      map[string]string{},
		formats:       map[string]string{},
	}
}

func (f *fakeCmds) resultFor(expr string) micmds.VarObjectCreateResult {
	if r, ok := f.createResults[expr]; ok {
		return r
	}
	return micmds.VarObjectCreateResult{Value: "0", Type: "int"}
}

func (f *fakeCmds) VarCreateLocal(ctx context.Context, gdbName, threadID, frameID, expr string) (*micmds.VarObjectCreateResult, error) {
	r := f.resultFor(expr)
	return &r, nil
}

func (f *fakeCmds) VarCreateFloating(ctx context.Context, gdbName, expr string) (*micmds.VarObjectCreateResult, error) {
	r := f.resultFor(expr)
	return &r, nil
}

func (f *fakeCmds) VarDelete(ctx context.Context, gdbName string) error {
	f.deleted = append(f.deleted, gdbName)
	return nil
}

func (f *fakeCmds) VarAssign(ctx context.Context, gdbName, value string) (string, error) {
	if f.assigned == nil {
		f.assigned = map[string]string{}
	}
	f.assigned[gdbName] = value
	return value, nil
}

func (f *fakeCmds) VarSetFormat(ctx context.Context, gdbName, format string) error {
	f.formats[gdbName] = format
	return nil
}

func (f *fakeCmds) VarListChildren(ctx context.Context, gdbName string) ([]micmds.VarChild, error) {
	return f.children[gdbName], nil
}

func (f *fakeCmds) VarUpdateAll(ctx context.Context) ([]micmds.VarUpdateChange, error) {
	return f.updates, nil
}

func (f *fakeCmds) VarInfoPathExpression(ctx context.Context, gdbName string) (string, error) {
	return f.pathExpr[gdbName], nil
}

func (f *fakeCmds) StackListVariables(ctx context.Context, threadID, frameID string) ([]string, error) {
	return f.localNames, nil
}

func (f *fakeCmds) SymbolInfoVariables(ctx context.Context) ([]micmds.SymbolVariable, error) {
	return f.symbols, nil
}

func (f *fakeCmds) DataListRegisterNames(ctx context.Context) ([]micmds.RegisterName, error) {
	return f.regNames, nil
}

func (f *fakeCmds) DataListRegisterValues(ctx context.Context, format string) ([]micmds.RegisterValue, error) {
	return f.regValues, nil
}

func (f *fakeCmds) ConsoleCaptured(ctx context.Context, consoleCmd string) ([]string, error) {
	return f.consoleLines[consoleCmd], nil
}

func TestScopesReturnsFourDistinctHandles(t *testing.T) {
	e := New(newFakeCmds(), nil)
	scopes := e.Scopes(1, 0)
	if len(scopes) != 4 {
		t.Fatalf("expected 4 scopes, got %d", len(scopes))
	}
	seen := map[uint64]bool{}
	for _, s := range scopes {
		if seen[s.Handle] {
			t.Fatalf("duplicate scope handle %d", s.Handle)
		}
		seen[s.Handle] = true
		if IsVariableHandle(s.Handle) {
			t.Fatalf("scope handle %d should not have VariableTypeMask set", s.Handle)
		}
	}
}

func TestListLocalsAssignsReferenceOnlyWhenExpandable(t *testing.T) {
	f := newFakeCmds()
	f.localNames = []string{"leaf", "branch"}
	f.createResults = map[string]micmds.VarObjectCreateResult{
		"leaf":   {Value: "3", Type: "int", NumChild: 0},
		"branch": {Value: "{...}", Type: "struct foo", NumChild: 2},
	}
	e := New(f, nil)
	scopes := e.Scopes(1, 0)
	localsHandle := scopes[0].Handle

	vars, err := e.Variables(context.Background(), localsHandle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vars) != 2 {
		t.Fatalf("expected 2 locals, got %d", len(vars))
	}
	byName := map[string]*VariableObject{}
	for _, v := range vars {
		byName[v.Name] = v
	}
	if ref := VariablesReferenceFor(byName["leaf"]); ref != 0 {
		t.Fatalf("leaf should have no variablesReference, got %d", ref)
	}
	if ref := VariablesReferenceFor(byName["branch"]); ref == 0 || !IsVariableHandle(ref) {
		t.Fatalf("branch should have a variable-handle reference, got %d", ref)
	}
}

func TestListChildrenMergesTransparentWrapper(t *testing.T) {
	f := newFakeCmds()
	f.localNames = []string{"obj"}
	f.createResults = map[string]micmds.VarObjectCreateResult{
		"obj": {Value: "{...}", Type: "struct Derived", NumChild: 1},
	}
	f.children = map[string][]micmds.VarChild{
		"mcudbgvar1": {
			{GdbName: "mcudbgvar1.pub", Exp: "public", NumChild: 1},
		},
		"mcudbgvar1.pub": {
			{GdbName: "mcudbgvar1.pub.x", Exp: "x", Value: "5", Type: "int"},
		},
	}
	e := New(f, nil)
	scopes := e.Scopes(1, 0)
	vars, err := e.Variables(context.Background(), scopes[0].Handle)
	if err != nil {
		t.Fatal(err)
	}
	ref := VariablesReferenceFor(vars[0])

	children, err := e.Variables(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error listing children: %v", err)
	}
	if len(children) != 1 || children[0].Name != "x" {
		t.Fatalf("expected the public wrapper's child to be merged through, got %+v", children)
	}
	if children[0].EvaluateName != "obj.x" {
		t.Fatalf("unexpected evaluateName: %q", children[0].EvaluateName)
	}
}

func TestCreateWatchSplitsFormatSuffixAndAppliesIt(t *testing.T) {
	f := newFakeCmds()
	f.createResults["count"] = micmds.VarObjectCreateResult{Value: "10", Type: "int"}
	e := New(f, nil)

	obj, err := e.CreateWatch(context.Background(), "count,x", 0, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.EvaluateName != "count" {
		t.Fatalf("expected format suffix stripped, got %q", obj.EvaluateName)
	}
	if f.formats[obj.GdbName] != "x" {
		t.Fatalf("expected -var-set-format x to be issued, got %q", f.formats[obj.GdbName])
	}
}

func TestUpdateOnStopSkipsLocalContainerObjects(t *testing.T) {
	f := newFakeCmds()
	f.symbols = []micmds.SymbolVariable{{Name: "g_counter", FileName: "main.c"}}
	f.createResults["g_counter"] = micmds.VarObjectCreateResult{Value: "1", Type: "int"}
	f.localNames = []string{"local_var"}
	f.createResults["local_var"] = micmds.VarObjectCreateResult{Value: "7", Type: "int"}

	e := New(f, nil)
	scopes := e.Scopes(1, 0)
	locals, err := e.Variables(context.Background(), scopes[0].Handle) // Locals
	if err != nil {
		t.Fatal(err)
	}
	globals, err := e.Variables(context.Background(), scopes[2].Handle) // Globals
	if err != nil {
		t.Fatal(err)
	}

	f.updates = []micmds.VarUpdateChange{
		{GdbName: globals[0].GdbName, Value: "2", InScope: true},
		{GdbName: locals[0].GdbName, Value: "8", InScope: true},
		{GdbName: "mcudbgvar-does-not-exist", Value: "99", InScope: true},
	}
	changed, err := e.UpdateOnStop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0].Value != "2" {
		t.Fatalf("expected exactly the global to update, got %+v", changed)
	}
}

func TestClearFrameContainersDeletesLocals(t *testing.T) {
	f := newFakeCmds()
	f.localNames = []string{"x"}
	f.createResults["x"] = micmds.VarObjectCreateResult{Value: "1", Type: "int"}

	e := New(f, nil)
	scopes := e.Scopes(3, 1)
	vars, err := e.Variables(context.Background(), scopes[0].Handle)
	if err != nil {
		t.Fatal(err)
	}
	gdbName := vars[0].GdbName

	e.ClearFrameContainers(context.Background())

	found := false
	for _, d := range f.deleted {
		if d == gdbName {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q to have been -var-deleted, got %v", gdbName, f.deleted)
	}
	// The Locals frame scope handle itself is a pure (thread, frame,
	// scope) encoding, not a registered object, so it decodes the same
	// way before and after clearing; only the GDB-backed children it
	// named are torn down.
	if got := DecodeFrameKey(scopes[0].Handle); got.Scope != ScopeLocal {
		t.Fatalf("expected the handle to still decode to ScopeLocal, got %+v", got)
	}
}

func TestListRegistersGroupsAndExpandsLeafWithXpsrDecoding(t *testing.T) {
	f := newFakeCmds()
	f.consoleLines["maint print reggroups"] = []string{
		" Group     Type",
		" general   user",
		" all       internal",
	}
	f.consoleLines["maint print register-groups"] = []string{
		" Name  Nr  Groups",
		" r0    0   general,all",
		" xpsr  25  general,all",
	}
	f.regNames = []micmds.RegisterName{{Number: 0, Name: "r0"}, {Number: 25, Name: "xpsr"}}
	f.regValues = []micmds.RegisterValue{{Number: "0", Value: "0x5"}, {Number: "25", Value: "0x80000000"}}
	f.createResults["$r0"] = micmds.VarObjectCreateResult{Value: "0x5", Type: "int32_t"}
	f.createResults["$xpsr"] = micmds.VarObjectCreateResult{Value: "0x80000000", Type: "int32_t"}

	e := New(f, nil)
	scopes := e.Scopes(1, 0)
	groups, err := e.Variables(context.Background(), scopes[1].Handle) // Registers
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Name != "general" {
		t.Fatalf("expected a single \"general\" group, got %+v", groups)
	}

	leaves, err := e.Variables(context.Background(), VariablesReferenceFor(groups[0]))
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaf registers, got %d", len(leaves))
	}
	var xpsr *VariableObject
	for _, l := range leaves {
		if l.Name == "xpsr" {
			xpsr = l
		}
	}
	if xpsr == nil {
		t.Fatal("expected an xpsr leaf")
	}
	if !contains(xpsr.Type, "N = 1") {
		t.Fatalf("expected xpsr type to carry the decoded N bit, got %q", xpsr.Type)
	}
}
