package micmds

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

// VarObjectCreateResult is the parsed result of -var-create.
type VarObjectCreateResult struct {
	Name     string
	NumChild int
	Value    string
	Type     string
	Dynamic  bool
}

// VarCreateLocal issues -var-create --thread T --frame F <name> * <expr>
// (spec §4.5 "Creating a variable", Local case).
func (c *Commands) VarCreateLocal(ctx context.Context, gdbName, threadID, frameID, expr string) (*VarObjectCreateResult, error) {
	cmd := fmt.Sprintf(`-var-create --thread %s --frame %s %s * "%s"`, threadID, frameID, gdbName, escapeQuotes(expr))
	return c.varCreate(ctx, cmd)
}

// VarCreateFloating issues -var-create <name> @ <expr>, used for Global,
// Static and frame-unspecified Watch variables (spec §4.5 "Global/Static").
func (c *Commands) VarCreateFloating(ctx context.Context, gdbName, expr string) (*VarObjectCreateResult, error) {
	cmd := fmt.Sprintf(`-var-create %s @ "%s"`, gdbName, escapeQuotes(expr))
	return c.varCreate(ctx, cmd)
}

func (c *Commands) varCreate(ctx context.Context, cmd string) (*VarObjectCreateResult, error) {
	rec, err := c.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	numchild, _ := strconv.Atoi(rec.Fields.StrOr("numchild", "0"))
	return &VarObjectCreateResult{
		Name:     rec.Fields.StrOr("name", ""),
		NumChild: numchild,
		Value:    rec.Fields.StrOr("value", ""),
		Type:     rec.Fields.StrOr("type", ""),
		Dynamic:  rec.Fields.StrOr("dynamic", "0") == "1",
	}, nil
}

// VarDelete issues -var-delete <name>. Missing objects (already gone on
// the GDB side, e.g. a frame that no longer exists) are tolerated.
func (c *Commands) VarDelete(ctx context.Context, gdbName string) error {
	rec, err := c.send(ctx, fmt.Sprintf("-var-delete %s", gdbName))
	if err != nil {
		return err
	}
	if rec.Class == mi.ClassError {
		return nil
	}
	return requireClass(rec, mi.ClassDone)
}

// VarSetFormat issues -var-set-format <name> <fmt>, where fmt is one of
// b,d,o,t,x,X (spec §4.5 "Suffix <,fmt>... triggers a post-creation
// -var-set-format").
func (c *Commands) VarSetFormat(ctx context.Context, gdbName, format string) error {
	rec, err := c.send(ctx, fmt.Sprintf("-var-set-format %s %s", gdbName, format))
	if err != nil {
		return err
	}
	return requireClass(rec, mi.ClassDone)
}

// VarAssign issues -var-assign <name> "<value>" and returns the new
// value GDB reports after the assignment (spec §4.5 "SetVariable /
// SetExpression assign through -var-assign").
func (c *Commands) VarAssign(ctx context.Context, gdbName, value string) (string, error) {
	cmd := fmt.Sprintf(`-var-assign %s "%s"`, gdbName, escapeQuotes(value))
	rec, err := c.send(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return "", err
	}
	return rec.Fields.StrOr("value", value), nil
}

// VarChild is one entry returned by -var-list-children --all-values.
type VarChild struct {
	GdbName  string
	Exp      string
	NumChild int
	Value    string
	Type     string
	Dynamic  bool
}

// VarListChildren issues -var-list-children --all-values <name> and
// returns its direct children (spec §4.5 "Listing children"; transparent
// wrapper recursion is the caller's responsibility since it requires
// re-invoking this same command on each wrapper's gdb name).
func (c *Commands) VarListChildren(ctx context.Context, gdbName string) ([]VarChild, error) {
	rec, err := c.send(ctx, fmt.Sprintf("-var-list-children --all-values %s", gdbName))
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	childrenVal, err := rec.Fields.SubList("children")
	if err != nil {
		// numchild == 0: GDB omits the field entirely.
		return nil, nil
	}
	var out []VarChild
	for _, v := range childrenVal {
		var t *mi.Tuple
		switch {
		case v.Kind == mi.TupleKind:
			t = v.Tuple
		default:
			continue
		}
		child, err := t.SubTuple("child")
		if err != nil {
			// Some GDB versions emit the child fields directly, not
			// nested under a "child" key.
			child = t
		}
		numchild, _ := strconv.Atoi(child.StrOr("numchild", "0"))
		out = append(out, VarChild{
			GdbName:  child.StrOr("name", ""),
			Exp:      child.StrOr("exp", ""),
			NumChild: numchild,
			Value:    child.StrOr("value", ""),
			Type:     child.StrOr("type", ""),
			Dynamic:  child.StrOr("dynamic", "0") == "1",
		})
	}
	return out, nil
}

// VarUpdateChange is one entry of a -var-update change list.
type VarUpdateChange struct {
	GdbName     string
	Value       string
	NewType     string
	TypeChanged bool
	Dynamic     bool
	DisplayHint string
	HasMore     bool
	InScope     bool
}

// VarUpdateAll issues -var-update --all-values * and returns the full
// change list (spec §4.5 "Updating on stop").
func (c *Commands) VarUpdateAll(ctx context.Context) ([]VarUpdateChange, error) {
	rec, err := c.send(ctx, "-var-update --all-values *")
	if err != nil {
		return nil, err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return nil, err
	}
	changes, err := rec.Fields.SubList("changelist")
	if err != nil {
		return nil, nil
	}
	var out []VarUpdateChange
	for _, t := range mi.AsTuples(changes) {
		hasMore, _ := strconv.Atoi(t.StrOr("has_more", "0"))
		out = append(out, VarUpdateChange{
			GdbName:     t.StrOr("name", ""),
			Value:       t.StrOr("value", ""),
			NewType:     t.StrOr("new_type", ""),
			TypeChanged: t.StrOr("type_changed", "false") == "true",
			Dynamic:     t.StrOr("dynamic", "0") == "1",
			DisplayHint: t.StrOr("displayhint", ""),
			HasMore:     hasMore != 0,
			InScope:     t.StrOr("in_scope", "true") == "true",
		})
	}
	return out, nil
}

// VarInfoPathExpression issues -var-info-path-expression <name>, the
// GDB-authoritative fallback for evaluateName construction (spec §4.5
// "If the above doesn't yield the canonical expression...").
func (c *Commands) VarInfoPathExpression(ctx context.Context, gdbName string) (string, error) {
	rec, err := c.send(ctx, fmt.Sprintf("-var-info-path-expression %s", gdbName))
	if err != nil {
		return "", err
	}
	if err := requireClass(rec, mi.ClassDone); err != nil {
		return "", err
	}
	return rec.Fields.Str("path_expr")
}

// ConsoleCaptured issues a console command and collects every console
// stream line GDB emits while the command is outstanding, since GDB
// reports "maint print ..." tables as plain ~"..." stream text rather
// than MI fields (spec §4.5 "Registers", steps 1-2). The caller (the
// variables package) owns the regex for parsing these specific tables,
// mirroring how breakpoints owns its own MI field quirks.
func (c *Commands) ConsoleCaptured(ctx context.Context, consoleCmd string) ([]string, error) {
	sub, cancel := c.Gdb.Subscribe()
	defer cancel()

	// GdbInstance dispatches stdout strictly in arrival order, so every
	// stream line the command produces is already sitting in sub's
	// buffer by the time the tagged result record below comes back.
	_, err := c.InterpreterExecConsole(ctx, consoleCmd)
	if err != nil {
		return nil, err
	}

	var lines []string
	for {
		select {
		case ev := <-sub:
			if ev.Kind == "console" {
				lines = append(lines, ev.Text)
			}
		default:
			return lines, nil
		}
	}
}
