// Package mi implements the GDB/MI (machine interface) output grammar: one
// parsed record per line of GDB's --interpreter=mi3 stdout, preserving the
// duplicate-key and ordering behavior the rest of the bridge depends on.
package mi

import (
	"strconv"
	"strings"
)

// ValueKind tags the three shapes an MI value can take (spec §3).
type ValueKind int

const (
	ConstKind ValueKind = iota
	TupleKind
	ListKind
)

// Value is a tagged union: exactly one of Str, Tuple, List is meaningful,
// selected by Kind.
type Value struct {
	Kind  ValueKind
	Str   string
	Tuple *Tuple
	List  []Value
}

func Const(s string) Value { return Value{Kind: ConstKind, Str: s} }

func (v Value) String() string {
	switch v.Kind {
	case ConstKind:
		return v.Str
	case TupleKind:
		return v.Tuple.String()
	case ListKind:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return ""
	}
}

// entry is one name=value pair inside a Tuple, in insertion order.
type entry struct {
	key   string
	value Value
}

// Tuple is an ordered name->value mapping that preserves duplicate keys.
// GDB is free to emit e.g. thread-ids={thread-id="1",thread-id="2"}; the
// second and later occurrences of a name are stored under a "#2", "#3", ...
// suffix so that no data is lost, while Get still returns the first
// (canonical) occurrence and All returns every occurrence sharing the
// unsuffixed prefix (spec §3, §4.1).
type Tuple struct {
	entries []entry
	counts  map[string]int
}

func NewTuple() *Tuple {
	return &Tuple{counts: make(map[string]int)}
}

// Add appends a name=value pair, suffixing the stored key if name was
// already seen.
func (t *Tuple) Add(name string, v Value) {
	n := t.counts[name]
	t.counts[name] = n + 1
	key := name
	if n > 0 {
		key = name + "#" + strconv.Itoa(n+1)
	}
	t.entries = append(t.entries, entry{key: key, value: v})
}

// Get returns the first (canonical) value stored under name.
func (t *Tuple) Get(name string) (Value, bool) {
	for _, e := range t.entries {
		if e.key == name {
			return e.value, true
		}
	}
	return Value{}, false
}

// All returns every value whose key equals name or name + "#N", in
// insertion order — used by callers that must see every duplicate
// (e.g. the full thread-ids list).
func (t *Tuple) All(name string) []Value {
	var out []Value
	prefix := name + "#"
	for _, e := range t.entries {
		if e.key == name || strings.HasPrefix(e.key, prefix) {
			out = append(out, e.value)
		}
	}
	return out
}

// Keys returns the ordered, possibly-suffixed key list.
func (t *Tuple) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.key
	}
	return keys
}

// Len reports the number of name=value entries (including suffixed dups).
func (t *Tuple) Len() int { return len(t.entries) }

func (t *Tuple) String() string {
	parts := make([]string, len(t.entries))
	for i, e := range t.entries {
		parts[i] = e.key + "=" + renderConst(e.value)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func renderConst(v Value) string {
	if v.Kind == ConstKind {
		return quoteCString(v.Str)
	}
	return v.String()
}

