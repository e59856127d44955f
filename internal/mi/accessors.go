package mi

import "fmt"

// ErrWrongShape is returned by the typed accessors below when a field
// exists but is not the expected kind (spec §9 DESIGN NOTES: "wrap field
// lookup in a small helper that produces a typed error when the expected
// shape is absent").
type ErrWrongShape struct {
	Field    string
	Expected string
	Got      ValueKind
}

func (e *ErrWrongShape) Error() string {
	return fmt.Sprintf("mi: field %q expected %s, got kind %d", e.Field, e.Expected, e.Got)
}

// Str returns the named field as a Const string.
func (t *Tuple) Str(name string) (string, error) {
	v, ok := t.Get(name)
	if !ok {
		return "", fmt.Errorf("mi: missing field %q", name)
	}
	if v.Kind != ConstKind {
		return "", &ErrWrongShape{Field: name, Expected: "const", Got: v.Kind}
	}
	return v.Str, nil
}

// StrOr returns the named const field, or def if absent.
func (t *Tuple) StrOr(name, def string) string {
	s, err := t.Str(name)
	if err != nil {
		return def
	}
	return s
}

// SubTuple returns the named field as a nested Tuple.
func (t *Tuple) SubTuple(name string) (*Tuple, error) {
	v, ok := t.Get(name)
	if !ok {
		return nil, fmt.Errorf("mi: missing field %q", name)
	}
	if v.Kind != TupleKind {
		return nil, &ErrWrongShape{Field: name, Expected: "tuple", Got: v.Kind}
	}
	return v.Tuple, nil
}

// SubList returns the named field as a value list.
func (t *Tuple) SubList(name string) ([]Value, error) {
	v, ok := t.Get(name)
	if !ok {
		return nil, fmt.Errorf("mi: missing field %q", name)
	}
	if v.Kind != ListKind {
		return nil, &ErrWrongShape{Field: name, Expected: "list", Got: v.Kind}
	}
	return v.List, nil
}

// AsTuples is a convenience for values that are known to be GDB "result
// lists" masquerading as a list-of-values (e.g. a list of bkpt tuples):
// it treats a ListKind value whose elements are each TupleKind as a slice
// of *Tuple.
func AsTuples(vals []Value) []*Tuple {
	out := make([]*Tuple, 0, len(vals))
	for _, v := range vals {
		if v.Kind == TupleKind {
			out = append(out, v.Tuple)
		}
	}
	return out
}
