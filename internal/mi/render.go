package mi

import (
	"strconv"
	"strings"
)

// Render produces a canonical textual form of a Record. It is the inverse
// of Parse up to duplicate-key suffix representation: re-parsing Render's
// output and comparing field-by-field (not suffix-by-suffix) is how the
// round-trip property in spec §8 is tested.
func Render(r Record) string {
	var b strings.Builder
	switch rec := r.(type) {
	case *ResultRecord:
		writeToken(&b, rec.Token)
		b.WriteByte('^')
		b.WriteString(rec.RawClass)
		writeFields(&b, rec.Fields)
	case *AsyncRecord:
		writeToken(&b, rec.Token)
		switch rec.Kind {
		case AsyncExec:
			b.WriteByte('*')
		case AsyncStatus:
			b.WriteByte('+')
		case AsyncNotify:
			b.WriteByte('=')
		}
		b.WriteString(rec.Name)
		writeFields(&b, rec.Fields)
	case *StreamRecord:
		switch rec.Kind {
		case StreamConsole:
			b.WriteByte('~')
		case StreamTarget:
			b.WriteByte('@')
		case StreamLog:
			b.WriteByte('&')
		}
		b.WriteString(quoteCString(rec.Text))
	case Terminator:
		b.WriteString("(gdb)")
	}
	return b.String()
}

func writeToken(b *strings.Builder, tok *int) {
	if tok != nil {
		b.WriteString(strconv.Itoa(*tok))
	}
}

func writeFields(b *strings.Builder, t *Tuple) {
	if t == nil {
		return
	}
	for _, e := range t.entries {
		b.WriteByte(',')
		b.WriteString(canonicalKey(e.key))
		b.WriteByte('=')
		b.WriteString(renderValue(e.value))
	}
}

// canonicalKey strips the "#N" duplicate-disambiguation suffix this
// package adds on parse, since on the wire GDB repeats the bare name.
func canonicalKey(key string) string {
	if i := strings.IndexByte(key, '#'); i >= 0 {
		return key[:i]
	}
	return key
}

func renderValue(v Value) string {
	switch v.Kind {
	case ConstKind:
		return quoteCString(v.Str)
	case TupleKind:
		var tb strings.Builder
		writeFields(&tb, v.Tuple)
		fields := strings.TrimPrefix(tb.String(), ",")
		return "{" + fields + "}"
	case ListKind:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = renderValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return ""
	}
}
