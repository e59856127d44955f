package mi

import (
	"errors"
	"fmt"
	"strconv"
)

// MalformedRecordError is returned by Parse when a line does not match the
// MI grammar; the caller logs it and drops the line without terminating
// the session (spec §4.1 "Failure").
type MalformedRecordError struct {
	Raw string
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("mi: malformed record %q: %v", e.Raw, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

var errUnexpectedEOF = errors.New("unexpected end of line")

// Parse parses a single line of MI output (CR already stripped, no
// trailing newline) into one Record.
func Parse(line string) (Record, error) {
	if line == "(gdb)" {
		return Terminator{}, nil
	}
	p := &parser{src: []rune(line), raw: line}
	rec, err := p.parseRecord()
	if err != nil {
		return nil, &MalformedRecordError{Raw: line, Err: err}
	}
	return rec, nil
}

type parser struct {
	src []rune
	pos int
	raw string
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) next() rune {
	c := p.peek()
	p.pos++
	return c
}

func (p *parser) expect(c rune) error {
	if p.eof() || p.src[p.pos] != c {
		return fmt.Errorf("expected %q at position %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) parseRecord() (Record, error) {
	tok := p.parseOptionalToken()

	if p.eof() {
		return nil, errUnexpectedEOF
	}

	switch p.peek() {
	case '^':
		p.next()
		return p.parseResult(tok)
	case '*':
		p.next()
		return p.parseAsync(tok, AsyncExec)
	case '+':
		p.next()
		return p.parseAsync(tok, AsyncStatus)
	case '=':
		p.next()
		return p.parseAsync(tok, AsyncNotify)
	case '~':
		p.next()
		return p.parseStream(StreamConsole)
	case '@':
		p.next()
		return p.parseStream(StreamTarget)
	case '&':
		p.next()
		return p.parseStream(StreamLog)
	default:
		return nil, fmt.Errorf("unrecognized record marker %q at position %d", p.peek(), p.pos)
	}
}

// parseOptionalToken consumes leading decimal digits, if any, and returns
// them as *int (nil if there were none).
func (p *parser) parseOptionalToken() *int {
	start := p.pos
	for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if p.pos == start {
		return nil
	}
	n, err := strconv.Atoi(string(p.src[start:p.pos]))
	if err != nil {
		return nil
	}
	return &n
}

func (p *parser) parseClassName() (string, error) {
	start := p.pos
	for !p.eof() && isClassNameChar(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("expected class name at position %d", p.pos)
	}
	return string(p.src[start:p.pos]), nil
}

func isClassNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' || (r >= '0' && r <= '9')
}

func (p *parser) parseResult(tok *int) (Record, error) {
	class, err := p.parseClassName()
	if err != nil {
		return nil, err
	}
	fields, err := p.parseTrailingResults()
	if err != nil {
		return nil, err
	}
	rr := &ResultRecord{Token: tok, RawClass: class, Fields: fields}
	switch class {
	case string(ClassDone):
		rr.Class = ClassDone
	case string(ClassRunning):
		rr.Class = ClassRunning
	case string(ClassConnected):
		rr.Class = ClassConnected
	case string(ClassError):
		rr.Class = ClassError
	case string(ClassExit):
		rr.Class = ClassExit
	default:
		rr.Class = ResultClass(class)
	}
	return rr, nil
}

func (p *parser) parseAsync(tok *int, kind AsyncKind) (Record, error) {
	name, err := p.parseClassName()
	if err != nil {
		return nil, err
	}
	fields, err := p.parseTrailingResults()
	if err != nil {
		return nil, err
	}
	return &AsyncRecord{Token: tok, Kind: kind, Name: name, Fields: fields}, nil
}

// parseTrailingResults parses an optional ",name=value,name=value,..."
// suffix running to the end of the line.
func (p *parser) parseTrailingResults() (*Tuple, error) {
	t := NewTuple()
	for !p.eof() && p.peek() == ',' {
		p.next()
		name, val, err := p.parseNameValue()
		if err != nil {
			return nil, err
		}
		t.Add(name, val)
	}
	if !p.eof() {
		return nil, fmt.Errorf("unexpected trailing input at position %d: %q", p.pos, string(p.src[p.pos:]))
	}
	return t, nil
}

func (p *parser) parseStream(kind StreamKind) (Record, error) {
	if p.eof() || p.peek() != '"' {
		return nil, fmt.Errorf("expected quoted string at position %d", p.pos)
	}
	s, err := p.parseQuotedString()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("unexpected trailing input after stream string at position %d", p.pos)
	}
	return &StreamRecord{Kind: kind, Text: s}, nil
}

func (p *parser) parseNameValue() (string, Value, error) {
	name, err := p.parseName()
	if err != nil {
		return "", Value{}, err
	}
	if err := p.expect('='); err != nil {
		return "", Value{}, err
	}
	val, err := p.parseValue()
	if err != nil {
		return "", Value{}, err
	}
	return name, val, nil
}

func (p *parser) parseName() (string, error) {
	start := p.pos
	for !p.eof() && isNameChar(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("expected name at position %d", p.pos)
	}
	return string(p.src[start:p.pos]), nil
}

func isNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}

func (p *parser) parseValue() (Value, error) {
	if p.eof() {
		return Value{}, errUnexpectedEOF
	}
	switch p.peek() {
	case '"':
		s, err := p.parseQuotedString()
		if err != nil {
			return Value{}, err
		}
		return Const(s), nil
	case '{':
		return p.parseTuple()
	case '[':
		return p.parseList()
	default:
		return Value{}, fmt.Errorf("unexpected value start %q at position %d", p.peek(), p.pos)
	}
}

func (p *parser) parseQuotedString() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	start := p.pos
	for {
		if p.eof() {
			return "", fmt.Errorf("unterminated string starting at position %d", start)
		}
		c := p.next()
		if c == '\\' {
			if p.eof() {
				return "", fmt.Errorf("dangling escape in string")
			}
			p.next()
			continue
		}
		if c == '"' {
			raw := string(p.src[start : p.pos-1])
			return unescapeCString(raw)
		}
	}
}

func (p *parser) parseTuple() (Value, error) {
	if err := p.expect('{'); err != nil {
		return Value{}, err
	}
	t := NewTuple()
	if p.peek() == '}' {
		p.next()
		return Value{Kind: TupleKind, Tuple: t}, nil
	}
	for {
		name, val, err := p.parseNameValue()
		if err != nil {
			return Value{}, err
		}
		t.Add(name, val)
		if p.peek() == ',' {
			p.next()
			continue
		}
		break
	}
	if err := p.expect('}'); err != nil {
		return Value{}, err
	}
	return Value{Kind: TupleKind, Tuple: t}, nil
}

// parseList handles both shapes of MI list: a bracketed sequence of bare
// values, or a bracketed sequence of name=value pairs (a "result list").
// An empty list "[]" is represented as a zero-length value list.
func (p *parser) parseList() (Value, error) {
	if err := p.expect('['); err != nil {
		return Value{}, err
	}
	if p.peek() == ']' {
		p.next()
		return Value{Kind: ListKind, List: []Value{}}, nil
	}

	// Disambiguate: a name=value list looks like NAME=VALUE, ...; a plain
	// value list starts with '"', '{' or '['.
	if isNameStart(p.peek()) && p.looksLikeNameEquals() {
		t := NewTuple()
		for {
			name, val, err := p.parseNameValue()
			if err != nil {
				return Value{}, err
			}
			t.Add(name, val)
			if p.peek() == ',' {
				p.next()
				continue
			}
			break
		}
		if err := p.expect(']'); err != nil {
			return Value{}, err
		}
		return Value{Kind: TupleKind, Tuple: t}, nil
	}

	var vals []Value
	for {
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		vals = append(vals, v)
		if p.peek() == ',' {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(']'); err != nil {
		return Value{}, err
	}
	return Value{Kind: ListKind, List: vals}, nil
}

func isNameStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

// looksLikeNameEquals scans ahead (without consuming) to see whether the
// upcoming tokens form NAME= rather than a bare value.
func (p *parser) looksLikeNameEquals() bool {
	i := p.pos
	for i < len(p.src) && isNameChar(p.src[i]) {
		i++
	}
	return i > p.pos && i < len(p.src) && p.src[i] == '='
}
