package directive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// decodeParameters parses a parameters object. Strict JSON is tried first;
// when that fails the relaxed parser, which also accepts bare identifier
// keys, gets one attempt. Its error is the one reported.
func decodeParameters(src string) (map[string]any, error) {
	if values, err := decodeStrict(src); err == nil {
		return values, nil
	}
	return decodeRelaxed(src)
}

func decodeStrict(src string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after object")
	}

	out, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	obj, _ := out.(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// normalize replaces json.Number values with int64 or float64.
func normalize(v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		for k, elem := range v {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			v[k] = n
		}
		return v, nil
	case []any:
		for i, elem := range v {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			v[i] = n
		}
		return v, nil
	case json.Number:
		return parseNumber(string(v))
	default:
		return v, nil
	}
}

// parseNumber decodes integer literals as int64. Literals with a fraction or
// exponent, and integers outside the int64 range, decode as float64.
func parseNumber(tok string) (any, error) {
	if !strings.ContainsAny(tok, ".eE") {
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", tok)
	}
	return f, nil
}

// syntaxError carries the byte offset where relaxed parsing stopped.
type syntaxError struct {
	msg    string
	offset int
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.msg, e.offset)
}

// relaxedParser is a recursive-descent parser for JSON objects whose keys may
// be bare identifiers. Values follow JSON exactly: no trailing commas, no
// single quotes, no comments.
type relaxedParser struct {
	src string
	pos int
}

func decodeRelaxed(src string) (map[string]any, error) {
	p := &relaxedParser{src: src}
	p.skipSpace()
	if p.peek() != '{' {
		return nil, p.errorf("expected '{'")
	}
	obj, err := p.object()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q after object", p.src[p.pos])
	}
	return obj, nil
}

func (p *relaxedParser) errorf(format string, args ...any) error {
	return &syntaxError{msg: fmt.Sprintf(format, args...), offset: p.pos}
}

func (p *relaxedParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *relaxedParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *relaxedParser) value() (any, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		return p.string()
	case c == '-' || isDigit(c):
		return p.number()
	}

	start := p.pos
	word := p.identifier()
	switch word {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "":
		return nil, p.errorf("unexpected character %q", c)
	}
	p.pos = start
	return nil, p.errorf("unquoted value %q", word)
}

func (p *relaxedParser) object() (map[string]any, error) {
	p.pos++ // '{'
	obj := map[string]any{}

	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return obj, nil
	}

	for {
		p.skipSpace()
		key, err := p.key()
		if err != nil {
			return nil, err
		}

		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		obj[key] = v

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				return nil, p.errorf("trailing comma before '}'")
			}
		case '}':
			p.pos++
			return obj, nil
		default:
			return nil, p.errorf("expected ',' or '}'")
		}
	}
}

func (p *relaxedParser) array() ([]any, error) {
	p.pos++ // '['
	arr := []any{}

	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return arr, nil
	}

	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == ']' {
				return nil, p.errorf("trailing comma before ']'")
			}
		case ']':
			p.pos++
			return arr, nil
		default:
			return nil, p.errorf("expected ',' or ']'")
		}
	}
}

func (p *relaxedParser) key() (string, error) {
	if p.peek() == '"' {
		return p.string()
	}
	if k := p.identifier(); k != "" {
		return k, nil
	}
	return "", p.errorf("expected object key")
}

func (p *relaxedParser) identifier() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isIdentStart(c) || (p.pos > start && isDigit(c)) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// string scans a quoted JSON string and lets encoding/json decode escapes.
func (p *relaxedParser) string() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '"':
			p.pos++
			var s string
			if err := json.Unmarshal([]byte(p.src[start:p.pos]), &s); err != nil {
				return "", &syntaxError{msg: "invalid string literal", offset: start}
			}
			return s, nil
		}
		p.pos++
	}
	return "", &syntaxError{msg: "unterminated string", offset: start}
}

func (p *relaxedParser) number() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && strings.IndexByte("+-0123456789.eE", p.src[p.pos]) >= 0 {
		p.pos++
	}
	n, err := parseNumber(p.src[start:p.pos])
	if err != nil {
		return nil, &syntaxError{msg: err.Error(), offset: start}
	}
	return n, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentStart(s[i]) && !isDigit(s[i]) {
			return false
		}
	}
	return true
}
