// Package directive implements the textual tool-call grammar models use to
// request a pipeline:
//
//	<tool_call>
//	name: fetch_data
//	parameters: {query: "sales for Q1", limit: 50}
//	</tool_call>
//
// Parameter keys may be left unquoted; everything else must be valid JSON.
// The parser never panics: malformed blocks come back as *ParseError values
// next to whatever directives did parse.
package directive

import (
	"fmt"
	"strings"
)

const (
	OpenMarker  = "<tool_call>"
	CloseMarker = "</tool_call>"

	nameField       = "name:"
	parametersField = "parameters:"
)

// Directive is one parsed tool call.
type Directive struct {
	Name       string
	Parameters map[string]any
}

// ErrorKind classifies a parse failure.
type ErrorKind string

const (
	// KindSyntax: an open marker without a matching close marker.
	KindSyntax ErrorKind = "syntax"
	// KindJSON: the parameters object could not be parsed, even after repair.
	KindJSON ErrorKind = "json"
	// KindFormat: the block body is not a name line followed by parameters.
	KindFormat ErrorKind = "format"
)

// ParseError describes one block that could not be turned into a Directive.
type ParseError struct {
	Kind     ErrorKind
	Message  string
	Original string // the offending block, markers included
	Offset   int    // byte offset of the block in the parsed text
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Result is the outcome of parsing one completed model reply.
type Result struct {
	Directives []Directive
	Errors     []*ParseError
	// Text is the input with every directive block removed.
	Text string
}

// First returns the first successfully parsed directive. Only this one is
// ever dispatched.
func (r Result) First() (Directive, bool) {
	if len(r.Directives) == 0 {
		return Directive{}, false
	}
	return r.Directives[0], true
}

// HasErrors reports whether any block failed to parse.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// ErrorText joins all error messages into one user-facing line.
func (r Result) ErrorText() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Parse extracts every directive block from text.
func Parse(text string) Result {
	var (
		res  Result
		rest strings.Builder
		pos  int
	)

	for pos < len(text) {
		start := strings.Index(text[pos:], OpenMarker)
		if start < 0 {
			rest.WriteString(text[pos:])
			break
		}
		start += pos
		rest.WriteString(text[pos:start])

		bodyStart := start + len(OpenMarker)
		end := strings.Index(text[bodyStart:], CloseMarker)
		if end < 0 {
			res.Errors = append(res.Errors, &ParseError{
				Kind:     KindSyntax,
				Message:  "tool call is missing its closing " + CloseMarker + " marker",
				Original: text[start:],
				Offset:   start,
			})
			pos = len(text)
			break
		}
		end += bodyStart
		blockEnd := end + len(CloseMarker)

		d, perr := parseBlock(text[bodyStart:end])
		if perr != nil {
			perr.Original = text[start:blockEnd]
			perr.Offset = start
			res.Errors = append(res.Errors, perr)
		} else {
			res.Directives = append(res.Directives, d)
		}
		pos = blockEnd
	}

	res.Text = strings.TrimSpace(rest.String())
	return res
}

func parseBlock(body string) (Directive, *ParseError) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, nameField) {
		return Directive{}, &ParseError{Kind: KindFormat, Message: "tool call must start with a name: line"}
	}
	body = body[len(nameField):]

	idx := strings.Index(body, parametersField)
	if idx < 0 {
		return Directive{}, &ParseError{Kind: KindFormat, Message: "tool call has no parameters: section"}
	}

	name := strings.TrimSpace(body[:idx])
	if !isToolName(name) {
		return Directive{}, &ParseError{Kind: KindFormat, Message: fmt.Sprintf("invalid tool name %q", name)}
	}

	params := strings.TrimSpace(body[idx+len(parametersField):])
	if !strings.HasPrefix(params, "{") || !strings.HasSuffix(params, "}") {
		return Directive{}, &ParseError{Kind: KindFormat, Message: "parameters must be a {...} object"}
	}

	values, err := decodeParameters(params)
	if err != nil {
		return Directive{}, &ParseError{Kind: KindJSON, Message: fmt.Sprintf("invalid parameters for %s: %v", name, err)}
	}

	return Directive{Name: name, Parameters: values}, nil
}

func isToolName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
