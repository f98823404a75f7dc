// Package wire converts between in-memory values and the server's textual
// representation. The session layer treats parameters and cells as opaque
// text; this package is where array literals are built and parsed.
//
// A nil *string stands for SQL NULL throughout.
package wire

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedArray reports that an inbound array literal could not be
// parsed. Use errors.Is to detect it.
var ErrMalformedArray = errors.New("malformed array literal")

// ArrayLiteral renders elems as an outbound array literal of the given
// element type:
//
//	ArrayLiteral([]*string{p("1"), p("2"), nil}, "int4")
//	→ ARRAY[int4 '1',int4 '2',NULL::int4]::int4[]
//
// Element order and null positions are preserved.
func ArrayLiteral(elems []*string, typ string) string {
	var sb strings.Builder
	sb.WriteString("ARRAY[")
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(',')
		}
		if e == nil {
			sb.WriteString("NULL::")
			sb.WriteString(typ)
			continue
		}
		sb.WriteString(typ)
		sb.WriteString(" '")
		sb.WriteString(strings.ReplaceAll(*e, "'", "''"))
		sb.WriteByte('\'')
	}
	sb.WriteString("]::")
	sb.WriteString(typ)
	sb.WriteString("[]")
	return sb.String()
}

// ParseArray parses the server's brace-delimited textual array form:
//
//	{1,2,3,NULL}        → [1 2 3 <nil>]
//	{"a,b","say \"hi\""} → [a,b say "hi"]
//
// Only one-dimensional arrays are supported; the session core never
// requests nested forms.
func ParseArray(s string) ([]*string, error) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("%w: missing braces", ErrMalformedArray)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []*string{}, nil
	}

	var out []*string
	for i := 0; i < len(body); {
		var elem string
		var quoted bool
		var err error
		elem, quoted, i, err = readElement(body, i)
		if err != nil {
			return nil, err
		}
		if !quoted && elem == "NULL" {
			out = append(out, nil)
		} else {
			v := elem
			out = append(out, &v)
		}
		// Skip the separating comma, if any.
		if i < len(body) {
			if body[i] != ',' {
				return nil, fmt.Errorf("%w: expected comma", ErrMalformedArray)
			}
			i++
			if i == len(body) {
				return nil, fmt.Errorf("%w: trailing comma", ErrMalformedArray)
			}
		}
	}
	return out, nil
}

// readElement consumes one element starting at i and returns the decoded
// value, whether it was double-quoted, and the index just past the element.
func readElement(body string, i int) (string, bool, int, error) {
	if body[i] == '"' {
		var sb strings.Builder
		i++
		for i < len(body) {
			switch body[i] {
			case '\\':
				i++
				if i >= len(body) {
					return "", false, 0, fmt.Errorf("%w: dangling escape", ErrMalformedArray)
				}
				sb.WriteByte(body[i])
				i++
			case '"':
				return sb.String(), true, i + 1, nil
			default:
				sb.WriteByte(body[i])
				i++
			}
		}
		return "", false, 0, fmt.Errorf("%w: unterminated quote", ErrMalformedArray)
	}

	start := i
	for i < len(body) && body[i] != ',' {
		i++
	}
	return body[start:i], false, i, nil
}
