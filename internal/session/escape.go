package session

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/koustreak/pgsession/internal/errs"
)

// Escaping primitives. All of them require a live transport link — the
// transport's escaping is aware of the session's client encoding, so there
// is nothing meaningful to escape against before a connection exists.

// EscapeLiteral escapes s for use as a SQL string literal, including the
// surrounding quotes.
func (c *Conn) EscapeLiteral(ctx context.Context, s string) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", err
	}
	escaped, err := c.tr.EscapeString(s)
	if err != nil {
		return "", errs.Wrap(errs.KindEncoding, "literal escaping rejected", err)
	}
	return "'" + escaped + "'", nil
}

// EscapeIdentifier escapes s for use as a SQL identifier, including the
// surrounding double quotes.
func (c *Conn) EscapeIdentifier(ctx context.Context, s string) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", err
	}
	return pgx.Identifier{s}.Sanitize(), nil
}

// EscapeBytea renders raw bytes in the server's hex bytea input form
// ("\x6465616462656566"). The hex form is pure ASCII and therefore valid
// under every client encoding.
func (c *Conn) EscapeBytea(ctx context.Context, data []byte) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", err
	}
	return `\x` + hex.EncodeToString(data), nil
}

// UnescapeBytea decodes a bytea output cell. Both the hex form ("\x…") and
// the legacy octal-escape form are accepted, matching what servers of any
// bytea_output setting may produce.
func (c *Conn) UnescapeBytea(ctx context.Context, s string) ([]byte, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if strings.HasPrefix(s, `\x`) {
		data, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, errs.Wrap(errs.KindConnection, "malformed hex bytea", err)
		}
		return data, nil
	}
	return unescapeByteaOctal(s)
}

// unescapeByteaOctal decodes the pre-9.0 "escape" output format: printable
// bytes verbatim, backslash doubled, everything else as \nnn octal.
func unescapeByteaOctal(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			out = append(out, s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '\\' {
			out = append(out, '\\')
			i += 2
			continue
		}
		if i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b := (s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0')
			out = append(out, b)
			i += 4
			continue
		}
		return nil, errs.New(errs.KindConnection, "malformed octal bytea escape")
	}
	return out, nil
}

func isOctal(b byte) bool {
	return b >= '0' && b <= '7'
}
