package session

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func escapeConn(t *testing.T) *Conn {
	t.Helper()
	return testConn(t, &fakeTransport{
		execFn: func(sql string) ([]*pgconn.Result, error) {
			return []*pgconn.Result{tagResult("SELECT 1")}, nil
		},
	})
}

func TestEscapeLiteral(t *testing.T) {
	conn := escapeConn(t)

	got, err := conn.EscapeLiteral(context.Background(), "it's")
	require.NoError(t, err)
	assert.Equal(t, "'it''s'", got)
	assert.Equal(t, StatusGood, conn.Status(), "escaping forces a connection")
}

func TestEscapeIdentifier(t *testing.T) {
	conn := escapeConn(t)

	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{"Mixed Case", `"Mixed Case"`},
		{`quo"ted`, `"quo""ted"`},
	}
	for _, tt := range tests {
		got, err := conn.EscapeIdentifier(context.Background(), tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEscapeByteaRoundTrip(t *testing.T) {
	conn := escapeConn(t)
	ctx := context.Background()

	data := []byte{0x00, 0x01, 'a', 0xff, '\\'}
	escaped, err := conn.EscapeBytea(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, `\x000161ff5c`, escaped)

	back, err := conn.UnescapeBytea(ctx, escaped)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestUnescapeByteaOctal(t *testing.T) {
	conn := escapeConn(t)
	ctx := context.Background()

	got, err := conn.UnescapeBytea(ctx, `ab\000\\cd`)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0x00, '\\', 'c', 'd'}, got)

	_, err = conn.UnescapeBytea(ctx, `bad\9`)
	assert.Error(t, err)

	_, err = conn.UnescapeBytea(ctx, `\xzz`)
	assert.Error(t, err)
}
