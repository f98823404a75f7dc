package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/pgsession/internal/config"
	"github.com/koustreak/pgsession/internal/session"
)

// catalogTransport answers the inspector's catalog queries from canned data.
type catalogTransport struct{}

func (catalogTransport) Close(ctx context.Context) error { return nil }
func (catalogTransport) CheckConn() error                { return nil }

func (catalogTransport) Exec(ctx context.Context, sql string) ([]*pgconn.Result, error) {
	return []*pgconn.Result{{CommandTag: pgconn.NewCommandTag("SET")}}, nil
}

func (catalogTransport) ExecParams(ctx context.Context, sql string, params [][]byte) *pgconn.Result {
	switch {
	case strings.Contains(sql, "information_schema.columns"):
		return textResult(
			[]string{"column_name", "data_type", "is_nullable", "column_default"},
			[][]byte{[]byte("id"), []byte("integer"), []byte("NO"), []byte("nextval('users_id_seq')")},
			[][]byte{[]byte("email"), []byte("text"), []byte("NO"), nil},
			[][]byte{[]byte("nickname"), []byte("text"), []byte("YES"), nil},
		)
	case strings.Contains(sql, "PRIMARY KEY"):
		return textResult(
			[]string{"column_name"},
			[][]byte{[]byte("id")},
		)
	case len(params) == 2: // table existence check
		if string(params[1]) == "users" {
			return textResult([]string{"?column?"}, [][]byte{[]byte("1")})
		}
		return textResult([]string{"?column?"})
	default: // table listing
		return textResult(
			[]string{"table_name"},
			[][]byte{[]byte("orders")},
			[][]byte{[]byte("users")},
		)
	}
}

func (catalogTransport) Prepare(ctx context.Context, name, sql string) error { return nil }
func (catalogTransport) ExecPrepared(ctx context.Context, name string, params [][]byte) *pgconn.Result {
	return &pgconn.Result{CommandTag: pgconn.NewCommandTag("SELECT 0")}
}
func (catalogTransport) EscapeString(s string) (string, error)         { return s, nil }
func (catalogTransport) ParameterStatus(key string) string             { return "" }
func (catalogTransport) TxStatus() byte                                { return session.TxIdle }
func (catalogTransport) WaitForNotification(ctx context.Context) error { return ctx.Err() }

func textResult(cols []string, rows ...[][]byte) *pgconn.Result {
	res := &pgconn.Result{CommandTag: pgconn.NewCommandTag("SELECT")}
	for _, name := range cols {
		res.FieldDescriptions = append(res.FieldDescriptions,
			pgconn.FieldDescription{Name: name, DataTypeOID: 25})
	}
	res.Rows = rows
	return res
}

func testInspector(t *testing.T) *Inspector {
	t.Helper()
	cfg, err := config.Parse("host=localhost dbname=appdb")
	require.NoError(t, err)
	dial := func(ctx context.Context, connString string, notify func(session.Notification)) (session.Transport, error) {
		return catalogTransport{}, nil
	}
	return NewInspector(session.New(cfg, session.WithDialer(dial)))
}

func TestListTables(t *testing.T) {
	in := testInspector(t)

	tables, err := in.ListTables(context.Background(), "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)
}

func TestTableExists(t *testing.T) {
	in := testInspector(t)
	ctx := context.Background()

	exists, err := in.TableExists(ctx, "public", "users")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = in.TableExists(ctx, "public", "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInspectTable(t *testing.T) {
	in := testInspector(t)

	info, err := in.InspectTable(context.Background(), "public", "users")
	require.NoError(t, err)

	assert.Equal(t, "users", info.Name)
	assert.Equal(t, []string{"id"}, info.PrimaryKey)
	require.Len(t, info.Columns, 3)

	assert.Equal(t, "id", info.Columns[0].Name)
	assert.Equal(t, "integer", info.Columns[0].DataType)
	assert.False(t, info.Columns[0].Nullable)
	assert.True(t, info.Columns[0].IsPrimary)
	assert.Equal(t, "nextval('users_id_seq')", info.Columns[0].Default)

	assert.Equal(t, "email", info.Columns[1].Name)
	assert.False(t, info.Columns[1].IsPrimary)
	assert.Empty(t, info.Columns[1].Default)

	assert.True(t, info.Columns[2].Nullable)
}
