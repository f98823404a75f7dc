// Package schema introspects table structure through an established
// session. It issues ordinary parameterized queries and parses the textual
// cells, so it exercises exactly the API every other consumer of the
// session sees.
package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/pgsession/internal/session"
)

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name      string
	DataType  string
	Nullable  bool
	IsPrimary bool
	Default   string // server default expression, "" when absent
}

// TableInfo describes a table and its columns.
type TableInfo struct {
	Schema     string
	Name       string
	Columns    []ColumnInfo
	PrimaryKey []string
}

// Inspector reads catalog information over a session connection.
type Inspector struct {
	conn *session.Conn
}

// NewInspector wraps an existing connection. The Inspector does not own the
// connection and never closes it.
func NewInspector(conn *session.Conn) *Inspector {
	return &Inspector{conn: conn}
}

// ListTables returns all user-defined table names in the given schema,
// sorted by name.
func (in *Inspector) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	res, err := in.conn.ExecParams(ctx, q, []*string{&schemaName})
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, res.RowCount())
	for row := 0; row < res.RowCount(); row++ {
		tables = append(tables, res.Value(row, 0))
	}
	return tables, nil
}

// TableExists reports whether a table with the given name exists in the
// schema.
func (in *Inspector) TableExists(ctx context.Context, schemaName, table string) (bool, error) {
	const q = `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = $2`

	res, err := in.conn.ExecParams(ctx, q, []*string{&schemaName, &table})
	if err != nil {
		return false, err
	}
	return res.RowCount() > 0, nil
}

// InspectTable fetches column and primary key information for one table.
func (in *Inspector) InspectTable(ctx context.Context, schemaName, table string) (*TableInfo, error) {
	columns, err := in.fetchColumns(ctx, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("inspecting table %q: %w", table, err)
	}
	pks, err := in.fetchPrimaryKeys(ctx, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("inspecting table %q: %w", table, err)
	}

	pkSet := make(map[string]bool, len(pks))
	for _, pk := range pks {
		pkSet[pk] = true
	}
	for i := range columns {
		columns[i].IsPrimary = pkSet[columns[i].Name]
	}

	return &TableInfo{
		Schema:     schemaName,
		Name:       table,
		Columns:    columns,
		PrimaryKey: pks,
	}, nil
}

func (in *Inspector) fetchColumns(ctx context.Context, schemaName, table string) ([]ColumnInfo, error) {
	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable,
		       column_default
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name   = $2
		ORDER BY ordinal_position`

	res, err := in.conn.ExecParams(ctx, q, []*string{&schemaName, &table})
	if err != nil {
		return nil, err
	}

	cols := make([]ColumnInfo, 0, res.RowCount())
	for row := 0; row < res.RowCount(); row++ {
		col := ColumnInfo{
			Name:     res.Value(row, 0),
			DataType: res.Value(row, 1),
			Nullable: res.Value(row, 2) == "YES",
		}
		if !res.IsNull(row, 3) {
			col.Default = res.Value(row, 3)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func (in *Inspector) fetchPrimaryKeys(ctx context.Context, schemaName, table string) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema    = $1
		  AND tc.table_name      = $2
		ORDER BY kcu.ordinal_position`

	res, err := in.conn.ExecParams(ctx, q, []*string{&schemaName, &table})
	if err != nil {
		return nil, err
	}

	pks := make([]string, 0, res.RowCount())
	for row := 0; row < res.RowCount(); row++ {
		pks = append(pks, res.Value(row, 0))
	}
	return pks, nil
}
