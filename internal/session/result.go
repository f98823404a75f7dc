package session

import (
	"github.com/jackc/pgx/v5/pgconn"
)

// Column describes one column of a result set.
type Column struct {
	Name    string
	TypeOID uint32
}

// ResultHandle wraps one successful server response unit. It is immutable
// and independent of the connection that produced it: the connection may
// fail or close later without invalidating a handle already returned.
//
// Cells are opaque server-formatted text; interpreting them is the value
// conversion layer's job (see internal/wire).
type ResultHandle struct {
	tag     pgconn.CommandTag
	columns []Column
	rows    [][][]byte
}

func newResultHandle(res *pgconn.Result) *ResultHandle {
	h := &ResultHandle{
		tag:  res.CommandTag,
		rows: res.Rows,
	}
	if len(res.FieldDescriptions) > 0 {
		h.columns = make([]Column, len(res.FieldDescriptions))
		for i, fd := range res.FieldDescriptions {
			h.columns[i] = Column{Name: fd.Name, TypeOID: fd.DataTypeOID}
		}
	}
	return h
}

// Status returns the server's command tag ("SELECT 1", "INSERT 0 3", …).
func (h *ResultHandle) Status() string {
	return h.tag.String()
}

// RowCount returns the number of data rows in the response.
func (h *ResultHandle) RowCount() int {
	return len(h.rows)
}

// ColumnCount returns the number of columns in the response.
func (h *ResultHandle) ColumnCount() int {
	return len(h.columns)
}

// ColumnName returns the name of column col.
func (h *ResultHandle) ColumnName(col int) string {
	return h.columns[col].Name
}

// ColumnTypeOID returns the server type OID of column col.
func (h *ResultHandle) ColumnTypeOID(col int) uint32 {
	return h.columns[col].TypeOID
}

// Value returns the cell at (row, col) in its server text form. NULL cells
// return "".
func (h *ResultHandle) Value(row, col int) string {
	return string(h.rows[row][col])
}

// IsNull reports whether the cell at (row, col) is SQL NULL.
func (h *ResultHandle) IsNull(row, col int) bool {
	return h.rows[row][col] == nil
}

// RowsAffected returns the affected-row count from the command tag
// (0 for SELECT-style tags without one).
func (h *ResultHandle) RowsAffected() int64 {
	return h.tag.RowsAffected()
}

// Results is the outcome of one dispatched statement or statement batch: an
// ordered sequence of handles, one per server response unit, in completion
// order. Most statements produce exactly one unit; Single is the accessor
// for that common case.
type Results struct {
	handles []*ResultHandle
}

// Len returns the number of response units.
func (r *Results) Len() int {
	return len(r.handles)
}

// Handle returns the i-th response unit.
func (r *Results) Handle(i int) *ResultHandle {
	return r.handles[i]
}

// All returns every response unit in completion order.
func (r *Results) All() []*ResultHandle {
	return r.handles
}

// Single returns the sole response unit. ok is false when the dispatch
// produced more than one unit (a multi-statement batch).
func (r *Results) Single() (h *ResultHandle, ok bool) {
	if len(r.handles) != 1 {
		return nil, false
	}
	return r.handles[0], true
}
