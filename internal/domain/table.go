package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrSchema reports a stage invoked on a table that is missing one of the
	// columns the stage requires, or a cell whose type violates the stage's
	// precondition. Fatal to the whole cleaning call.
	ErrSchema = errors.New("schema error")

	// ErrParse reports a malformed primitive value: an unparseable date or a
	// non-numeric measurement. Fatal to the whole cleaning call. Unknown enum
	// values (wind codes, sky phrases) are NOT parse errors; they enrich to nil.
	ErrParse = errors.New("parse error")
)

// Table is an ordered set of named columns over rows of cells. A cell is a
// string, float64, int, time.Time, or nil for a missing value.
//
// Cleaning stages treat tables as immutable: every stage returns a fresh
// Table and never writes into the rows of its input, so a Table already
// handed to a stage can safely be reused or shared across goroutines.
type Table struct {
	cols []string
	rows [][]any
}

// New creates an empty table with the given column names.
func New(cols ...string) *Table {
	return &Table{cols: append([]string(nil), cols...)}
}

// AppendRow adds one row. The number of cells must match the column count.
func (t *Table) AppendRow(cells ...any) error {
	if len(cells) != len(t.cols) {
		return fmt.Errorf("%w: row has %d cells, table has %d columns", ErrSchema, len(cells), len(t.cols))
	}
	t.rows = append(t.rows, append([]any(nil), cells...))
	return nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

// Cell returns the value at (row, col). The second return is false when the
// column does not exist or the row index is out of range.
func (t *Table) Cell(row int, col string) (any, bool) {
	i := t.columnIndex(col)
	if i < 0 || row < 0 || row >= len(t.rows) {
		return nil, false
	}
	return t.rows[row][i], true
}

// Column returns all values of a column, top to bottom.
func (t *Table) Column(name string) ([]any, error) {
	i := t.columnIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: column %q not found", ErrSchema, name)
	}
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.cols {
		if c == name {
			return i
		}
	}
	return -1
}

// clone deep-copies the table structure. Cell values themselves are immutable
// scalars and are shared.
func (t *Table) clone() *Table {
	out := &Table{
		cols: append([]string(nil), t.cols...),
		rows: make([][]any, len(t.rows)),
	}
	for r, row := range t.rows {
		out.rows[r] = append([]any(nil), row...)
	}
	return out
}

// withColumn returns a copy of the table with one column appended. values
// must have one entry per row.
func (t *Table) withColumn(name string, values []any) *Table {
	out := &Table{
		cols: append(t.Columns(), name),
		rows: make([][]any, len(t.rows)),
	}
	for r, row := range t.rows {
		out.rows[r] = append(append([]any(nil), row...), values[r])
	}
	return out
}

// cellKey renders a cell into a stable string used for whole-row comparison.
// Distinct Go types render distinctly so "10" (string) never collides with
// 10.0 (float64).
func cellKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00nil"
	case string:
		return "s:" + x
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return "i:" + strconv.Itoa(x)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("v:%v", x)
	}
}

// rowKey renders a full row for deduplication.
func (t *Table) rowKey(row int) string {
	key := ""
	for _, cell := range t.rows[row] {
		key += cellKey(cell) + "\x1f"
	}
	return key
}
