package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAppendRow(t *testing.T) {
	tbl := New("a", "b")

	require.NoError(t, tbl.AppendRow("x", 1.0))
	assert.Equal(t, 1, tbl.Len())

	err := tbl.AppendRow("only one cell")
	require.ErrorIs(t, err, ErrSchema)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableCell(t *testing.T) {
	tbl := New("a", "b")
	require.NoError(t, tbl.AppendRow("x", nil))

	v, ok := tbl.Cell(0, "a")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	v, ok = tbl.Cell(0, "b")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = tbl.Cell(0, "missing")
	assert.False(t, ok)
	_, ok = tbl.Cell(5, "a")
	assert.False(t, ok)
}

func TestTableColumn(t *testing.T) {
	tbl := New("a")
	require.NoError(t, tbl.AppendRow("x"))
	require.NoError(t, tbl.AppendRow("y"))

	vals, err := tbl.Column("a")
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, vals)

	_, err = tbl.Column("missing")
	require.ErrorIs(t, err, ErrSchema)
}

func TestTableColumnsReturnsCopy(t *testing.T) {
	tbl := New("a", "b")
	cols := tbl.Columns()
	cols[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
}

func TestCellKeyDistinguishesTypes(t *testing.T) {
	ts := time.Date(2025, 2, 18, 8, 0, 0, 0, time.UTC)

	keys := []string{
		cellKey(nil),
		cellKey("10"),
		cellKey(10.0),
		cellKey(10),
		cellKey(ts),
	}

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "key %q must be unique", k)
		seen[k] = true
	}
}
