package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceCommaAndDotEquivalent(t *testing.T) {
	comma, ok := Coerce("12,50")
	require.True(t, ok)
	dot, ok := Coerce("12.50")
	require.True(t, ok)

	assert.True(t, comma.Equal(dot))
	assert.True(t, comma.Equal(decimal.RequireFromString("12.5")))
}

func TestCoerceRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "  ", "n/a", "12..5", "12,5,0"} {
		d, ok := Coerce(s)
		assert.False(t, ok, "input %q", s)
		assert.True(t, d.IsZero())
	}
}

func TestCoerceNegativeAndWhitespace(t *testing.T) {
	d, ok := Coerce(" -3,25 ")
	require.True(t, ok)
	assert.Equal(t, "-3.25", d.String())
}

func TestRatioZeroDenominator(t *testing.T) {
	got := Ratio(decimal.RequireFromString("21"), decimal.Zero)
	assert.True(t, got.IsZero())
}

func TestRatio(t *testing.T) {
	got := Ratio(decimal.RequireFromString("21"), decimal.RequireFromString("105"))
	assert.Equal(t, "0.2", got.String())
}

func TestTableHelpers(t *testing.T) {
	tbl := New("A", "B")
	tbl.AppendRow("1")
	tbl.AppendRow("2", "3", "overflow")

	assert.Equal(t, "1", tbl.Cell(0, "A"))
	assert.Equal(t, "", tbl.Cell(0, "B"))
	assert.Equal(t, "3", tbl.Cell(1, "B"))
	assert.Equal(t, "", tbl.Cell(1, "C"))
	assert.Equal(t, -1, tbl.ColumnIndex("C"))

	renamed := tbl.Rename(map[string]string{"A": "Alpha"})
	assert.Equal(t, []string{"Alpha", "B"}, renamed.Columns)
	assert.Equal(t, []string{"A", "B"}, tbl.Columns)

	withC := tbl.WithColumn("C", func(row int) string { return tbl.Cell(row, "A") })
	assert.Equal(t, []string{"A", "B", "C"}, withC.Columns)
	assert.Equal(t, "2", withC.Cell(1, "C"))
}
