// Package ledger holds the canonical tabular representation shared by the
// normalizer, the baseline merge and the reconciliation engine: named string
// columns over string-typed rows, matching how the report workbook reads and
// writes cells.
package ledger

// Table is an ordered set of named columns over string-typed rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given column set.
func New(columns ...string) Table {
	return Table{Columns: columns}
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value of the named column on the given row. Missing
// columns and ragged rows yield the empty string.
func (t Table) Cell(row int, column string) string {
	i := t.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

// AppendRow adds a row, padding or truncating it to the column count.
func (t *Table) AppendRow(values ...string) {
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Rename returns a copy of the table with column names replaced according to
// the given mapping. Names without a mapping entry pass through unchanged.
func (t Table) Rename(mapping map[string]string) Table {
	out := Table{Columns: make([]string, len(t.Columns)), Rows: t.Rows}
	for i, c := range t.Columns {
		if renamed, ok := mapping[c]; ok {
			out.Columns[i] = renamed
		} else {
			out.Columns[i] = c
		}
	}
	return out
}

// WithColumn returns a copy of the table with an extra column appended,
// its per-row values produced by fn from the row index.
func (t Table) WithColumn(name string, fn func(row int) string) Table {
	out := Table{
		Columns: append(append([]string{}, t.Columns...), name),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append(append([]string{}, row...), fn(i))
	}
	return out
}
