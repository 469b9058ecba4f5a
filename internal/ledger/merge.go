package ledger

import (
	"strings"

	"github.com/rotisserie/eris"
)

// MergeBaseline unions newly fetched rows into a previously exported
// baseline. Baseline rows are never altered, reordered or removed. Incoming
// rows whose key already exists in the baseline are discarded; the rest are
// column-aligned to the baseline's schema (columns the incoming table lacks
// are filled with an explicit empty value) and appended after all baseline
// rows, preserving their own order.
func MergeBaseline(baseline, incoming Table, keyColumn string) (Table, error) {
	baseKey := baseline.ColumnIndex(keyColumn)
	if baseKey < 0 {
		return Table{}, eris.Errorf("merge: baseline has no %q column", keyColumn)
	}

	existing := make(map[string]struct{}, len(baseline.Rows))
	for _, row := range baseline.Rows {
		if baseKey < len(row) {
			if k := strings.TrimSpace(row[baseKey]); k != "" {
				existing[k] = struct{}{}
			}
		}
	}

	out := Table{
		Columns: append([]string{}, baseline.Columns...),
		Rows:    make([][]string, 0, len(baseline.Rows)+len(incoming.Rows)),
	}
	for _, row := range baseline.Rows {
		out.Rows = append(out.Rows, append([]string{}, row...))
	}

	if incoming.Empty() {
		return out, nil
	}
	inKey := incoming.ColumnIndex(keyColumn)
	if inKey < 0 {
		return Table{}, eris.Errorf("merge: incoming rows have no %q column", keyColumn)
	}

	// Column positions of the baseline schema within the incoming table;
	// -1 marks a column the incoming rows do not carry.
	srcIdx := make([]int, len(baseline.Columns))
	for i, c := range baseline.Columns {
		srcIdx[i] = incoming.ColumnIndex(c)
	}

	for r, row := range incoming.Rows {
		var key string
		if inKey < len(row) {
			key = strings.TrimSpace(row[inKey])
		}
		if key == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}

		aligned := make([]string, len(baseline.Columns))
		for i, src := range srcIdx {
			if src >= 0 && src < len(row) {
				aligned[i] = incoming.Rows[r][src]
			}
		}
		out.Rows = append(out.Rows, aligned)
	}

	return out, nil
}
