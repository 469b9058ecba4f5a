// Package workbook reads the prior-period baseline workbook and writes the
// reconciliation report workbook.
package workbook

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/fabgroup/recon-cli/internal/ledger"
	"github.com/fabgroup/recon-cli/internal/recon"
)

// Baseline bundles the two sheets carried over from the prior reconciliation
// workbook: the accumulated order ledger and the country mapping sheet.
type Baseline struct {
	Orders  ledger.Table
	Backend ledger.Table
}

// ReadBaseline opens the baseline workbook and reads both carried sheets.
// All cells come back as text; numeric canonicalization happens downstream.
func ReadBaseline(path string) (Baseline, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return Baseline{}, eris.Wrapf(err, "workbook: open %s", path)
	}

	orders, err := readSheet(f, recon.SheetBaseline)
	if err != nil {
		return Baseline{}, err
	}
	backend, err := readSheet(f, recon.SheetBackend)
	if err != nil {
		return Baseline{}, err
	}

	return Baseline{Orders: orders, Backend: backend}, nil
}

// readSheet turns a named sheet into a table: first row is the header, the
// rest are data rows padded to the header width.
func readSheet(f *xlsx.File, name string) (ledger.Table, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return ledger.Table{}, eris.Errorf("workbook: sheet %q not found", name)
	}
	if len(sheet.Rows) == 0 {
		return ledger.Table{}, eris.Errorf("workbook: sheet %q has no header row", name)
	}

	table := ledger.New(rowToStrings(sheet.Rows[0])...)
	for _, row := range sheet.Rows[1:] {
		table.AppendRow(rowToStrings(row)...)
	}
	return table, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
