package workbook

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/fabgroup/recon-cli/internal/ledger"
	"github.com/fabgroup/recon-cli/internal/recon"
)

// Tab colors grouping the sheets: green for the fresh period's data, orange
// for the carried-over sheets, blue for tax.
var sheetTabColors = map[string]string{
	recon.SheetOrders:   "DAF2D0",
	recon.SheetReturns:  "DAF2D0",
	recon.SheetSales:    "DAF2D0",
	recon.SheetBaseline: "FBE2D5",
	recon.SheetPayments: "FBE2D5",
	recon.SheetTax:      "DAE9F8",
}

// WriteReport writes the full report workbook: the reconciliation sheet with
// live formulas, then every source sheet in review order. Year and month
// scope the second gift card aggregate.
func WriteReport(path string, src recon.Sources, snap recon.Snapshot, year, month int) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "workbook: header style")
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return eris.Wrap(err, "workbook: number style")
	}

	layouts := recon.NewLayouts(src)

	if err := writeReconSheet(f, layouts, snap, year, month, headerStyle, moneyStyle); err != nil {
		return err
	}

	dataSheets := []struct {
		layout   recon.Layout
		table    ledger.Table
		formulas func(row int) map[string]string
	}{
		{layouts.Orders, src.Orders, layouts.OrderSheetFormulas},
		{layouts.Returns, src.Returns, layouts.ReturnSheetFormulas},
		{layouts.Sales, src.Sales, layouts.SalesSheetFormulas},
		{layouts.Baseline, src.Baseline, nil},
		{layouts.Payments, src.Payments, layouts.PaymentSheetFormulas},
		{layouts.Tax, src.Tax, nil},
		{layouts.Backend, src.Backend, nil},
	}
	for _, s := range dataSheets {
		if err := writeDataSheet(f, s.layout, s.table, s.formulas, headerStyle); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return eris.Wrap(err, "workbook: drop default sheet")
	}
	idx, err := f.GetSheetIndex(recon.SheetRecon)
	if err != nil {
		return eris.Wrap(err, "workbook: locate reconciliation sheet")
	}
	f.SetActiveSheet(idx)

	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "workbook: save %s", path)
	}
	return nil
}

func writeReconSheet(f *excelize.File, layouts recon.Layouts, snap recon.Snapshot, year, month, headerStyle, moneyStyle int) error {
	sheet := recon.SheetRecon
	if _, err := f.NewSheet(sheet); err != nil {
		return eris.Wrapf(err, "workbook: sheet %s", sheet)
	}

	for cell, value := range recon.ReconCriteriaCells(year, month) {
		f.SetCellValue(sheet, cell, value)
	}

	lastColumn := recon.ColumnLetter(len(recon.ReconColumns))
	for i, name := range recon.ReconColumns {
		f.SetCellValue(sheet, fmt.Sprintf("%s%d", recon.ColumnLetter(i+1), recon.ReconHeaderRow), name)
	}
	f.SetCellStyle(sheet,
		fmt.Sprintf("A%d", recon.ReconHeaderRow),
		fmt.Sprintf("%s%d", lastColumn, recon.ReconHeaderRow),
		headerStyle)

	lastRow := recon.ReconHeaderRow
	for i, row := range snap.Rows {
		lastRow = recon.ReconFirstDataRow + i
		f.SetCellValue(sheet, fmt.Sprintf("A%d", lastRow), row.Key)
		for column, formula := range layouts.ReconRow(lastRow) {
			setFormula(f, sheet, reconCell(column, lastRow), formula)
		}
	}

	if len(snap.Rows) == 0 {
		return nil
	}

	for cell, formula := range layouts.ReconHeaderBand(lastRow) {
		setFormula(f, sheet, cell, formula)
	}
	f.SetCellStyle(sheet,
		fmt.Sprintf("%s%d", reconLetter("Gift card"), recon.ReconFirstDataRow),
		fmt.Sprintf("%s%d", reconLetter("Delta"), lastRow),
		moneyStyle)

	filter := fmt.Sprintf("A%d:%s%d", recon.ReconHeaderRow, lastColumn, lastRow)
	if err := f.AutoFilter(sheet, filter, nil); err != nil {
		return eris.Wrapf(err, "workbook: filter on %s", sheet)
	}
	return nil
}

func writeDataSheet(f *excelize.File, layout recon.Layout, table ledger.Table, formulas func(row int) map[string]string, headerStyle int) error {
	if _, err := f.NewSheet(layout.Name); err != nil {
		return eris.Wrapf(err, "workbook: sheet %s", layout.Name)
	}
	if color, ok := sheetTabColors[layout.Name]; ok {
		c := color
		f.SetSheetProps(layout.Name, &excelize.SheetPropsOptions{TabColorRGB: &c})
	}

	if table.Empty() {
		f.SetCellValue(layout.Name, "A1", "No data")
		return nil
	}

	for i, name := range layout.Columns {
		f.SetCellValue(layout.Name, recon.ColumnLetter(i+1)+"1", name)
	}
	lastColumn := recon.ColumnLetter(len(layout.Columns))
	f.SetCellStyle(layout.Name, "A1", lastColumn+"1", headerStyle)

	// The appended formula columns sit right of the table's own columns.
	extras := layout.Columns[len(table.Columns):]

	for r, row := range table.Rows {
		sheetRow := r + 2
		for c, value := range row {
			setTypedCell(f, layout.Name, fmt.Sprintf("%s%d", recon.ColumnLetter(c+1), sheetRow), value)
		}
		if formulas == nil {
			continue
		}
		emitted := formulas(sheetRow)
		for i, name := range extras {
			cell := fmt.Sprintf("%s%d", recon.ColumnLetter(len(table.Columns)+i+1), sheetRow)
			setFormula(f, layout.Name, cell, emitted[name])
		}
	}

	filter := fmt.Sprintf("A1:%s%d", lastColumn, len(table.Rows)+1)
	if err := f.AutoFilter(layout.Name, filter, nil); err != nil {
		return eris.Wrapf(err, "workbook: filter on %s", layout.Name)
	}
	return nil
}

// setTypedCell writes numeric-looking values as numbers so downstream
// formulas can aggregate them, everything else as text.
func setTypedCell(f *excelize.File, sheet, cell, value string) {
	if d, ok := ledger.Coerce(value); ok {
		f.SetCellValue(sheet, cell, d.InexactFloat64())
		return
	}
	f.SetCellValue(sheet, cell, value)
}

func setFormula(f *excelize.File, sheet, cell, formula string) {
	if formula == "" {
		return
	}
	f.SetCellFormula(sheet, cell, strings.TrimPrefix(formula, "="))
}

func reconCell(column string, row int) string {
	return fmt.Sprintf("%s%d", reconLetter(column), row)
}

func reconLetter(column string) string {
	for i, c := range recon.ReconColumns {
		if c == column {
			return recon.ColumnLetter(i + 1)
		}
	}
	return "A"
}
