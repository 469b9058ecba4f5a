package recon

import (
	"fmt"

	"github.com/fabgroup/recon-cli/internal/ledger"
	"github.com/fabgroup/recon-cli/internal/normalize"
)

// Sheet names of the report workbook.
const (
	SheetRecon    = "Recon"
	SheetOrders   = "ITSP Sales"
	SheetReturns  = "ITSP Returns"
	SheetSales    = "Shopify incl. returns"
	SheetBaseline = "Old ITSP"
	SheetPayments = "Shopify payments"
	SheetTax      = "Shopify Tax"
	SheetBackend  = "Backend"
)

// ReconColumns is the reconciliation sheet's header row (row 4; data begins
// on row 5 so the header band above can hold subtotals and criteria).
var ReconColumns = []string{
	"Order Ref",
	"Date",
	"Country",
	"VAT %",
	"VAT % (Old)",
	"Diff",
	"In ITSP?",
	"Cancelled",
	"Gift card",
	"Gift card 2",
	"ITSP Sales",
	"ITSP Return",
	"Total ITSP",
	"Shopify Sales",
	"Shopify Return",
	"Total Shopify",
	"Delta",
	"Comment",
}

// ReconHeaderRow and ReconFirstDataRow position the reconciliation grid.
const (
	ReconHeaderRow    = 4
	ReconFirstDataRow = 5
)

// Extra formula columns appended to the data sheets. Their order matters:
// later columns reference earlier ones.
var (
	OrderExtraColumns   = []string{"Total EUR incl. VAT", "VAT %", "Date"}
	ReturnExtraColumns  = []string{"Date", "Shipping cost original order", "Shipping cost return", "VAT %", "Total EUR incl. VAT", "Check"}
	SalesExtraColumns   = []string{"CHECK", "Country code"}
	PaymentExtraColumns = []string{"Year", "Month"}
)

// Layout is one sheet's name and final column order (base columns plus any
// extra formula columns), with data starting on row 2.
type Layout struct {
	Name    string
	Columns []string
}

// Layouts positions every sheet the reconciliation formulas reference.
type Layouts struct {
	Orders   Layout
	Returns  Layout
	Sales    Layout
	Tax      Layout
	Payments Layout
	Baseline Layout
	Backend  Layout
}

// NewLayouts derives the workbook layouts from the in-memory tables,
// appending each sheet's extra formula columns after its data columns.
func NewLayouts(src Sources) Layouts {
	return Layouts{
		Orders:   Layout{SheetOrders, append(append([]string{}, src.Orders.Columns...), OrderExtraColumns...)},
		Returns:  Layout{SheetReturns, append(append([]string{}, src.Returns.Columns...), ReturnExtraColumns...)},
		Sales:    Layout{SheetSales, append(append([]string{}, src.Sales.Columns...), SalesExtraColumns...)},
		Tax:      Layout{SheetTax, append([]string{}, src.Tax.Columns...)},
		Payments: Layout{SheetPayments, append(append([]string{}, src.Payments.Columns...), PaymentExtraColumns...)},
		Baseline: Layout{SheetBaseline, append([]string{}, src.Baseline.Columns...)},
		Backend:  Layout{SheetBackend, append([]string{}, src.Backend.Columns...)},
	}
}

// ColumnLetter converts a 1-based column number to its spreadsheet letter.
func ColumnLetter(n int) string {
	letter := ""
	for n > 0 {
		n--
		letter = string(rune('A'+n%26)) + letter
		n /= 26
	}
	return letter
}

// letter returns the sheet letter of a named column. Unknown names fall
// back to column A; the tests pin every reference the emitter produces.
func (l Layout) letter(column string) string {
	for i, c := range l.Columns {
		if c == column {
			return ColumnLetter(i + 1)
		}
	}
	return "A"
}

// ref builds a full-column reference like 'ITSP Sales'!F:F.
func (l Layout) ref(column string) string {
	letter := l.letter(column)
	return fmt.Sprintf("'%s'!%s:%s", l.Name, letter, letter)
}

// lookupRange builds a VLOOKUP range from the key column to the value
// column plus the 1-based offset of the value within it. The value column
// resolves to its last occurrence: the appended formula columns shadow
// same-named data columns, keeping the value right of the key.
func (l Layout) lookupRange(keyColumn, valueColumn string) (string, int) {
	keyIdx, valueIdx := -1, 0
	for i, c := range l.Columns {
		if c == keyColumn && keyIdx < 0 {
			keyIdx = i
		}
		if c == valueColumn {
			valueIdx = i
		}
	}
	if keyIdx < 0 {
		keyIdx = 0
	}
	return fmt.Sprintf("'%s'!%s:%s", l.Name, ColumnLetter(keyIdx+1), ColumnLetter(valueIdx+1)), valueIdx - keyIdx + 1
}

func reconLetter(column string) string {
	for i, c := range ReconColumns {
		if c == column {
			return ColumnLetter(i + 1)
		}
	}
	return "A"
}

// ReconRow emits the live formulas of one reconciliation row, keyed by
// reconciliation column name. The key itself (Order Ref) is a value, not a
// formula, and Comment stays free for reviewers.
func (l Layouts) ReconRow(row int) map[string]string {
	key := fmt.Sprintf("A%d", row)

	salesDate, salesDateIdx := l.Sales.lookupRange(colOrder, normalize.ColDate)
	returnsDate, returnsDateIdx := l.Returns.lookupRange(normalize.ColComments, "Date")
	ordersDate, ordersDateIdx := l.Orders.lookupRange(normalize.ColReference, "Date")

	salesCountry, salesCountryIdx := l.Sales.lookupRange(colOrder, "Country code")
	baselineCountry, baselineCountryIdx := l.Baseline.lookupRange(normalize.ColReference, normalize.ColCountry)

	baselineVAT, baselineVATIdx := l.Baseline.lookupRange(normalize.ColReference, normalize.ColVATPercent)
	baselineStatus, baselineStatusIdx := l.Baseline.lookupRange(normalize.ColReference, normalize.ColStatus)
	baselineKey := l.Baseline.ref(normalize.ColReference)

	giftCard := fmt.Sprintf("SUMIFS(%s,%s,%s,%s,$%s$%d)",
		l.Payments.ref(colGrossPayments),
		l.Payments.ref(colOrder), key,
		l.Payments.ref(colPaymentMethod), reconLetter("Gift card"), ReconHeaderRow)

	giftCard2 := fmt.Sprintf("SUMIFS(%s,%s,%s,%s,$%s$%d,%s,$J$2,%s,$J$3)",
		l.Payments.ref(colGrossPayments),
		l.Payments.ref(colOrder), key,
		l.Payments.ref(colPaymentMethod), reconLetter("Gift card"), ReconHeaderRow,
		l.Payments.ref("Year"),
		l.Payments.ref("Month"))

	vatRate := reconLetter("VAT %")

	return map[string]string{
		"Date": fmt.Sprintf("=IFERROR(IFERROR(VLOOKUP(%s,%s,%d,0),VLOOKUP(%s,%s,%d,0)),VLOOKUP(%s,%s,%d,0))",
			key, salesDate, salesDateIdx,
			key, returnsDate, returnsDateIdx,
			key, ordersDate, ordersDateIdx),

		"Country": fmt.Sprintf("=IFERROR(VLOOKUP(%s,%s,%d,0),VLOOKUP(%s,%s,%d,0))",
			key, salesCountry, salesCountryIdx,
			key, baselineCountry, baselineCountryIdx),

		"VAT %": fmt.Sprintf("=IFERROR(AVERAGEIFS(%s,%s,%s),0)",
			l.Tax.ref(colRate), l.Tax.ref(colOrder), key),

		"VAT % (Old)": fmt.Sprintf("=IFERROR(VLOOKUP(%s,%s,%d,0),%s%d)",
			key, baselineVAT, baselineVATIdx, vatRate, row),

		"Diff": fmt.Sprintf("=%s%d-%s%d", vatRate, row, reconLetter("VAT % (Old)"), row),

		"In ITSP?": fmt.Sprintf(`=IF(%s=IFERROR(VLOOKUP(%s,%s,1,0),0),"Yes","No")`,
			key, key, baselineKey),

		"Cancelled": fmt.Sprintf(`=IFERROR(IF(VLOOKUP(%s,%s,%d,0)="%s","%s",""),"")`,
			key, baselineStatus, baselineStatusIdx, normalize.StatusCanceled, normalize.StatusCanceled),

		"Gift card":   "=" + giftCard,
		"Gift card 2": "=" + giftCard2,

		"ITSP Sales": fmt.Sprintf("=SUMIFS(%s,%s,%s)",
			l.Orders.ref("Total EUR incl. VAT"), l.Orders.ref(normalize.ColReference), key),

		"ITSP Return": fmt.Sprintf("=SUMIFS(%s,%s,%s)*-1",
			l.Returns.ref("Total EUR incl. VAT"), l.Returns.ref(normalize.ColComments), key),

		"Total ITSP": fmt.Sprintf("=ROUND(SUM(%s%d:%s%d),2)",
			reconLetter("ITSP Sales"), row, reconLetter("ITSP Return"), row),

		"Shopify Sales": fmt.Sprintf("=SUMIFS(%s,%s,$A%d,%s,%s$2)",
			l.Sales.ref(colTotalSales), l.Sales.ref(colOrder), row,
			l.Sales.ref(colSaleType), reconLetter("Shopify Sales")),

		"Shopify Return": fmt.Sprintf("=SUMIFS(%s,%s,$A%d,%s,%s$2)",
			l.Sales.ref(colTotalSales), l.Sales.ref(colOrder), row,
			l.Sales.ref(colSaleType), reconLetter("Shopify Return")),

		"Total Shopify": fmt.Sprintf("=ROUND(SUM(%s%d:%s%d),2)",
			reconLetter("Shopify Sales"), row, reconLetter("Shopify Return"), row),

		"Delta": fmt.Sprintf("=%s%d-%s%d",
			reconLetter("Total ITSP"), row, reconLetter("Total Shopify"), row),
	}
}

// ReconHeaderBand emits the subtotal band above the headers: plain SUM for
// the six totals columns, SUBTOTAL for Delta so user filters on the sheet
// exclude hidden rows from the running subtotal.
func (l Layouts) ReconHeaderBand(lastRow int) map[string]string {
	band := map[string]string{}
	for _, column := range []string{"Gift card", "Gift card 2", "ITSP Sales", "ITSP Return", "Total ITSP", "Shopify Sales", "Shopify Return", "Total Shopify"} {
		letter := reconLetter(column)
		band[letter+"1"] = fmt.Sprintf("=SUM(%s%d:%s%d)", letter, ReconFirstDataRow, letter, lastRow)
	}
	delta := reconLetter("Delta")
	band[delta+"1"] = fmt.Sprintf("=SUBTOTAL(9,%s%d:%s%d)", delta, ReconFirstDataRow, delta, lastRow)
	return band
}

// ReconCriteriaCells returns the static criteria the row formulas reference:
// the sale-type matchers and the gift card year/month scope.
func ReconCriteriaCells(year, month int) map[string]any {
	return map[string]any{
		reconLetter("Shopify Sales") + "2":  saleTypeOrder,
		reconLetter("Shopify Sales") + "3":  "Shopify incl. VAT",
		reconLetter("Shopify Return") + "2": saleTypeReturn,
		"J2": year,
		"J3": month,
	}
}

// OrderSheetFormulas emits the order ledger's extra columns for one sheet
// row: the local-currency VAT-inclusive total, the VAT rate (zero-guarded),
// and a copy of the date for right-of-key lookups.
func (l Layouts) OrderSheetFormulas(row int) map[string]string {
	shipping := l.Orders.letter(normalize.ColShippingCosts)
	amount := l.Orders.letter(normalize.ColAmount)
	vat := l.Orders.letter(normalize.ColVATValue)
	date := l.Orders.letter(normalize.ColDate)

	return map[string]string{
		"Total EUR incl. VAT": fmt.Sprintf("=%s%d+%s%d+%s%d", shipping, row, amount, row, vat, row),
		"VAT %":               fmt.Sprintf("=IFERROR(%s%d/(%s%d+%s%d),0)", vat, row, shipping, row, amount, row),
		"Date":                fmt.Sprintf("=%s%d", date, row),
	}
}

// ReturnSheetFormulas emits the returns ledger's extra columns: the original
// order's shipping cost (refunded only on a full-quantity return), the
// prior-period VAT rate, and the grossed-up total the reconciliation sums.
func (l Layouts) ReturnSheetFormulas(row int) map[string]string {
	date := l.Returns.letter(normalize.ColDate)
	comments := l.Returns.letter(normalize.ColComments)
	quantity := l.Returns.letter("Quantity")
	amount := l.Returns.letter(normalize.ColAmount)
	shippingReturn := l.Returns.letter("Shipping cost return")
	vatPercent := l.Returns.letter("VAT %")
	shippingOriginal := l.Returns.letter("Shipping cost original order")

	baselineShipping, baselineShippingIdx := l.Baseline.lookupRange(normalize.ColReference, normalize.ColShippingCosts)
	baselineVAT, baselineVATIdx := l.Baseline.lookupRange(normalize.ColReference, normalize.ColVATPercent)

	return map[string]string{
		"Date": fmt.Sprintf("=%s%d", date, row),
		"Shipping cost original order": fmt.Sprintf("=VLOOKUP(%s%d,%s,%d,0)",
			comments, row, baselineShipping, baselineShippingIdx),
		"Shipping cost return": fmt.Sprintf("=IF(%s%d=SUMIFS(%s,%s,%s%d),%s%d,0)",
			quantity, row,
			l.Baseline.ref(normalize.ColTotalQty), l.Baseline.ref(normalize.ColReference), comments, row,
			shippingOriginal, row),
		"VAT %": fmt.Sprintf("=ROUND(VLOOKUP(%s%d,%s,%d,0),2)",
			comments, row, baselineVAT, baselineVATIdx),
		"Total EUR incl. VAT": fmt.Sprintf("=(%s%d+%s%d)*(1+%s%d)",
			amount, row, shippingReturn, row, vatPercent, row),
		"Check": fmt.Sprintf("=VLOOKUP(%s%d,%s,1,0)",
			comments, row, l.Orders.ref(normalize.ColReference)),
	}
}

// SalesSheetFormulas emits the analytics sales sheet's extra columns: a
// consistency check of the component amounts against the total, and the
// country code resolved through the backend mapping sheet.
func (l Layouts) SalesSheetFormulas(row int) map[string]string {
	netSales := l.Sales.letter("Net sales")
	taxes := l.Sales.letter("Taxes")
	total := l.Sales.letter(colTotalSales)
	shippingCountry := l.Sales.letter(colShippingCountry)
	billingCountry := l.Sales.letter(colBillingCountry)

	backendName := l.Backend.letter("Country")
	backendCode := l.Backend.letter("Country code")
	backendRange := fmt.Sprintf("%s!%s:%s", SheetBackend, backendName, backendCode)

	return map[string]string{
		"CHECK": fmt.Sprintf("=SUM(%s%d:%s%d)-%s%d", netSales, row, taxes, row, total, row),
		"Country code": fmt.Sprintf(`=IF(%s%d="",VLOOKUP(%s%d,%s,2,0),VLOOKUP(%s%d,%s,2,0))`,
			shippingCountry, row, billingCountry, row, backendRange,
			shippingCountry, row, backendRange),
	}
}

// PaymentSheetFormulas emits the payment sheet's Year and Month columns used
// by the scoped gift card aggregate.
func (l Layouts) PaymentSheetFormulas(row int) map[string]string {
	date := l.Payments.letter(normalize.ColDate)
	return map[string]string{
		"Year":  fmt.Sprintf("=YEAR(%s%d)", date, row),
		"Month": fmt.Sprintf("=MONTH(%s%d)", date, row),
	}
}

// KeyColumn names the reconciliation key of each source table.
func KeyColumn(sheet string) string {
	switch sheet {
	case SheetOrders, SheetBaseline:
		return normalize.ColReference
	case SheetReturns:
		return normalize.ColComments
	case SheetSales:
		return colOrder
	default:
		return ""
	}
}

// Keys lists a table's non-empty keys in first-seen order, for callers that
// need the raw source key sets (the engine itself uses Build).
func Keys(t ledger.Table, keyColumn string) []string {
	idx := newIndex(t, keyColumn)
	keys := make([]string, 0, len(idx.firstRow))
	for r := range t.Rows {
		k := t.Cell(r, keyColumn)
		if first, ok := idx.first(k); ok && first == r {
			keys = append(keys, k)
		}
	}
	return keys
}
