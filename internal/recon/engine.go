// Package recon builds the per-order cross-source comparison. It has two
// layers: a pure in-memory engine producing a value snapshot, and a formula
// emitter translating the same lookups and aggregates into live cross-sheet
// spreadsheet formulas.
package recon

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fabgroup/recon-cli/internal/ledger"
	"github.com/fabgroup/recon-cli/internal/normalize"
)

// Analytics-side column names (report-facing, post rename).
const (
	colOrder           = "Order"
	colSaleType        = "Sale type"
	colTotalSales      = "Total sales"
	colShippingCountry = "Shipping country"
	colBillingCountry  = "Billing country"
	colRate            = "Rate"
	colPaymentMethod   = "Payment method"
	colGrossPayments   = "Gross payments"
)

// GiftCardMethod is the payment method aggregated into the gift card column.
const GiftCardMethod = "Gift card"

// saleTypeOrder and saleTypeReturn split the analytics sales rows.
const (
	saleTypeOrder  = "order"
	saleTypeReturn = "return"
)

// Sources are the tables the reconciliation reads. All lookups use
// first-match semantics when a key occurs more than once in a source.
type Sources struct {
	Orders   ledger.Table // normalized order ledger
	Returns  ledger.Table // normalized returns ledger
	Sales    ledger.Table // analytics sales incl. returns
	Tax      ledger.Table // analytics tax rows
	Payments ledger.Table // analytics payment rows
	Baseline ledger.Table // combined baseline ledger
	Backend  ledger.Table // country name to country code mapping sheet
}

// Row is one reconciled order key.
type Row struct {
	Key        string
	Date       string
	Country    string
	VATRate    decimal.Decimal
	VATRateOld decimal.Decimal
	VATDiff    decimal.Decimal
	InBaseline bool
	Cancelled  bool
	GiftCard   decimal.Decimal

	ERPSales         decimal.Decimal
	ERPReturns       decimal.Decimal // sign-inverted: returns reduce net
	ERPTotal         decimal.Decimal
	AnalyticsSales   decimal.Decimal
	AnalyticsReturns decimal.Decimal
	AnalyticsTotal   decimal.Decimal
	Delta            decimal.Decimal
}

// Totals are the column subtotals exposed in the report's header band.
type Totals struct {
	ERPSales         decimal.Decimal
	ERPReturns       decimal.Decimal
	ERPTotal         decimal.Decimal
	AnalyticsSales   decimal.Decimal
	AnalyticsReturns decimal.Decimal
	AnalyticsTotal   decimal.Decimal
	Delta            decimal.Decimal
}

// Snapshot is the fully computed reconciliation.
type Snapshot struct {
	Rows   []Row
	Totals Totals
}

// Build computes the reconciliation snapshot. The key set is exactly the
// union of order keys seen in the order ledger, the returns ledger and the
// analytics sales rows, in ascending order.
func Build(src Sources) Snapshot {
	orders := newIndex(src.Orders, normalize.ColReference)
	returns := newIndex(src.Returns, normalize.ColComments)
	sales := newIndex(src.Sales, colOrder)
	baseline := newIndex(src.Baseline, normalize.ColReference)
	tax := newIndex(src.Tax, colOrder)
	payments := newIndex(src.Payments, colOrder)
	countryCodes := backendCountryCodes(src.Backend)

	keys := keyUnion(orders, returns, sales)

	snap := Snapshot{Rows: make([]Row, 0, len(keys))}
	for _, key := range keys {
		row := buildRow(key, src, orders, returns, sales, baseline, tax, payments, countryCodes)
		snap.Rows = append(snap.Rows, row)

		snap.Totals.ERPSales = snap.Totals.ERPSales.Add(row.ERPSales)
		snap.Totals.ERPReturns = snap.Totals.ERPReturns.Add(row.ERPReturns)
		snap.Totals.ERPTotal = snap.Totals.ERPTotal.Add(row.ERPTotal)
		snap.Totals.AnalyticsSales = snap.Totals.AnalyticsSales.Add(row.AnalyticsSales)
		snap.Totals.AnalyticsReturns = snap.Totals.AnalyticsReturns.Add(row.AnalyticsReturns)
		snap.Totals.AnalyticsTotal = snap.Totals.AnalyticsTotal.Add(row.AnalyticsTotal)
		snap.Totals.Delta = snap.Totals.Delta.Add(row.Delta)
	}

	return snap
}

func buildRow(key string, src Sources, orders, returns, sales, baseline, tax, payments index, countryCodes map[string]string) Row {
	row := Row{Key: key}

	// Representative date: analytics first, then returns, then orders.
	if r, ok := sales.first(key); ok {
		row.Date = src.Sales.Cell(r, normalize.ColDate)
	} else if r, ok := returns.first(key); ok {
		row.Date = src.Returns.Cell(r, normalize.ColDate)
	} else if r, ok := orders.first(key); ok {
		row.Date = src.Orders.Cell(r, normalize.ColDate)
	}

	// Country: analytics shipping (or billing) country mapped to its code,
	// falling back to the baseline ledger's country.
	if r, ok := sales.first(key); ok {
		name := src.Sales.Cell(r, colShippingCountry)
		if name == "" {
			name = src.Sales.Cell(r, colBillingCountry)
		}
		row.Country = countryCodes[name]
	}
	if row.Country == "" {
		if r, ok := baseline.first(key); ok {
			row.Country = src.Baseline.Cell(r, normalize.ColCountry)
		}
	}

	// VAT rate: mean analytics tax rate for the key, zero when absent.
	row.VATRate = meanOf(src.Tax, tax, key, colRate)

	// Prior-period VAT rate from the baseline, defaulting to the fresh rate.
	if r, ok := baseline.first(key); ok {
		row.VATRateOld = ledger.CoerceOrZero(src.Baseline.Cell(r, normalize.ColVATPercent))
		row.InBaseline = true
		row.Cancelled = src.Baseline.Cell(r, normalize.ColStatus) == normalize.StatusCanceled
	} else {
		row.VATRateOld = row.VATRate
	}
	row.VATDiff = row.VATRate.Sub(row.VATRateOld)

	for _, r := range payments.rows[key] {
		if src.Payments.Cell(r, colPaymentMethod) == GiftCardMethod {
			row.GiftCard = row.GiftCard.Add(ledger.CoerceOrZero(src.Payments.Cell(r, colGrossPayments)))
		}
	}

	for _, r := range orders.rows[key] {
		row.ERPSales = row.ERPSales.Add(orderTotalInclVAT(src.Orders, r))
	}
	for _, r := range returns.rows[key] {
		row.ERPReturns = row.ERPReturns.Sub(returnTotalInclVAT(src, baseline, key, r))
	}
	row.ERPTotal = ledger.Round2(row.ERPSales.Add(row.ERPReturns))

	for _, r := range sales.rows[key] {
		amount := ledger.CoerceOrZero(src.Sales.Cell(r, colTotalSales))
		switch src.Sales.Cell(r, colSaleType) {
		case saleTypeOrder:
			row.AnalyticsSales = row.AnalyticsSales.Add(amount)
		case saleTypeReturn:
			row.AnalyticsReturns = row.AnalyticsReturns.Add(amount)
		}
	}
	row.AnalyticsTotal = ledger.Round2(row.AnalyticsSales.Add(row.AnalyticsReturns))

	row.Delta = row.ERPTotal.Sub(row.AnalyticsTotal)
	return row
}

// orderTotalInclVAT is the order ledger's local-currency total: shipping
// plus amount plus VAT.
func orderTotalInclVAT(t ledger.Table, row int) decimal.Decimal {
	return ledger.CoerceOrZero(t.Cell(row, normalize.ColShippingCosts)).
		Add(ledger.CoerceOrZero(t.Cell(row, normalize.ColAmount))).
		Add(ledger.CoerceOrZero(t.Cell(row, normalize.ColVATValue)))
}

// returnTotalInclVAT grosses a return row up to its VAT-inclusive total.
// The original order's shipping cost is refunded only when the full line
// quantity came back; the VAT rate is the baseline ledger's, rounded as
// reviewed.
func returnTotalInclVAT(src Sources, baseline index, key string, row int) decimal.Decimal {
	amount := ledger.CoerceOrZero(src.Returns.Cell(row, normalize.ColAmount))

	var vatOld, originalShipping decimal.Decimal
	if r, ok := baseline.first(key); ok {
		vatOld = ledger.Round2(ledger.CoerceOrZero(src.Baseline.Cell(r, normalize.ColVATPercent)))
		originalShipping = ledger.CoerceOrZero(src.Baseline.Cell(r, normalize.ColShippingCosts))
	}

	baselineQty := decimal.Zero
	for _, r := range baseline.rows[key] {
		baselineQty = baselineQty.Add(ledger.CoerceOrZero(src.Baseline.Cell(r, normalize.ColTotalQty)))
	}

	shippingReturn := decimal.Zero
	returnedQty := ledger.CoerceOrZero(src.Returns.Cell(row, "Quantity"))
	if !baselineQty.IsZero() && returnedQty.Equal(baselineQty) {
		shippingReturn = originalShipping
	}

	one := decimal.NewFromInt(1)
	return amount.Add(shippingReturn).Mul(one.Add(vatOld))
}

func meanOf(t ledger.Table, idx index, key, column string) decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, r := range idx.rows[key] {
		if v, ok := ledger.Coerce(t.Cell(r, column)); ok {
			sum = sum.Add(v)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

// index groups a table's row numbers by key, remembering first occurrence.
type index struct {
	firstRow map[string]int
	rows     map[string][]int
}

func newIndex(t ledger.Table, keyColumn string) index {
	idx := index{firstRow: map[string]int{}, rows: map[string][]int{}}
	col := t.ColumnIndex(keyColumn)
	if col < 0 {
		return idx
	}
	for r := range t.Rows {
		key := strings.TrimSpace(t.Cell(r, keyColumn))
		if key == "" {
			continue
		}
		if _, seen := idx.firstRow[key]; !seen {
			idx.firstRow[key] = r
		}
		idx.rows[key] = append(idx.rows[key], r)
	}
	return idx
}

func (i index) first(key string) (int, bool) {
	r, ok := i.firstRow[key]
	return r, ok
}

func keyUnion(sources ...index) []string {
	seen := map[string]struct{}{}
	for _, s := range sources {
		for k := range s.firstRow {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// backendCountryCodes reads the mapping sheet's country-name and
// country-code columns (named when present, the workbook's fixed E/F
// positions otherwise).
func backendCountryCodes(t ledger.Table) map[string]string {
	nameCol := t.ColumnIndex("Country")
	codeCol := t.ColumnIndex("Country code")
	if nameCol < 0 || codeCol < 0 {
		nameCol, codeCol = 4, 5
	}
	out := map[string]string{}
	for _, row := range t.Rows {
		if nameCol < len(row) && codeCol < len(row) && row[nameCol] != "" {
			if _, seen := out[row[nameCol]]; !seen {
				out[row[nameCol]] = row[codeCol]
			}
		}
	}
	return out
}
