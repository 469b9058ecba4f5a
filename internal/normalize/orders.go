// Package normalize maps raw nested, enum-coded ERP records into the
// canonical flat ledgers the reconciliation works on.
package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/fabgroup/recon-cli/internal/ledger"
	"github.com/fabgroup/recon-cli/pkg/itsperfect"
)

// Report-facing column names referenced across packages.
const (
	ColOrderNo            = "Order no."
	ColDate               = "Date"
	ColReference          = "Reference"
	ColCountry            = "Country"
	ColStatus             = "Status"
	ColComments           = "Comments"
	ColAmount             = "Amount"
	ColShippingCosts      = "Shipping costs"
	ColVATValue           = "VAT value"
	ColTotalQty           = "Total Qty"
	ColVATPercent         = "VAT %"
	ColMarketplaceChannel = "Marketplace > Channel"
)

// OrderColumns is the exact column set and order of the normalized order
// ledger. Extra or missing columns are a contract violation against the
// baseline workbook.
var OrderColumns = []string{
	ColOrderNo,
	ColDate,
	"Warehouse",
	"Customer ID",
	"Customer",
	ColReference,
	ColCountry,
	ColShippingCosts,
	"Discount",
	"Subsidiary",
	"Type",
	ColStatus,
	"Webshop",
	"Channel",
	"Currency",
	ColAmount,
	ColVATValue,
	"Creation date",
	"Payment date",
	"Payment amount (LCY)",
	"Payment method",
	ColTotalQty,
	"Subtotaal excl VAT",
	"Total incl. VAT",
}

// Orders flattens raw sales orders into the canonical order ledger, keeping
// only rows for the given subsidiary and channel category that carry no
// marketplace channel. Rows without an order key are dropped.
func Orders(records []itsperfect.Record, subsidiary, channel string) ledger.Table {
	out := ledger.New(OrderColumns...)

	for _, r := range records {
		orderNo := r.Str("id")
		if orderNo == "" {
			continue
		}

		channelLabel := enumLabel(channelKinds, r, "b2b_b2c_order")
		subsidiaryName := r.Object("subsidiary").Str("subsidiary")
		if subsidiaryName != subsidiary || channelLabel != channel {
			continue
		}
		if r.Object("marketplace_channel").Has("channel") {
			continue
		}

		out.AppendRow(
			orderNo,
			r.Str("date"),
			r.Object("warehouse").Str("warehouse"),
			r.Object("customer").Str("id"),
			r.Object("customer").Str("customer_name"),
			r.Str("reference"),
			r.Object("country").Str("iso2"),
			coercedCell(r.Str("shipping_costs_lcy")),
			coercedCell(r.Str("discount_lcy")),
			subsidiaryName,
			enumLabel(orderTypes, r, "type"),
			enumLabel(orderStatuses, r, "status"),
			r.Object("webshop").Str("webshop"),
			channelLabel,
			r.Object("currency").Str("iso"),
			coercedCell(r.Str("amount_lcy")),
			coercedCell(r.Str("vat_amount_lcy")),
			r.Str("creation_date"),
			paymentDate(r),
			paymentAmount(r).String(),
			paymentMethod(r),
			lineQuantity(r).String(),
			subtotalExclVAT(r),
			totalInclVAT(r),
		)
	}

	return out
}

// WithVATPercent appends the VAT % column: VAT value over shipping plus
// amount, degenerating to 0 on a zero denominator or unparseable input.
func WithVATPercent(t ledger.Table) ledger.Table {
	return t.WithColumn(ColVATPercent, func(row int) string {
		vat, vok := ledger.Coerce(t.Cell(row, ColVATValue))
		shipping, sok := ledger.Coerce(t.Cell(row, ColShippingCosts))
		amount, aok := ledger.Coerce(t.Cell(row, ColAmount))
		if !vok || !sok || !aok {
			return "0"
		}
		return ledger.Ratio(vat, shipping.Add(amount)).String()
	})
}

// coercedCell canonicalizes a numeric source cell to dot-decimal form,
// degrading non-numeric input to an empty cell.
func coercedCell(s string) string {
	d, ok := ledger.Coerce(s)
	if !ok {
		return ""
	}
	return d.String()
}

// subtotalExclVAT is amount plus discount, both in foreign currency. Any
// unparseable component voids the result.
func subtotalExclVAT(r itsperfect.Record) string {
	amount, aok := ledger.Coerce(r.Str("amount_fcy"))
	discount, dok := ledger.Coerce(r.Str("discount_fcy"))
	if !aok || !dok {
		return ""
	}
	return amount.Add(discount).String()
}

// totalInclVAT is amount plus shipping plus VAT, all in foreign currency.
func totalInclVAT(r itsperfect.Record) string {
	amount, aok := ledger.Coerce(r.Str("amount_fcy"))
	shipping, sok := ledger.Coerce(r.Str("shipping_costs_fcy"))
	vat, vok := ledger.Coerce(r.Str("vat_amount_fcy"))
	if !aok || !sok || !vok {
		return ""
	}
	return amount.Add(shipping).Add(vat).String()
}

// lineQuantity sums per-line quantities; zero when the order has no lines.
func lineQuantity(r itsperfect.Record) decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.List("lines") {
		total = total.Add(ledger.CoerceOrZero(line.Str("quantity")))
	}
	return total
}

// paymentDate is the earliest non-null payment date; dates are ISO-formatted
// so the lexicographic minimum is the chronological one.
func paymentDate(r itsperfect.Record) string {
	earliest := ""
	for _, p := range r.List("payments") {
		d := p.Str("date")
		if d == "" {
			continue
		}
		if earliest == "" || d < earliest {
			earliest = d
		}
	}
	return earliest
}

// paymentMethod is the first payment's method; empty when there are none.
func paymentMethod(r itsperfect.Record) string {
	payments := r.List("payments")
	if len(payments) == 0 {
		return ""
	}
	return payments[0].Object("payment_method").Str("payment_method")
}

// paymentAmount sums the order's payment amounts scaled by the aggregate
// line quantity. The quantity factor mirrors the upstream export this ledger
// replaces; see DESIGN.md before "fixing" it.
func paymentAmount(r itsperfect.Record) decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.List("payments") {
		total = total.Add(ledger.CoerceOrZero(p.Str("amount_rcy")))
	}
	return total.Mul(lineQuantity(r))
}
