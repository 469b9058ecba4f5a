package normalize

import (
	"github.com/fabgroup/recon-cli/internal/ledger"
	"github.com/fabgroup/recon-cli/pkg/itsperfect"
)

// ReturnColumns is the exact column set and order of the normalized returns
// ledger. The Comments column carries the original order reference and is
// the reconciliation key on this side.
var ReturnColumns = []string{
	ColOrderNo,
	ColDate,
	"Warehouse",
	"Customer ID",
	"Customer",
	"Return costs",
	"Discount",
	ColComments,
	ColCountry,
	"Subsidiary",
	"Quantity",
	ColAmount,
	"Postage costs",
}

// Returns flattens raw sales return orders, keeping only B2C returns of the
// given subsidiary that carry no marketplace channel.
func Returns(records []itsperfect.Record, subsidiary string) ledger.Table {
	out := ledger.New(ReturnColumns...)

	for _, r := range records {
		orderNo := r.Str("id")
		if orderNo == "" {
			continue
		}

		if code, ok := r.Int("b2b_b2c_order"); !ok || code != channelCodeB2C {
			continue
		}
		if r.Object("subsidiary").Str("subsidiary") != subsidiary {
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
			coercedCell(r.Str("return_costs_lcy")),
			coercedCell(r.Str("discount_lcy")),
			r.Str("remarks"),
			r.Object("country").Str("iso2"),
			r.Object("subsidiary").Str("subsidiary"),
			r.Str("quantity"),
			coercedCell(r.Str("amount_lcy")),
			coercedCell(r.Str("postage_costs_lcy")),
		)
	}

	return out
}
