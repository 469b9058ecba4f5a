package shopify

import (
	"context"

	"github.com/rotisserie/eris"
)

// Report-facing column names per report type. Columns the API returns
// without a mapping entry keep their API name.
var (
	paymentsRename = map[string]string{
		"transaction_id":    "Transaction ID",
		"day":               "Date",
		"order_name":        "Order",
		"payment_gateway":   "Payment method",
		"credit_card_type":  "Accelerated checkout",
		"credit_card_tier":  "Credit card",
		"shipping_country":  "Sales channel",
		"billing_country":   "Billing country",
		"gift_card_id":      "Gift card ID",
		"gross_payments":    "Gross payments",
		"refunded_payments": "Refunds",
		"net_payments":      "Net payments",
	}

	inclReturnsRename = map[string]string{
		"order_id":              "Order ID",
		"sale_id":               "Sale ID",
		"order_name":            "Order",
		"day":                   "Date",
		"order_or_return":       "Sale type",
		"sales_channel":         "Sales channel",
		"pos_location_name":     "POS location",
		"billing_country":       "Billing country",
		"shipping_country":      "Shipping country",
		"product_type":          "Product type",
		"product_vendor":        "Product vendor",
		"product_title":         "Product",
		"product_variant_title": "Variant",
		"product_variant_sku":   "Variant SKU",
		"quantity_ordered":      "Net quantity",
		"gross_sales":           "Gross sales",
		"discounts":             "Discounts",
		"returns":               "Returns",
		"net_sales":             "Net sales",
		"shipping_charges":      "Shipping",
		"taxes":                 "Taxes",
		"total_sales":           "Total sales",
	}

	taxRename = map[string]string{
		"line_item_id":          "Sale tax ID",
		"order_id":              "Order ID",
		"day":                   "Date",
		"order_name":            "Order",
		"product_title":         "Product",
		"product_variant_title": "Variant",
		"product_variant_sku":   "Variant SKU",
		"product_type":          "Product type",
		"tax_country":           "Country",
		"tax_region":            "Region",
		"tax_name":              "Name",
		"tax_rate":              "Rate",
		"sales_taxes":           "Amount",
		"sales_channel":         "Sales channel",
	}
)

const paymentsQuery = `
query {
    shopifyqlQuery(
        query: "
        FROM payments
        SHOW gross_payments, refunded_payments, net_payments
        WHERE transaction_kind IN ('sale','change','capture','refund')
            AND order_name!=''
        GROUP BY transaction_id, day, order_name, payment_gateway,
                 credit_card_type, credit_card_tier, shipping_country,
                 billing_country, gift_card_id
        TIMESERIES day
        SINCE {since} UNTIL {until}
        ORDER BY day ASC
        LIMIT {limit}
        OFFSET {offset}
        VISUALIZE net_payments TYPE table
        "
    ) {
        tableData {
            columns { name }
            rows
        }
        parseErrors
    }
}
`

const inclReturnsQuery = `
query {
    shopifyqlQuery(
        query: "
        FROM sales
        SHOW quantity_ordered, gross_sales, discounts, returns,
             net_sales, shipping_charges, taxes, total_sales
        GROUP BY order_id, sale_id, order_name, day, order_or_return,
                 sales_channel, pos_location_name, billing_country,
                 shipping_country, product_type, product_vendor,
                 product_title, product_variant_title, product_variant_sku
        SINCE {since} UNTIL {until}
        ORDER BY day ASC, order_id ASC, sale_id ASC
        LIMIT {limit}
        OFFSET {offset}
        "
    ) {
        tableData {
            columns { name }
            rows
        }
        parseErrors
    }
}
`

const taxQuery = `
query {
    shopifyqlQuery(
        query: "
        FROM sales_taxes
        SHOW sales_taxes
        GROUP BY line_item_id, order_id, day, order_fulfillment_status,
                 order_payment_status, order_name, product_title,
                 product_variant_title, product_variant_sku,
                 product_type, tax_country, tax_region, tax_name,
                 tax_rate, sales_channel, filed_by_channel, is_canceled_order
        SINCE {since} UNTIL {until}
        ORDER BY order_id ASC
        LIMIT {limit}
        OFFSET {offset}
        VISUALIZE sales_taxes TYPE table
        "
    ) {
        tableData {
            columns { name }
            rows
        }
        parseErrors
    }
}
`

// ReportSet bundles the three analytics report types, each already merged
// across the live and archived sources and renamed to report-facing columns.
type ReportSet struct {
	Payments    Table
	InclReturns Table
	Tax         Table
}

// FetchReports pulls all three report types from both backing sources.
// Archived rows follow live rows; no deduplication is performed, so the two
// sources' date ranges must not overlap.
func FetchReports(ctx context.Context, live, archive Client, dateFrom, dateTo string) (ReportSet, error) {
	payments, err := fetchMerged(ctx, live, archive, paymentsQuery, dateFrom, dateTo)
	if err != nil {
		return ReportSet{}, eris.Wrap(err, "shopify: payments report")
	}

	inclReturns, err := fetchMerged(ctx, live, archive, inclReturnsQuery, dateFrom, dateTo)
	if err != nil {
		return ReportSet{}, eris.Wrap(err, "shopify: sales incl. returns report")
	}

	tax, err := fetchMerged(ctx, live, archive, taxQuery, dateFrom, dateTo)
	if err != nil {
		return ReportSet{}, eris.Wrap(err, "shopify: tax report")
	}

	return ReportSet{
		Payments:    rename(payments, paymentsRename),
		InclReturns: rename(inclReturns, inclReturnsRename),
		Tax:         rename(tax, taxRename),
	}, nil
}

func fetchMerged(ctx context.Context, live, archive Client, query, dateFrom, dateTo string) (Table, error) {
	liveTable, err := live.FetchReport(ctx, query, dateFrom, dateTo)
	if err != nil {
		return Table{}, eris.Wrap(err, "live source")
	}
	archiveTable, err := archive.FetchReport(ctx, query, dateFrom, dateTo)
	if err != nil {
		return Table{}, eris.Wrap(err, "archived source")
	}
	return Concat(liveTable, archiveTable), nil
}

// Concat appends the second table's rows after the first's, preserving row
// order. Column names come from the first non-empty table.
func Concat(first, second Table) Table {
	out := Table{Columns: first.Columns}
	if len(out.Columns) == 0 {
		out.Columns = second.Columns
	}
	out.Rows = append(out.Rows, first.Rows...)
	out.Rows = append(out.Rows, second.Rows...)
	return out
}

func rename(t Table, mapping map[string]string) Table {
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
