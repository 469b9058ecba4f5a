package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var rawSalesColumns = []string{
	"order_id", "sale_id", "order_name", "day", "order_or_return",
	"sales_channel", "pos_location_name", "billing_country",
	"shipping_country", "product_type", "product_vendor", "product_title",
	"product_variant_title", "product_variant_sku", "quantity_ordered",
	"gross_sales", "discounts", "returns", "net_sales", "shipping_charges",
	"taxes", "total_sales",
}

var rawPaymentColumns = []string{
	"transaction_id", "day", "order_name", "payment_gateway",
	"credit_card_type", "credit_card_tier", "shipping_country",
	"billing_country", "gift_card_id", "gross_payments",
	"refunded_payments", "net_payments",
}

var rawTaxColumns = []string{
	"line_item_id", "order_id", "day", "order_fulfillment_status",
	"order_payment_status", "order_name", "product_title",
	"product_variant_title", "product_variant_sku", "product_type",
	"tax_country", "tax_region", "tax_name", "tax_rate", "sales_channel",
	"filed_by_channel", "is_canceled_order", "sales_taxes",
}

func analyticsResponse(columns []string, rows [][]any) map[string]any {
	cols := make([]map[string]string, len(columns))
	for i, c := range columns {
		cols[i] = map[string]string{"name": c}
	}
	return map[string]any{
		"data": map[string]any{
			"shopifyqlQuery": map[string]any{
				"tableData":   map[string]any{"columns": cols, "rows": rows},
				"parseErrors": []any{},
			},
		},
	}
}

// fakeITSP serves authentication plus single-page order and return listings.
func fakeITSP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/authentication", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"token":"test-token"}`)
	})
	mux.HandleFunc("/sales_orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pagination-Page-Count", "1")
		fmt.Fprint(w, `[{
			"id": 100001,
			"date": "2024-04-02",
			"reference": "#2001",
			"subsidiary": {"subsidiary": "Fab BV"},
			"country": {"iso2": "NL"},
			"marketplace_channel": {},
			"b2b_b2c_order": 2,
			"type": 2,
			"status": 1,
			"amount_lcy": "100,00",
			"shipping_costs_lcy": "5,00",
			"vat_amount_lcy": "21,00",
			"amount_fcy": "100.00",
			"shipping_costs_fcy": "5.00",
			"discount_fcy": "0.00",
			"discount_lcy": "0,00",
			"vat_amount_fcy": "21.00",
			"payments": [],
			"lines": [{"quantity": 1}]
		}]`)
	})
	mux.HandleFunc("/sales_return_orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pagination-Page-Count", "1")
		fmt.Fprint(w, `[]`)
	})

	return httptest.NewServer(mux)
}

// fakeAnalytics answers every report query; only the sales report carries
// rows, and only when withSales is set (the archive source stays empty).
func fakeAnalytics(t *testing.T, withSales bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp map[string]any
		switch {
		case strings.Contains(req.Query, "FROM payments"):
			resp = analyticsResponse(rawPaymentColumns, nil)
		case strings.Contains(req.Query, "FROM sales_taxes"):
			resp = analyticsResponse(rawTaxColumns, nil)
		default:
			var rows [][]any
			if withSales {
				rows = [][]any{{
					"101", "201", "#2001", "2024-04-02", "order", "web", "",
					"Netherlands", "Netherlands", "", "", "", "", "",
					1, 100, 0, 0, 100, 5, 21, 126,
				}}
			}
			resp = analyticsResponse(rawSalesColumns, rows)
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func writeBaselineWorkbook(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "baseline.xlsx")

	f := excelize.NewFile()
	_, err := f.NewSheet("Old ITSP")
	require.NoError(t, err)
	headers := []string{"Order no.", "Date", "Reference", "Country", "Shipping costs", "Total Qty", "Status", "VAT %"}
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Old ITSP", col+"1", h))
	}
	row := []string{"90001", "2024-03-12", "#1901", "NL", "4.5", "2", "Sent", "0.21"}
	for i, v := range row {
		col, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Old ITSP", col+"2", v))
	}

	_, err = f.NewSheet("Backend")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Backend", "A1", "Country"))
	require.NoError(t, f.SetCellValue("Backend", "B1", "Country code"))
	require.NoError(t, f.SetCellValue("Backend", "A2", "Netherlands"))
	require.NoError(t, f.SetCellValue("Backend", "B2", "NL"))

	require.NoError(t, f.DeleteSheet("Sheet1"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func setPipelineEnv(t *testing.T, itspURL, liveURL, archiveURL string) {
	t.Helper()
	t.Setenv("RECON_ITSP_BASE_URL", itspURL)
	t.Setenv("RECON_ITSP_USERNAME", "svc-recon")
	t.Setenv("RECON_ITSP_PASSWORD", "secret")
	t.Setenv("RECON_SHOPIFY_LIVE_ACCESS_TOKEN", "live-token")
	t.Setenv("RECON_SHOPIFY_LIVE_GRAPHQL_URL", liveURL)
	t.Setenv("RECON_SHOPIFY_ARCHIVE_ACCESS_TOKEN", "archive-token")
	t.Setenv("RECON_SHOPIFY_ARCHIVE_GRAPHQL_URL", archiveURL)
}

func TestExportEndToEnd(t *testing.T) {
	itsp := fakeITSP(t)
	defer itsp.Close()
	live := fakeAnalytics(t, true)
	defer live.Close()
	archive := fakeAnalytics(t, false)
	defer archive.Close()

	dir := t.TempDir()
	baseline := writeBaselineWorkbook(t, dir)
	out := filepath.Join(dir, "report.xlsx")
	setPipelineEnv(t, itsp.URL, live.URL, archive.URL)

	rootCmd.SetArgs([]string{"export",
		"--from", "2024-04-01", "--to", "2024-04-30",
		"--baseline", baseline, "--out", out,
	})
	require.NoError(t, rootCmd.Execute())

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	// The fresh order is the only reconciliation key.
	key, err := f.GetCellValue("Recon", "A5")
	require.NoError(t, err)
	assert.Equal(t, "#2001", key)

	next, err := f.GetCellValue("Recon", "A6")
	require.NoError(t, err)
	assert.Empty(t, next)

	// The baseline ledger grew by the merged fresh order.
	rows, err := f.GetRows("Old ITSP")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "#1901", rows[1][2])
	assert.Equal(t, "#2001", rows[2][2])
	// VAT % of the merged row: 21 / (5 + 100).
	assert.Equal(t, "0.2", rows[2][7])

	// The analytics sales row landed on its sheet with renamed columns.
	salesHeader, err := f.GetCellValue("Shopify incl. returns", "C1")
	require.NoError(t, err)
	assert.Equal(t, "Order", salesHeader)

	saleKey, err := f.GetCellValue("Shopify incl. returns", "C2")
	require.NoError(t, err)
	assert.Equal(t, "#2001", saleKey)
}

func TestSnapshotEndToEnd(t *testing.T) {
	itsp := fakeITSP(t)
	defer itsp.Close()
	live := fakeAnalytics(t, true)
	defer live.Close()
	archive := fakeAnalytics(t, false)
	defer archive.Close()

	baseline := writeBaselineWorkbook(t, t.TempDir())
	setPipelineEnv(t, itsp.URL, live.URL, archive.URL)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)
	rootCmd.SetArgs([]string{"snapshot",
		"--from", "2024-04-01", "--to", "2024-04-30",
		"--baseline", baseline,
	})
	require.NoError(t, rootCmd.Execute())

	var snap struct {
		Rows []struct {
			Key      string `json:"Key"`
			ERPTotal string `json:"ERPTotal"`
			Delta    string `json:"Delta"`
		} `json:"Rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "#2001", snap.Rows[0].Key)
	assert.Equal(t, "126", snap.Rows[0].ERPTotal)
	// ERP total matches the analytics total, so the period reconciles.
	assert.Equal(t, "0", snap.Rows[0].Delta)
}
