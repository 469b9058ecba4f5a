package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabgroup/recon-cli/internal/resilience"
)

func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return nil
	}
}

func tableJSON(columns []string, rows [][]any) map[string]any {
	cols := make([]map[string]string, len(columns))
	for i, c := range columns {
		cols[i] = map[string]string{"name": c}
	}
	return map[string]any{
		"data": map[string]any{
			"shopifyqlQuery": map[string]any{
				"tableData": map[string]any{
					"columns": cols,
					"rows":    rows,
				},
				"parseErrors": []any{},
			},
		},
	}
}

func throttledJSON() map[string]any {
	return map[string]any{
		"errors": []map[string]any{
			{"message": "query is throttled", "extensions": map[string]string{"code": "THROTTLED"}},
		},
	}
}

// readQuery extracts the submitted query string for offset assertions.
func readQuery(t *testing.T, r *http.Request) string {
	t.Helper()
	var body struct {
		Query string `json:"query"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body.Query
}

func TestFetchReportSingleBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := readQuery(t, r)
		assert.Contains(t, q, "SINCE 2024-04-01 UNTIL 2024-04-30")
		_ = json.NewEncoder(w).Encode(tableJSON(
			[]string{"order_name", "total_sales"},
			[][]any{{"#1001", 100.5}, {"#1002", 50}},
		))
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, WithBatchSize(10), WithSleep(noSleep(nil)))
	table, err := c.FetchReport(context.Background(), inclReturnsQuery, "2024-04-01", "2024-04-30")
	require.NoError(t, err)

	assert.Equal(t, []string{"order_name", "total_sales"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"#1001", "100.5"}, table.Rows[0])
	assert.Equal(t, []string{"#1002", "50"}, table.Rows[1])
}

func TestFetchReportPaginatesUntilShortBatch(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := readQuery(t, r)
		off := q[strings.Index(q, "OFFSET"):]
		off = strings.Fields(off)[1]
		offsets = append(offsets, off)

		if off == "0" {
			_ = json.NewEncoder(w).Encode(tableJSON(
				[]string{"order_name"}, [][]any{{"#1"}, {"#2"}}))
			return
		}
		_ = json.NewEncoder(w).Encode(tableJSON(
			[]string{"order_name"}, [][]any{{"#3"}}))
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, WithBatchSize(2), WithSleep(noSleep(nil)))
	table, err := c.FetchReport(context.Background(), inclReturnsQuery, "a", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "2"}, offsets)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "#3", table.Rows[2][0])
}

func TestThrottledRetriesWithBackoff(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			_ = json.NewEncoder(w).Encode(throttledJSON())
			return
		}
		_ = json.NewEncoder(w).Encode(tableJSON([]string{"order_name"}, [][]any{{"#1"}}))
	}))
	defer srv.Close()

	var waits []time.Duration
	c := NewClient("tok", srv.URL,
		WithBatchSize(10),
		WithRetryPolicy(5, 5*time.Second),
		WithSleep(noSleep(&waits)),
	)

	table, err := c.FetchReport(context.Background(), taxQuery, "a", "b")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	// Exactly one delay, equal to the initial backoff.
	assert.Equal(t, []time.Duration{5 * time.Second}, waits)
	assert.Equal(t, 2, attempt)
}

func TestThrottledExhaustionIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(throttledJSON())
	}))
	defer srv.Close()

	var waits []time.Duration
	c := NewClient("tok", srv.URL,
		WithRetryPolicy(3, 5*time.Second),
		WithSleep(noSleep(&waits)),
	)

	_, err := c.FetchReport(context.Background(), taxQuery, "a", "b")
	require.Error(t, err)

	var fe *resilience.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Payload, "throttling retries exhausted")

	// Doubling delays between the three attempts.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, waits)
}

func TestNonThrottleErrorFailsImmediately(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{
				{"message": "field does not exist", "extensions": map[string]string{"code": "INVALID"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, WithSleep(noSleep(nil)))
	_, err := c.FetchReport(context.Background(), paymentsQuery, "a", "b")
	require.Error(t, err)

	var fe *resilience.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Payload, "field does not exist")
	assert.Equal(t, 1, calls)
}

func TestParseErrorsAreReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"shopifyqlQuery":{"tableData":{"columns":[],"rows":[]},"parseErrors":["unexpected token"]}}}`)
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, WithSleep(noSleep(nil)))
	_, err := c.FetchReport(context.Background(), paymentsQuery, "a", "b")
	require.Error(t, err)

	var fe *resilience.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Payload, "unexpected token")
}

func TestEmptyResultYieldsColumnsNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tableJSON([]string{"order_name", "total_sales"}, nil))
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, WithSleep(noSleep(nil)))
	table, err := c.FetchReport(context.Background(), inclReturnsQuery, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_name", "total_sales"}, table.Columns)
	assert.Empty(t, table.Rows)
}
