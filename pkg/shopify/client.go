// Package shopify is a client for the storefront analytics query API: a
// single POST endpoint taking a ShopifyQL-style query, answered with either
// a tabular result or an error list, where a distinguished THROTTLED code
// demands exponential backoff rather than failure.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fabgroup/recon-cli/internal/resilience"
)

// ThrottledCode is the extension code signalling a throttled query.
const ThrottledCode = "THROTTLED"

// Table is a tabular query result: named columns over string-typed rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Client retrieves complete row sets from one backing data source.
type Client interface {
	// FetchReport runs the query template across offset batches until a
	// short or empty batch, substituting {since}, {until}, {limit} and
	// {offset}, and returns the concatenated rows in response order.
	FetchReport(ctx context.Context, queryTemplate, dateFrom, dateTo string) (Table, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithBatchSize overrides the rows-per-batch limit.
func WithBatchSize(n int) Option {
	return func(c *httpClient) {
		c.batchSize = n
	}
}

// WithRetryPolicy sets the throttling budget: maxAttempts tries per batch,
// starting at initialDelay and doubling.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(c *httpClient) {
		c.maxAttempts = maxAttempts
		c.initialDelay = initialDelay
	}
}

// WithSleep overrides the backoff sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *httpClient) {
		c.sleep = sleep
	}
}

type httpClient struct {
	accessToken  string
	graphqlURL   string
	http         *http.Client
	batchSize    int
	maxAttempts  int
	initialDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for one analytics source (live or archive).
func NewClient(accessToken, graphqlURL string, opts ...Option) Client {
	c := &httpClient{
		accessToken: accessToken,
		graphqlURL:  graphqlURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		batchSize:    3000,
		maxAttempts:  5,
		initialDelay: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type apiError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type tableData struct {
	Columns []struct {
		Name string `json:"name"`
	} `json:"columns"`
	Rows [][]any `json:"rows"`
}

type queryResponse struct {
	Data struct {
		Query struct {
			TableData   tableData         `json:"tableData"`
			ParseErrors []json.RawMessage `json:"parseErrors"`
		} `json:"shopifyqlQuery"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

func (c *httpClient) FetchReport(ctx context.Context, queryTemplate, dateFrom, dateTo string) (Table, error) {
	var out Table
	offset := 0

	for {
		query := strings.NewReplacer(
			"{since}", dateFrom,
			"{until}", dateTo,
			"{limit}", strconv.Itoa(c.batchSize),
			"{offset}", strconv.Itoa(offset),
		).Replace(queryTemplate)

		table, err := c.post(ctx, query)
		if err != nil {
			return Table{}, err
		}

		if len(out.Columns) == 0 {
			for _, col := range table.Columns {
				out.Columns = append(out.Columns, col.Name)
			}
		}

		if len(table.Rows) == 0 {
			break
		}
		for _, row := range table.Rows {
			out.Rows = append(out.Rows, stringifyRow(row))
		}
		zap.L().Debug("fetched analytics batch",
			zap.String("url", c.graphqlURL),
			zap.Int("offset", offset),
			zap.Int("rows", len(table.Rows)),
		)

		if len(table.Rows) < c.batchSize {
			break
		}
		offset += c.batchSize
	}

	return out, nil
}

// post submits one query, retrying the same query with exponential backoff
// while the API reports throttling. Any other reported error fails at once;
// an exhausted throttle budget escalates to a FetchError.
func (c *httpClient) post(ctx context.Context, query string) (*tableData, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    c.maxAttempts,
		InitialBackoff: c.initialDelay,
		Multiplier:     2,
		Sleep:          c.sleep,
		OnRetry:        resilience.RetryLogger("shopify", "query"),
	}

	table, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*tableData, error) {
		return c.postOnce(ctx, query)
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, &resilience.FetchError{
				Endpoint: c.graphqlURL,
				Payload:  "throttling retries exhausted: " + err.Error(),
			}
		}
		return nil, err
	}
	return table, nil
}

func (c *httpClient) postOnce(ctx context.Context, query string) (*tableData, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, eris.Wrap(err, "shopify: marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "shopify: create request")
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "shopify: request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "shopify: read response")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var qr queryResponse
	if err := dec.Decode(&qr); err != nil {
		return nil, eris.Wrapf(err, "shopify: decode response (status %d)", resp.StatusCode)
	}

	apiErrors := qr.Errors
	for _, pe := range qr.Data.Query.ParseErrors {
		apiErrors = append(apiErrors, decodeAPIError(pe))
	}

	if len(apiErrors) > 0 {
		for _, e := range apiErrors {
			if e.Extensions.Code == ThrottledCode {
				return nil, resilience.NewTransientError(
					eris.Errorf("shopify: throttled: %s", e.Message), resp.StatusCode)
			}
		}
		payload, _ := json.Marshal(apiErrors)
		return nil, &resilience.FetchError{
			Endpoint: c.graphqlURL,
			Status:   resp.StatusCode,
			Payload:  string(payload),
		}
	}

	return &qr.Data.Query.TableData, nil
}

// decodeAPIError accepts both the object and bare-string forms the API uses
// for parse errors.
func decodeAPIError(raw json.RawMessage) apiError {
	var e apiError
	if err := json.Unmarshal(raw, &e); err == nil {
		return e
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return apiError{Message: s}
	}
	return apiError{Message: string(raw)}
}

func stringifyRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch val := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = val
		case json.Number:
			out[i] = val.String()
		case bool:
			out[i] = strconv.FormatBool(val)
		default:
			b, _ := json.Marshal(val)
			out[i] = string(b)
		}
	}
	return out
}
