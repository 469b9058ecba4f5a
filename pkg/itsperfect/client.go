// Package itsperfect is a client for the ITSP warehouse/ERP REST API:
// bearer-token authentication, header-driven pagination, and bounded retry
// on rate-limit and token-expiry responses.
package itsperfect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fabgroup/recon-cli/internal/resilience"
)

// PageCountHeader carries the total page count on every list response.
const PageCountHeader = "X-Pagination-Page-Count"

const salesOrderFields = "id,date,warehouse,customer,reference,country," +
	"shipping_costs_lcy,shipping_costs_fcy,discount_lcy,discount_fcy," +
	"subsidiary,type,status,webshop,marketplace_channel," +
	"currency,amount_lcy,amount_fcy,vat_amount_lcy,vat_amount_fcy," +
	"creation_date,quantity,b2b_b2c_order"

const returnOrderFields = "id,date,warehouse,customer,return_costs_lcy," +
	"discount_lcy,remarks,country,subsidiary,quantity,amount_lcy," +
	"postage_costs_lcy,marketplace_channel,b2b_b2c_order"

// Client retrieves complete record sets from the ERP API.
type Client interface {
	// Authenticate obtains a fresh bearer token from the authentication
	// endpoint. Callers normally never need this directly: the fetch
	// methods acquire and refresh tokens lazily.
	Authenticate(ctx context.Context) (string, error)

	// FetchSalesOrders returns every sales order in [dateFrom, dateTo),
	// including payments and lines, across all pages.
	FetchSalesOrders(ctx context.Context, dateFrom, dateTo string) ([]Record, error)

	// FetchReturns returns every sales return order in [dateFrom, dateTo).
	FetchReturns(ctx context.Context, dateFrom, dateTo string) ([]Record, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize overrides the records-per-page limit.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		c.pageSize = n
	}
}

// WithRateLimitPolicy bounds the 429 retry loop: at most maxRetries waits of
// a fixed delay per page before escalating to a FetchError.
func WithRateLimitPolicy(maxRetries int, delay time.Duration) Option {
	return func(c *httpClient) {
		c.maxRateLimitRetries = maxRetries
		c.rateLimitDelay = delay
	}
}

// WithLimiter installs a client-side request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithSleep overrides the retry sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *httpClient) {
		c.sleep = sleep
	}
}

type httpClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	pageSize int

	maxRateLimitRetries int
	rateLimitDelay      time.Duration
	sleep               func(ctx context.Context, d time.Duration) error

	// Current bearer token. Replaced in place on 401; the client is used by
	// a single caller at a time, so no locking.
	token string
}

// NewClient creates an ITSP API client.
func NewClient(baseURL, username, password string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:             rate.NewLimiter(4, 4),
		pageSize:            250,
		maxRateLimitRetries: 10,
		rateLimitDelay:      4 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.sleep == nil {
		c.sleep = defaultSleep
	}
	return c
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *httpClient) Authenticate(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return "", eris.Wrap(err, "itsperfect: marshal credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/authentication", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "itsperfect: create auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "itsperfect: authentication request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &resilience.AuthError{Endpoint: "/authentication", Status: resp.StatusCode}
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", eris.Wrap(err, "itsperfect: decode auth response")
	}
	if out.Token == "" {
		return "", &resilience.AuthError{Endpoint: "/authentication", Status: resp.StatusCode}
	}
	return out.Token, nil
}

func (c *httpClient) FetchSalesOrders(ctx context.Context, dateFrom, dateTo string) ([]Record, error) {
	query := fmt.Sprintf("fields=%s&date>=%s&date<%s&includes=payments,lines",
		salesOrderFields, url.QueryEscape(dateFrom), url.QueryEscape(dateTo))
	return c.fetchPaginated(ctx, "/sales_orders", query)
}

func (c *httpClient) FetchReturns(ctx context.Context, dateFrom, dateTo string) ([]Record, error) {
	query := fmt.Sprintf("fields=%s&date>=%s&date<%s",
		returnOrderFields, url.QueryEscape(dateFrom), url.QueryEscape(dateTo))
	return c.fetchPaginated(ctx, "/sales_return_orders", query)
}

// fetchPaginated retrieves every page of an endpoint in order. The page
// count comes from the first page's response header (one page if absent), so
// the concatenated result has no gaps and no duplicates as long as each page
// request eventually succeeds.
func (c *httpClient) fetchPaginated(ctx context.Context, endpoint, query string) ([]Record, error) {
	if c.token == "" {
		token, err := c.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		c.token = token
	}

	all, totalPages, err := c.fetchPage(ctx, endpoint, query, 1)
	if err != nil {
		return nil, err
	}

	for page := 2; page <= totalPages; page++ {
		records, _, err := c.fetchPage(ctx, endpoint, query, page)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		zap.L().Debug("fetched page",
			zap.String("endpoint", endpoint),
			zap.Int("page", page),
			zap.Int("records", len(all)),
		)
	}

	return all, nil
}

func (c *httpClient) fetchPage(ctx context.Context, endpoint, query string, page int) ([]Record, int, error) {
	pageURL := fmt.Sprintf("%s%s?%s&limit=%d&page=%d", c.baseURL, endpoint, query, c.pageSize, page)

	rateLimitWaits := 0
	refreshed := false
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, eris.Wrap(err, "itsperfect: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, 0, eris.Wrap(err, "itsperfect: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "itsperfect: request %s page %d", endpoint, page)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			rateLimitWaits++
			if rateLimitWaits > c.maxRateLimitRetries {
				return nil, 0, &resilience.FetchError{
					Endpoint: endpoint,
					Status:   resp.StatusCode,
					Payload:  fmt.Sprintf("rate limit retries exhausted after %d attempts", rateLimitWaits),
				}
			}
			zap.L().Warn("rate limited, backing off",
				zap.String("endpoint", endpoint),
				zap.Int("page", page),
				zap.Int("attempt", rateLimitWaits),
			)
			if err := c.sleep(ctx, c.rateLimitDelay); err != nil {
				return nil, 0, eris.Wrap(err, "itsperfect: backoff interrupted")
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			_ = resp.Body.Close()
			if refreshed {
				return nil, 0, &resilience.FetchError{
					Endpoint: endpoint,
					Status:   resp.StatusCode,
					Payload:  "token rejected immediately after refresh",
				}
			}
			zap.L().Info("token expired, re-authenticating", zap.String("endpoint", endpoint))
			token, err := c.Authenticate(ctx)
			if err != nil {
				return nil, 0, err
			}
			c.token = token
			refreshed = true
			continue

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			return nil, 0, &resilience.FetchError{
				Endpoint: endpoint,
				Status:   resp.StatusCode,
				Payload:  string(payload),
			}
		}

		totalPages := 1
		if h := resp.Header.Get(PageCountHeader); h != "" {
			if n, err := strconv.Atoi(h); err == nil && n > 0 {
				totalPages = n
			}
		}

		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		var records []Record
		err = dec.Decode(&records)
		_ = resp.Body.Close()
		if err != nil {
			return nil, 0, eris.Wrapf(err, "itsperfect: decode %s page %d", endpoint, page)
		}

		return records, totalPages, nil
	}
}
