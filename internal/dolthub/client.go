// Package dolthub queries a DoltHub database over the public SQL API.
package dolthub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"findb/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://www.dolthub.com/api/v1alpha1"
	DefaultBranch      = "main"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 4
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrQueryFailed is returned when DoltHub reports a failed query execution.
var ErrQueryFailed = errors.New("dolthub query failed")

// Row is one result row keyed by column name.
type Row map[string]any

// String returns the column as a string ("" for NULL or missing).
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// QueryResult is the decoded body of a SQL API response.
type QueryResult struct {
	Status  string `json:"query_execution_status"`
	Message string `json:"query_execution_message"`
	Rows    []Row  `json:"rows"`
}

// Client implements read queries against one DoltHub database branch.
type Client struct {
	database    string // owner/name
	baseURL     string
	branch      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      *log.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root; used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithBranch selects the branch to query.
func WithBranch(branch string) ClientOption {
	return func(c *Client) {
		c.branch = branch
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the progress logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for database given as "owner/name".
func NewClient(database string, opts ...ClientOption) *Client {
	c := &Client{
		database:    strings.Trim(database, "/"),
		baseURL:     DefaultBaseURL,
		branch:      DefaultBranch,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(os.Stdout, "[dolthub] ", log.LstdFlags)
	}
	return c
}

// Database returns the "owner/name" the client queries.
func (c *Client) Database() string {
	return c.database
}

// QueryURL returns the request URL of query.
func (c *Client) QueryURL(query string) string {
	return fmt.Sprintf("%s/%s/%s?q=%s", c.baseURL, c.database, c.branch, url.QueryEscape(query))
}

// Query executes a read-only SQL query with retries and exponential backoff.
// Failed executions are not retried.
func (c *Client) Query(ctx context.Context, query string) (*QueryResult, error) {
	started := time.Now()
	res, err := c.query(ctx, query)
	observability.RecordDoltHubQuery(time.Since(started).Seconds(), err)
	return res, err
}

func (c *Client) query(ctx context.Context, query string) (*QueryResult, error) {
	rawURL := c.QueryURL(query)
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var res QueryResult
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&res); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if res.Status == "Error" {
			return nil, fmt.Errorf("%w: %s", ErrQueryFailed, res.Message)
		}
		return &res, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// FetchRows runs query with "limit offset, limit" appended.
func (c *Client) FetchRows(ctx context.Context, query string, offset, limit int) ([]Row, error) {
	res, err := c.Query(ctx, fmt.Sprintf("%s limit %d, %d", strings.TrimSpace(query), offset, limit))
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// FetchFirst returns the first row of query, or nil if there is none.
func (c *Client) FetchFirst(ctx context.Context, query string) (Row, error) {
	rows, err := c.FetchRows(ctx, query, 0, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}
