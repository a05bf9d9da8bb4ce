// Package yahoo talks to the Yahoo Finance search, chart and quote endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"time"

	"findb/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 4
	DefaultSearchURL  = "https://finance.yahoo.com"
	DefaultChartURL   = "https://query1.finance.yahoo.com"
	DefaultQuoteURL   = "https://query1.finance.yahoo.com"
	backoffBase       = 5
	easeMinimumPause  = 200 * time.Millisecond
	maxErrorBodyBytes = 4096
)

var userAgents = []string{
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:101.0) Gecko/20100101 Firefox/101.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
}

// Options configures a Client.
type Options struct {
	SearchURL string
	ChartURL  string
	QuoteURL  string
	Timeout   time.Duration

	// Retries is the number of attempts per request (0 means DefaultRetries).
	Retries int
	// Ease sleeps rand[0,1)+0.2 seconds before every attempt.
	Ease bool

	// SocksPort routes requests through a local SOCKS5 proxy (Tor) if set.
	SocksPort int
	// Tor requests a new exit identity on every session reset if set.
	Tor *TorController

	// Transport replaces the default transport; used by tests.
	Transport http.RoundTripper
	// Sleep replaces the context-aware sleep; used by tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  *rand.Rand
	Logger *log.Logger
}

// session is the identity used for requests. It is replaced, never mutated.
type session struct {
	client    *http.Client
	userAgent string
}

// Client performs requests with retries, pacing and identity rotation.
// Safe for concurrent use.
type Client struct {
	opts   Options
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	rng     *rand.Rand
	current *session
}

// NewClient creates a Yahoo client.
func NewClient(opts Options) *Client {
	if opts.SearchURL == "" {
		opts.SearchURL = DefaultSearchURL
	}
	if opts.ChartURL == "" {
		opts.ChartURL = DefaultChartURL
	}
	if opts.QuoteURL == "" {
		opts.QuoteURL = DefaultQuoteURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}

	c := &Client{
		opts:   opts,
		logger: opts.Logger,
		sleep:  opts.Sleep,
		rng:    opts.Rand,
	}
	if c.logger == nil {
		c.logger = log.New(os.Stdout, "[yahoo] ", log.LstdFlags)
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c.current = c.newSession()
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// newSession builds a fresh identity. Caller holds c.mu or is the constructor.
func (c *Client) newSession() *session {
	transport := c.opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if c.opts.SocksPort > 0 {
			t.Proxy = http.ProxyURL(&url.URL{Scheme: "socks5", Host: fmt.Sprintf("127.0.0.1:%d", c.opts.SocksPort)})
		}
		transport = t
	}
	return &session{
		client:    &http.Client{Timeout: c.opts.Timeout, Transport: transport},
		userAgent: userAgents[c.rng.Intn(len(userAgents))],
	}
}

func (c *Client) session() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ResetSession replaces the session with a new user agent and, if a Tor
// controller is configured, a new exit identity.
func (c *Client) ResetSession(ctx context.Context) {
	c.logger.Printf("reset requests session, using tor = %v", c.opts.SocksPort > 0)

	if c.opts.Tor != nil {
		c.logger.Println("  .. ask for new exit ip")
		if err := c.opts.Tor.NewIdentity(ctx); err != nil {
			c.logger.Printf("new tor identity: %v", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.newSession()
}

func (c *Client) easePause() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return easeMinimumPause + time.Duration(c.rng.Float64()*float64(time.Second))
}

// Backoff returns the pause after the failed attempt with zero-based index i.
func Backoff(i int) time.Duration {
	return time.Duration(math.Pow(backoffBase, float64(i+1))) * time.Second
}

// attemptResult is the outcome of a single request.
type attemptResult int

const (
	attemptOK attemptResult = iota
	attemptRetry
	attemptFailed
)

// getJSON requests rawURL and decodes the body into out, retrying transient
// errors with exponential backoff and a fresh session between attempts.
// Responses with a status listed in final are returned at once as a
// *StatusError instead of being retried.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any, final ...int) error {
	var lastErr error

	for i := 0; i < c.opts.Retries; i++ {
		if c.opts.Ease {
			if err := c.sleep(ctx, c.easePause()); err != nil {
				return err
			}
		}

		started := time.Now()
		result, err := c.attempt(ctx, rawURL, out, final)
		observability.RecordLookup(time.Since(started).Seconds(), i > 0)

		switch result {
		case attemptOK:
			return nil
		case attemptFailed:
			return err
		}

		lastErr = err
		if i == c.opts.Retries-1 {
			break
		}

		pause := Backoff(i)
		c.logger.Printf("Retry attempt: %d of %d. Sleep period: %v. %v", i+1, c.opts.Retries, pause, err)
		if err := c.sleep(ctx, pause); err != nil {
			return err
		}
		c.ResetSession(ctx)
	}

	return &RetriesError{Attempts: c.opts.Retries, Last: lastErr}
}

func (c *Client) attempt(ctx context.Context, rawURL string, out any, final []int) (attemptResult, error) {
	sess := c.session()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return attemptFailed, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", sess.userAgent)
	req.Header.Set("Accept", "application/json,text/html;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := sess.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return attemptFailed, ctx.Err()
		}
		return classify(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(body)}
		if slices.Contains(final, resp.StatusCode) {
			return attemptFailed, statusErr
		}
		return attemptRetry, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(fmt.Errorf("read response: %w", err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return attemptFailed, fmt.Errorf("decode response: %w", err)
	}
	return attemptOK, nil
}

func classify(err error) (attemptResult, error) {
	if IsTransient(err) {
		return attemptRetry, err
	}
	return attemptFailed, err
}
