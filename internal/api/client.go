// Package api is the REST client for the exchange. Every request is
// rate limited and authorized with the login session, which is
// refreshed transparently when it goes stale.
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/zcole/kalshi-core/internal/auth"
)

// Client provides access to the exchange REST API.
type Client struct {
	baseURL    string
	apiVersion string
	creds      *auth.Credentials
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *Limiter
	now        func() time.Time

	mu      sync.Mutex
	session auth.Session

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a REST client from credentials. It does not sign
// in; the first authorized request does.
func NewClient(creds *auth.Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    creds.BaseURL,
		apiVersion: creds.APIVersion,
		creds:      creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		limiter:      NewLimiter(DefaultRateLimits...),
		now:          time.Now,
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimits replaces the default rate limit windows.
func WithRateLimits(limits ...RateLimit) ClientOption {
	return func(c *Client) {
		c.limiter = NewLimiter(limits...)
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}
