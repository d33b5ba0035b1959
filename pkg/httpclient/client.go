// Package httpclient provides a shared HTTP client with bounded retries and
// provider-aware backoff. All LLM provider adapters and embedding encoders
// send their requests through it so that rate-limit handling behaves the same
// way everywhere.
package httpclient

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// RetryStrategy selects how aggressively a failed request is retried.
type RetryStrategy int

const (
	// NoRetry fails immediately.
	NoRetry RetryStrategy = iota
	// ConservativeRetry waits a short fixed delay between attempts.
	ConservativeRetry
	// SmartRetry honors rate-limit headers and falls back to exponential backoff.
	SmartRetry
)

// StrategyFunc maps an HTTP status code to a retry strategy.
type StrategyFunc func(statusCode int) RetryStrategy

// DefaultStrategy retries rate limits smartly and transient server errors
// conservatively. Everything else is returned to the caller as-is.
func DefaultStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// HeaderParser extracts rate-limit information from provider response headers.
type HeaderParser func(http.Header) *RateLimitInfo

// Client wraps http.Client with retry and backoff behavior.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	strategyFunc StrategyFunc
	headerParser HeaderParser
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithMaxRetries sets the retry budget per request.
func WithMaxRetries(n int) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.maxRetries = n
		}
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.baseDelay = d
		}
	}
}

// WithHeaderParser installs a provider-specific rate-limit header parser.
func WithHeaderParser(p HeaderParser) Option {
	return func(cl *Client) {
		cl.headerParser = p
	}
}

// WithRetryStrategy replaces the status-code-to-strategy mapping.
func WithRetryStrategy(f StrategyFunc) Option {
	return func(cl *Client) {
		if f != nil {
			cl.strategyFunc = f
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New creates a Client with sane defaults: 5 retries, 2s base delay, the
// default strategy, and a 60s request timeout.
func New(opts ...Option) *Client {
	c := &Client{
		client:       &http.Client{Timeout: 60 * time.Second},
		maxRetries:   5,
		baseDelay:    2 * time.Second,
		maxDelay:     2 * time.Minute,
		strategyFunc: DefaultStrategy,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request, retrying retryable failures up to the configured
// budget. Requests with a body must have req.GetBody set (as http.NewRequest
// does for common body types) so the body can be replayed across attempts.
// Waits between attempts observe the request context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Transport errors (connection refused, timeout) get the
			// conservative treatment.
			lastErr = err
			if attempt < c.maxRetries {
				if waitErr := c.wait(req, c.conservativeDelay(attempt)); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
		}

		strategy := c.strategyFunc(resp.StatusCode)
		if strategy == NoRetry || attempt == c.maxRetries {
			return resp, nil
		}

		var info *RateLimitInfo
		if c.headerParser != nil {
			info = c.headerParser(resp.Header)
		}
		delay := c.delayFor(strategy, attempt, resp, info)
		resp.Body.Close()

		lastErr = &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			RetryAfter: delay,
		}
		c.logger.Debug("Retrying request",
			"url", req.URL.Redacted(),
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"delay", delay)

		if waitErr := c.wait(req, delay); waitErr != nil {
			return nil, waitErr
		}
	}

	return nil, lastErr
}

// wait sleeps for d or until the request context is canceled.
func (c *Client) wait(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

// delayFor computes the wait before the next attempt. Smart retries prefer
// the server's own Retry-After or reset headers; otherwise exponential
// backoff with a little jitter so concurrent clients spread out.
func (c *Client) delayFor(strategy RetryStrategy, attempt int, resp *http.Response, info *RateLimitInfo) time.Duration {
	if strategy == ConservativeRetry {
		return c.conservativeDelay(attempt)
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if d := parseRetryAfter(ra); d > 0 {
			return capDelay(d, c.maxDelay)
		}
	}
	if info != nil {
		if info.RetryAfter > 0 {
			return capDelay(info.RetryAfter, c.maxDelay)
		}
		if !info.ResetAt.IsZero() {
			if d := time.Until(info.ResetAt); d > 0 {
				return capDelay(d, c.maxDelay)
			}
		}
	}

	backoff := c.baseDelay * (1 << attempt)
	jitter := time.Duration(rand.Int63n(int64(backoff)/10 + 1))
	return capDelay(backoff+jitter, c.maxDelay)
}

func (c *Client) conservativeDelay(attempt int) time.Duration {
	d := time.Duration(2+attempt) * time.Second
	return capDelay(d, 10*time.Second)
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
