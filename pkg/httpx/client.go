// Package httpx wraps the outbound HTTP concerns tsumugu needs: a retrying
// client with independent redirect policies, and a remote-clock probe used
// to interpret naive listing timestamps.
package httpx

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
)

// Client issues GET/HEAD requests with a bounded, jittered exponential
// backoff retry envelope around transient failures, and keeps two
// *http.Client values around: one that follows redirects transparently,
// and one that returns a 3xx response as-is instead of chasing it,
// selected by passing followRedirects=false to Get or Head. Every caller
// in this module passes true.
type Client struct {
	following    *http.Client
	nonFollowing *http.Client
	userAgent    string
	retries      int
	baseDelay    time.Duration
	maxDelay     time.Duration
}

// Config carries the knobs an operator sets via CLI flags.
type Config struct {
	UserAgent   string
	BindAddress string
	Timeout     time.Duration
	Retries     int
}

// New builds a Client. bindAddress, if non-empty, pins outbound
// connections to a specific local address (mirroring hosts often sit
// behind multiple uplinks and operators want to pick one).
func New(cfg Config) (*Client, error) {
	dialer, err := localAddrDialer(cfg.BindAddress)
	if err != nil {
		return nil, fmt.Errorf("httpx: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	followTransport := http.DefaultTransport.(*http.Transport).Clone()
	noFollowTransport := http.DefaultTransport.(*http.Transport).Clone()
	if dialer != nil {
		followTransport.DialContext = dialer
		noFollowTransport.DialContext = dialer
	}

	return &Client{
		following: &http.Client{
			Transport: followTransport,
			Timeout:   timeout,
		},
		nonFollowing: &http.Client{
			Transport: noFollowTransport,
			Timeout:   timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: cfg.UserAgent,
		retries:   retries,
		baseDelay: 500 * time.Millisecond,
		maxDelay:  30 * time.Second,
	}, nil
}

// Get issues a GET request. followRedirects selects which of the two
// underlying clients to use.
func (c *Client) Get(ctx context.Context, url string, followRedirects bool) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, followRedirects)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, url string, followRedirects bool) (*http.Response, error) {
	return c.do(ctx, http.MethodHead, url, followRedirects)
}

func (c *Client) do(ctx context.Context, method, url string, followRedirects bool) (*http.Response, error) {
	client := c.following
	if !followRedirects {
		client = c.nonFollowing
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			plog.Warn("retrying request", "method", method, "url", url, "attempt", attempt, "of", c.retries, "after", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, err
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("httpx: %s %s: status %d", method, url, resp.StatusCode)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(body)}
		}
		return resp, nil
	}
	return nil, lastErr
}

// backoff computes an exponential delay with a small jitter, capped at
// maxDelay, for the given 1-indexed attempt number.
func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt-1)))
	if d > c.maxDelay {
		d = c.maxDelay
	}
	jitter := time.Duration(float64(d) * 0.2 * jitterFraction())
	return d + jitter
}

// StatusError reports a non-retryable 4xx HTTP response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: %s %s: status %d", e.Method, e.URL, e.StatusCode)
}

