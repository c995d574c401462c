package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/metrics"
)

// DefaultBaseURL is the public ESI endpoint.
const DefaultBaseURL = "https://esi.evetech.net/latest"

var (
	// ErrHostNotAllowed is returned for URLs outside the configured upstream.
	ErrHostNotAllowed = errors.New("esi: url host not allowed")
	// ErrPayloadTooLarge is returned when a response body exceeds the size ceiling.
	ErrPayloadTooLarge = errors.New("esi: payload too large")
	// ErrNotModified is returned when a page answers 304 with no local body to serve.
	ErrNotModified = errors.New("esi: not modified and no cached body")
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL               string
	UserAgent             string
	Timeout               time.Duration
	MaxRetries            int
	BackoffBase           time.Duration
	MaxRateLimitWait      time.Duration
	LowRemainingThreshold int
	LowRemainingPause     time.Duration
	RequestsPerSecond     float64
	Concurrency           int
	MaxPayloadBytes       int64
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a rate-limited ESI HTTP client with retry and backoff.
type Client struct {
	http   *http.Client
	base   *url.URL
	opts   Options
	sem    chan struct{}
	limit  *rate.Limiter
	randMu sync.Mutex
	rnd    *rand.Rand

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates an ESI client. The base URL fixes the only scheme and host
// the client will talk to.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("esi: invalid base url %q", opts.BaseURL)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "eve-hubcompare/1.0 (github.com)"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.MaxRateLimitWait <= 0 {
		opts.MaxRateLimitWait = 5 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = 8 << 20
	}
	limit := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limit = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Concurrency)
	}

	return &Client{
		http:  &http.Client{Timeout: opts.Timeout},
		base:  base,
		opts:  opts,
		sem:   make(chan struct{}, opts.Concurrency),
		limit: limit,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepCtx,
	}, nil
}

// BaseURL returns the configured upstream root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// MaxPayloadBytes returns the body size ceiling.
func (c *Client) MaxPayloadBytes() int64 {
	return c.opts.MaxPayloadBytes
}

// Allowed reports whether rawURL targets the configured upstream.
func (c *Client) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, c.base.Scheme) && strings.EqualFold(u.Host, c.base.Host)
}

// Get performs a GET with retries. Extra headers (e.g. If-None-Match) are sent
// on every attempt. After the retry budget is spent the last response is
// returned with a nil error if there was one, otherwise the last error.
// Callers treat errors and non-200 statuses as "no data this cycle".
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	if !c.Allowed(rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, rawURL)
	}

	var lastResp *Response
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		resp, err := c.do(ctx, rawURL, header)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			metrics.ESIRetries.WithLabelValues("transport").Inc()
			if attempt < c.opts.MaxRetries-1 {
				if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}
		lastResp, lastErr = resp, nil

		switch {
		case isRateLimited(resp.StatusCode):
			metrics.ESIRetries.WithLabelValues("rate_limit").Inc()
			wait := c.rateLimitWait(resp.Header, attempt)
			logger.Warn("ESI", fmt.Sprintf("HTTP %d, backing off %s: %s", resp.StatusCode, wait, rawURL))
			if attempt < c.opts.MaxRetries-1 {
				if err := c.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}
			continue
		case resp.StatusCode >= 500:
			metrics.ESIRetries.WithLabelValues("server").Inc()
			if attempt < c.opts.MaxRetries-1 {
				if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}

		if pause := c.lowRemainingPause(resp.Header); pause > 0 {
			if err := c.sleep(ctx, pause); err != nil {
				return nil, err
			}
		}
		return resp, nil
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, fmt.Errorf("esi: max retries exceeded: %w", lastErr)
}

// do sends a single request under the semaphore and rate limiter.
func (c *Client) do(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	if err := c.limit.Wait(ctx); err != nil {
		return nil, err
	}
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ESIRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	// Read one byte past the ceiling so callers can tell an oversized body apart.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxPayloadBytes+1))
	if err != nil {
		metrics.ESIRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ESIRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	metrics.ESILatency.Observe(time.Since(start).Seconds())

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func isRateLimited(code int) bool {
	return code == http.StatusTooManyRequests || code == 420 || code == http.StatusServiceUnavailable
}

// backoff returns base*2^attempt plus up to base/2 of jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.BackoffBase << uint(attempt)
	return d + c.jitter(c.opts.BackoffBase/2)
}

func (c *Client) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return time.Duration(c.rnd.Int63n(int64(max)))
}

// rateLimitWait reads the reset hint and caps it at MaxRateLimitWait.
func (c *Client) rateLimitWait(h http.Header, attempt int) time.Duration {
	wait := time.Duration(0)
	for _, key := range []string{"Retry-After", "X-ESI-Error-Limit-Reset", "X-Ratelimit-Reset"} {
		if v := h.Get(key); v != "" {
			if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
				break
			}
		}
	}
	if wait == 0 {
		wait = c.backoff(attempt)
	}
	if wait > c.opts.MaxRateLimitWait {
		wait = c.opts.MaxRateLimitWait
	}
	return wait
}

// lowRemainingPause returns a short precautionary pause when the error or
// request budget reported by the server runs low.
func (c *Client) lowRemainingPause(h http.Header) time.Duration {
	if c.opts.LowRemainingThreshold <= 0 || c.opts.LowRemainingPause <= 0 {
		return 0
	}
	for _, key := range []string{"X-ESI-Error-Limit-Remain", "X-Ratelimit-Remaining"} {
		if v := h.Get(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n < c.opts.LowRemainingThreshold {
				return c.opts.LowRemainingPause
			}
		}
	}
	return 0
}

// GetJSON fetches a URL and decodes JSON into dst. Any non-200 status is an error.
func (c *Client) GetJSON(ctx context.Context, rawURL string, dst interface{}) error {
	resp, err := c.Get(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ESI %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	if int64(len(resp.Body)) > c.opts.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	return json.Unmarshal(resp.Body, dst)
}

// HealthCheck pings ESI to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	resp, err := c.Get(ctx, c.BaseURL()+"/status/?datasource=tranquility", nil)
	return err == nil && resp.StatusCode == http.StatusOK
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
