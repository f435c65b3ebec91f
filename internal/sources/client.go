// Package sources holds the shared HTTP plumbing of the upstream clients.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultRatePerSecond   = 2.0
	DefaultBurst           = 1
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = time.Minute
)

// ErrSchema is returned when an upstream payload lacks an expected field.
var ErrSchema = errors.New("upstream schema mismatch")

// UpstreamError is a non-2xx response.
type UpstreamError struct {
	Source string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.Status, e.Body)
}

// Observer receives the outcome of every request.
type Observer func(source string, elapsed time.Duration, err error)

// Client performs rate-limited GET requests behind a circuit breaker.
// Requests are not retried; once the breaker opens, calls fail fast with
// gobreaker.ErrOpenState until the cooldown elapses.
type Client struct {
	name     string
	base     string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	failures uint32
	cooldown time.Duration
	log      zerolog.Logger
	observe  Observer
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRateLimit sets the request rate and burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithBreaker sets the consecutive failure count that opens the breaker
// and how long it stays open.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.failures = failures
		c.cooldown = cooldown
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithObserver sets a request observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observe = o
	}
}

// New creates a client named after its upstream.
func New(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:     name,
		base:     strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRatePerSecond), DefaultBurst),
		failures: DefaultBreakerFailures,
		cooldown: DefaultBreakerCooldown,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	failures := c.failures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: c.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
		},
	})
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string { return c.name }

// GetJSON requests base+path with query and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.GetURL(ctx, u, out)
}

// GetURL requests an absolute URL, such as a pagination link.
func (c *Client) GetURL(ctx context.Context, rawURL string, out any) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.get(ctx, rawURL, out)
	})
	if c.observe != nil {
		c.observe(c.name, time.Since(start), err)
	}
	if err != nil {
		c.log.Debug().Err(err).Str("url", rawURL).Msg("request failed")
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{Source: c.name, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrSchema, err)
	}
	return nil
}
