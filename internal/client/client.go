package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/gatekeeper/internal/cache"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/retry"
	"github.com/vyrodovalexey/gatekeeper/internal/tenant"
)

// Client defaults.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxResponseSize = 10 << 20
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
)

// ErrBaseURL is returned by New for a missing or relative base URL.
var ErrBaseURL = errors.New("client base URL must be absolute")

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	Enabled bool

	// MaxFailures is the number of consecutive failed attempts that opens
	// the breaker.
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   *retry.Config

	CacheTTL      time.Duration
	SweepInterval time.Duration

	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int

	CircuitBreaker BreakerConfig
}

// TokenSource returns the bearer token for an outbound request. An empty
// token sends no Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithRetrySleep replaces the backoff wait, for tests.
func WithRetrySleep(sleep retry.SleepFunc) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client calls a single base URL.
type Client struct {
	base     *url.URL
	http     *http.Client
	retryCfg *retry.Config
	cache    *cache.Cache[[]byte]
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	tokens   TokenSource
	sleep    retry.SleepFunc
	now      func() time.Time
	logger   observability.Logger
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}

	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: cfg.Timeout},
		retryCfg: cfg.Retry,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cache = cache.New[[]byte](cache.Config{
		Name:          "client:" + base.Host,
		DefaultTTL:    cfg.CacheTTL,
		SweepInterval: cfg.SweepInterval,
		Logger:        c.logger,
		Now:           c.now,
	})

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.CircuitBreaker.Enabled {
		c.breaker = newBreaker(base.Host, cfg.CircuitBreaker, c.logger)
	}

	return c, nil
}

// Close releases the cache.
func (c *Client) Close() {
	c.cache.Close()
}

// URL resolves path and params against the base URL.
func (c *Client) URL(path string, params url.Values) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = ""
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// Get returns the body of GET path?params, from the cache when a live entry
// exists. Entries are scoped to the tenant bound to ctx.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	key := tenantScope(ctx) + cache.Key(c.URL(path, nil), params)

	if body, ok := c.cache.Get(ctx, key); ok {
		return body, nil
	}

	body, err := c.do(ctx, http.MethodGet, c.URL(path, params), nil)
	if err != nil {
		return nil, err
	}

	c.cache.Set(ctx, key, body, 0)
	return body, nil
}

// GetJSON is Get decoding the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Send issues method on path with in encoded as JSON (nil sends no body)
// and decodes the response into out when out is non-nil. Responses are not
// cached.
func (c *Client) Send(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}

	body, err := c.do(ctx, method, c.URL(path, nil), payload)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Invalidate drops the cached GET path?params of the tenant bound to ctx.
func (c *Client) Invalidate(ctx context.Context, path string, params url.Values) {
	c.cache.Delete(tenantScope(ctx) + cache.Key(c.URL(path, nil), params))
}

// InvalidatePrefix drops every cached GET of the tenant bound to ctx whose
// URL starts with path.
func (c *Client) InvalidatePrefix(ctx context.Context, path string) int {
	return c.cache.InvalidatePrefix(tenantScope(ctx) + c.URL(path, nil))
}

// tenantScope is the cache key prefix for the tenant bound to ctx; unbound
// calls share the empty scope.
func tenantScope(ctx context.Context) string {
	return tenant.ID(ctx) + "|"
}

// BreakerState reports the breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var body []byte

	err := retry.Do(ctx, c.retryCfg, func() error {
		var err error
		body, err = c.attempt(ctx, method, target, payload)
		return err
	}, &retry.Options{
		Operation: method,
		Sleep:     c.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.logger.WithContext(ctx).Debug("retrying request",
				observability.String("method", method),
				observability.String("url", target),
				observability.Int("attempt", attempt),
				observability.Duration("delay", delay),
				observability.Error(err),
			)
		},
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle: %w", err)
		}
	}

	if c.breaker == nil {
		return c.roundTrip(ctx, method, target, payload)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, target, payload)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("bearer token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	observability.InjectTraceContext(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, target, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &retry.StatusError{StatusCode: resp.StatusCode, Method: method, URL: target}
	}
	return body, nil
}
