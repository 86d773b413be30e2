// Package ratelimit provides fixed-window rate limiting on top of a shared
// counter store. Decisions fail open: a store error allows the request.
package ratelimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit/store"
)

const tracerName = "github.com/vyrodovalexey/gatekeeper/internal/ratelimit"

// Default limiter settings.
const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the limit that applied to the request path.
	Limit int

	// Remaining is max(0, Limit-Count).
	Remaining int

	// Count is the window count after this request.
	Count int64

	// RetryAfter is the window length, reported to denied clients.
	RetryAfter time.Duration

	// FailedOpen is set when the store could not be used and the
	// request was allowed anyway.
	FailedOpen bool

	// Bypassed is set when limiting is disabled.
	Bypassed bool

	// Key is the counter key, without the store prefix.
	Key string
}

// Config holds limiter settings.
type Config struct {
	Enabled   bool
	Window    time.Duration
	KeyByPath bool
	Limits    *PathLimits
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Window:    DefaultWindow,
		KeyByPath: true,
		Limits:    NewPathLimits(DefaultLimit, nil),
	}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics sink for decisions.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithTracer overrides the tracer used for decision spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Limiter) {
		l.tracer = tracer
	}
}

// Limiter counts requests per client (and path) in fixed windows.
type Limiter struct {
	store   store.Store
	cfg     Config
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewLimiter creates a limiter over s. A nil store disables counting.
func NewLimiter(s store.Store, cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Limits == nil {
		cfg.Limits = NewPathLimits(DefaultLimit, nil)
	}
	if s == nil {
		cfg.Enabled = false
	}

	l := &Limiter{
		store:  s,
		cfg:    cfg,
		logger: observability.NopLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Enabled reports whether requests are counted.
func (l *Limiter) Enabled() bool {
	return l.cfg.Enabled
}

// Window returns the window length.
func (l *Limiter) Window() time.Duration {
	return l.cfg.Window
}

// Decide counts one request from client on path and decides whether it may
// proceed. It never returns an error; store failures yield an allowed
// decision with FailedOpen set.
func (l *Limiter) Decide(ctx context.Context, client, path string) Decision {
	limit := l.cfg.Limits.LimitFor(path)

	if !l.cfg.Enabled {
		l.metrics.RecordRateLimitDecision(observability.DecisionBypassed)
		return Decision{Allowed: true, Limit: limit, Remaining: limit, Bypassed: true}
	}

	key := Key(client, path, l.cfg.KeyByPath)

	ctx, span := l.tracer.Start(ctx, "ratelimit.Decide",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("ratelimit.key", key),
			attribute.Int("ratelimit.limit", limit),
		),
	)
	defer span.End()

	count, err := l.store.Increment(ctx, key, l.cfg.Window)
	if err != nil {
		l.logger.WithContext(ctx).Warn("rate limit store unavailable, allowing request",
			observability.String("key", key),
			observability.Error(err),
		)
		l.metrics.RecordRateLimitDecision(observability.DecisionFailedOpen)
		span.RecordError(err)
		span.SetStatus(codes.Error, "counter store unavailable")
		span.SetAttributes(attribute.Bool("ratelimit.failed_open", true))

		return Decision{Allowed: true, Limit: limit, Remaining: limit, FailedOpen: true, Key: key}
	}

	d := Decision{
		Allowed:    count <= int64(limit),
		Limit:      limit,
		Remaining:  remaining(limit, count),
		Count:      count,
		RetryAfter: l.cfg.Window,
		Key:        key,
	}

	span.SetAttributes(
		attribute.Int64("ratelimit.count", count),
		attribute.Bool("ratelimit.allowed", d.Allowed),
	)

	if d.Allowed {
		l.metrics.RecordRateLimitDecision(observability.DecisionAllowed)
	} else {
		l.metrics.RecordRateLimitDecision(observability.DecisionDenied)
		l.logger.WithContext(ctx).Debug("rate limit exceeded",
			observability.String("key", key),
			observability.Int64("count", count),
			observability.Int("limit", limit),
		)
	}

	return d
}

func remaining(limit int, count int64) int {
	r := int64(limit) - count
	if r < 0 {
		return 0
	}
	return int(r)
}
