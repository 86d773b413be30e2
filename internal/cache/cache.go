package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "gatekeeper/cache"

// Default cache settings.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Entry is a cached value and the moment it was stored.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
	TTL       time.Duration
}

// Expired reports whether the entry is absent at now.
func (e Entry[T]) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// Config configures a Cache.
type Config struct {
	// Name labels metrics and spans.
	Name string

	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL time.Duration

	// SweepInterval is the period of the background sweep. Negative
	// disables it.
	SweepInterval time.Duration

	Logger observability.Logger

	// Now overrides the clock.
	Now func() time.Time
}

// Cache is a TTL cache of T values.
type Cache[T any] struct {
	name       string
	defaultTTL time.Duration
	logger     observability.Logger
	now        func() time.Time
	metrics    *CacheMetrics

	mu      sync.Mutex
	entries map[string]Entry[T]

	stopCh    chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its sweep.
func New[T any](cfg Config) *Cache[T] {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache[T]{
		name:       cfg.Name,
		defaultTTL: cfg.DefaultTTL,
		logger:     cfg.Logger,
		now:        cfg.Now,
		metrics:    GetCacheMetrics(),
		entries:    make(map[string]Entry[T]),
		stopCh:     make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go c.sweepLoop(cfg.SweepInterval)
	}

	return c
}

// Get returns the live value for key.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.name", c.name),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.entries[key]
	if !ok {
		c.metrics.missesTotal.WithLabelValues(c.name).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return zero, false
	}

	if entry.Expired(c.now()) {
		delete(c.entries, key)
		c.metrics.missesTotal.WithLabelValues(c.name).Inc()
		c.metrics.evictionsTotal.WithLabelValues(c.name, "expired").Inc()
		c.metrics.sizeGauge.WithLabelValues(c.name).Set(float64(len(c.entries)))
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return zero, false
	}

	c.metrics.hitsTotal.WithLabelValues(c.name).Inc()
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return entry.Data, true
}

// Set stores data under key, replacing any previous entry. A ttl <= 0 uses
// the default TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, data T, ttl time.Duration) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.name", c.name),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	c.entries[key] = Entry[T]{Data: data, Timestamp: c.now(), TTL: ttl}
	size := len(c.entries)
	c.mu.Unlock()

	c.metrics.sizeGauge.WithLabelValues(c.name).Set(float64(size))
	c.logger.Debug("cache set",
		observability.String("cache", c.name),
		observability.String("key", key),
		observability.Duration("ttl", ttl),
	)
}

// Delete removes key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.metrics.evictionsTotal.WithLabelValues(c.name, "invalidated").Inc()
		c.metrics.sizeGauge.WithLabelValues(c.name).Set(float64(len(c.entries)))
	}
}

// InvalidatePrefix removes every key starting with prefix and returns how
// many were removed.
func (c *Cache[T]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.metrics.evictionsTotal.WithLabelValues(c.name, "invalidated").Add(float64(removed))
		c.metrics.sizeGauge.WithLabelValues(c.name).Set(float64(len(c.entries)))
		c.logger.Debug("cache entries invalidated",
			observability.String("cache", c.name),
			observability.String("prefix", prefix),
			observability.Int("removed", removed),
		)
	}
	return removed
}

// Sweep drops expired entries and returns how many were dropped.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.metrics.evictionsTotal.WithLabelValues(c.name, "expired").Add(float64(removed))
		c.metrics.sizeGauge.WithLabelValues(c.name).Set(float64(len(c.entries)))
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweep and drops all entries.
func (c *Cache[T]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)

		c.mu.Lock()
		c.entries = make(map[string]Entry[T])
		c.mu.Unlock()

		c.metrics.sizeGauge.WithLabelValues(c.name).Set(0)
	})
}

func (c *Cache[T]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				c.logger.Debug("cache sweep completed",
					observability.String("cache", c.name),
					observability.Int("removed", removed),
				)
			}
		case <-c.stopCh:
			return
		}
	}
}
