package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

var (
	redisStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_counter_store_operations_total",
			Help: "Total number of counter store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	redisStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_counter_store_operation_duration_seconds",
			Help:    "Duration of counter store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)
)

// incrementScript increments KEYS[1] and sets its expiry to ARGV[1]
// milliseconds when the key is new. A key found without a TTL (left behind
// by a crashed writer or an external SET) gets one too, so no window can
// live forever.
var incrementScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	PoolSize int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// OperationTimeout bounds every store call so a slow Redis cannot
	// stall the request path.
	OperationTimeout time.Duration
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:          "localhost:6379",
		Prefix:           "rl:",
		PoolSize:         10,
		DialTimeout:      5 * time.Second,
		ReadTimeout:      3 * time.Second,
		WriteTimeout:     3 * time.Second,
		OperationTimeout: 500 * time.Millisecond,
	}
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisLogger sets the logger for the store.
func WithRedisLogger(logger observability.Logger) RedisOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// RedisStore implements Store on a shared Redis.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
	logger    observability.Logger

	mu     sync.Mutex
	closed bool
}

// NewRedisStore creates a store and probes Redis once. An unreachable Redis
// is logged, not returned: the limiter fails open and go-redis reconnects
// on later calls.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...RedisOption) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	s := NewRedisStoreFromClient(client, cfg.Prefix, cfg.OperationTimeout, opts...)

	if err := s.Ping(ctx); err != nil {
		s.logger.Warn("counter store unreachable at startup, rate limiting will fail open",
			observability.String("address", cfg.Address),
			observability.Error(err),
		)
	} else {
		s.logger.Info("counter store connected",
			observability.String("address", cfg.Address),
		)
	}

	return s
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(
	client redis.UniversalClient,
	prefix string,
	opTimeout time.Duration,
	opts ...RedisOption,
) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = DefaultRedisConfig().OperationTimeout
	}

	s := &RedisStore{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if s.isClosed() {
		return 0, &UnavailableError{Op: "increment", Key: key, Cause: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return 0, &UnavailableError{Op: "increment", Key: key, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	start := time.Now()
	count, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64()
	redisStoreOperationDuration.WithLabelValues("redis", "increment").Observe(time.Since(start).Seconds())

	if err != nil {
		redisStoreOperationsTotal.WithLabelValues("redis", "increment", "error").Inc()
		return 0, &UnavailableError{Op: "increment", Key: key, Cause: err}
	}

	redisStoreOperationsTotal.WithLabelValues("redis", "increment", "success").Inc()
	return count, nil
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.isClosed() {
		return &UnavailableError{Op: "ping", Cause: ErrClosed}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		redisStoreOperationsTotal.WithLabelValues("redis", "ping", "error").Inc()
		return &UnavailableError{Op: "ping", Cause: err}
	}
	redisStoreOperationsTotal.WithLabelValues("redis", "ping", "success").Inc()
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

func (s *RedisStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
