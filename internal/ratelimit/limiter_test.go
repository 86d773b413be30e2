package ratelimit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit/store"
)

type failingStore struct {
	calls int
}

func (s *failingStore) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.calls++
	return 0, &store.UnavailableError{Op: "increment", Key: key, Cause: errors.New("connection refused")}
}

func (s *failingStore) Close() error { return nil }

func newRedisLimiter(t *testing.T, cfg Config, opts ...Option) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewRedisStoreFromClient(client, "rl:", time.Second)
	t.Cleanup(func() { _ = s.Close() })

	return NewLimiter(s, cfg, opts...), mr
}

func loginConfig() Config {
	cfg := DefaultConfig()
	cfg.Limits = NewPathLimits(100, map[string]int{
		"/api/auth/login":    10,
		"/api/auth/register": 5,
	})
	return cfg
}

func TestLimiter_LoginLimit(t *testing.T) {
	t.Parallel()

	l, _ := newRedisLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d := l.Decide(ctx, "10.0.0.1", "/api/auth/login")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 10, d.Limit)
		assert.Equal(t, 10-i, d.Remaining)
		assert.Equal(t, int64(i), d.Count)
		assert.Equal(t, "10.0.0.1:/api/auth/login", d.Key)
	}

	d := l.Decide(ctx, "10.0.0.1", "/api/auth/login")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, int64(11), d.Count)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.False(t, d.FailedOpen)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	cfg := loginConfig()
	l, _ := newRedisLimiter(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Decide(ctx, "10.0.0.1", "/api/auth/register")
	}
	assert.False(t, l.Decide(ctx, "10.0.0.1", "/api/auth/register").Allowed)

	assert.True(t, l.Decide(ctx, "10.0.0.2", "/api/auth/register").Allowed)
	assert.True(t, l.Decide(ctx, "10.0.0.1", "/api/auth/login").Allowed)
}

func TestLimiter_KeyByPathDisabled(t *testing.T) {
	t.Parallel()

	cfg := loginConfig()
	cfg.KeyByPath = false
	l, mr := newRedisLimiter(t, cfg)
	ctx := context.Background()

	l.Decide(ctx, "10.0.0.1", "/api/auth/login")
	d := l.Decide(ctx, "10.0.0.1", "/api/products")

	assert.Equal(t, int64(2), d.Count)
	assert.Equal(t, "10.0.0.1", d.Key)
	assert.True(t, mr.Exists("rl:10.0.0.1"))
}

func TestLimiter_WindowExpiryResets(t *testing.T) {
	t.Parallel()

	l, mr := newRedisLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		l.Decide(ctx, "10.0.0.1", "/api/auth/login")
	}
	require.False(t, l.Decide(ctx, "10.0.0.1", "/api/auth/login").Allowed)

	mr.FastForward(time.Minute)

	d := l.Decide(ctx, "10.0.0.1", "/api/auth/login")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)
	assert.Equal(t, 9, d.Remaining)
}

func TestLimiter_MemoryStoreWindowExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := store.NewMemoryStore(store.WithMemoryClock(func() time.Time { return now }))
	defer func() { _ = s.Close() }()

	cfg := loginConfig()
	cfg.Window = 30 * time.Second
	l := NewLimiter(s, cfg)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.True(t, l.Decide(ctx, "c", "/api/auth/login").Allowed)
	}
	d := l.Decide(ctx, "c", "/api/auth/login")
	require.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	now = now.Add(30 * time.Second)
	assert.True(t, l.Decide(ctx, "c", "/api/auth/login").Allowed)
}

func TestLimiter_StoreFailureFailsOpen(t *testing.T) {
	t.Parallel()

	m := observability.NewMetrics("test")
	fs := &failingStore{}
	l := NewLimiter(fs, loginConfig(), WithMetrics(m))

	for i := 0; i < 20; i++ {
		d := l.Decide(context.Background(), "10.0.0.1", "/api/auth/login")
		assert.True(t, d.Allowed)
		assert.True(t, d.FailedOpen)
		assert.Equal(t, 10, d.Limit)
	}

	assert.Equal(t, 20, fs.calls)

	expected := `
# HELP test_rate_limit_decisions_total Rate limiter decisions (allowed, denied, failed_open, bypassed)
# TYPE test_rate_limit_decisions_total counter
test_rate_limit_decisions_total{decision="failed_open"} 20
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"test_rate_limit_decisions_total"))
}

func TestLimiter_RedisDownFailsOpen(t *testing.T) {
	t.Parallel()

	l, mr := newRedisLimiter(t, loginConfig())
	mr.Close()

	d := l.Decide(context.Background(), "10.0.0.1", "/api/auth/login")
	assert.True(t, d.Allowed)
	assert.True(t, d.FailedOpen)
}

func TestLimiter_Disabled(t *testing.T) {
	t.Parallel()

	fs := &failingStore{}
	cfg := loginConfig()
	cfg.Enabled = false
	l := NewLimiter(fs, cfg)

	d := l.Decide(context.Background(), "10.0.0.1", "/api/auth/login")
	assert.True(t, d.Allowed)
	assert.True(t, d.Bypassed)
	assert.Zero(t, fs.calls)
	assert.False(t, l.Enabled())
}

func TestLimiter_NilStoreDisables(t *testing.T) {
	t.Parallel()

	l := NewLimiter(nil, Config{Enabled: true})
	assert.False(t, l.Enabled())
	assert.Equal(t, DefaultWindow, l.Window())
	assert.True(t, l.Decide(context.Background(), "c", "/").Bypassed)
}

func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		client string
		path   string
		byPath bool
		want   string
	}{
		{name: "client and path", client: "10.0.0.1", path: "/api/orders", byPath: true, want: "10.0.0.1:/api/orders"},
		{name: "client only", client: "10.0.0.1", path: "/api/orders", byPath: false, want: "10.0.0.1"},
		{name: "empty path", client: "10.0.0.1", path: "", byPath: true, want: "10.0.0.1"},
		{name: "empty client", client: " ", path: "/x", byPath: true, want: "unknown:/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Key(tt.client, tt.path, tt.byPath))
		})
	}
}
