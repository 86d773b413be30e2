package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "rl:", time.Second)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStore_IncrementStartsWindow(t *testing.T) {
	t.Parallel()

	s, mr := newMiniredisStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.Increment(ctx, "10.0.0.1:/api/auth/login", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Equal(t, time.Minute, mr.TTL("rl:10.0.0.1:/api/auth/login"))
}

func TestRedisStore_LaterIncrementsKeepWindowStart(t *testing.T) {
	t.Parallel()

	s, mr := newMiniredisStore(t)
	ctx := context.Background()

	_, err := s.Increment(ctx, "client", time.Minute)
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)
	_, err = s.Increment(ctx, "client", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, mr.TTL("rl:client"))
}

func TestRedisStore_WindowExpiryResetsCount(t *testing.T) {
	t.Parallel()

	s, mr := newMiniredisStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Increment(ctx, "client", time.Minute)
		require.NoError(t, err)
	}

	mr.FastForward(time.Minute + time.Second)

	got, err := s.Increment(ctx, "client", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestRedisStore_RepairsKeyWithoutTTL(t *testing.T) {
	t.Parallel()

	s, mr := newMiniredisStore(t)
	require.NoError(t, mr.Set("rl:orphan", "41"))
	assert.Zero(t, mr.TTL("rl:orphan"))

	got, err := s.Increment(context.Background(), "orphan", 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, int64(42), got)
	assert.Equal(t, 30*time.Second, mr.TTL("rl:orphan"))
}

func TestRedisStore_ConcurrentIncrementsAreAtomic(t *testing.T) {
	t.Parallel()

	s, _ := newMiniredisStore(t)
	const workers = 50

	results := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := s.Increment(context.Background(), "shared", time.Minute)
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, n := range results {
		assert.Equal(t, int64(i+1), n)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	s, mr := newMiniredisStore(t)
	mr.Close()

	_, err := s.Increment(context.Background(), "client", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var uerr *UnavailableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "increment", uerr.Op)
	assert.Equal(t, "client", uerr.Key)

	assert.ErrorIs(t, s.Ping(context.Background()), ErrUnavailable)
}

func TestRedisStore_CancelledContext(t *testing.T) {
	t.Parallel()

	s, _ := newMiniredisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Increment(ctx, "client", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisStore_Closed(t *testing.T) {
	t.Parallel()

	s, _ := newMiniredisStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Increment(context.Background(), "client", time.Minute)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrClosed)
}

func TestNewRedisStore_DoesNotFailWhenUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := DefaultRedisConfig()
	cfg.Address = addr
	cfg.DialTimeout = 50 * time.Millisecond
	cfg.OperationTimeout = 100 * time.Millisecond

	s := NewRedisStore(context.Background(), cfg)
	require.NotNil(t, s)
	defer func() { _ = s.Close() }()

	_, err := s.Increment(context.Background(), "client", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewRedisStore_Connected(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Address = mr.Addr()

	s := NewRedisStore(context.Background(), cfg)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Ping(context.Background()))
	n, err := s.Increment(context.Background(), "client", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, mr.Exists("rl:client"))
}

func TestUnavailableError_Message(t *testing.T) {
	t.Parallel()

	err := &UnavailableError{Op: "ping", Cause: errors.New("refused")}
	assert.Equal(t, "counter store unavailable: ping: refused", err.Error())

	err = &UnavailableError{Op: "increment", Key: "k", Cause: errors.New("refused")}
	assert.Equal(t, "counter store unavailable: increment k: refused", err.Error())
}
