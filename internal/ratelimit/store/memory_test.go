package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_FixedWindow(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(WithMemoryClock(clk.Now))
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	clk.Advance(59 * time.Second)
	got, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	clk.Advance(time.Second)
	got, err = s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	const workers = 64
	var maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Increment(context.Background(), "shared", time.Minute)
			assert.NoError(t, err)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers), maxSeen.Load())
}

func TestMemoryStore_CleanupRemovesExpired(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(WithMemoryClock(clk.Now), WithCleanupInterval(10*time.Millisecond))
	defer func() { _ = s.Close() }()

	_, err := s.Increment(context.Background(), "a", time.Second)
	require.NoError(t, err)
	_, err = s.Increment(context.Background(), "b", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, s.Size())

	clk.Advance(2 * time.Second)

	assert.Eventually(t, func() bool { return s.Size() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_ClosedAndCancelled(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Increment(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Increment(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrClosed)
}
