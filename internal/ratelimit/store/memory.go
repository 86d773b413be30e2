package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxCASRetries bounds CAS spinning under contention.
const maxCASRetries = 100

type entry struct {
	value      int64
	expiration time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCleanupInterval sets how often expired windows are swept.
func WithCleanupInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithMemoryClock overrides the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// MemoryStore is a single-process Store. Counters are not shared between
// gatekeeper instances, so it suits development and single-node setups.
type MemoryStore struct {
	data            sync.Map
	now             func() time.Time
	cleanupInterval time.Duration
	done            chan struct{}
	mu              sync.Mutex
	closed          bool
}

// NewMemoryStore creates a store and starts its expiry sweep.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:             time.Now,
		cleanupInterval: time.Minute,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &UnavailableError{Op: "increment", Key: key, Cause: err}
	}
	if s.isClosed() {
		return 0, &UnavailableError{Op: "increment", Key: key, Cause: ErrClosed}
	}

	for retries := 0; retries < maxCASRetries; retries++ {
		now := s.now()
		fresh := &entry{value: 1, expiration: now.Add(window)}

		value, loaded := s.data.LoadOrStore(key, fresh)
		if !loaded {
			return 1, nil
		}

		e := value.(*entry)
		if !now.Before(e.expiration) {
			if s.data.CompareAndSwap(key, e, fresh) {
				return 1, nil
			}
			continue
		}

		next := &entry{value: e.value + 1, expiration: e.expiration}
		if s.data.CompareAndSwap(key, e, next) {
			return next.value, nil
		}
	}

	return 0, &UnavailableError{
		Op:    "increment",
		Key:   key,
		Cause: fmt.Errorf("max CAS retries (%d) exceeded", maxCASRetries),
	}
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	return nil
}

func (s *MemoryStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Size returns the number of stored windows, expired or not.
func (s *MemoryStore) Size() int {
	count := 0
	s.data.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) cleanupExpired() {
	now := s.now()
	s.data.Range(func(key, value any) bool {
		e := value.(*entry)
		if !now.Before(e.expiration) {
			s.data.CompareAndDelete(key, e)
		}
		return true
	})
}
