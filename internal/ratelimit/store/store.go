// Package store provides the shared counter stores behind the rate limiter.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is a fixed-window counter. Increment is the only way to touch a
// counter: it adds one and, when the counter is new, starts its window.
// No read-then-write sequence is exposed.
type Store interface {
	// Increment atomically increments key and returns the new count. A key
	// created by this call expires after window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrUnavailable marks any failure to reach or use the counter store.
var ErrUnavailable = errors.New("counter store unavailable")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("counter store closed")

// UnavailableError wraps a store failure.
type UnavailableError struct {
	Op    string
	Key   string
	Cause error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s %s: %v", ErrUnavailable, e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", ErrUnavailable, e.Op, e.Cause)
}

// Unwrap returns the underlying error.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Is matches ErrUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}
