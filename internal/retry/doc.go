// Package retry runs an operation with exponential backoff.
//
// The delay before retry n (0-based) is BaseDelay * 2^n, optionally spread by
// JitterFactor and capped at MaxDelay. By default only a StatusError carrying
// 408, 429, 500, 502, 503 or 504 is retried; any other error returns at once.
// When attempts run out the last error is returned unchanged.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return callService(ctx)
//	}, nil)
package retry
