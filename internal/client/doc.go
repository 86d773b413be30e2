// Package client is the resilient HTTP client for the platform's own APIs.
//
// GET requests are served from a process-local TTL cache keyed by the
// canonical request signature, scoped to the tenant bound to the
// request context, and retried with exponential backoff on
// transient statuses. Other methods are retried but never cached. An
// optional circuit breaker wraps each attempt and an optional token bucket
// throttles outbound calls. Outbound requests carry the caller's trace
// context and, when configured, a bearer token.
package client
