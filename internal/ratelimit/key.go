package ratelimit

import "strings"

// Key builds the counter key for a client, optionally scoped to a path.
// An empty client collapses to "unknown" so anonymous peers still share a
// window rather than escaping the limit.
func Key(client, path string, byPath bool) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	if !byPath || path == "" {
		return client
	}
	return client + ":" + path
}
