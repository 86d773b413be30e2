package auth

import "strings"

// DefaultPublicPaths returns the paths that never require a token.
func DefaultPublicPaths() []string {
	return []string{
		"/api/auth/",
		"/health",
		"/ready",
		"/metrics",
		"/docs",
		"/swagger",
		"/v3/api-docs",
	}
}

// PublicPaths matches request paths against public path entries. A path
// matches an entry when it equals it or continues it with "/". Entries that
// end in "/" match everything below them.
type PublicPaths struct {
	entries []string
}

// NewPublicPaths builds a matcher from entries.
func NewPublicPaths(entries []string) *PublicPaths {
	cleaned := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return &PublicPaths{entries: cleaned}
}

// Match reports whether path is public.
func (p *PublicPaths) Match(path string) bool {
	if p == nil {
		return false
	}
	for _, e := range p.entries {
		if path == e {
			return true
		}
		if strings.HasSuffix(e, "/") {
			if strings.HasPrefix(path, e) || path == strings.TrimSuffix(e, "/") {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, e+"/") {
			return true
		}
	}
	return false
}

// Entries returns a copy of the configured entries.
func (p *PublicPaths) Entries() []string {
	out := make([]string, len(p.entries))
	copy(out, p.entries)
	return out
}
