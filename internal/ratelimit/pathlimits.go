package ratelimit

import (
	"sort"
	"strings"
)

type prefixLimit struct {
	prefix string
	limit  int
}

// PathLimits maps request paths to their window limits. Entries are either
// exact paths or prefix patterns ending in "/**" (or "/*"); exact matches
// win, then the longest prefix. It is immutable after construction.
type PathLimits struct {
	defaultLimit int
	exact        map[string]int
	prefixes     []prefixLimit
}

// NewPathLimits builds a table. Non-positive limits are ignored.
func NewPathLimits(defaultLimit int, overrides map[string]int) *PathLimits {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}

	pl := &PathLimits{
		defaultLimit: defaultLimit,
		exact:        make(map[string]int, len(overrides)),
	}

	for pattern, limit := range overrides {
		if limit <= 0 || pattern == "" {
			continue
		}
		switch {
		case strings.HasSuffix(pattern, "/**"):
			pl.prefixes = append(pl.prefixes, prefixLimit{prefix: strings.TrimSuffix(pattern, "**"), limit: limit})
		case strings.HasSuffix(pattern, "/*"):
			pl.prefixes = append(pl.prefixes, prefixLimit{prefix: strings.TrimSuffix(pattern, "*"), limit: limit})
		default:
			pl.exact[pattern] = limit
		}
	}

	sort.Slice(pl.prefixes, func(i, j int) bool {
		if len(pl.prefixes[i].prefix) != len(pl.prefixes[j].prefix) {
			return len(pl.prefixes[i].prefix) > len(pl.prefixes[j].prefix)
		}
		return pl.prefixes[i].prefix < pl.prefixes[j].prefix
	})

	return pl
}

// LimitFor returns the limit for path.
func (pl *PathLimits) LimitFor(path string) int {
	if limit, ok := pl.exact[path]; ok {
		return limit
	}
	for _, p := range pl.prefixes {
		if strings.HasPrefix(path, p.prefix) {
			return p.limit
		}
	}
	return pl.defaultLimit
}

// Default returns the limit for unmatched paths.
func (pl *PathLimits) Default() int {
	return pl.defaultLimit
}
