package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key builds the canonical signature of a GET request: the URL without its
// query, then "?" and every parameter (those already in the URL merged with
// params) sorted by name and then by value. Equal requests map to equal
// keys whatever the parameter order.
func Key(rawURL string, params url.Values) string {
	base, query, _ := strings.Cut(rawURL, "?")
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query = query[:i]
	}
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}

	merged := url.Values{}
	mergeQuery(merged, query)
	for k, vs := range params {
		merged[k] = append(merged[k], vs...)
	}

	if len(merged) == 0 {
		return base
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('?')
	first := true
	for _, k := range names {
		values := append([]string(nil), merged[k]...)
		sort.Strings(values)
		for _, v := range values {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// mergeQuery adds every pair of a raw query to into. Unlike url.ParseQuery
// it keeps pairs it cannot decode, verbatim, so malformed queries still
// produce distinct keys.
func mergeQuery(into url.Values, query string) {
	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name = unescapeOrRaw(name)
		into[name] = append(into[name], unescapeOrRaw(value))
	}
}

func unescapeOrRaw(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
