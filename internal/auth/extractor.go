package auth

import (
	"net/http"
	"strings"
)

const (
	headerAuthorization = "Authorization"
	bearerScheme        = "bearer"
)

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive. ok is false when the header is
// absent, uses another scheme or carries an empty token.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get(headerAuthorization))
	if header == "" {
		return "", false
	}

	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
