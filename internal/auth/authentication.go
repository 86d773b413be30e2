package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/vyrodovalexey/gatekeeper/internal/auth/token"
)

// AuthorityPrefix prefixes the role-derived authority.
const AuthorityPrefix = "ROLE_"

// ErrUnauthenticated is returned by Require when no principal is bound.
var ErrUnauthenticated = errors.New("request is not authenticated")

// Authentication is the verified identity bound to a request.
type Authentication struct {
	Principal *token.Principal
	Authority string
}

// NewAuthentication derives the authority from the principal's role.
func NewAuthentication(p *token.Principal) *Authentication {
	return &Authentication{Principal: p, Authority: Authority(p.Role())}
}

// Authority returns ROLE_<UPPER(role)>, or "" for an empty role.
func Authority(role string) string {
	if role == "" {
		return ""
	}
	return AuthorityPrefix + strings.ToUpper(role)
}

// HasAuthority reports whether the authentication carries authority.
func (a *Authentication) HasAuthority(authority string) bool {
	return a != nil && a.Authority != "" && a.Authority == authority
}

type authenticationKey struct{}

// ContextWithAuthentication binds a to ctx.
func ContextWithAuthentication(ctx context.Context, a *Authentication) context.Context {
	return context.WithValue(ctx, authenticationKey{}, a)
}

// FromContext returns the bound authentication, if any.
func FromContext(ctx context.Context) (*Authentication, bool) {
	a, ok := ctx.Value(authenticationKey{}).(*Authentication)
	return a, ok && a != nil
}

// Require returns the bound authentication or ErrUnauthenticated.
func Require(ctx context.Context) (*Authentication, error) {
	a, ok := FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return a, nil
}

// RequirePrincipal is Require returning only the principal.
func RequirePrincipal(ctx context.Context) (*token.Principal, error) {
	a, err := Require(ctx)
	if err != nil {
		return nil, err
	}
	return a.Principal, nil
}
