package token

import "time"

// Type distinguishes access tokens from refresh tokens.
type Type string

// Token types. Access tokens do not carry the tokenType claim.
const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims are the caller-supplied parts of a token.
type Claims struct {
	UserID   string
	TenantID string
	Role     string
	Type     Type
}

// Principal is the verified identity carried by a token. It is immutable.
type Principal struct {
	subject   string
	userID    string
	tenantID  string
	role      string
	tokenType Type
	tokenID   string
	issuedAt  time.Time
	expiresAt time.Time
}

// Subject returns the opaque user identifier.
func (p *Principal) Subject() string { return p.subject }

// UserID returns the platform user id.
func (p *Principal) UserID() string { return p.userID }

// TenantID returns the tenant the principal belongs to. Empty for refresh tokens.
func (p *Principal) TenantID() string { return p.tenantID }

// Role returns the role name. Empty for refresh tokens.
func (p *Principal) Role() string { return p.role }

// TokenType returns the kind of token the principal was built from.
func (p *Principal) TokenType() Type { return p.tokenType }

// TokenID returns the jti claim.
func (p *Principal) TokenID() string { return p.tokenID }

// IssuedAt returns the iat claim.
func (p *Principal) IssuedAt() time.Time { return p.issuedAt }

// ExpiresAt returns the exp claim.
func (p *Principal) ExpiresAt() time.Time { return p.expiresAt }

// IsRefresh reports whether the principal came from a refresh token.
func (p *Principal) IsRefresh() bool { return p.tokenType == TypeRefresh }
