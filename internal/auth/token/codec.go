package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claim names on the wire.
const (
	ClaimUserID    = "userId"
	ClaimTenantID  = "tenantId"
	ClaimRole      = "role"
	ClaimTokenType = "tokenType"
)

// Algorithm is the only signing algorithm issued or accepted.
const Algorithm = jwa.HS256

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// MinSecretLength is the minimum HMAC secret length in bytes.
const MinSecretLength = 32

// Config configures a Codec.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec issues and verifies HS256 bearer tokens.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec creates a codec. The secret must be at least 256 bits.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrKeyTooShort
	}

	c := &Codec{
		secret:     append([]byte(nil), cfg.Secret...),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if c.accessTTL <= 0 {
		c.accessTTL = DefaultAccessTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = DefaultRefreshTTL
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Issue signs a token for subject. Access tokens carry the user, tenant and
// role; refresh tokens carry only the user id and the refresh type marker.
func (c *Codec) Issue(subject string, claims Claims) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := c.now().Truncate(time.Second)
	ttl := c.accessTTL
	if claims.Type == TypeRefresh {
		ttl = c.refreshTTL
	}

	values := map[string]any{
		jwt.SubjectKey:    subject,
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: now.Add(ttl),
		jwt.JwtIDKey:      uuid.NewString(),
	}
	if c.issuer != "" {
		values[jwt.IssuerKey] = c.issuer
	}
	if claims.UserID != "" {
		values[ClaimUserID] = claims.UserID
	}

	switch claims.Type {
	case TypeRefresh:
		values[ClaimTokenType] = string(TypeRefresh)
	case "", TypeAccess:
		if claims.Role == "" {
			return "", fmt.Errorf("access token for %s requires a role", subject)
		}
		values[ClaimRole] = claims.Role
		if claims.TenantID != "" {
			values[ClaimTenantID] = claims.TenantID
		}
	default:
		return "", fmt.Errorf("unknown token type %q", claims.Type)
	}

	tok := jwt.New()
	for name, value := range values {
		if err := tok.Set(name, value); err != nil {
			return "", fmt.Errorf("failed to set claim %s: %w", name, err)
		}
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(Algorithm, c.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// IssueAccess issues a short-lived access token.
func (c *Codec) IssueAccess(subject, userID, tenantID, role string) (string, error) {
	return c.Issue(subject, Claims{UserID: userID, TenantID: tenantID, Role: role, Type: TypeAccess})
}

// IssueRefresh issues a long-lived refresh token.
func (c *Codec) IssueRefresh(subject, userID string) (string, error) {
	return c.Issue(subject, Claims{UserID: userID, Type: TypeRefresh})
}

// Verify checks structure, algorithm, signature and expiry, in that order.
// It never panics; every rejection is a *VerificationError.
func (c *Codec) Verify(raw string) (p *Principal, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, malformed("unparseable token: %v", r)
		}
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, malformed("empty token")
	}
	if strings.Count(raw, ".") != 2 {
		return nil, malformed("token is not in compact serialization")
	}

	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return nil, &VerificationError{Kind: KindMalformed, Cause: err}
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return nil, malformed("expected exactly one signature, got %d", len(sigs))
	}
	if alg := sigs[0].ProtectedHeaders().Algorithm(); alg != Algorithm {
		return nil, malformed("unexpected signing algorithm %q", alg.String())
	}

	if _, err := jws.Verify([]byte(raw), jws.WithKey(Algorithm, c.secret)); err != nil {
		return nil, &VerificationError{Kind: KindBadSignature, Cause: err}
	}

	tok, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, &VerificationError{Kind: KindMalformed, Cause: err}
	}

	return c.principalFrom(tok)
}

func (c *Codec) principalFrom(tok jwt.Token) (*Principal, error) {
	p := &Principal{
		subject:   tok.Subject(),
		tokenID:   tok.JwtID(),
		issuedAt:  tok.IssuedAt(),
		expiresAt: tok.Expiration(),
		tokenType: TypeAccess,
	}

	if p.subject == "" {
		return nil, malformed("missing sub claim")
	}
	if p.expiresAt.IsZero() {
		return nil, malformed("missing exp claim")
	}

	var err error
	if p.userID, err = stringClaim(tok, ClaimUserID); err != nil {
		return nil, err
	}
	if p.tenantID, err = stringClaim(tok, ClaimTenantID); err != nil {
		return nil, err
	}
	if p.role, err = stringClaim(tok, ClaimRole); err != nil {
		return nil, err
	}
	typ, err := stringClaim(tok, ClaimTokenType)
	if err != nil {
		return nil, err
	}
	switch Type(typ) {
	case "", TypeAccess:
	case TypeRefresh:
		p.tokenType = TypeRefresh
	default:
		return nil, malformed("unknown tokenType %q", typ)
	}

	if !c.now().Before(p.expiresAt) {
		return nil, &VerificationError{
			Kind:  KindExpired,
			Cause: fmt.Errorf("expired at %s", p.expiresAt.UTC().Format(time.RFC3339)),
		}
	}

	if p.tokenType == TypeAccess && p.role == "" {
		return nil, malformed("access token without role")
	}
	if p.tokenType == TypeRefresh && (p.role != "" || p.tenantID != "") {
		return nil, malformed("refresh token carries role or tenant")
	}

	return p, nil
}

func stringClaim(tok jwt.Token, name string) (string, error) {
	v, ok := tok.Get(name)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed("claim %s is not a string", name)
	}
	return s, nil
}
