package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret  = []byte("0123456789abcdef0123456789abcdef")
	otherSecret = []byte("fedcba9876543210fedcba9876543210")
	fixedNow    = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestCodec(t *testing.T, clk *clock) *Codec {
	t.Helper()

	codec, err := NewCodec(Config{Secret: testSecret, Issuer: "retail-auth"}, WithClock(clk.Now))
	require.NoError(t, err)
	return codec
}

func TestNewCodec_ShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewCodec(Config{Secret: []byte("too-short")})
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestNewCodec_Defaults(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(Config{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, DefaultAccessTTL, codec.accessTTL)
	assert.Equal(t, DefaultRefreshTTL, codec.refreshTTL)
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	t.Parallel()

	clk := &clock{now: fixedNow}
	codec := newTestCodec(t, clk)

	raw, err := codec.IssueAccess("alice@example.com", "u-1", "acme", "merchant")
	require.NoError(t, err)

	p, err := codec.Verify(raw)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", p.Subject())
	assert.Equal(t, "u-1", p.UserID())
	assert.Equal(t, "acme", p.TenantID())
	assert.Equal(t, "merchant", p.Role())
	assert.Equal(t, TypeAccess, p.TokenType())
	assert.False(t, p.IsRefresh())
	assert.NotEmpty(t, p.TokenID())
	assert.True(t, p.IssuedAt().Equal(fixedNow))
	assert.True(t, p.ExpiresAt().Equal(fixedNow.Add(DefaultAccessTTL)))
}

func TestCodec_RefreshClaims(t *testing.T) {
	t.Parallel()

	clk := &clock{now: fixedNow}
	codec := newTestCodec(t, clk)

	raw, err := codec.IssueRefresh("alice@example.com", "u-1")
	require.NoError(t, err)

	claims := decodePayload(t, raw)
	assert.Equal(t, "refresh", claims["tokenType"])
	assert.NotContains(t, claims, "role")
	assert.NotContains(t, claims, "tenantId")
	assert.Equal(t, "retail-auth", claims["iss"])

	p, err := codec.Verify(raw)
	require.NoError(t, err)
	assert.True(t, p.IsRefresh())
	assert.Empty(t, p.Role())
	assert.Empty(t, p.TenantID())
	assert.True(t, p.ExpiresAt().Equal(fixedNow.Add(DefaultRefreshTTL)))
}

func TestCodec_IssueErrors(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, &clock{now: fixedNow})

	_, err := codec.Issue("", Claims{Role: "customer"})
	assert.ErrorIs(t, err, ErrEmptySubject)

	_, err = codec.Issue("bob", Claims{TenantID: "acme"})
	assert.Error(t, err)

	_, err = codec.Issue("bob", Claims{Role: "customer", Type: "session"})
	assert.Error(t, err)
}

func TestCodec_Expiry(t *testing.T) {
	t.Parallel()

	clk := &clock{now: fixedNow}
	codec := newTestCodec(t, clk)

	raw, err := codec.IssueAccess("bob", "u-2", "acme", "customer")
	require.NoError(t, err)

	clk.now = fixedNow.Add(DefaultAccessTTL - time.Second)
	_, err = codec.Verify(raw)
	require.NoError(t, err)

	clk.now = fixedNow.Add(DefaultAccessTTL)
	_, err = codec.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, KindExpired, KindOf(err))
}

func TestCodec_Verify_Failures(t *testing.T) {
	t.Parallel()

	clk := &clock{now: fixedNow}
	codec := newTestCodec(t, clk)

	valid, err := codec.IssueAccess("bob", "u-2", "acme", "customer")
	require.NoError(t, err)
	parts := strings.Split(valid, ".")

	foreign, err := NewCodec(Config{Secret: otherSecret}, WithClock(clk.Now))
	require.NoError(t, err)
	foreignToken, err := foreign.IssueAccess("bob", "u-2", "acme", "customer")
	require.NoError(t, err)
	foreignParts := strings.Split(foreignToken, ".")

	escalated := encodeSegment(t, map[string]any{
		"sub": "bob", "role": "admin", "tenantId": "acme", "exp": fixedNow.Add(time.Hour).Unix(),
	})

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMalformed},
		{name: "whitespace", token: "   ", want: ErrMalformed},
		{name: "two segments", token: parts[0] + "." + parts[1], want: ErrMalformed},
		{name: "four segments", token: valid + ".extra", want: ErrMalformed},
		{name: "garbage", token: "a.b.c", want: ErrMalformed},
		{name: "header not json", token: "bm90LWpzb24." + parts[1] + "." + parts[2], want: ErrMalformed},
		{name: "payload swapped", token: parts[0] + "." + escalated + "." + parts[2], want: ErrBadSignature},
		{name: "signature transplanted", token: parts[0] + "." + parts[1] + "." + foreignParts[2], want: ErrBadSignature},
		{name: "wrong key", token: foreignToken, want: ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := codec.Verify(tt.token)
			assert.Nil(t, p)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var verr *VerificationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestCodec_RejectsAlgorithmConfusion(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, &clock{now: fixedNow})
	claims := gjwt.MapClaims{
		"sub":      "mallory",
		"role":     "admin",
		"tenantId": "acme",
		"exp":      fixedNow.Add(time.Hour).Unix(),
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	hs384, err := gjwt.NewWithClaims(gjwt.SigningMethodHS384, claims).SignedString(testSecret)
	require.NoError(t, err)

	for name, raw := range map[string]string{"none": none, "HS512": hs512, "HS384": hs384} {
		_, err := codec.Verify(raw)
		assert.ErrorIs(t, err, ErrMalformed, name)
	}
}

func TestCodec_ClaimValidation(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, &clock{now: fixedNow})
	exp := fixedNow.Add(time.Hour).Unix()

	tests := []struct {
		name   string
		claims gjwt.MapClaims
		want   error
	}{
		{name: "missing sub", claims: gjwt.MapClaims{"role": "customer", "exp": exp}, want: ErrMalformed},
		{name: "missing exp", claims: gjwt.MapClaims{"sub": "bob", "role": "customer"}, want: ErrMalformed},
		{name: "access without role", claims: gjwt.MapClaims{"sub": "bob", "exp": exp}, want: ErrMalformed},
		{name: "numeric role", claims: gjwt.MapClaims{"sub": "bob", "role": 7, "exp": exp}, want: ErrMalformed},
		{
			name:   "unknown token type",
			claims: gjwt.MapClaims{"sub": "bob", "tokenType": "session", "exp": exp},
			want:   ErrMalformed,
		},
		{
			name:   "refresh with role",
			claims: gjwt.MapClaims{"sub": "bob", "tokenType": "refresh", "role": "admin", "exp": exp},
			want:   ErrMalformed,
		},
		{
			name:   "expired",
			claims: gjwt.MapClaims{"sub": "bob", "role": "customer", "exp": fixedNow.Add(-time.Second).Unix()},
			want:   ErrExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, tt.claims).SignedString(testSecret)
			require.NoError(t, err)

			_, err = codec.Verify(raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCodec_InteropWithGolangJWT(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, &clock{now: time.Now().Truncate(time.Second)})

	raw, err := codec.IssueAccess("carol", "u-3", "globex", "admin")
	require.NoError(t, err)

	parsed, err := gjwt.Parse(raw, func(*gjwt.Token) (any, error) { return testSecret, nil },
		gjwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	claims, ok := parsed.Claims.(gjwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "carol", claims["sub"])
	assert.Equal(t, "globex", claims["tenantId"])
	assert.Equal(t, "admin", claims["role"])

	foreign, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.MapClaims{
		"sub": "dave", "userId": "u-4", "tenantId": "initech", "role": "customer",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	p, err := codec.Verify(foreign)
	require.NoError(t, err)
	assert.Equal(t, "dave", p.Subject())
	assert.Equal(t, "initech", p.TenantID())
}

func TestVerificationError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &VerificationError{Kind: KindBadSignature, Cause: cause}

	assert.ErrorIs(t, err, ErrBadSignature)
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "token signature is invalid: boom", err.Error())
	assert.Equal(t, "token has expired", (&VerificationError{Kind: KindExpired}).Error())

	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "expired", KindExpired.String())
	assert.Equal(t, "bad_signature", KindBadSignature.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, Kind(0), KindOf(cause))
}

func decodePayload(t *testing.T, raw string) map[string]any {
	t.Helper()

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	data, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(data, &claims))
	return claims
}

func encodeSegment(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(data)
}
