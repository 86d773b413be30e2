package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gatekeeper/internal/auth"
	"github.com/vyrodovalexey/gatekeeper/internal/auth/token"
)

func principalRequest(t *testing.T, host, tenantID string) *http.Request {
	t.Helper()

	codec, err := token.NewCodec(token.Config{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	raw, err := codec.IssueAccess("user-1", "u-1", tenantID, "customer")
	require.NoError(t, err)
	p, err := codec.Verify(raw)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Host = host
	return req.WithContext(auth.ContextWithAuthentication(req.Context(), auth.NewAuthentication(p)))
}

func TestMiddleware_BindsTenant(t *testing.T) {
	t.Parallel()

	var got Binding
	var bindErr error
	h := Middleware(Options{BaseDomain: "shop.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, bindErr = FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), principalRequest(t, "acme.shop.example.com:8443", "tenant-a"))

	require.NoError(t, bindErr)
	assert.Equal(t, Binding{TenantID: "tenant-a", Subdomain: "acme"}, got)
}

func TestMiddleware_AnonymousStaysUnbound(t *testing.T) {
	t.Parallel()

	var bindErr error
	h := Middleware(Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, bindErr = FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.ErrorIs(t, bindErr, ErrNoTenantBound)
}

func TestMiddleware_ConflictingBinding(t *testing.T) {
	t.Parallel()

	called := false
	h := Middleware(Options{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	req := principalRequest(t, "localhost", "tenant-a")
	ctx, err := WithTenant(req.Context(), Binding{TenantID: "tenant-b"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
}

func TestSubdomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host, base, want string
	}{
		{host: "acme.shop.example.com", base: "shop.example.com", want: "acme"},
		{host: "ACME.Shop.Example.com:443", base: "shop.example.com", want: "acme"},
		{host: "eu.acme.shop.example.com", base: "shop.example.com", want: "eu.acme"},
		{host: "shop.example.com", base: "shop.example.com", want: ""},
		{host: "acme.other.com", base: "shop.example.com", want: ""},
		{host: "acme.shop.example.com", base: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Subdomain(tt.host, tt.base))
		})
	}
}

