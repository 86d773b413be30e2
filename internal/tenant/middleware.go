package tenant

import (
	"net"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/gatekeeper/internal/auth"
	"github.com/vyrodovalexey/gatekeeper/internal/middleware"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

// Binding results, used as metric labels.
const (
	ResultBound     = "bound"
	ResultAnonymous = "anonymous"
	ResultNoTenant  = "no_tenant"
	ResultConflict  = "conflict"
)

// Options configures the propagator stage.
type Options struct {
	// BaseDomain is the platform domain; the label left of it in the
	// request host is recorded as the subdomain.
	BaseDomain string

	Logger  observability.Logger
	Metrics *observability.Metrics
}

// Middleware binds the authenticated principal's tenant to the request
// context. Anonymous requests and principals without a tenant stay unbound.
func Middleware(opts Options) middleware.Middleware {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	baseDomain := strings.ToLower(strings.Trim(opts.BaseDomain, "."))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authn, ok := auth.FromContext(r.Context())
			if !ok {
				opts.Metrics.RecordTenantBinding(ResultAnonymous)
				next.ServeHTTP(w, r)
				return
			}

			tenantID := authn.Principal.TenantID()
			if tenantID == "" {
				opts.Metrics.RecordTenantBinding(ResultNoTenant)
				next.ServeHTTP(w, r)
				return
			}

			ctx, err := WithTenant(r.Context(), Binding{
				TenantID:  tenantID,
				Subdomain: Subdomain(r.Host, baseDomain),
			})
			if err != nil {
				opts.Metrics.RecordTenantBinding(ResultConflict)
				opts.Logger.WithContext(r.Context()).Error("tenant binding conflict",
					observability.String("tenant_id", tenantID),
					observability.Error(err),
				)
				middleware.WriteError(w, r, http.StatusInternalServerError, "tenant context conflict")
				return
			}

			opts.Metrics.RecordTenantBinding(ResultBound)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subdomain returns the part of host left of baseDomain, without the port.
// It returns "" when host is not below baseDomain or baseDomain is empty.
func Subdomain(host, baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	suffix := "." + strings.ToLower(baseDomain)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	return strings.TrimSuffix(host, suffix)
}
