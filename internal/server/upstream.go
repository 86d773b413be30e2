package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/vyrodovalexey/gatekeeper/internal/auth"
	"github.com/vyrodovalexey/gatekeeper/internal/middleware"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/tenant"
)

// Identity headers set on forwarded requests. Client-supplied copies are
// always removed first.
const (
	HeaderGatekeeperUser   = "X-Gatekeeper-User"
	HeaderGatekeeperTenant = "X-Gatekeeper-Tenant"
	HeaderGatekeeperRole   = "X-Gatekeeper-Role"
)

// MsgBadGateway is the message of the 502 envelope.
const MsgBadGateway = "Upstream request failed"

// ErrInvalidUpstream indicates an unusable upstream URL.
var ErrInvalidUpstream = errors.New("invalid upstream URL")

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

var identityHeaders = []string{
	HeaderGatekeeperUser,
	HeaderGatekeeperTenant,
	HeaderGatekeeperRole,
}

// UpstreamOption configures an Upstream.
type UpstreamOption func(*Upstream)

// WithUpstreamLogger sets the logger for proxy errors.
func WithUpstreamLogger(logger observability.Logger) UpstreamOption {
	return func(u *Upstream) {
		u.logger = logger
	}
}

// WithTransport sets the transport used to reach the upstream.
func WithTransport(transport http.RoundTripper) UpstreamOption {
	return func(u *Upstream) {
		u.transport = transport
	}
}

// Upstream forwards requests to a single backend.
type Upstream struct {
	target    *url.URL
	logger    observability.Logger
	transport http.RoundTripper
	proxy     *httputil.ReverseProxy
}

// NewUpstream creates a forwarder for rawURL, which must be absolute.
func NewUpstream(rawURL string, opts ...UpstreamOption) (*Upstream, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidUpstream, rawURL)
	}

	u := &Upstream{
		target: target,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}

	u.proxy = &httputil.ReverseProxy{
		Director:      u.director,
		Transport:     u.transport,
		FlushInterval: -1,
		ErrorHandler:  u.errorHandler,
	}

	return u, nil
}

// ServeHTTP implements http.Handler.
func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.proxy.ServeHTTP(w, r)
}

func (u *Upstream) director(req *http.Request) {
	req.URL.Scheme = u.target.Scheme
	req.URL.Host = u.target.Host
	req.URL.Path, req.URL.RawPath = joinPath(u.target, req.URL)
	if u.target.RawQuery != "" {
		if req.URL.RawQuery == "" {
			req.URL.RawQuery = u.target.RawQuery
		} else {
			req.URL.RawQuery = u.target.RawQuery + "&" + req.URL.RawQuery
		}
	}
	req.Host = u.target.Host

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	for _, h := range identityHeaders {
		req.Header.Del(h)
	}

	ctx := req.Context()
	if a, ok := auth.FromContext(ctx); ok {
		user := a.Principal.UserID()
		if user == "" {
			user = a.Principal.Subject()
		}
		req.Header.Set(HeaderGatekeeperUser, user)
		if a.Principal.Role() != "" {
			req.Header.Set(HeaderGatekeeperRole, a.Principal.Role())
		}
	}
	if id := tenant.ID(ctx); id != "" {
		req.Header.Set(HeaderGatekeeperTenant, id)
	}

	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(middleware.HeaderXRequestID, rid)
	}
	observability.InjectTraceContext(ctx, req)
}

func (u *Upstream) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	u.logger.WithContext(r.Context()).Error("upstream request failed",
		observability.String("upstream", u.target.Host),
		observability.String("path", r.URL.Path),
		observability.Error(err),
	)
	middleware.WriteError(w, r, http.StatusBadGateway, MsgBadGateway)
}

// joinPath prefixes the request path with the upstream's base path.
func joinPath(base, req *url.URL) (path, rawPath string) {
	if base.Path == "" || base.Path == "/" {
		return req.Path, req.RawPath
	}
	joined := base.JoinPath(req.EscapedPath())
	return joined.Path, joined.RawPath
}
