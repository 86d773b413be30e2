package auth

import (
	"net/http"

	"github.com/vyrodovalexey/gatekeeper/internal/auth/token"
	"github.com/vyrodovalexey/gatekeeper/internal/middleware"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

// Authentication outcomes, used as log values and metric labels.
const (
	OutcomePublic        = "public"
	OutcomeAnonymous     = "anonymous"
	OutcomeAuthenticated = "authenticated"
	OutcomeMalformed     = "malformed"
	OutcomeExpired       = "expired"
	OutcomeBadSignature  = "bad_signature"
	OutcomeRefreshToken  = "refresh_token"
)

// MsgAuthenticationRequired is the envelope message of a strict-mode 401.
const MsgAuthenticationRequired = "Authentication required"

// Verifier verifies a compact token.
type Verifier interface {
	Verify(raw string) (*token.Principal, error)
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics sink for outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Authenticator) {
		a.metrics = m
	}
}

// WithPublicPaths replaces the default public paths.
func WithPublicPaths(paths []string) Option {
	return func(a *Authenticator) {
		a.public = NewPublicPaths(paths)
	}
}

// WithRequireAuthentication rejects unauthenticated requests to non-public
// paths with 401 instead of passing them through.
func WithRequireAuthentication(require bool) Option {
	return func(a *Authenticator) {
		a.strict = require
	}
}

// Authenticator is the bearer token stage.
type Authenticator struct {
	verifier Verifier
	public   *PublicPaths
	strict   bool
	logger   observability.Logger
	metrics  *observability.Metrics
}

// NewAuthenticator creates an authenticator over v.
func NewAuthenticator(v Verifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: v,
		public:   NewPublicPaths(DefaultPublicPaths()),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate resolves the request's authentication. It returns nil with
// the outcome when the request stays anonymous.
func (a *Authenticator) Authenticate(r *http.Request) (*Authentication, string) {
	raw, ok := BearerToken(r)
	if !ok {
		return nil, OutcomeAnonymous
	}

	p, err := a.verifier.Verify(raw)
	if err != nil {
		outcome := outcomeFor(err)
		a.logger.WithContext(r.Context()).Debug("bearer token rejected, continuing unauthenticated",
			observability.String("path", r.URL.Path),
			observability.String("outcome", outcome),
			observability.Error(err),
		)
		return nil, outcome
	}

	if p.IsRefresh() {
		a.logger.WithContext(r.Context()).Debug("refresh token presented as bearer, continuing unauthenticated",
			observability.String("path", r.URL.Path),
			observability.String("subject", p.Subject()),
		)
		return nil, OutcomeRefreshToken
	}

	return NewAuthentication(p), OutcomeAuthenticated
}

// Middleware returns the authenticator stage.
func (a *Authenticator) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.public.Match(r.URL.Path) {
				a.metrics.RecordAuthOutcome(OutcomePublic)
				next.ServeHTTP(w, r)
				return
			}

			authn, outcome := a.Authenticate(r)
			a.metrics.RecordAuthOutcome(outcome)

			if authn == nil {
				if a.strict {
					w.Header().Set(middleware.HeaderWWWAuthenticate, `Bearer realm="gatekeeper"`)
					middleware.WriteError(w, r, http.StatusUnauthorized, MsgAuthenticationRequired)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			a.logger.WithContext(r.Context()).Debug("request authenticated",
				observability.String("subject", authn.Principal.Subject()),
				observability.String("tenant_id", authn.Principal.TenantID()),
				observability.String("authority", authn.Authority),
			)

			next.ServeHTTP(w, r.WithContext(ContextWithAuthentication(r.Context(), authn)))
		})
	}
}

func outcomeFor(err error) string {
	switch token.KindOf(err) {
	case token.KindExpired:
		return OutcomeExpired
	case token.KindBadSignature:
		return OutcomeBadSignature
	default:
		return OutcomeMalformed
	}
}
