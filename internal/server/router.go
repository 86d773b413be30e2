package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/gatekeeper/internal/auth"
	"github.com/vyrodovalexey/gatekeeper/internal/health"
	"github.com/vyrodovalexey/gatekeeper/internal/middleware"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/tenant"
)

// ContextPath echoes the identity bound to the request.
const ContextPath = "/api/gatekeeper/context"

// MsgNotFound is the message of the 404 envelope.
const MsgNotFound = "No route matches the request"

// RouterConfig holds the handlers mounted on the engine.
type RouterConfig struct {
	Checker *health.Checker

	// Metrics is served at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string

	// Upstream receives unmatched routes. Nil answers them with 404.
	Upstream http.Handler
}

// ContextResponse is the body of ContextPath.
type ContextResponse struct {
	Authenticated bool   `json:"authenticated"`
	Subject       string `json:"subject,omitempty"`
	UserID        string `json:"userId,omitempty"`
	Role          string `json:"role,omitempty"`
	Authority     string `json:"authority,omitempty"`
	TenantID      string `json:"tenantId,omitempty"`
	Subdomain     string `json:"subdomain,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
}

// NewRouter builds the gin engine that sits at the end of the pipeline.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(routeLabel(cfg.Upstream != nil))

	if cfg.Checker != nil {
		cfg.Checker.RegisterRoutes(engine)
	}
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		engine.GET(cfg.MetricsPath, gin.WrapH(cfg.Metrics))
	}
	engine.GET(ContextPath, ContextHandler())

	if cfg.Upstream != nil {
		engine.NoRoute(gin.WrapH(cfg.Upstream))
	} else {
		engine.NoRoute(func(c *gin.Context) {
			middleware.WriteError(c.Writer, c.Request, http.StatusNotFound, MsgNotFound)
		})
	}

	return engine
}

// ContextHandler reports the principal and tenant bound by the pipeline.
func ContextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp := ContextResponse{RequestID: observability.RequestIDFromContext(ctx)}

		if a, ok := auth.FromContext(ctx); ok {
			resp.Authenticated = true
			resp.Subject = a.Principal.Subject()
			resp.UserID = a.Principal.UserID()
			resp.Role = a.Principal.Role()
			resp.Authority = a.Authority
		}
		if b, err := tenant.FromContext(ctx); err == nil {
			resp.TenantID = b.TenantID
			resp.Subdomain = b.Subdomain
		}

		c.JSON(http.StatusOK, resp)
	}
}

// routeLabel labels request metrics with the matched gin pattern so raw
// paths never become label values.
func routeLabel(proxied bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch route := c.FullPath(); {
		case route != "":
			observability.SetRoute(c.Request.Context(), route)
		case proxied:
			observability.SetRoute(c.Request.Context(), "upstream")
		}
		c.Next()
	}
}
