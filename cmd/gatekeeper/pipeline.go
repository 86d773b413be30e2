package main

import (
	"github.com/vyrodovalexey/gatekeeper/internal/auth/token"
	"github.com/vyrodovalexey/gatekeeper/internal/config"
	"github.com/vyrodovalexey/gatekeeper/internal/middleware"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit"
	"github.com/vyrodovalexey/gatekeeper/internal/tenant"
)

// Stage names as they appear in the startup log.
const (
	stageRecovery  = "recovery"
	stageRequestID = "request-id"
	stageLogging   = "logging"
	stageTracing   = "tracing"
	stageMetrics   = "metrics"
	stageAuth      = "authentication"
	stageTenant    = "tenant"
	stageRateLimit = "rate-limit"
)

type pipelineDeps struct {
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	codec   *token.Codec
	limiter *ratelimit.Limiter
}

// buildPipeline assembles the request pipeline. The execution order
// (outermost first) is:
//
//	Recovery -> RequestID -> Logging -> Tracing -> Metrics ->
//	Authentication -> Tenant -> RateLimit -> [router]
//
// With rateLimit.position "before-auth" the rate limit stage runs right
// after Metrics, so floods are rejected before any token is verified.
func buildPipeline(cfg *config.Config, deps pipelineDeps) *middleware.Pipeline {
	rateLimit := middleware.Stage{
		Name: stageRateLimit,
		Middleware: middleware.RateLimit(deps.limiter, middleware.RateLimitOptions{
			ClientIP:  middleware.NewClientIPExtractor(trustForwardedFor(cfg.Server), cfg.Server.TrustedProxies),
			SkipPaths: cfg.RateLimit.SkipPaths,
			Logger:    deps.logger,
		}),
	}

	stages := []middleware.Stage{
		{Name: stageRecovery, Middleware: middleware.Recovery(deps.logger)},
		{Name: stageRequestID, Middleware: middleware.RequestID()},
		{Name: stageLogging, Middleware: middleware.Logging(deps.logger)},
		{Name: stageTracing, Middleware: observability.TracingMiddleware(deps.tracer)},
		{Name: stageMetrics, Middleware: observability.MetricsMiddleware(deps.metrics)},
	}

	beforeAuth := cfg.RateLimit.Position == config.PositionBeforeAuth
	if beforeAuth {
		stages = append(stages, rateLimit)
	}

	stages = append(stages,
		middleware.Stage{Name: stageAuth, Middleware: authenticatorFor(cfg.Auth, deps).Middleware()},
		middleware.Stage{Name: stageTenant, Middleware: tenant.Middleware(tenant.Options{
			BaseDomain: cfg.Tenant.BaseDomain,
			Logger:     deps.logger,
			Metrics:    deps.metrics,
		})},
	)

	if !beforeAuth {
		stages = append(stages, rateLimit)
	}

	return middleware.NewPipeline(stages...)
}

func trustForwardedFor(s config.ServerConfig) bool {
	return s.TrustForwardedFor == nil || *s.TrustForwardedFor
}
