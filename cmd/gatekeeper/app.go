package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vyrodovalexey/gatekeeper/internal/auth"
	"github.com/vyrodovalexey/gatekeeper/internal/auth/token"
	"github.com/vyrodovalexey/gatekeeper/internal/config"
	"github.com/vyrodovalexey/gatekeeper/internal/health"
	"github.com/vyrodovalexey/gatekeeper/internal/middleware"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit"
	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit/store"
	"github.com/vyrodovalexey/gatekeeper/internal/server"
)

// application holds all application components.
type application struct {
	config   *config.Config
	logger   observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	store    store.Store
	limiter  *ratelimit.Limiter
	codec    *token.Codec
	checker  *health.Checker
	pipeline *middleware.Pipeline
	handler  http.Handler
	server   *server.Server

	// logLevel is the level currently applied; config is never mutated
	// after startup.
	levelMu  sync.Mutex
	logLevel string
}

// releaseTimeout bounds the tracer flush when startup fails.
const releaseTimeout = 5 * time.Second

// newApplication wires every component from cfg. Nothing is listening yet.
// On failure everything acquired so far is released.
func newApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (_ *application, err error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		logLevel: cfg.Logging.Level,
	}
	defer func() {
		if err != nil {
			app.release()
		}
	}()

	if cfg.Observability.Metrics.Enabled {
		app.metrics = observability.NewMetrics("gatekeeper")
		app.metrics.SetBuildInfo(Version, GitCommit, BuildDate)
	}

	tracer, err := newTracer(cfg.Observability.Tracing)
	if err != nil {
		return nil, err
	}
	app.tracer = tracer

	codec, err := newCodec(cfg.Auth)
	if err != nil {
		return nil, err
	}
	app.codec = codec

	var pinger store.Pinger
	app.store, pinger = newCounterStore(ctx, cfg, logger)
	app.limiter = newLimiter(app.store, cfg.RateLimit, logger, app.metrics)

	app.checker = health.NewChecker(Version, health.WithLogger(logger))
	app.checker.RegisterCheck("counter_store", health.StoreCheck(pinger))

	var upstream http.Handler
	if cfg.Server.Upstream != "" {
		u, err := server.NewUpstream(cfg.Server.Upstream, server.WithUpstreamLogger(logger))
		if err != nil {
			return nil, err
		}
		upstream = u
	}

	routerCfg := server.RouterConfig{Checker: app.checker, Upstream: upstream}
	if app.metrics != nil {
		routerCfg.Metrics = app.metrics.Handler()
		routerCfg.MetricsPath = cfg.Observability.Metrics.Path
	}

	app.pipeline = buildPipeline(cfg, pipelineDeps{
		logger:  logger,
		metrics: app.metrics,
		tracer:  app.tracer,
		codec:   codec,
		limiter: app.limiter,
	})
	app.handler = app.pipeline.Then(server.NewRouter(routerCfg))
	app.server = server.New(cfg.Server, app.handler, server.WithLogger(logger))

	logger.Info("request pipeline assembled",
		observability.String("order", app.pipeline.String()),
	)

	return app, nil
}

func newTracer(cfg config.TracingConfig) (*observability.Tracer, error) {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Endpoint,
		SamplingRate:   cfg.SamplingRate,
		Enabled:        cfg.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tracer, nil
}

func newCodec(cfg config.AuthConfig) (*token.Codec, error) {
	codec, err := token.NewCodec(token.Config{
		Secret:     []byte(cfg.Secret),
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTokenTTL.Duration(),
		RefreshTTL: cfg.RefreshTokenTTL.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}
	return codec, nil
}

// newCounterStore returns Redis when enabled, else the in-process store.
// The pinger is nil for the in-process store.
func newCounterStore(ctx context.Context, cfg *config.Config, logger observability.Logger) (store.Store, store.Pinger) {
	if !cfg.Redis.Enabled {
		logger.Warn("using in-memory counter store; limits are not shared between instances")
		return store.NewMemoryStore(), nil
	}

	r := cfg.Redis
	s := store.NewRedisStore(ctx, store.RedisConfig{
		Address:          r.Address,
		Password:         r.Password,
		DB:               r.DB,
		Prefix:           r.Prefix,
		PoolSize:         r.PoolSize,
		DialTimeout:      r.DialTimeout.Duration(),
		ReadTimeout:      r.ReadTimeout.Duration(),
		WriteTimeout:     r.WriteTimeout.Duration(),
		OperationTimeout: r.OperationTimeout.Duration(),
	}, store.WithRedisLogger(logger))

	return s, s
}

func newLimiter(
	s store.Store,
	cfg config.RateLimitConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
) *ratelimit.Limiter {
	return ratelimit.NewLimiter(s, ratelimit.Config{
		Enabled:   cfg.IsEnabled(),
		Window:    cfg.Window.Duration(),
		KeyByPath: cfg.IsKeyByPath(),
		Limits:    ratelimit.NewPathLimits(cfg.DefaultLimit, cfg.PathLimits),
	}, ratelimit.WithLogger(logger), ratelimit.WithMetrics(metrics))
}

// close releases what newApplication acquired. It does not stop the server.
func (app *application) close() {
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Warn("failed to close counter store", observability.Error(err))
		}
	}
}

// release undoes a partial newApplication: the counter store and the tracer.
func (app *application) release() {
	app.close()
	if app.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Warn("failed to shutdown tracer", observability.Error(err))
	}
}

// authenticatorFor builds the auth stage options from cfg.
func authenticatorFor(cfg config.AuthConfig, deps pipelineDeps) *auth.Authenticator {
	return auth.NewAuthenticator(deps.codec,
		auth.WithLogger(deps.logger),
		auth.WithMetrics(deps.metrics),
		auth.WithPublicPaths(cfg.PublicPaths),
		auth.WithRequireAuthentication(cfg.RequireAuthentication),
	)
}
