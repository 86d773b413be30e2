// Package health provides the gatekeeper's liveness and readiness endpoints.
//
// Liveness (/health) only reports that the process is serving. Readiness
// (/ready) runs the registered checks concurrently and aggregates them:
//
//	checker := health.NewChecker(version, health.WithLogger(logger))
//	checker.RegisterCheck("counter_store", health.StoreCheck(redisStore))
//	checker.RegisterRoutes(engine)
//
// A degraded check (for example an unreachable counter store, which only
// makes the rate limiter fail open) keeps /ready at 200. Only an unhealthy
// check turns it into 503.
package health
