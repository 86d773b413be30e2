package health

import (
	"context"

	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit/store"
)

// StoreCheck pings the counter store. The limiter fails open, so an
// unreachable store degrades readiness instead of failing it.
func StoreCheck(p store.Pinger) CheckFunc {
	return func(ctx context.Context) Check {
		if p == nil {
			return Check{Status: StatusHealthy, Message: "in-memory counters"}
		}
		if err := p.Ping(ctx); err != nil {
			return Check{
				Status:  StatusDegraded,
				Message: "rate limiting failing open: " + err.Error(),
			}
		}
		return Check{Status: StatusHealthy, Message: "connected"}
	}
}
