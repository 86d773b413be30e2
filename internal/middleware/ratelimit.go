package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vyrodovalexey/gatekeeper/internal/observability"
	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit"
)

// MsgRateLimitExceeded is the envelope message of a 429 response.
const MsgRateLimitExceeded = "Rate limit exceeded. Please try again later."

// RateLimitOptions configures the rate limit stage.
type RateLimitOptions struct {
	// ClientIP derives the client identifier. Defaults to the peer address.
	ClientIP *ClientIPExtractor

	// SkipPaths are never counted. Entries ending in "/" match as prefixes.
	SkipPaths []string

	Logger observability.Logger
}

// RateLimit returns the stage that counts each request against limiter.
// Allowed requests carry X-RateLimit-Limit and X-RateLimit-Remaining;
// denied requests get a 429 envelope with Retry-After and stop here.
// Fail-open and bypassed decisions pass through without rate limit headers.
func RateLimit(limiter *ratelimit.Limiter, opts RateLimitOptions) Middleware {
	if opts.ClientIP == nil {
		opts.ClientIP = NewClientIPExtractor(false, nil)
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || skipPath(r.URL.Path, opts.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			client := opts.ClientIP.Extract(r)
			d := limiter.Decide(r.Context(), client, r.URL.Path)

			if d.FailedOpen || d.Bypassed {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set(HeaderXRateLimitLimit, strconv.Itoa(d.Limit))

			if !d.Allowed {
				h.Set(HeaderXRateLimitRemain, "0")
				h.Set(HeaderRetryAfter, retryAfterSeconds(d.RetryAfter))

				opts.Logger.WithContext(r.Context()).Warn("rate limit exceeded",
					observability.String("client_ip", client),
					observability.String("path", r.URL.Path),
					observability.Int64("count", d.Count),
					observability.Int("limit", d.Limit),
				)

				WriteError(w, r, http.StatusTooManyRequests, MsgRateLimitExceeded)
				return
			}

			h.Set(HeaderXRateLimitRemain, strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func skipPath(path string, skip []string) bool {
	for _, p := range skip {
		if path == p {
			return true
		}
		if strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
