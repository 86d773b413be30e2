package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit/store"
)

func TestLimiter_RemainingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("remaining decreases until exhausted and never goes negative", prop.ForAll(
		func(limit, requests int) bool {
			s := store.NewMemoryStore()
			defer func() { _ = s.Close() }()

			l := NewLimiter(s, Config{
				Enabled:   true,
				Window:    time.Minute,
				KeyByPath: true,
				Limits:    NewPathLimits(limit, nil),
			})

			prev := limit + 1
			for i := 1; i <= requests; i++ {
				d := l.Decide(context.Background(), "client", "/p")
				if d.Remaining < 0 {
					return false
				}
				if d.Allowed != (i <= limit) {
					return false
				}
				if i <= limit {
					if d.Remaining >= prev {
						return false
					}
				} else if d.Remaining != 0 {
					return false
				}
				prev = d.Remaining
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 60),
	))

	properties.Property("distinct clients never share a window", prop.ForAll(
		func(clients int) bool {
			s := store.NewMemoryStore()
			defer func() { _ = s.Close() }()

			l := NewLimiter(s, Config{Enabled: true, Window: time.Minute, Limits: NewPathLimits(1, nil)})
			for i := 0; i < clients; i++ {
				if !l.Decide(context.Background(), fmt.Sprintf("10.0.0.%d", i), "/p").Allowed {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
