package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gatekeeper/internal/ratelimit/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func fixed(status Status) CheckFunc {
	return func(context.Context) Check { return Check{Status: status} }
}

func serve(t *testing.T, c *Checker, path string) (int, map[string]any) {
	t.Helper()

	engine := gin.New()
	c.RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.2.3")
	c.RegisterCheck("broken", fixed(StatusUnhealthy))

	code, body := serve(t, c, "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestChecker_ReadinessAggregation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]Status
		wantStatus Status
		wantCode   int
	}{
		{
			name:       "no checks",
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name:       "all healthy",
			checks:     map[string]Status{"a": StatusHealthy, "b": StatusHealthy},
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name:       "degraded stays ready",
			checks:     map[string]Status{"a": StatusHealthy, "b": StatusDegraded},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name:       "unhealthy wins",
			checks:     map[string]Status{"a": StatusDegraded, "b": StatusUnhealthy},
			wantStatus: StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("test")
			for name, status := range tt.checks {
				c.RegisterCheck(name, fixed(status))
			}

			code, body := serve(t, c, "/ready")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, string(tt.wantStatus), body["status"])
			if len(tt.checks) > 0 {
				assert.Len(t, body["checks"], len(tt.checks))
			}
		})
	}
}

func TestChecker_Unregister(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")
	c.RegisterCheck("broken", fixed(StatusUnhealthy))
	c.UnregisterCheck("broken")

	assert.Equal(t, StatusHealthy, c.Readiness(context.Background()).Status)
}

func TestChecker_ReadinessTimeout(t *testing.T) {
	t.Parallel()

	c := NewChecker("test", WithTimeout(20*time.Millisecond))
	c.RegisterCheck("slow", func(ctx context.Context) Check {
		<-ctx.Done()
		return Check{Status: StatusUnhealthy, Message: ctx.Err().Error()}
	})

	start := time.Now()
	resp := c.Readiness(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Message)
}

func TestStoreCheck(t *testing.T) {
	t.Parallel()

	t.Run("memory store", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, StatusHealthy, StoreCheck(nil)(context.Background()).Status)
	})

	t.Run("ping fails", func(t *testing.T) {
		t.Parallel()
		check := StoreCheck(pingerFunc(func(context.Context) error {
			return errors.New("connection refused")
		}))(context.Background())

		assert.Equal(t, StatusDegraded, check.Status)
		assert.Contains(t, check.Message, "connection refused")
	})
}

func TestStoreCheck_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	s := store.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "rl:", time.Second)
	t.Cleanup(func() { _ = s.Close() })

	c := NewChecker("test")
	c.RegisterCheck("counter_store", StoreCheck(s))

	code, body := serve(t, c, "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	mr.Close()

	code, body = serve(t, c, "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
}
