package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func recordingStage(name string, trace *[]string) Stage {
	return Stage{
		Name: name,
		Middleware: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*trace = append(*trace, name)
				next.ServeHTTP(w, r)
			})
		},
	}
}

func TestPipeline_Order(t *testing.T) {
	t.Parallel()

	var trace []string
	p := NewPipeline(
		recordingStage("auth", &trace),
		Stage{Name: "disabled"},
		recordingStage("tenant", &trace),
		recordingStage("ratelimit", &trace),
	)

	h := p.Then(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		trace = append(trace, "handler")
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"auth", "tenant", "ratelimit", "handler"}, trace)
	assert.Equal(t, []string{"auth", "tenant", "ratelimit"}, p.Names())
	assert.Equal(t, "auth -> tenant -> ratelimit", p.String())
}

func TestPipeline_ShortCircuitKeepsEarlierHeaders(t *testing.T) {
	t.Parallel()

	var trace []string
	reject := Stage{
		Name: "reject",
		Middleware: func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, r, http.StatusTooManyRequests, "slow down")
			})
		},
	}

	p := NewPipeline(
		Stage{Name: "request-id", Middleware: RequestIDWithGenerator(func() string { return "req-1" })},
		reject,
		recordingStage("after", &trace),
	)

	rec := httptest.NewRecorder()
	p.Then(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(HeaderXRequestID))
	assert.Empty(t, trace)
}

func TestPipeline_NilHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewPipeline().Then(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
