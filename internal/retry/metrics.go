package retry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttemptsTotal counts total retry attempts.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_client_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"operation", "attempt"},
	)

	// RetrySuccessTotal counts successful retries.
	RetrySuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_client_retry_success_total",
			Help: "Total number of operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	// RetryFailureTotal counts operations that exhausted their retries.
	RetryFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_client_retry_exhausted_total",
			Help: "Total number of operations that exhausted their retries",
		},
		[]string{"operation"},
	)

	// RetryDuration measures the total duration of retry operations.
	RetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_client_retry_duration_seconds",
			Help:    "Total duration of retry operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)

	// RetryBackoffDuration measures backoff wait times.
	RetryBackoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_client_retry_backoff_seconds",
			Help:    "Duration of backoff waits in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30},
		},
		[]string{"operation", "attempt"},
	)
)

// RecordRetryAttempt records a retry attempt.
func RecordRetryAttempt(operation string, attempt int) {
	RetryAttemptsTotal.WithLabelValues(operation, strconv.Itoa(attempt)).Inc()
}

// RecordRetrySuccess records an operation that succeeded after retrying.
func RecordRetrySuccess(operation string) {
	RetrySuccessTotal.WithLabelValues(operation).Inc()
}

// RecordRetryFailure records an operation that exhausted its retries.
func RecordRetryFailure(operation string) {
	RetryFailureTotal.WithLabelValues(operation).Inc()
}

// RecordRetryDuration records the total duration of a retry operation.
func RecordRetryDuration(operation string, success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	RetryDuration.WithLabelValues(operation, result).Observe(durationSeconds)
}

// RecordBackoffDuration records a backoff wait duration.
func RecordBackoffDuration(operation string, attempt int, durationSeconds float64) {
	RetryBackoffDuration.WithLabelValues(operation, strconv.Itoa(attempt)).Observe(durationSeconds)
}
