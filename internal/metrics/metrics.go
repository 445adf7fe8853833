package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "reviewdesk"

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authentication metrics
	AuthAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Authentication attempts by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	GuardDecisionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_guard_decisions_total",
			Help: "Route guard decisions by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	ProfileLookupsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_profile_lookups_total",
			Help: "Profile resolutions by result (cache_hit, found, created, bound, not_found, error)",
		},
		[]string{"result"},
	)

	InvitationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_invitations_total",
			Help: "Invitation lifecycle events by state",
		},
		[]string{"state"},
	)

	ReviewsSubmittedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_reviews_submitted_total",
			Help: "Public review submissions by outcome",
		},
		[]string{"outcome"},
	)

	RealtimeSubscribersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_realtime_subscribers",
			Help: "Open realtime review subscriptions",
		},
	)

	// Database operation metrics
	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	JobRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_job_runs_total",
			Help: "Scheduled and queued job executions by job and outcome",
		},
		[]string{"job", "outcome"},
	)
)

// Middleware records request counts and latency per route.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		duration := time.Since(start).Seconds()
		method := c.Request().Method
		path := c.Path()
		status := strconv.Itoa(c.Response().Status)

		HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
		HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		return err
	}
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

func RecordAuthAttempt(method, outcome string) {
	AuthAttemptsCounter.WithLabelValues(method, outcome).Inc()
}

func RecordGuardDecision(outcome, reason string) {
	GuardDecisionsCounter.WithLabelValues(outcome, reason).Inc()
}

func RecordProfileLookup(result string) {
	ProfileLookupsCounter.WithLabelValues(result).Inc()
}

func RecordInvitation(state string) {
	InvitationsCounter.WithLabelValues(state).Inc()
}

func RecordReviewSubmission(outcome string) {
	ReviewsSubmittedCounter.WithLabelValues(outcome).Inc()
}

func RecordJobRun(job, outcome string) {
	JobRunsCounter.WithLabelValues(job, outcome).Inc()
}
