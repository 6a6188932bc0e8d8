// Package telemetry provides logging setup and Prometheus metrics for the dashboard gateway.
//
// All metrics are registered against the default Prometheus registry and exposed on
// the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<CHD_TELEMETRY_METRICS_PORT>/metrics
//
// The endpoint is not served by the Gin router, so dashboard users never see it.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /dashboard/jemaat/*path)
// rather than the raw URL. Access decision metrics are labelled by guard, outcome and
// reason, all drawn from small fixed sets; the requested path is deliberately not a
// label and goes to the access audit trail instead.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Request rate:   rate(http_requests_total[5m])
//   - p99 latency:    histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Access control metrics.
//
// AccessDecisionsTotal is incremented once per guard decision. guard is one of
// "route", "pic", "check"; outcome is "granted" or "denied"; reason is the
// evaluator's decision reason (admin, role, pic, no_rule, role_mismatch, ...).
//
// Example PromQL queries:
//   - Denials by reason:  sum by (reason) (rate(access_decisions_total{outcome="denied"}[1h]))
//   - PIC guard refusals: increase(access_decisions_total{guard="pic",outcome="denied"}[1d])
//
// SessionLoadFailuresTotal counts cookies that were present but discarded, by reason
// (decrypt, decode, expired). A spike in "decrypt" after a deploy usually means the
// session secret changed.
var (
	AccessDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Total number of access decisions, by guard, outcome, and reason.",
		},
		[]string{"guard", "outcome", "reason"},
	)

	SessionLoadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_load_failures_total",
			Help: "Total number of session cookies discarded while loading, by reason.",
		},
		[]string{"reason"},
	)
)

// LoginAttemptsTotal counts login and password-setup attempts, by outcome
// (success, invalid_credentials, backend_error, rate_limited, bad_request).
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// AuditShipErrorsTotal counts access audit entries that could not be persisted or
// shipped to an external sink.
var AuditShipErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "audit_ship_errors_total",
		Help: "Total number of access audit entries that failed to persist or ship.",
	},
)

// DBOpenConnections tracks open connections in the audit database pool. It is sampled
// by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// RecordDecision increments AccessDecisionsTotal.
func RecordDecision(guard string, granted bool, reason string) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	AccessDecisionsTotal.WithLabelValues(guard, outcome, reason).Inc()
}

// StartDBStatsCollector samples the pool every interval until ctx is done or the
// database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
