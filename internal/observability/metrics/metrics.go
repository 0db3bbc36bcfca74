package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academyportal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "academyportal_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	identityFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "academyportal_identity_fetch_duration_seconds",
		Help:    "Duration of identity fetches issued by the session resolver",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	identityCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academyportal_identity_cache_lookups_total",
		Help: "Session resolver cache lookups by outcome",
	}, []string{"outcome"})

	guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academyportal_guard_decisions_total",
		Help: "Route guard decisions by area and decision",
	}, []string{"area", "decision"})

	edgeRedirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academyportal_edge_redirects_total",
		Help: "Requests bounced to login by the edge gate",
	}, []string{"reason"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academyportal_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "academyportal_active_sessions",
		Help: "Session records held by the in-memory store",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveIdentityFetch records the duration of an identity fetch with a result label.
func ObserveIdentityFetch(result string, duration time.Duration) {
	identityFetchDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveIdentityCache counts a resolver cache lookup (hit, stale, miss, failure).
func ObserveIdentityCache(outcome string) {
	identityCacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveGuardDecision counts a route guard decision.
func ObserveGuardDecision(area, decision string) {
	guardDecisions.WithLabelValues(area, decision).Inc()
}

// ObserveEdgeRedirect counts an edge gate redirect.
func ObserveEdgeRedirect(reason string) {
	edgeRedirects.WithLabelValues(reason).Inc()
}

// ObserveLogin counts a login attempt.
func ObserveLogin(result string) {
	logins.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the session gauge to a specific count.
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
