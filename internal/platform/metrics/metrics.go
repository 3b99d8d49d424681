package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ChecksAllowed *prometheus.CounterVec
	ChecksDenied  prometheus.Counter
	CheckLatency  prometheus.Histogram

	GrantsRequested prometheus.Counter
	GrantsActivated prometheus.Counter
	GrantsRevoked   prometheus.Counter
	GrantsExpired   prometheus.Counter
	ActiveGrants    prometheus.Gauge

	ApprovalDecisions *prometheus.CounterVec

	SweepRuns     prometheus.Counter
	SweepFailures prometheus.Counter

	LoginSuccesses prometheus.Counter
	LoginFailures  prometheus.Counter

	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ChecksAllowed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wardgate_checks_allowed_total",
			Help: "Total number of permission checks that were allowed, labeled by satisfying source",
		}, []string{"source"}),
		ChecksDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_checks_denied_total",
			Help: "Total number of permission checks that were denied",
		}),
		CheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardgate_check_latency_seconds",
			Help:    "Latency of permission resolution in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		GrantsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_grants_requested_total",
			Help: "Total number of temporary grant requests",
		}),
		GrantsActivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_grants_activated_total",
			Help: "Total number of temporary grants activated after approval",
		}),
		GrantsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_grants_revoked_total",
			Help: "Total number of temporary grants revoked by an administrator",
		}),
		GrantsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_grants_expired_total",
			Help: "Total number of temporary grants expired by the sweeper",
		}),
		ActiveGrants: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wardgate_active_grants",
			Help: "Current number of ACTIVE temporary grants",
		}),
		ApprovalDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wardgate_approval_decisions_total",
			Help: "Total number of approval decisions recorded, labeled by decision",
		}, []string{"decision"}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_sweep_runs_total",
			Help: "Total number of expiry sweep passes",
		}),
		SweepFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_sweep_failures_total",
			Help: "Total number of expiry sweep passes that reported errors",
		}),
		LoginSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_login_successes_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wardgate_login_failures_total",
			Help: "Total number of failed logins",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wardgate_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) IncrementChecksAllowed(source string) {
	m.ChecksAllowed.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementChecksDenied() {
	m.ChecksDenied.Inc()
}

// ObserveCheckLatency records the latency of a permission resolution.
func (m *Metrics) ObserveCheckLatency(durationSeconds float64) {
	m.CheckLatency.Observe(durationSeconds)
}

func (m *Metrics) IncrementGrantsRequested() {
	m.GrantsRequested.Inc()
}

func (m *Metrics) IncrementGrantsActivated() {
	m.GrantsActivated.Inc()
	m.ActiveGrants.Inc()
}

func (m *Metrics) IncrementGrantsRevoked() {
	m.GrantsRevoked.Inc()
	m.ActiveGrants.Dec()
}

func (m *Metrics) IncrementGrantsExpired(count int) {
	m.GrantsExpired.Add(float64(count))
	m.ActiveGrants.Sub(float64(count))
}

func (m *Metrics) IncrementApprovalDecisions(decision string) {
	m.ApprovalDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementSweepRuns() {
	m.SweepRuns.Inc()
}

func (m *Metrics) IncrementSweepFailures() {
	m.SweepFailures.Inc()
}

func (m *Metrics) IncrementLoginSuccesses() {
	m.LoginSuccesses.Inc()
}

func (m *Metrics) IncrementLoginFailures() {
	m.LoginFailures.Inc()
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
