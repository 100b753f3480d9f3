// Package metrics holds the Prometheus collectors the service exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ScanOutcomes      *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	CredentialsIssued prometheus.Counter
	CredentialsSwept  prometheus.Counter
	RateLimited       prometheus.Counter
	AuditPublishFails prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScanOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "scan_outcomes_total",
			Help:      "Scan validations by outcome.",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qrattend",
			Name:      "scan_duration_seconds",
			Help:      "Time spent validating a scan.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		CredentialsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "credentials_issued_total",
			Help:      "Credentials issued.",
		}),
		CredentialsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "credentials_swept_total",
			Help:      "Expired credentials reclaimed by the sweeper.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		AuditPublishFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "audit_publish_failures_total",
			Help:      "Scan audit events that could not be queued.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ScanOutcomes, m.ScanDuration, m.CredentialsIssued,
			m.CredentialsSwept, m.RateLimited, m.AuditPublishFails)
	}
	return m
}

func (m *Metrics) ObserveScan(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ScanOutcomes.WithLabelValues(outcome).Inc()
	m.ScanDuration.Observe(took.Seconds())
}

func (m *Metrics) IncIssued() {
	if m == nil {
		return
	}
	m.CredentialsIssued.Inc()
}

func (m *Metrics) AddSwept(n int) {
	if m == nil {
		return
	}
	m.CredentialsSwept.Add(float64(n))
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) IncAuditPublishFail() {
	if m == nil {
		return
	}
	m.AuditPublishFails.Inc()
}
