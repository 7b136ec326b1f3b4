package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecisionsTotal          *prometheus.CounterVec
	FlagTransitionsTotal    prometheus.Counter
	StoreErrorsTotal        *prometheus.CounterVec
	FailOpenTotal           prometheus.Counter
	ThrottledTotal          prometheus.Counter
	EvaluateDurationSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_gate_decisions_total",
			Help: "Total number of gate decisions by tier and outcome",
		}, []string{"tier", "outcome"}),
		FlagTransitionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_anomaly_flag_transitions_total",
			Help: "Total number of identities newly flagged by the anomaly detector",
		}),
		StoreErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_store_errors_total",
			Help: "Total number of counter store failures by subsystem",
		}, []string{"subsystem"}),
		FailOpenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_gate_fail_open_total",
			Help: "Total number of requests admitted because the counter store was unreachable",
		}),
		ThrottledTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_global_throttle_rejections_total",
			Help: "Total number of requests shed by the per-instance global throttle",
		}),
		EvaluateDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_gate_evaluate_duration_seconds",
			Help:    "Duration of gate evaluations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}

func (m *Metrics) RecordDecision(tier string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.DecisionsTotal.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) RecordFlagTransition() {
	m.FlagTransitionsTotal.Inc()
}

func (m *Metrics) RecordStoreError(subsystem string) {
	m.StoreErrorsTotal.WithLabelValues(subsystem).Inc()
}

func (m *Metrics) RecordFailOpen() {
	m.FailOpenTotal.Inc()
}

func (m *Metrics) RecordThrottled() {
	m.ThrottledTotal.Inc()
}

func (m *Metrics) ObserveEvaluateDuration(seconds float64) {
	m.EvaluateDurationSeconds.Observe(seconds)
}
