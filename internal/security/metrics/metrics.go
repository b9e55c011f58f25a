package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for security signal detection.
type Metrics struct {
	SignalsRaised       *prometheus.CounterVec
	RuleFailures        *prometheus.CounterVec
	EvaluationLatency   prometheus.Histogram
	NotifyFailures      prometheus.Counter
	SignalsAcknowledged prometheus.Counter
}

// New registers collectors on the default registry. Call it once per process.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignalsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reloop_security_signals_raised_total",
			Help: "Security signals raised, labeled by type and severity",
		}, []string{"type", "severity"}),
		RuleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reloop_security_rule_failures_total",
			Help: "Detector rule evaluations that errored or panicked, labeled by rule",
		}, []string{"rule"}),
		EvaluationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reloop_security_evaluation_latency_seconds",
			Help:    "Time to run every detector rule for one activity event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "reloop_security_notify_failures_total",
			Help: "Signals that could not be published to the notifier",
		}),
		SignalsAcknowledged: factory.NewCounter(prometheus.CounterOpts{
			Name: "reloop_security_signals_acknowledged_total",
			Help: "Signals moved from open to acknowledged",
		}),
	}
}

func (m *Metrics) IncSignalRaised(signalType, severity string) {
	if m == nil {
		return
	}
	m.SignalsRaised.WithLabelValues(signalType, severity).Inc()
}

func (m *Metrics) IncRuleFailure(rule string) {
	if m == nil {
		return
	}
	m.RuleFailures.WithLabelValues(rule).Inc()
}

func (m *Metrics) ObserveEvaluation(seconds float64) {
	if m == nil {
		return
	}
	m.EvaluationLatency.Observe(seconds)
}

func (m *Metrics) IncNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

func (m *Metrics) AddAcknowledged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SignalsAcknowledged.Add(float64(n))
}
