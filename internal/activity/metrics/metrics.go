package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for activity capture.
type Metrics struct {
	EventsCaptured *prometheus.CounterVec
	EventsRecorded *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	WriteFailures  prometheus.Counter
	QueueDepth     prometheus.Gauge
	WriteLatency   prometheus.Histogram
	GeoLookups     *prometheus.CounterVec
	ExportedRows   prometheus.Counter
}

// New registers collectors on the default registry. Call it once per process.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers collectors on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reloop_activity_events_captured_total",
			Help: "Requests classified into an activity and handed to the recorder, labeled by action",
		}, []string{"action"}),
		EventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reloop_activity_events_recorded_total",
			Help: "Activity events persisted, labeled by outcome",
		}, []string{"outcome"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "reloop_activity_events_dropped_total",
			Help: "Activity events dropped because the recorder queue was full or closed",
		}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "reloop_activity_write_failures_total",
			Help: "Activity events that failed to persist",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reloop_activity_queue_depth",
			Help: "Activity events waiting in the recorder queue",
		}),
		WriteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reloop_activity_write_latency_seconds",
			Help:    "Latency of activity store writes in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		GeoLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reloop_activity_geo_lookups_total",
			Help: "Geolocation lookups, labeled by result (hit, miss, error, rejected)",
		}, []string{"result"}),
		ExportedRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "reloop_activity_exported_rows_total",
			Help: "Activity rows written to CSV exports",
		}),
	}
}

func (m *Metrics) IncCaptured(action string) {
	if m == nil {
		return
	}
	m.EventsCaptured.WithLabelValues(action).Inc()
}

func (m *Metrics) IncRecorded(outcome string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) IncWriteFailures() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) ObserveWriteLatency(seconds float64) {
	if m == nil {
		return
	}
	m.WriteLatency.Observe(seconds)
}

func (m *Metrics) IncGeoLookup(result string) {
	if m == nil {
		return
	}
	m.GeoLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AddExportedRows(n int) {
	if m == nil {
		return
	}
	m.ExportedRows.Add(float64(n))
}
