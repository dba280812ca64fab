package workers

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes worker and pipeline counters for the /metrics endpoint.
type Metrics struct {
	MeetingsProcessedTotal *prometheus.CounterVec
	ProcessingSeconds      *prometheus.HistogramVec
	QueueDepth             prometheus.Gauge
	StaleRecoveriesTotal   prometheus.Counter
}

// NewMetrics registers the worker metric set with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MeetingsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dicta",
				Subsystem: "worker",
				Name:      "meetings_processed_total",
				Help:      "Meetings processed, by outcome.",
			},
			[]string{"outcome"},
		),
		ProcessingSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dicta",
				Subsystem: "worker",
				Name:      "processing_seconds",
				Help:      "Wall time of one pipeline run.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"outcome"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dicta",
				Subsystem: "worker",
				Name:      "queue_depth",
				Help:      "Ready messages on the processing queue.",
			},
		),
		StaleRecoveriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dicta",
				Subsystem: "worker",
				Name:      "stale_recoveries_total",
				Help:      "Stale-message recovery sweeps executed.",
			},
		),
	}

	reg.MustRegister(m.MeetingsProcessedTotal, m.ProcessingSeconds, m.QueueDepth, m.StaleRecoveriesTotal)
	return m
}

// NewNopMetrics returns a metric set on a private registry, for tests.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
