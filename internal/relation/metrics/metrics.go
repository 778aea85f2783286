package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for relation resolution.
type Metrics struct {
	// Resolution outcomes by event type and outcome kind
	Outcomes *prometheus.CounterVec

	// Conflicting-identifier anomalies
	Conflicts prometheus.Counter

	// Time spent in Resolve, including both reads
	ResolveLatency prometheus.Histogram
}

// New creates a new Metrics instance with all relation metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthlink_relation_outcomes_total",
			Help: "Resolution outcomes by event type and result",
		}, []string{"tipo_evento", "outcome"}), // outcome: "matched", "no_relation", "conflict"

		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthlink_relation_conflicts_total",
			Help: "Requests whose identifiers resolved to more than one individual",
		}),

		ResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthlink_relation_resolve_duration_seconds",
			Help:    "Duration of identifier resolution",
			Buckets: []float64{0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementOutcome(eventType, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}
