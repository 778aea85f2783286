package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the API gate.
type Metrics struct {
	// Rejections by reason label
	Rejections *prometheus.CounterVec

	// Requests admitted, split by whether a signature was checked
	Admitted *prometheus.CounterVec

	// 1 while the replay guard is serving from its in-memory fallback
	ReplayDegraded prometheus.Gauge
}

// New creates a new Metrics instance with all gate metrics registered.
func New() *Metrics {
	return &Metrics{
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthlink_auth_rejections_total",
			Help: "Requests refused by the API gate, by reason",
		}, []string{"reason"}),

		Admitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthlink_auth_admitted_total",
			Help: "Requests admitted by the API gate, by verification mode",
		}, []string{"mode"}), // mode: "exempt", "api_key", "hmac"

		ReplayDegraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "healthlink_auth_replay_degraded",
			Help: "Whether the replay guard is using its in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementRejection(reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementAdmitted(mode string) {
	if m != nil {
		m.Admitted.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) SetReplayDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.ReplayDegraded.Set(1)
		return
	}
	m.ReplayDegraded.Set(0)
}
