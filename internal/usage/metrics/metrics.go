package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the usage recorder.
type Metrics struct {
	Dropped       prometheus.Counter
	WriteFailures prometheus.Counter
	Written       prometheus.Counter
	QueueDepth    prometheus.Gauge
}

// New creates a new Metrics instance with all usage metrics registered.
func New() *Metrics {
	return &Metrics{
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthlink_usage_dropped_total",
			Help: "Usage hits dropped because the queue was full or closed",
		}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthlink_usage_write_failures_total",
			Help: "Daily counter upserts that failed",
		}),
		Written: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthlink_usage_written_total",
			Help: "Daily counter upserts that succeeded",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "healthlink_usage_queue_depth",
			Help: "Hits waiting to be written",
		}),
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) IncrementWriteFailure() {
	if m != nil {
		m.WriteFailures.Inc()
	}
}

func (m *Metrics) IncrementWritten() {
	if m != nil {
		m.Written.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
