package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process-wide collectors that do not belong to one module.
type Metrics struct {
	BuildInfo        *prometheus.GaugeVec
	ConfigReloads    *prometheus.CounterVec
	DependencyStatus *prometheus.GaugeVec
}

// New creates and registers process-wide metrics.
func New() *Metrics {
	return &Metrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthlink_build_info",
			Help: "Build information; constant 1 labelled with version and environment",
		}, []string{"version", "environment"}),
		ConfigReloads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthlink_config_reloads_total",
			Help: "Configuration reloads triggered by SIGHUP, by outcome",
		}, []string{"outcome"}),
		DependencyStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthlink_dependency_up",
			Help: "Whether an optional dependency was reachable at startup (1) or not (0)",
		}, []string{"dependency"}),
	}
}

func (m *Metrics) SetBuildInfo(version, environment string) {
	if m == nil {
		return
	}
	m.BuildInfo.WithLabelValues(version, environment).Set(1)
}

func (m *Metrics) IncrementConfigReload(outcome string) {
	if m == nil {
		return
	}
	m.ConfigReloads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetDependencyUp(dependency string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.DependencyStatus.WithLabelValues(dependency).Set(v)
}

// Router exposes /metrics on its own listener, away from the authenticated API.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return r
}
