package demoapp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "example_app"

// Metrics holds the collectors exposed on /metrics. Each instance owns its
// registry, so servers in tests do not share counters.
type Metrics struct {
	registry *prometheus.Registry

	// Requests counts served requests by route template and status code.
	Requests *prometheus.CounterVec
	// SecretsLoaded is 1 when every required variable is present.
	SecretsLoaded prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"route", "code"},
		),
		SecretsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "secrets_loaded",
			Help:      "Required secret variables present (1=all present, 0=missing)",
		}),
	}
	m.registry.MustRegister(
		m.Requests,
		m.SecretsLoaded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) setSecretsLoaded(loaded bool) {
	if loaded {
		m.SecretsLoaded.Set(1)
		return
	}
	m.SecretsLoaded.Set(0)
}
