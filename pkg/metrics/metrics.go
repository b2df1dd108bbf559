package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	Registry *prometheus.Registry

	// Import pipeline
	Imports    *prometheus.CounterVec
	ImportRows *prometheus.CounterVec

	// Export
	Exports *prometheus.CounterVec

	// Notifications
	SMSDispatched   *prometheus.CounterVec
	SMSLatency      prometheus.Histogram
	CircuitState    *prometheus.GaugeVec
	EventsPublished *prometheus.CounterVec
}

// New creates a registry with the process collectors and all application metrics
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Total number of patient file imports",
		}, []string{"format", "status"}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Imported rows by outcome",
		}, []string{"outcome"}),
		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of patient exports",
		}, []string{"format", "status"}),
		SMSDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_dispatched_total",
			Help:      "SMS dispatch attempts by provider and status",
		}, []string{"provider", "status"}),
		SMSLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sms_dispatch_duration_seconds",
			Help:      "Duration of SMS dispatch calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 while the named circuit breaker is open or half-open",
		}, []string{"name"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published by topic and status",
		}, []string{"topic", "status"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveImport records one import and its row outcomes. Nil-safe.
func (m *Metrics) ObserveImport(format string, dropped, persisted, failed int, err error) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(format, status(err)).Inc()
	m.ImportRows.WithLabelValues("dropped").Add(float64(dropped))
	m.ImportRows.WithLabelValues("persisted").Add(float64(persisted))
	m.ImportRows.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveExport(format string, err error) {
	if m == nil {
		return
	}
	m.Exports.WithLabelValues(format, status(err)).Inc()
}

func (m *Metrics) ObserveSMS(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.SMSDispatched.WithLabelValues(provider, status(err)).Inc()
	m.SMSLatency.Observe(seconds)
}

func (m *Metrics) ObserveEvent(topic string, err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(topic, status(err)).Inc()
}

// SetCircuitOpen is shaped to plug into circuitbreaker.Settings.OnStateChange via a closure.
func (m *Metrics) SetCircuitOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitState.WithLabelValues(name).Set(v)
}
