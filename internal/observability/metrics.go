package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	requestCount *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
	errorCount   *prometheus.CounterVec
	importedRows *prometheus.CounterVec
	exportedRows *prometheus.CounterVec
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		importedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_import_rows_total",
			Help: "Confirmed import rows by entity and outcome.",
		}, []string{"entity", "outcome"}),
		exportedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_export_rows_total",
			Help: "Exported rows by entity and format.",
		}, []string{"entity", "format"}),
	}
	m.registry.MustRegister(m.requestCount, m.requestTime, m.errorCount, m.importedRows, m.exportedRows)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordImport counts confirmed rows per outcome.
func (m *Metrics) RecordImport(entity string, created, failed int) {
	if m == nil {
		return
	}
	m.importedRows.WithLabelValues(entity, "created").Add(float64(created))
	m.importedRows.WithLabelValues(entity, "failed").Add(float64(failed))
}

// RecordExport counts exported rows.
func (m *Metrics) RecordExport(entity, format string, rows int) {
	if m == nil {
		return
	}
	m.exportedRows.WithLabelValues(entity, format).Add(float64(rows))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
