// Package metrics exposes Prometheus collectors for HTTP traffic and provider calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	RecordsPersistedTotal *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisage_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrisage_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		ProviderCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisage_provider_calls_total",
			Help: "Total number of generative-AI provider calls",
		}, []string{"provider", "operation", "status"}),
		ProviderCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrisage_provider_call_duration_seconds",
			Help:    "Duration of generative-AI provider calls in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "operation"}),
		RecordsPersistedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisage_records_persisted_total",
			Help: "Rows written per table, by outcome",
		}, []string{"table", "status"}),
	}
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordProviderCall(provider, operation string, err error, d time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(provider, operation, outcome(err)).Inc()
	m.ProviderCallDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

func (m *Metrics) RecordPersist(table string, err error) {
	m.RecordsPersistedTotal.WithLabelValues(table, outcome(err)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
