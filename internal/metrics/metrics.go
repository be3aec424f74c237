// Package metrics holds the Prometheus collectors shared by the HTTP server
// and the managers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry and the collectors registered on it. A nil
// *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	operations      *prometheus.HistogramVec
	operationErrors *prometheus.CounterVec
}

// New registers the RackLedger collectors plus the Go and process
// collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rackledger_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rackledger_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rackledger_manager_operation_duration_seconds",
			Help:    "Manager operation latency by resource kind and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "op"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rackledger_manager_operation_errors_total",
			Help: "Failed manager operations by resource kind and operation.",
		}, []string{"kind", "op"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests, r.requestDuration, r.operations, r.operationErrors,
	)
	return r
}

// ObserveRequest records one served HTTP request.
func (r *Recorder) ObserveRequest(method, route string, code int, d time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveOperation records one manager call.
func (r *Recorder) ObserveOperation(kind, op string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(kind, op).Observe(d.Seconds())
	if err != nil {
		r.operationErrors.WithLabelValues(kind, op).Inc()
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the Prometheus HTTP handler for /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
