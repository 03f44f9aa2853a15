// Package metrics holds the Prometheus collectors shared by the gateways and services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fwmgr"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Registry owns its own Prometheus registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	ApplianceRequests *prometheus.CounterVec
	ApplianceLatency  *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	BlockOperations *prometheus.CounterVec
	BlockedEntries  prometheus.Gauge
	RateLimited     prometheus.Counter
}

// New creates a registry with process and Go runtime collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		ApplianceRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appliance_requests_total",
			Help:      "Requests sent to the firewall appliance API",
		}, []string{"endpoint", "outcome"}),
		ApplianceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "appliance_request_duration_seconds",
			Help:      "Latency of firewall appliance API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code",
		}, []string{"route", "method", "code"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		BlockOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_operations_total",
			Help:      "Block and unblock requests by result",
		}, []string{"op", "result"}),
		BlockedEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocked_entries",
			Help:      "Entries in the blocklist alias at the last read",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		}),
	}
}

// ObserveAppliance records one appliance call. A nil registry is a no-op.
func (r *Registry) ObserveAppliance(endpoint string, started time.Time, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.ApplianceRequests.WithLabelValues(endpoint, outcome).Inc()
	r.ApplianceLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

// ObserveBlock records a block or unblock result ("changed", "noop" or "error").
func (r *Registry) ObserveBlock(op, result string) {
	if r == nil {
		return
	}
	r.BlockOperations.WithLabelValues(op, result).Inc()
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
