// Package metrics collects Prometheus metrics for remote service calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tasksync/internal/service"
)

// Recorder records the outcome of one remote call.
type Recorder interface {
	RecordCall(op string, err error, d time.Duration)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasksync_backend_calls_total",
			Help: "Remote service calls by operation.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasksync_backend_failures_total",
			Help: "Failed remote service calls by operation and error kind.",
		}, []string{"op", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tasksync_backend_call_duration_seconds",
			Help:    "Remote service call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(c.calls, c.failures, c.latency)
	return c
}

// RecordCall implements Recorder.
func (c *Collector) RecordCall(op string, err error, d time.Duration) {
	c.calls.WithLabelValues(op).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		c.failures.WithLabelValues(op, service.KindOf(err).String()).Inc()
	}
}

// Handler returns an HTTP handler serving /metrics from gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
