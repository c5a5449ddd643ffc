// Package metrics exposes Prometheus instrumentation shared by the
// transport, gateway, and handler. A single Metrics value is created at
// startup and handed to every component that records observations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the bot exports.
type Metrics struct {
	registry *prometheus.Registry

	// UpdatesReceived counts accepted updates by delivery mode.
	UpdatesReceived *prometheus.CounterVec

	// MalformedUpdates counts webhook payloads rejected with 400.
	MalformedUpdates prometheus.Counter

	// PollErrors counts failed getUpdates calls.
	PollErrors prometheus.Counter

	// HandlerErrors counts consumer failures. Never fatal.
	HandlerErrors prometheus.Counter
}

// New creates a Metrics with its own registry. queueDepth is sampled on
// every scrape and reports the current number of queued updates.
func New(queueDepth func() float64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		UpdatesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specbot_updates_received_total",
			Help: "Updates accepted into the queue, by delivery mode.",
		}, []string{"delivery"}),
		MalformedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "specbot_updates_malformed_total",
			Help: "Webhook payloads rejected as malformed.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "specbot_poll_errors_total",
			Help: "Failed getUpdates calls in polling mode.",
		}),
		HandlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "specbot_handler_errors_total",
			Help: "Update handler failures.",
		}),
	}

	reg.MustRegister(
		m.UpdatesReceived,
		m.MalformedUpdates,
		m.PollErrors,
		m.HandlerErrors,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "specbot_queue_depth",
			Help: "Updates currently waiting in the queue.",
		}, queueDepth),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
