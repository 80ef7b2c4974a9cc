// Package metrics exposes Galois's Prometheus instrumentation: a
// small fixed set of counters, gauges and histograms describing the
// sequencer's hot path, served over HTTP by promhttp the way the
// reference material in this pack's examples wires it up.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every metric Galois records, constructed once at
// startup and passed by reference into the components that record to
// it — no package-level globals, matching the rest of the codebase.
type Registry struct {
	CommandsAccepted *prometheus.CounterVec
	CommandsRejected *prometheus.CounterVec

	QueueDepth prometheus.Gauge

	CommandLatency *prometheus.HistogramVec

	SnapshotsTaken prometheus.Counter
	SnapshotBytes  prometheus.Histogram
}

// NewRegistry constructs and registers every metric against its own
// fresh prometheus.Registry, so tests never collide with a process's
// real default registry.
func NewRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		CommandsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "galois",
			Name:      "commands_accepted_total",
			Help:      "Commands accepted and applied, by command kind.",
		}, []string{"kind"}),

		CommandsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "galois",
			Name:      "commands_rejected_total",
			Help:      "Commands rejected without mutating state, by reason.",
		}, []string{"reason"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "galois",
			Name:      "ingress_queue_depth",
			Help:      "Commands currently buffered in the ingress queue.",
		}),

		CommandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "galois",
			Name:      "command_latency_seconds",
			Help:      "Wall time from Submit call to Result return, by command kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		SnapshotsTaken: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "galois",
			Name:      "snapshots_taken_total",
			Help:      "Full-state snapshots persisted.",
		}),

		SnapshotBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "galois",
			Name:      "snapshot_bytes",
			Help:      "Encoded size of each persisted snapshot.",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 10),
		}),
	}, reg
}

// Handler returns the HTTP handler a process mounts at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
