// Package metrics exposes Prometheus collectors for the capture pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics of netvine
type Registry struct {
	PacketsCaptured  prometheus.Counter
	PacketsMalformed prometheus.Counter
	PacketsFiltered  prometheus.Counter

	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	SnapshotsRendered *prometheus.CounterVec
	SinkErrors        *prometheus.CounterVec

	WorkerState *prometheus.GaugeVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all collectors registered
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	factory := promauto.With(reg)

	r.PacketsCaptured = factory.NewCounter(prometheus.CounterOpts{
		Name: "netvine_packets_captured_total",
		Help: "Frames that yielded a packet record",
	})
	r.PacketsMalformed = factory.NewCounter(prometheus.CounterOpts{
		Name: "netvine_packets_malformed_total",
		Help: "Frames skipped because they carried no network-layer addressing",
	})
	r.PacketsFiltered = factory.NewCounter(prometheus.CounterOpts{
		Name: "netvine_packets_filtered_total",
		Help: "Records dropped by the address filters",
	})
	r.GraphNodes = factory.NewGauge(prometheus.GaugeOpts{
		Name: "netvine_graph_nodes",
		Help: "Endpoints in the topology graph",
	})
	r.GraphEdges = factory.NewGauge(prometheus.GaugeOpts{
		Name: "netvine_graph_edges",
		Help: "Communication edges in the topology graph",
	})
	r.SnapshotsRendered = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "netvine_snapshots_rendered_total",
		Help: "Snapshots handed to an output",
	}, []string{"output"})
	r.SinkErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "netvine_output_errors_total",
		Help: "Failed snapshot writes per output",
	}, []string{"output"})
	r.WorkerState = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netvine_worker_state",
		Help: "1 for the current capture worker state, 0 otherwise",
	}, []string{"state"})
	return r
}

// SetWorkerState flips the state gauge so exactly one label reads 1.
func (r *Registry) SetWorkerState(current string, all []string) {
	for _, s := range all {
		if s == current {
			r.WorkerState.WithLabelValues(s).Set(1)
		} else {
			r.WorkerState.WithLabelValues(s).Set(0)
		}
	}
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
