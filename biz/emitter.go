// Package biz holds the netvine pipeline: the capture Worker producing
// events, the Emitter folding them into the topology graph, and the output
// plugins receiving snapshots.
package biz

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vearne/netvine/filter"
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/metrics"
	"github.com/vearne/netvine/model"
	slog "github.com/vearne/simplelog"
)

const defaultFlushInterval = time.Second

// Emitter is the single consumer of a Worker's events. It owns the graph
// model and pushes a snapshot to every output whenever the graph changed.
type Emitter struct {
	plugins     *InOutPlugins
	filterChain filter.Filter
	limiter     Limiter
	model       *graph.Model
	metrics     *metrics.Registry

	// changes held back by the limiter are flushed on this tick
	flushInterval time.Duration
	pending       bool
}

// NewEmitter creates an Emitter writing to plugins.Outputs. f and lim may be
// nil: every record is kept and every change is rendered.
func NewEmitter(plugins *InOutPlugins, f filter.Filter, lim Limiter) *Emitter {
	return &Emitter{
		plugins:       plugins,
		filterChain:   f,
		limiter:       lim,
		model:         graph.NewModel(),
		metrics:       metrics.DefaultRegistry(),
		flushInterval: defaultFlushInterval,
	}
}

// Model is the graph being built. Only Run mutates it.
func (e *Emitter) Model() *graph.Model {
	return e.model
}

// Run consumes events until the Terminated event, and returns its reason.
// It returns ctx.Err() when ctx is cancelled first.
func (e *Emitter) Run(ctx context.Context, events <-chan model.Event) error {
	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.flush()
			return ctx.Err()
		case <-ticker.C:
			e.flush()
		case ev, ok := <-events:
			if !ok {
				e.flush()
				return nil
			}
			switch ev.Kind {
			case model.PacketArrived:
				slog.Debug("[EMITTER] %v", ev.Record)
				if e.filterChain != nil && !e.filterChain.Filter(ev.Record) {
					e.metrics.PacketsFiltered.Inc()
					continue
				}
				if !e.model.Ingest(ev.Record) {
					continue
				}
				e.pending = true
				if e.limiter == nil || e.limiter.Allow() {
					e.flush()
				}
			case model.Terminated:
				e.flush()
				if ev.Reason != nil {
					slog.Error("[EMITTER] capture terminated:%v", ev.Reason)
				} else {
					slog.Info("[EMITTER] capture stopped")
				}
				return ev.Reason
			}
		}
	}
}

// flush renders the model if it changed since the last flush.
func (e *Emitter) flush() {
	if !e.pending {
		return
	}
	e.pending = false

	snap := e.model.Snapshot()
	e.metrics.GraphNodes.Set(float64(snap.NodeCount()))
	e.metrics.GraphEdges.Set(float64(snap.EdgeCount()))

	for _, dst := range e.plugins.Outputs {
		name := pluginName(dst)
		if err := dst.PluginWrite(snap); err != nil {
			e.metrics.SinkErrors.WithLabelValues(name).Inc()
			slog.Error("[EMITTER] %s.PluginWrite:%v", name, err)
			continue
		}
		e.metrics.SnapshotsRendered.WithLabelValues(name).Inc()
	}
}

// Close closes every plugin implementing io.Closer.
func (e *Emitter) Close() {
	for _, p := range e.plugins.All {
		if cp, ok := p.(io.Closer); ok {
			if err := cp.Close(); err != nil {
				slog.Error("[EMITTER] close %s:%v", pluginName(p), err)
			}
		}
	}
	e.plugins.All = nil // avoid Close to make changes again
}

func pluginName(p interface{}) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}
