// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports engine statistics to Prometheus. Counters and gauges
// are read from Engine.Stats at scrape time; frame durations are observed
// as frames finish.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(framegraph.NewCollector(engine))
//
// WithMetrics does the registration as part of NewEngine.
type Collector struct {
	engine *Engine

	frameSeconds prometheus.Histogram

	frames           *prometheus.Desc
	nodeFailures     *prometheus.Desc
	poolEntries      *prometheus.Desc
	poolBytes        *prometheus.Desc
	poolBudget       *prometheus.Desc
	poolAllocations  *prometheus.Desc
	poolReuses       *prometheus.Desc
	poolEvictions    *prometheus.Desc
	pipelineEntries  *prometheus.Desc
	pipelineRequests *prometheus.Desc
	pipelineCompiles *prometheus.Desc
	pipelineFallback *prometheus.Desc
}

// NewCollector creates a collector for e and attaches it so that rendered
// frames feed its duration histogram.
func NewCollector(e *Engine) *Collector {
	c := &Collector{
		engine: e,
		frameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "framegraph_frame_duration_seconds",
			Help:    "CPU time spent in Render for presented frames",
			Buckets: []float64{.001, .002, .004, .008, .016, .033, .066, .1, .25},
		}),
		frames: prometheus.NewDesc("framegraph_frames_total",
			"Frames by outcome", []string{"result"}, nil),
		nodeFailures: prometheus.NewDesc("framegraph_node_failures_total",
			"Render nodes skipped after an error or panic", []string{"stage", "phase"}, nil),
		poolEntries: prometheus.NewDesc("framegraph_pool_entries",
			"Pooled transient resources by state", []string{"state"}, nil),
		poolBytes: prometheus.NewDesc("framegraph_pool_bytes",
			"Estimated bytes held by the transient pool", nil, nil),
		poolBudget: prometheus.NewDesc("framegraph_pool_budget_bytes",
			"Soft memory budget of the transient pool, 0 when unlimited", nil, nil),
		poolAllocations: prometheus.NewDesc("framegraph_pool_allocations_total",
			"GPU resources created by the transient pool", nil, nil),
		poolReuses: prometheus.NewDesc("framegraph_pool_reuses_total",
			"Acquire calls served from a free pooled entry", nil, nil),
		poolEvictions: prometheus.NewDesc("framegraph_pool_evictions_total",
			"Pooled resources destroyed for idleness or budget", nil, nil),
		pipelineEntries: prometheus.NewDesc("framegraph_pipeline_entries",
			"Cached pipeline permutations, fallbacks included", nil, nil),
		pipelineRequests: prometheus.NewDesc("framegraph_pipeline_requests_total",
			"Pipeline cache requests by result", []string{"result"}, nil),
		pipelineCompiles: prometheus.NewDesc("framegraph_pipeline_compiles_total",
			"Permutations compiled successfully", nil, nil),
		pipelineFallback: prometheus.NewDesc("framegraph_pipeline_fallbacks_total",
			"Permutations replaced by the fallback pipeline", nil, nil),
	}
	e.metrics.Store(c)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.frameSeconds.Describe(ch)
	for _, d := range []*prometheus.Desc{
		c.frames, c.nodeFailures,
		c.poolEntries, c.poolBytes, c.poolBudget,
		c.poolAllocations, c.poolReuses, c.poolEvictions,
		c.pipelineEntries, c.pipelineRequests, c.pipelineCompiles, c.pipelineFallback,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.frameSeconds.Collect(ch)

	s := c.engine.Stats()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.frames, s.Rendered, "rendered")
	counter(c.frames, s.Dropped, "dropped")
	for class, n := range s.NodeFailures {
		counter(c.nodeFailures, n, class.Stage.String(), class.Phase.String())
	}

	gauge(c.poolEntries, float64(s.Pool.Active), "active")
	gauge(c.poolEntries, float64(s.Pool.Free), "free")
	gauge(c.poolBytes, float64(s.Pool.Bytes))
	gauge(c.poolBudget, float64(s.Pool.Budget))
	counter(c.poolAllocations, s.Pool.Allocations)
	counter(c.poolReuses, s.Pool.Reuses)
	counter(c.poolEvictions, s.Pool.Evictions)

	gauge(c.pipelineEntries, float64(s.Pipelines.Entries))
	counter(c.pipelineRequests, s.Pipelines.Hits, "hit")
	counter(c.pipelineRequests, s.Pipelines.Misses, "miss")
	counter(c.pipelineCompiles, s.Pipelines.Compiles)
	counter(c.pipelineFallback, s.Pipelines.Fallbacks)
}

func (c *Collector) observeFrame(r *FrameReport) {
	c.frameSeconds.Observe(r.Duration.Seconds())
}

var _ prometheus.Collector = (*Collector)(nil)
