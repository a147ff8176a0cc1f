package engine

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the engine-internal counter/histogram set exposed by Stats
// (C8). Coarse counts go to Prometheus so operators can scrape them the
// usual way; per-op latency additionally feeds an HdrHistogram so
// Engine.Stats can render accurate percentile summaries
// (HdrHistogram's bucket error bound matters at the microsecond scale a
// single Get/Put call runs at, where a naive linear histogram would need
// an impractical number of buckets).
type Metrics struct {
	ops      *prometheus.CounterVec
	errs     *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	mu    sync.Mutex
	hdrs  map[string]*hdrhistogram.Histogram
}

// NewMetrics constructs a Metrics set and registers its Prometheus
// collectors with reg. Passing a fresh prometheus.NewRegistry() per Engine
// instance (rather than prometheus.DefaultRegisterer) keeps multiple
// engines in one process from colliding on metric names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ardb",
			Name:      "engine_ops_total",
			Help:      "Count of engine operations by op name.",
		}, []string{"op"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ardb",
			Name:      "engine_errors_total",
			Help:      "Count of engine operation failures by op name.",
		}, []string{"op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ardb",
			Name:      "engine_op_latency_seconds",
			Help:      "Per-op latency distribution.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
		}, []string{"op"}),
		hdrs: make(map[string]*hdrhistogram.Histogram),
	}
	reg.MustRegister(m.ops, m.errs, m.latency)
	return m
}

// Observe records one invocation of op that took d and whether it failed.
func (m *Metrics) Observe(op string, d time.Duration, err error) {
	m.ops.WithLabelValues(op).Inc()
	if err != nil {
		m.errs.WithLabelValues(op).Inc()
	}
	m.latency.WithLabelValues(op).Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hdrs[op]
	if !ok {
		// 1us floor, 10s ceiling, 3 significant digits — enough precision
		// for both a sub-millisecond Get and a multi-second Compact.
		h = hdrhistogram.New(1, 10_000_000, 3)
		m.hdrs[op] = h
	}
	_ = h.RecordValue(d.Microseconds())
}

// Percentiles returns the p50/p99/p999 latencies recorded for op, in
// microseconds. Returns zeros if op has never been observed.
func (m *Metrics) Percentiles(op string) (p50, p99, p999 int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hdrs[op]
	if !ok {
		return 0, 0, 0
	}
	return h.ValueAtQuantile(50), h.ValueAtQuantile(99), h.ValueAtQuantile(99.9)
}

// Ops returns every op name observed so far, for iterating in Stats/CLI
// output.
func (m *Metrics) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, 0, len(m.hdrs))
	for op := range m.hdrs {
		ops = append(ops, op)
	}
	return ops
}
