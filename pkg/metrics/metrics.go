// Package metrics is a small Prometheus-text-format registry. Counters,
// gauges, and histograms, exposed over /metrics; no external collector
// dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// metric is anything the registry can render in exposition format.
type metric interface {
	describe() (name, typ, help string)
	expose(b *strings.Builder)
}

// Counter only goes up.
type Counter struct {
	name, help string
	val        atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

func (c *Counter) describe() (string, string, string) { return c.name, "counter", c.help }
func (c *Counter) expose(b *strings.Builder) {
	fmt.Fprintf(b, "%s %d\n", c.name, c.val.Load())
}

// Gauge goes up and down.
type Gauge struct {
	name, help string
	val        atomic.Int64
}

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

func (g *Gauge) describe() (string, string, string) { return g.name, "gauge", g.help }
func (g *Gauge) expose(b *strings.Builder) {
	fmt.Fprintf(b, "%s %d\n", g.name, g.val.Load())
}

// Histogram tracks a value distribution in fixed buckets.
type Histogram struct {
	name, help string

	mu      sync.Mutex
	bounds  []float64
	counts  []uint64
	sum     float64
	samples uint64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.samples++
	for i, bound := range h.bounds {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// Since observes the elapsed time since t, in seconds.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) describe() (string, string, string) { return h.name, "histogram", h.help }

// expose writes cumulative buckets, then sum and count.
func (h *Histogram) expose(b *strings.Builder) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var running uint64
	for i, bound := range h.bounds {
		running += h.counts[i]
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", h.name, bound, running)
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.samples)
	fmt.Fprintf(b, "%s_sum %g\n", h.name, h.sum)
	fmt.Fprintf(b, "%s_count %d\n", h.name, h.samples)
}

// Registry holds named metrics and renders them in the Prometheus text
// exposition format, in registration order.
type Registry struct {
	mu     sync.Mutex
	byName map[string]metric
	order  []metric
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]metric)}
}

// register returns the existing metric under name, or stores and returns
// the one built by mk.
func (r *Registry) register(name string, mk func() metric) metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byName[name]; ok {
		return m
	}
	m := mk()
	r.byName[name] = m
	r.order = append(r.order, m)
	return m
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	return r.register(name, func() metric {
		return &Counter{name: name, help: help}
	}).(*Counter)
}

// Gauge returns the named gauge, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	return r.register(name, func() metric {
		return &Gauge{name: name, help: help}
	}).(*Gauge)
}

// Histogram returns the named histogram, creating it on first use. A nil
// buckets slice uses DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return r.register(name, func() metric {
		bounds := make([]float64, len(buckets))
		copy(bounds, buckets)
		sort.Float64s(bounds)
		return &Histogram{
			name:   name,
			help:   help,
			bounds: bounds,
			counts: make([]uint64, len(bounds)),
		}
	}).(*Histogram)
}

// Render writes all metrics in exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	snapshot := make([]metric, len(r.order))
	copy(snapshot, r.order)
	r.mu.Unlock()

	var b strings.Builder
	for _, m := range snapshot {
		name, typ, help := m.describe()
		if help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, typ)
		m.expose(&b)
	}
	return b.String()
}

// Handler serves the registry at /metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
