// Package metrics provides minimal labeled counters and histograms for the
// pipeline's hot paths, exposed via a text exposition format a low-priority
// flusher can write out periodically.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing labeled counter.
type Counter struct {
	mu     sync.Mutex
	totals map[string]*atomic.Uint64
}

// NewCounter builds an empty counter.
func NewCounter() *Counter {
	return &Counter{totals: make(map[string]*atomic.Uint64)}
}

// Add increments the counter for label by delta.
func (c *Counter) Add(label string, delta uint64) {
	c.mu.Lock()
	v, ok := c.totals[label]
	if !ok {
		v = &atomic.Uint64{}
		c.totals[label] = v
	}
	c.mu.Unlock()
	v.Add(delta)
}

// Value returns the current total for label.
func (c *Counter) Value(label string) uint64 {
	c.mu.Lock()
	v, ok := c.totals[label]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	return v.Load()
}

// Snapshot returns a stable copy of all labels and their current totals.
// The returned map is unordered; Expose sorts the labels itself.
func (c *Counter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.totals))
	for k, v := range c.totals {
		out[k] = v.Load()
	}
	return out
}

// Histogram accumulates count/sum pairs per label, enough to derive a mean;
// it deliberately avoids bucketing to keep the hot path allocation-free.
type Histogram struct {
	mu    sync.Mutex
	count map[string]uint64
	sum   map[string]float64
}

// NewHistogram builds an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{count: make(map[string]uint64), sum: make(map[string]float64)}
}

// Observe records one sample of value under label.
func (h *Histogram) Observe(label string, value float64) {
	h.mu.Lock()
	h.count[label]++
	h.sum[label] += value
	h.mu.Unlock()
}

// Mean returns the running mean for label, or 0 if no samples were
// recorded.
func (h *Histogram) Mean(label string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.count[label]
	if c == 0 {
		return 0
	}
	return h.sum[label] / float64(c)
}

// Registry bundles the named counters/histograms a single process exposes.
type Registry struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
	}
}

// CounterFor returns (creating if needed) the named counter.
func (r *Registry) CounterFor(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[name]
	if !ok {
		c = NewCounter()
		r.counters[name] = c
	}
	return c
}

// HistogramFor returns (creating if needed) the named histogram.
func (r *Registry) HistogramFor(name string) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histograms[name]
	if !ok {
		h = NewHistogram()
		r.histograms[name] = h
	}
	return h
}

// Expose renders every registered counter/histogram as a flat text
// exposition, one metric per line, sorted by name for stable output.
func (r *Registry) Expose() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		labels := r.counters[name].Snapshot()
		lnames := make([]string, 0, len(labels))
		for l := range labels {
			lnames = append(lnames, l)
		}
		sort.Strings(lnames)
		for _, l := range lnames {
			fmt.Fprintf(&b, "%s{reason=%q} %d\n", name, l, labels[l])
		}
	}

	hnames := make([]string, 0, len(r.histograms))
	for name := range r.histograms {
		hnames = append(hnames, name)
	}
	sort.Strings(hnames)
	for _, name := range hnames {
		h := r.histograms[name]
		h.mu.Lock()
		labels := make([]string, 0, len(h.count))
		for l := range h.count {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(&b, "%s_mean{label=%q} %g\n", name, l, h.sum[l]/float64(h.count[l]))
		}
		h.mu.Unlock()
	}
	return b.String()
}
