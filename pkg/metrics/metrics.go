// Package metrics implements a small Prometheus text-format registry covering
// the counters, gauges, and histograms the query and ingest services expose.
// Label pairs are baked into the series name with WithLabels, so every label
// combination is a distinct series under one family.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets suit request and pipeline latencies, in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter only goes up.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Add(n int64)  { c.n.Add(n) }
func (c *Counter) Value() int64 { return c.n.Load() }

// Gauge goes up and down.
type Gauge struct{ n atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.n.Store(n) }
func (g *Gauge) Inc()         { g.n.Add(1) }
func (g *Gauge) Dec()         { g.n.Add(-1) }
func (g *Gauge) Value() int64 { return g.n.Load() }

// Histogram counts observations into fixed buckets. Each observation lands in
// the first bucket it fits; Render accumulates the cumulative counts the
// exposition format wants.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	total  uint64
}

func newHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)
	return &Histogram{bounds: b, counts: make([]uint64, len(b))}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.total++
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
			break
		}
	}
	h.mu.Unlock()
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) snapshot() (bounds []float64, counts []uint64, sum float64, total uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts = make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return h.bounds, counts, h.sum, h.total
}

// series is one label combination of a family. Exactly one field is set,
// matching the family type.
type series struct {
	c *Counter
	g *Gauge
	h *Histogram
}

// family groups every label combination registered under one metric name.
type family struct {
	typ    string // "counter", "gauge", "histogram"
	help   string
	series map[string]*series
}

// Registry holds metric families in first-registration order.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*family
	order    []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

func (r *Registry) family(base, typ, help string) *family {
	f, ok := r.families[base]
	if !ok {
		f = &family{typ: typ, series: make(map[string]*series)}
		r.families[base] = f
		r.order = append(r.order, base)
	}
	if help != "" && f.help == "" {
		f.help = help
	}
	return f
}

// Counter returns the counter registered under name, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(baseName(name), "counter", help)
	if s, ok := f.series[name]; ok && s.c != nil {
		return s.c
	}
	c := &Counter{}
	f.series[name] = &series{c: c}
	return c
}

// Gauge returns the gauge registered under name, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(baseName(name), "gauge", help)
	if s, ok := f.series[name]; ok && s.g != nil {
		return s.g
	}
	g := &Gauge{}
	f.series[name] = &series{g: g}
	return g
}

// Histogram returns the histogram registered under name, creating it with the
// given bucket bounds on first use. Nil buckets means DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(baseName(name), "histogram", help)
	if s, ok := f.series[name]; ok && s.h != nil {
		return s.h
	}
	h := newHistogram(buckets)
	f.series[name] = &series{h: h}
	return h
}

// WithLabels appends label pairs to a metric name, e.g.
// WithLabels("foo", "k", "v") => `foo{k="v"}`.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kvs[i])
		b.WriteString(`="`)
		b.WriteString(kvs[i+1])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// baseName strips the label suffix from a series name.
func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i >= 0 {
		return name[:i]
	}
	return name
}

// labelsOf returns the inner label text of a series name, without braces.
func labelsOf(name string) string {
	i := strings.IndexByte(name, '{')
	if i < 0 {
		return ""
	}
	return name[i+1 : len(name)-1]
}

// Render returns every family in the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, f.typ)

		names := make([]string, 0, len(f.series))
		for n := range f.series {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, n := range names {
			s := f.series[n]
			switch {
			case s.c != nil:
				fmt.Fprintf(&b, "%s %d\n", n, s.c.Value())
			case s.g != nil:
				fmt.Fprintf(&b, "%s %d\n", n, s.g.Value())
			case s.h != nil:
				renderHistogram(&b, base, labelsOf(n), s.h)
			}
		}
	}
	return b.String()
}

func renderHistogram(b *strings.Builder, base, labels string, h *Histogram) {
	bounds, counts, sum, total := h.snapshot()
	var cum uint64
	for i, bound := range bounds {
		cum += counts[i]
		fmt.Fprintf(b, "%s_bucket{%s} %d\n", base, joinLabels(fmt.Sprintf(`le="%g"`, bound), labels), cum)
	}
	fmt.Fprintf(b, "%s_bucket{%s} %d\n", base, joinLabels(`le="+Inf"`, labels), total)
	if labels == "" {
		fmt.Fprintf(b, "%s_sum %g\n", base, sum)
		fmt.Fprintf(b, "%s_count %d\n", base, total)
	} else {
		fmt.Fprintf(b, "%s_sum{%s} %g\n", base, labels, sum)
		fmt.Fprintf(b, "%s_count{%s} %d\n", base, labels, total)
	}
}

func joinLabels(first, rest string) string {
	if rest == "" {
		return first
	}
	return first + "," + rest
}

// Handler serves the registry in the text exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve blocks serving /metrics on the given port.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync runs Serve in a goroutine, logging a failure instead of
// returning it.
func (r *Registry) ServeAsync(port int, log *slog.Logger) {
	go func() {
		if err := r.Serve(port); err != nil {
			log.Error("metrics server stopped", "port", port, "error", err)
		}
	}()
}
