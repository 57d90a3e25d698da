// Package metrics collects gate counters and timings and exports them in the
// Prometheus text format or JSON.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// reservoirSize bounds how many observations a histogram keeps.
const reservoirSize = 1000

// Collector owns a set of named metrics.
type Collector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	help       map[string]string
	startTime  time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.Reset()
	return c
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up or down.
type Gauge struct {
	mu    sync.Mutex
	value float64
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Add adds v, which may be negative.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Histogram keeps the most recent observations plus an exact count and sum.
type Histogram struct {
	mu     sync.Mutex
	values []float64
	max    int
	count  int64
	sum    float64
}

// NewHistogram creates a histogram retaining up to maxValues observations.
func NewHistogram(maxValues int) *Histogram {
	if maxValues <= 0 {
		maxValues = reservoirSize
	}
	return &Histogram{values: make([]float64, 0, maxValues), max: maxValues}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.values) >= h.max {
		h.values = h.values[1:]
	}
	h.values = append(h.values, v)
	h.count++
	h.sum += v
}

// HistogramStats summarises a histogram.
type HistogramStats struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
}

// Stats returns the summary. Quantiles cover the retained window only.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := HistogramStats{Count: h.count, Sum: h.sum}
	n := len(h.values)
	if n == 0 {
		return st
	}

	sorted := make([]float64, n)
	copy(sorted, h.values)
	sort.Float64s(sorted)

	st.Min = sorted[0]
	st.Max = sorted[n-1]
	st.P50 = sorted[(n-1)*50/100]
	st.P90 = sorted[(n-1)*90/100]
	st.P99 = sorted[(n-1)*99/100]
	return st
}

// Timer measures a duration into a histogram of seconds.
type Timer struct {
	h     *Histogram
	start time.Time
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	t.h.Observe(d.Seconds())
	return d
}

// Describe attaches HELP text to a metric name.
func (c *Collector) Describe(name, help string) {
	c.mu.Lock()
	c.help[name] = help
	c.mu.Unlock()
}

// Counter returns or creates a counter.
func (c *Collector) Counter(name string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctr, ok := c.counters[name]; ok {
		return ctr
	}
	ctr := &Counter{}
	c.counters[name] = ctr
	return ctr
}

// Gauge returns or creates a gauge.
func (c *Collector) Gauge(name string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	c.gauges[name] = g
	return g
}

// Histogram returns or creates a histogram.
func (c *Collector) Histogram(name string) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.histograms[name]; ok {
		return h
	}
	h := NewHistogram(reservoirSize)
	c.histograms[name] = h
	return h
}

// StartTimer starts timing into the named histogram (in seconds).
func (c *Collector) StartTimer(name string) *Timer {
	return &Timer{h: c.Histogram(name), start: time.Now()}
}

// Uptime returns the time since the collector was created or last reset.
func (c *Collector) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}

// Reset drops every metric and restarts the uptime clock. Metric handles
// obtained before the reset are detached and no longer exported.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters = make(map[string]*Counter)
	c.gauges = make(map[string]*Gauge)
	c.histograms = make(map[string]*Histogram)
	c.help = make(map[string]string)
	c.startTime = time.Now()
}

// Export renders all metrics as indented JSON.
func (c *Collector) Export() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := struct {
		Uptime     string                    `json:"uptime"`
		Counters   map[string]int64          `json:"counters"`
		Gauges     map[string]float64        `json:"gauges"`
		Histograms map[string]HistogramStats `json:"histograms"`
	}{
		Uptime:     time.Since(c.startTime).String(),
		Counters:   make(map[string]int64, len(c.counters)),
		Gauges:     make(map[string]float64, len(c.gauges)),
		Histograms: make(map[string]HistogramStats, len(c.histograms)),
	}

	for name, ctr := range c.counters {
		out.Counters[name] = ctr.Value()
	}
	for name, g := range c.gauges {
		out.Gauges[name] = g.Value()
	}
	for name, h := range c.histograms {
		out.Histograms[name] = h.Stats()
	}

	return json.MarshalIndent(out, "", "  ")
}

// ExportPrometheus renders all metrics in the Prometheus text format, sorted
// by name. Histograms are exported as summaries.
func (c *Collector) ExportPrometheus() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder

	for _, name := range sortedKeys(c.counters) {
		c.writeHeader(&sb, name, "counter")
		fmt.Fprintf(&sb, "%s %d\n", name, c.counters[name].Value())
	}
	for _, name := range sortedKeys(c.gauges) {
		c.writeHeader(&sb, name, "gauge")
		fmt.Fprintf(&sb, "%s %g\n", name, c.gauges[name].Value())
	}
	for _, name := range sortedKeys(c.histograms) {
		st := c.histograms[name].Stats()
		c.writeHeader(&sb, name, "summary")
		fmt.Fprintf(&sb, "%s{quantile=\"0.5\"} %g\n", name, st.P50)
		fmt.Fprintf(&sb, "%s{quantile=\"0.9\"} %g\n", name, st.P90)
		fmt.Fprintf(&sb, "%s{quantile=\"0.99\"} %g\n", name, st.P99)
		fmt.Fprintf(&sb, "%s_sum %g\n", name, st.Sum)
		fmt.Fprintf(&sb, "%s_count %d\n", name, st.Count)
	}

	return sb.String()
}

func (c *Collector) writeHeader(sb *strings.Builder, name, kind string) {
	if help, ok := c.help[name]; ok {
		fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	}
	fmt.Fprintf(sb, "# TYPE %s %s\n", name, kind)
}

// WriteFile writes the metrics to path, JSON when the extension is .json and
// Prometheus text otherwise. The file is replaced atomically so a textfile
// collector never reads a partial write.
func (c *Collector) WriteFile(path string) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var err error
		if data, err = c.Export(); err != nil {
			return fmt.Errorf("encoding metrics: %w", err)
		}
	} else {
		data = []byte(c.ExportPrometheus())
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".prgate-metrics-*")
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing metrics file: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
