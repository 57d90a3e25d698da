package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	c := NewCollector()

	ctr := c.Counter("test_counter")
	ctr.Inc()
	ctr.Inc()
	ctr.Add(5)

	if ctr.Value() != 7 {
		t.Errorf("expected 7, got %d", ctr.Value())
	}
	if c.Counter("test_counter") != ctr {
		t.Error("same name should return the same counter")
	}
}

func TestCounter_Concurrent(t *testing.T) {
	ctr := &Counter{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ctr.Inc()
			}
		}()
	}
	wg.Wait()

	if ctr.Value() != 1000 {
		t.Errorf("expected 1000, got %d", ctr.Value())
	}
}

func TestGauge(t *testing.T) {
	g := NewCollector().Gauge("g")
	g.Set(2)
	g.Add(-0.5)
	if g.Value() != 1.5 {
		t.Errorf("expected 1.5, got %f", g.Value())
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram(100)
	for i := 1; i <= 100; i++ {
		h.Observe(float64(i))
	}

	st := h.Stats()
	if st.Count != 100 {
		t.Errorf("Count = %d, want 100", st.Count)
	}
	if st.Min != 1 || st.Max != 100 {
		t.Errorf("Min/Max = %v/%v, want 1/100", st.Min, st.Max)
	}
	if st.Sum != 5050 {
		t.Errorf("Sum = %v, want 5050", st.Sum)
	}
	if st.P50 != 50 {
		t.Errorf("P50 = %v, want 50", st.P50)
	}
}

func TestHistogram_Rotation(t *testing.T) {
	h := NewHistogram(3)
	for i := 1; i <= 5; i++ {
		h.Observe(float64(i))
	}

	st := h.Stats()
	if st.Min != 3 {
		t.Errorf("oldest values should rotate out, Min = %v", st.Min)
	}
	if st.Count != 5 {
		t.Errorf("Count keeps every observation, got %d", st.Count)
	}
}

func TestHistogram_Empty(t *testing.T) {
	st := NewHistogram(10).Stats()
	if st.Count != 0 || st.P99 != 0 {
		t.Errorf("empty histogram stats = %+v", st)
	}
}

func TestTimer(t *testing.T) {
	c := NewCollector()
	tm := c.StartTimer("op_seconds")
	time.Sleep(5 * time.Millisecond)
	d := tm.Stop()

	if d < 5*time.Millisecond {
		t.Errorf("duration %v too short", d)
	}
	if c.Histogram("op_seconds").Stats().Count != 1 {
		t.Error("timer should record one observation")
	}
}

func TestExportPrometheus(t *testing.T) {
	c := NewCollector()
	c.Describe("b_total", "B things.")
	c.Counter("b_total").Add(3)
	c.Counter("a_total").Inc()
	c.Gauge("g").Set(2)
	c.Histogram("h_seconds").Observe(0.5)

	out := c.ExportPrometheus()

	for _, want := range []string{
		"# TYPE a_total counter\na_total 1\n",
		"# HELP b_total B things.\n# TYPE b_total counter\nb_total 3\n",
		"# TYPE g gauge\ng 2\n",
		"# TYPE h_seconds summary\n",
		"h_seconds_count 1\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "a_total") > strings.Index(out, "b_total") {
		t.Error("counters should be sorted by name")
	}
}

func TestExportJSON(t *testing.T) {
	c := NewCollector()
	c.Counter("runs").Inc()

	data, err := c.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var parsed struct {
		Counters map[string]int64 `json:"counters"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Counters["runs"] != 1 {
		t.Errorf("runs = %d, want 1", parsed.Counters["runs"])
	}
}

func TestReset(t *testing.T) {
	c := NewCollector()
	old := c.Counter("x")
	old.Inc()

	c.Reset()

	if c.Counter("x").Value() != 0 {
		t.Error("counter should start from zero after Reset")
	}
	if c.Counter("x") == old {
		t.Error("Reset should detach previous handles")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	c := NewCollector()
	c.Counter(MetricRunsTotal).Inc()

	prom := filepath.Join(dir, "prgate.prom")
	if err := c.WriteFile(prom); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), MetricRunsTotal+" 1") {
		t.Errorf("unexpected prometheus file: %s", data)
	}

	js := filepath.Join(dir, "prgate.json")
	if err := c.WriteFile(js); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, _ = os.ReadFile(js)
	if !json.Valid(data) {
		t.Errorf("expected JSON file, got %s", data)
	}
}

func TestInitCurrent(t *testing.T) {
	first := Init()
	first.Counter(MetricRunsTotal).Inc()
	if Current() != first {
		t.Fatal("Current should return the collector installed by Init")
	}

	second := Init()
	if Current() != second {
		t.Fatal("Init should replace the process collector")
	}
	if second.Counter(MetricRunsTotal).Value() != 0 {
		t.Error("new collector should start from zero")
	}
	if !strings.Contains(second.ExportPrometheus(), "# HELP "+MetricRunsTotal) {
		t.Error("Init should describe gate metrics")
	}
}

func BenchmarkCounter_Inc(b *testing.B) {
	ctr := &Counter{}
	for i := 0; i < b.N; i++ {
		ctr.Inc()
	}
}

func BenchmarkHistogram_Observe(b *testing.B) {
	h := NewHistogram(1000)
	for i := 0; i < b.N; i++ {
		h.Observe(float64(i))
	}
}
