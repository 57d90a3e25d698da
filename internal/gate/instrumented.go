package gate

import (
	"context"
	"time"

	"github.com/JNZader/prgate/internal/metrics"
	"github.com/JNZader/prgate/internal/rules"
)

// Runner runs a gate once.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// InstrumentedGate wraps a Runner with metrics collection.
type InstrumentedGate struct {
	gate      Runner
	collector *metrics.Collector
}

// NewInstrumentedGate creates a gate that records into collector.
func NewInstrumentedGate(gate Runner, collector *metrics.Collector) *InstrumentedGate {
	return &InstrumentedGate{
		gate:      gate,
		collector: collector,
	}
}

// Run executes the gate with metrics collection.
func (ig *InstrumentedGate) Run(ctx context.Context) (*Report, error) {
	ig.collector.Counter(metrics.MetricRunsTotal).Inc()

	timer := ig.collector.StartTimer(metrics.MetricRunDuration)
	defer timer.Stop()

	report, err := ig.gate.Run(ctx)
	if err != nil {
		ig.collector.Counter(metrics.MetricRunErrors).Inc()
		return report, err
	}

	ig.Record(report)
	return report, nil
}

// Record adds a report's outcome to the collector.
func (ig *InstrumentedGate) Record(report *Report) {
	c := ig.collector

	c.Counter(metrics.MetricRulesEvaluated).Add(int64(len(report.Rules)))
	c.Counter(metrics.MetricRuleFaults).Add(int64(len(report.Skipped)))
	c.Counter(metrics.MetricFindingsInfo).Add(int64(report.Count(rules.SeverityInfo)))
	c.Counter(metrics.MetricFindingsWarn).Add(int64(report.Count(rules.SeverityWarn)))
	c.Counter(metrics.MetricFindingsFail).Add(int64(report.Count(rules.SeverityFail)))
	c.Counter(metrics.MetricDiffFetches).Add(int64(report.Stats.Fetches))
	c.Counter(metrics.MetricDiffFetchErrors).Add(int64(len(report.FetchErrors)))

	c.Gauge(metrics.MetricFilesChanged).Set(float64(report.Stats.FilesChanged))
	c.Gauge(metrics.MetricDecision).Set(float64(decisionValue(report.Decision())))

	c.Histogram(metrics.MetricEvalDuration).Observe(report.Stats.EvalDuration.Seconds())
	for _, d := range report.Stats.FetchLatencies {
		ig.RecordFetchLatency(d)
	}
}

// RecordFetchLatency records the latency of a single diff fetch.
func (ig *InstrumentedGate) RecordFetchLatency(d time.Duration) {
	ig.collector.Histogram(metrics.MetricFetchLatency).Observe(d.Seconds())
}

// Stats returns a summary of gate statistics.
func (ig *InstrumentedGate) Stats() GateStats {
	c := ig.collector
	return GateStats{
		Runs:         c.Counter(metrics.MetricRunsTotal).Value(),
		RunErrors:    c.Counter(metrics.MetricRunErrors).Value(),
		RuleFaults:   c.Counter(metrics.MetricRuleFaults).Value(),
		FindingsFail: c.Counter(metrics.MetricFindingsFail).Value(),
		FindingsWarn: c.Counter(metrics.MetricFindingsWarn).Value(),
		FindingsInfo: c.Counter(metrics.MetricFindingsInfo).Value(),
		Fetches:      c.Counter(metrics.MetricDiffFetches).Value(),
		FetchErrors:  c.Counter(metrics.MetricDiffFetchErrors).Value(),
		Uptime:       c.Uptime(),
	}
}

// GateStats contains aggregate gate statistics.
type GateStats struct {
	Runs         int64         `json:"runs"`
	RunErrors    int64         `json:"run_errors"`
	RuleFaults   int64         `json:"rule_faults"`
	FindingsFail int64         `json:"findings_fail"`
	FindingsWarn int64         `json:"findings_warn"`
	FindingsInfo int64         `json:"findings_info"`
	Fetches      int64         `json:"fetches"`
	FetchErrors  int64         `json:"fetch_errors"`
	Uptime       time.Duration `json:"uptime"`
}

// FetchErrorRate returns the diff fetch error rate as a percentage (0-100).
func (s GateStats) FetchErrorRate() float64 {
	if s.Fetches == 0 {
		return 0
	}
	return float64(s.FetchErrors) / float64(s.Fetches) * 100
}

func decisionValue(d Decision) int {
	switch d {
	case DecisionWarn:
		return 1
	case DecisionFail:
		return 2
	default:
		return 0
	}
}
