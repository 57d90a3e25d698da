package metrics

import "sync"

// Process-scoped collector.
//
// Lifecycle: the CLI calls Init once at startup, before any gate runs. Init
// replaces a previously installed collector, so calling it again starts from
// zero. Current returns the installed collector and panics when Init has not
// been called. Packages below the CLI never touch this state; they receive a
// *Collector explicitly.
var (
	mu      sync.RWMutex
	current *Collector
)

// Init installs a fresh process collector with the gate metrics described.
func Init() *Collector {
	c := NewCollector()
	DescribeGate(c)

	mu.Lock()
	current = c
	mu.Unlock()
	return c
}

// Current returns the collector installed by Init.
func Current() *Collector {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		panic("metrics: Current called before Init")
	}
	return current
}

// Metric names for prgate
const (
	MetricRunsTotal       = "prgate_runs_total"
	MetricRunErrors       = "prgate_run_errors_total"
	MetricRulesEvaluated  = "prgate_rules_evaluated_total"
	MetricRuleFaults      = "prgate_rule_faults_total"
	MetricFindingsInfo    = "prgate_findings_info_total"
	MetricFindingsWarn    = "prgate_findings_warn_total"
	MetricFindingsFail    = "prgate_findings_fail_total"
	MetricDiffFetches     = "prgate_diff_fetches_total"
	MetricDiffFetchErrors = "prgate_diff_fetch_errors_total"
	MetricFilesChanged    = "prgate_files_changed"
	MetricDecision        = "prgate_decision"
	MetricRunDuration     = "prgate_run_duration_seconds"
	MetricEvalDuration    = "prgate_evaluation_duration_seconds"
	MetricFetchLatency    = "prgate_diff_fetch_latency_seconds"
	MetricHeapAlloc       = "prgate_heap_alloc_bytes"
	MetricGCRuns          = "prgate_gc_runs"
)

// DescribeGate registers HELP text for the gate metrics.
func DescribeGate(c *Collector) {
	c.Describe(MetricRunsTotal, "Gate runs started.")
	c.Describe(MetricRunErrors, "Gate runs that failed before producing a report.")
	c.Describe(MetricRulesEvaluated, "Rule invocations.")
	c.Describe(MetricRuleFaults, "Rule invocations that errored or panicked and were skipped.")
	c.Describe(MetricFindingsInfo, "Findings with severity info.")
	c.Describe(MetricFindingsWarn, "Findings with severity warn.")
	c.Describe(MetricFindingsFail, "Findings with severity fail.")
	c.Describe(MetricDiffFetches, "Per-file diff fetches attempted.")
	c.Describe(MetricDiffFetchErrors, "Per-file diff fetches that failed.")
	c.Describe(MetricFilesChanged, "Files in the last evaluated change set.")
	c.Describe(MetricDecision, "Last decision: 0 pass, 1 warn, 2 fail.")
	c.Describe(MetricRunDuration, "Wall time of a gate run.")
	c.Describe(MetricEvalDuration, "Wall time of rule evaluation.")
	c.Describe(MetricFetchLatency, "Latency of a single diff fetch.")
	c.Describe(MetricHeapAlloc, "Heap bytes allocated at the end of the run.")
	c.Describe(MetricGCRuns, "Garbage collections completed at the end of the run.")
}
