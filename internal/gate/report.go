package gate

import (
	"time"

	"github.com/JNZader/prgate/internal/rules"
)

// Decision is the overall verdict of a report.
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionFail Decision = "fail"
)

// Rank orders decisions on the same scale as rules.Severity ranks, with
// pass below info.
func (d Decision) Rank() int {
	switch d {
	case DecisionWarn:
		return rules.SeverityWarn.Rank()
	case DecisionFail:
		return rules.SeverityFail.Rank()
	default:
		return 0
	}
}

// Blocks reports whether the decision reaches the failOn threshold.
func (d Decision) Blocks(failOn rules.Severity) bool {
	return d.Rank() > 0 && d.Rank() >= failOn.Rank()
}

// DecisionOf derives the decision from findings: fail if any finding
// fails, warn if any warns, pass otherwise. Info findings never count.
func DecisionOf(findings []rules.Finding) Decision {
	d := DecisionPass
	for _, f := range findings {
		switch f.Severity {
		case rules.SeverityFail:
			return DecisionFail
		case rules.SeverityWarn:
			d = DecisionWarn
		}
	}
	return d
}

// SkippedRule records a rule that errored or panicked.
type SkippedRule struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// FetchError records a diff that could not be resolved. Rules saw the file
// as empty.
type FetchError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RunStats carries timing data. It is kept out of serialized reports so
// that evaluating the same snapshot twice renders the same output.
type RunStats struct {
	FilesChanged   int
	Fetches        int
	FetchLatencies []time.Duration
	EvalDuration   time.Duration
}

// Report is the outcome of evaluating a snapshot.
type Report struct {
	Source      string          `json:"source,omitempty"`
	Number      int             `json:"number,omitempty"`
	Title       string          `json:"title,omitempty"`
	URL         string          `json:"url,omitempty"`
	Findings    []rules.Finding `json:"findings"`
	Skipped     []SkippedRule   `json:"skipped,omitempty"`
	FetchErrors []FetchError    `json:"fetch_errors,omitempty"`

	// Rules holds the metadata of every evaluated rule, in order.
	Rules []rules.Rule `json:"-"`
	Stats RunStats     `json:"-"`
}

// Decision derives the verdict from the findings.
func (r *Report) Decision() Decision {
	return DecisionOf(r.Findings)
}

// Count returns the number of findings with severity s.
func (r *Report) Count(s rules.Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// BySeverity returns findings of severity s in report order.
func (r *Report) BySeverity(s rules.Severity) []rules.Finding {
	var out []rules.Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// Rule returns the metadata of an evaluated rule.
func (r *Report) Rule(id string) (rules.Rule, bool) {
	for _, rule := range r.Rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return rules.Rule{}, false
}

// Degraded reports whether some rules or diffs were unavailable.
func (r *Report) Degraded() bool {
	return len(r.Skipped) > 0 || len(r.FetchErrors) > 0
}
