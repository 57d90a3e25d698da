// Package gate evaluates rules against a pull request snapshot and
// aggregates the findings into a report.
package gate

import (
	"fmt"
	"time"

	"github.com/JNZader/prgate/internal/logger"
	"github.com/JNZader/prgate/internal/pr"
	"github.com/JNZader/prgate/internal/rules"
)

// Engine runs an ordered list of rules.
type Engine struct {
	checkers []rules.Checker
	log      *logger.Logger
}

// NewEngine creates an engine for the given rules. Order is preserved.
func NewEngine(checkers []rules.Checker) *Engine {
	cs := make([]rules.Checker, len(checkers))
	copy(cs, checkers)
	return &Engine{
		checkers: cs,
		log:      logger.Default().WithPrefix("gate"),
	}
}

// Rules returns the metadata of the engine's rules, in order.
func (e *Engine) Rules() []rules.Rule {
	out := make([]rules.Rule, len(e.checkers))
	for i, c := range e.checkers {
		out[i] = c.Rule()
	}
	return out
}

// Evaluate invokes every rule exactly once, in order. A rule that errors or
// panics is logged and recorded as skipped; the remaining rules still run.
func (e *Engine) Evaluate(s *pr.Snapshot) *Report {
	start := time.Now()

	report := &Report{
		Number:   s.Number(),
		Title:    s.Title(),
		URL:      s.URL(),
		Findings: []rules.Finding{},
		Rules:    e.Rules(),
	}

	for _, c := range e.checkers {
		id := c.Rule().ID
		findings, err := e.check(c, s)
		if err != nil {
			e.log.Warn("rule %s skipped: %v", id, err)
			report.Skipped = append(report.Skipped, SkippedRule{RuleID: id, Reason: err.Error()})
			continue
		}
		e.log.Debug("rule %s: %d finding(s)", id, len(findings))
		report.Findings = append(report.Findings, findings...)
	}

	report.Stats.FilesChanged = len(s.Touched())
	report.Stats.EvalDuration = time.Since(start)
	return report
}

func (e *Engine) check(c rules.Checker, s *pr.Snapshot) (findings []rules.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Check(s)
}
