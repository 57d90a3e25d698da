// Package rules defines the quality gate rules: their metadata, the
// heuristics they rely on and the checks bound to them.
package rules

import (
	"fmt"
	"regexp"

	"github.com/JNZader/prgate/internal/pr"
)

// Settings carries the thresholds checks compare against.
type Settings struct {
	SizeInfo         int
	SizeWarn         int
	SizeFail         int
	MinDescription   int
	SecretMinLength  int
	UtilityLibraries []string
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() Settings {
	return Settings{
		SizeInfo:         300,
		SizeWarn:         600,
		SizeFail:         1000,
		MinDescription:   50,
		SecretMinLength:  20,
		UtilityLibraries: []string{"lodash", "underscore", "ramda"},
	}
}

// Checker is a rule ready to run against a snapshot. Check must not modify
// the snapshot and must be deterministic for a given snapshot.
type Checker interface {
	Rule() Rule
	Check(s *pr.Snapshot) ([]Finding, error)
}

type env struct {
	Settings
	imports *ImportMatcher
	match   *regexp.Regexp
}

type checkFunc func(r Rule, s *pr.Snapshot, e *env) ([]Finding, error)

type boundRule struct {
	rule  Rule
	check checkFunc
	env   *env
}

func (b *boundRule) Rule() Rule { return b.rule }

func (b *boundRule) Check(s *pr.Snapshot) ([]Finding, error) {
	return b.check(b.rule, s, b.env)
}

// Bind pairs every enabled rule with its check, keeping rule order. Built-in
// IDs get their built-in check; other rules need a Match expression.
func Bind(rules []Rule, set Settings) ([]Checker, error) {
	shared := &env{Settings: set, imports: NewImportMatcher(set.UtilityLibraries)}

	var out []Checker
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if !r.Severity.Valid() {
			return nil, fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
		}

		if pinned, ok := pinnedSeverity[r.ID]; ok {
			r.Severity = pinned
		}

		if fn, ok := builtins[r.ID]; ok && r.Match == "" {
			out = append(out, &boundRule{rule: r, check: fn, env: shared})
			continue
		}

		if r.Match == "" {
			return nil, fmt.Errorf("rule %s: no built-in check and no match expression", r.ID)
		}
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid match expression: %w", r.ID, err)
		}
		e := *shared
		e.match = re
		out = append(out, &boundRule{rule: r, check: checkMatch, env: &e})
	}
	return out, nil
}

// IsBuiltin reports whether id names a built-in check.
func IsBuiltin(id string) bool {
	_, ok := builtins[id]
	return ok
}
