package rules

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule defines a quality gate rule. Built-in rules are bound to a check by
// ID; custom rules carry a Match expression instead.
type Rule struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Category    Category `yaml:"category" json:"category"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Patterns    []string `yaml:"patterns,omitempty" json:"patterns,omitempty"` // File patterns
	Match       string   `yaml:"match,omitempty" json:"match,omitempty"`       // Regex over added lines
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Message     string   `yaml:"message" json:"message"`
	Suggestion  string   `yaml:"suggestion,omitempty" json:"suggestion,omitempty"`
}

// UnmarshalYAML decodes a rule. Rules are enabled unless they say otherwise.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	type plain Rule
	p := plain{Enabled: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// AppliesTo reports whether the rule's file patterns select path. A rule
// without patterns applies to every file. Patterns are matched against the
// base name and the full path.
func (r Rule) AppliesTo(p string) bool {
	if len(r.Patterns) == 0 {
		return true
	}
	return matchesAnyPattern(r.Patterns, p)
}

// Render expands {name} placeholders in the rule message.
func (r Rule) Render(vars map[string]any) string {
	msg := r.Message
	if msg == "" {
		msg = r.Name
	}
	if len(vars) == 0 {
		return msg
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func (r Rule) finding(file string, line int, vars map[string]any) Finding {
	return Finding{
		RuleID:   r.ID,
		Severity: r.Severity,
		Message:  r.Render(vars),
		File:     file,
		Line:     line,
	}
}

// Category categorizes rules.
type Category string

const (
	CategorySize         Category = "size"
	CategoryDescription  Category = "description"
	CategoryTyping       Category = "typing"
	CategoryTesting      Category = "testing"
	CategoryDependencies Category = "dependencies"
	CategorySecurity     Category = "security"
	CategoryBestPractice Category = "best_practice"
	CategoryPerformance  Category = "performance"
	CategorySummary      Category = "summary"
	CategoryCustom       Category = "custom"
)

// Severity indicates finding importance: info < warn < fail.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)

// Rank orders severities. Unknown values rank zero, below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarn:
		return 2
	case SeverityFail:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// ParseSeverity parses a severity name. "warning" and "error" are accepted
// as aliases of warn and fail.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "notice":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "fail", "error", "critical":
		return SeverityFail, nil
	default:
		return "", fmt.Errorf("unknown severity %q (want info, warn or fail)", s)
	}
}

// UnmarshalYAML accepts the aliases understood by ParseSeverity.
func (s *Severity) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Finding is a single observation produced by a rule.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// RuleSet contains a collection of rules.
type RuleSet struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Rules       []Rule `yaml:"rules" json:"rules"`
}

// Preset defines a collection of enabled rules.
type Preset struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Includes    []string `yaml:"includes" json:"includes"` // Rule IDs
	Excludes    []string `yaml:"excludes" json:"excludes"` // Rule IDs
	FailOn      Severity `yaml:"fail_on" json:"fail_on"`
}

func matchesAnyPattern(patterns []string, p string) bool {
	base := path.Base(p)
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, base); matched {
			return true
		}
		if matched, _ := path.Match(pattern, p); matched {
			return true
		}
	}
	return false
}
