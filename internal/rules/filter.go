package rules

import (
	"path"
	"strings"
)

// Selection toggles rules by ID. Entries may be globs such as "TS-*".
// Disable wins over Enable.
type Selection struct {
	Enable  []string
	Disable []string
}

// Select applies a selection and drops disabled rules.
func Select(rules []Rule, sel Selection) []Rule {
	var filtered []Rule

	for _, rule := range rules {
		if matchesID(sel.Enable, rule.ID) {
			rule.Enabled = true
		}
		if matchesID(sel.Disable, rule.ID) {
			rule.Enabled = false
		}
		if !rule.Enabled {
			continue
		}
		filtered = append(filtered, rule)
	}

	return filtered
}

// ApplyPreset applies a preset to filter rules.
func ApplyPreset(rules []Rule, preset *Preset) []Rule {
	if preset == nil {
		return rules
	}

	var filtered []Rule

	for _, rule := range rules {
		// Check excludes
		if matchesID(preset.Excludes, rule.ID) {
			continue
		}

		// Check includes (empty means all)
		if len(preset.Includes) > 0 && !matchesID(preset.Includes, rule.ID) {
			continue
		}

		filtered = append(filtered, rule)
	}

	return filtered
}

// GetRulesByCategory returns rules for a specific category.
func GetRulesByCategory(rules []Rule, category Category) []Rule {
	var filtered []Rule
	for _, rule := range rules {
		if rule.Category == category {
			filtered = append(filtered, rule)
		}
	}
	return filtered
}

// GetRulesBySeverity returns rules at or above severity.
func GetRulesBySeverity(rules []Rule, minSeverity Severity) []Rule {
	var filtered []Rule
	for _, rule := range rules {
		if rule.Severity.AtLeast(minSeverity) {
			filtered = append(filtered, rule)
		}
	}
	return filtered
}

func matchesID(patterns []string, id string) bool {
	id = strings.ToUpper(id)
	for _, p := range patterns {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == id {
			return true
		}
		if matched, _ := path.Match(p, id); matched {
			return true
		}
	}
	return false
}
