package rules

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/JNZader/prgate/internal/logger"
)

//go:embed defaults/*.yaml
var embeddedRules embed.FS

// Loader handles loading rules from files.
type Loader struct {
	rulesDir string
}

// NewLoader creates a new rule loader.
func NewLoader(rulesDir string) *Loader {
	return &Loader{rulesDir: rulesDir}
}

// Load loads the embedded rules, then the rules directory. A file rule with
// a known ID overrides that rule in place; new IDs are appended.
func (l *Loader) Load() ([]Rule, error) {
	allRules, err := l.loadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("loading embedded rules: %w", err)
	}

	if l.rulesDir != "" {
		custom, err := l.loadFromDir(l.rulesDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading custom rules: %w", err)
		}
		allRules = MergeRuleSets(allRules, custom)
	}

	return allRules, nil
}

func (l *Loader) loadEmbedded() ([]Rule, error) {
	var allRules []Rule

	entries, err := embeddedRules.ReadDir("defaults")
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		data, err := embeddedRules.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return nil, err
		}

		rules, err := parseRulesYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}

		allRules = append(allRules, rules...)
	}

	return allRules, nil
}

func (l *Loader) loadFromDir(dir string) ([]Rule, error) {
	var allRules []Rule

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := os.ReadFile(path) //nolint:gosec // Path comes from config
		if err != nil {
			return err
		}

		rules, err := parseRulesYAML(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}

		allRules = append(allRules, rules...)
		return nil
	})

	return allRules, err
}

func parseRulesYAML(data []byte) ([]Rule, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(data, &ruleSet); err != nil {
		return nil, err
	}
	for i, r := range ruleSet.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule #%d has no id", i+1)
		}
	}
	return ruleSet.Rules, nil
}

// MergeRuleSets merges rule sets in order. A later rule with an existing ID
// overrides the non-empty fields of the earlier one and keeps its position;
// Enabled is always taken from the later rule.
func MergeRuleSets(sets ...[]Rule) []Rule {
	var result []Rule
	index := make(map[string]int)

	for _, set := range sets {
		for _, rule := range set {
			if i, ok := index[rule.ID]; ok {
				result[i] = overrideRule(result[i], rule)
				continue
			}
			index[rule.ID] = len(result)
			result = append(result, rule)
		}
	}

	return result
}

func overrideRule(base, over Rule) Rule {
	if over.Name != "" {
		base.Name = over.Name
	}
	if over.Description != "" {
		base.Description = over.Description
	}
	if over.Category != "" {
		base.Category = over.Category
	}
	if over.Severity != "" {
		if pinned, ok := pinnedSeverity[base.ID]; ok && over.Severity != pinned {
			logger.Default().WithPrefix("rules").Warn("ignoring severity %q for %s, it is always %s", over.Severity, base.ID, pinned)
		} else {
			base.Severity = over.Severity
		}
	}
	if over.Patterns != nil {
		base.Patterns = over.Patterns
	}
	if over.Match != "" {
		base.Match = over.Match
	}
	if over.Message != "" {
		base.Message = over.Message
	}
	if over.Suggestion != "" {
		base.Suggestion = over.Suggestion
	}
	base.Enabled = over.Enabled
	return base
}

var presets = map[string]*Preset{
	"standard": {
		Name:        "standard",
		Description: "Every rule; the gate fails on fail findings",
		FailOn:      SeverityFail,
	},
	"strict": {
		Name:        "strict",
		Description: "Every rule; the gate also fails on warnings",
		FailOn:      SeverityWarn,
	},
	"minimal": {
		Name:        "minimal",
		Description: "Only blocking rules plus the summary",
		Includes:    []string{"SIZE-001", "DESC-001", "DEP-001", "TS-003", "SEC-001", "SUM-001"},
		FailOn:      SeverityFail,
	},
}

// LookupPreset returns a copy of a built-in preset.
func LookupPreset(name string) (*Preset, error) {
	preset, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, PresetNames())
	}
	p := *preset
	return &p, nil
}

// PresetNames lists the built-in presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
