package report

import (
	"encoding/json"
	"io"

	"github.com/JNZader/prgate/internal/gate"
	"github.com/JNZader/prgate/internal/rules"
)

// SARIFReporter generates SARIF 2.1.0 reports.
type SARIFReporter struct {
	// Version is reported as the driver version. Empty means "dev".
	Version string
}

func (r *SARIFReporter) Format() string { return "sarif" }

// SARIF types
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Results     []sarifResult     `json:"results"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Properties  map[string]any    `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	ShortDescription *sarifMessage     `json:"shortDescription,omitempty"`
	Help             *sarifMessage     `json:"help,omitempty"`
	DefaultConfig    sarifRuleDefaults `json:"defaultConfiguration"`
	Properties       map[string]any    `json:"properties,omitempty"`
}

type sarifRuleDefaults struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation struct {
		ArtifactLocation struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region *sarifRegion `json:"region,omitempty"`
	} `json:"physicalLocation"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Descriptor *sarifReference `json:"descriptor,omitempty"`
	Locations  []sarifLocation `json:"locations,omitempty"`
}

type sarifReference struct {
	ID string `json:"id"`
}

func (r *SARIFReporter) Generate(report *gate.Report) (string, error) {
	data, err := json.MarshalIndent(r.buildReport(report), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *SARIFReporter) Write(report *gate.Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r.buildReport(report))
}

func (r *SARIFReporter) buildReport(report *gate.Report) *sarifReport {
	version := r.Version
	if version == "" {
		version = "dev"
	}

	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           "prgate",
			Version:        version,
			InformationURI: "https://github.com/JNZader/prgate",
		}},
		Results:    []sarifResult{},
		Properties: map[string]any{"decision": string(report.Decision())},
	}

	index := make(map[string]int, len(report.Rules))
	for _, rule := range report.Rules {
		index[rule.ID] = len(run.Tool.Driver.Rules)
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRuleFor(rule))
	}

	for _, f := range report.Findings {
		i, ok := index[f.RuleID]
		if !ok {
			// findings from rules missing in report.Rules still need a descriptor
			i = len(run.Tool.Driver.Rules)
			index[f.RuleID] = i
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:            f.RuleID,
				DefaultConfig: sarifRuleDefaults{Level: mapLevel(f.Severity)},
			})
		}

		res := sarifResult{
			RuleID:    f.RuleID,
			RuleIndex: i,
			Level:     mapLevel(f.Severity),
			Message:   sarifMessage{Text: f.Message},
		}
		if f.File != "" {
			res.Locations = []sarifLocation{fileLocation(f.File, f.Line)}
		}
		run.Results = append(run.Results, res)
	}

	if report.Degraded() {
		inv := sarifInvocation{ExecutionSuccessful: true}
		for _, s := range report.Skipped {
			inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, sarifNotification{
				Level:      "error",
				Message:    sarifMessage{Text: s.Reason},
				Descriptor: &sarifReference{ID: s.RuleID},
			})
		}
		for _, e := range report.FetchErrors {
			inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, sarifNotification{
				Level:     "warning",
				Message:   sarifMessage{Text: e.Error},
				Locations: []sarifLocation{fileLocation(e.Path, 0)},
			})
		}
		run.Invocations = []sarifInvocation{inv}
	}

	return &sarifReport{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
}

func sarifRuleFor(rule rules.Rule) sarifRule {
	sr := sarifRule{
		ID:            rule.ID,
		Name:          rule.Name,
		DefaultConfig: sarifRuleDefaults{Level: mapLevel(rule.Severity)},
		Properties:    map[string]any{"category": string(rule.Category)},
	}
	if rule.Description != "" {
		sr.ShortDescription = &sarifMessage{Text: rule.Description}
	}
	if rule.Suggestion != "" {
		sr.Help = &sarifMessage{Text: rule.Suggestion}
	}
	return sr
}

func fileLocation(path string, line int) sarifLocation {
	loc := sarifLocation{}
	loc.PhysicalLocation.ArtifactLocation.URI = path
	if line > 0 {
		loc.PhysicalLocation.Region = &sarifRegion{StartLine: line}
	}
	return loc
}

func mapLevel(severity rules.Severity) string {
	switch severity {
	case rules.SeverityFail:
		return "error"
	case rules.SeverityWarn:
		return "warning"
	default:
		return "note"
	}
}
