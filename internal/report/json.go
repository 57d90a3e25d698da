package report

import (
	"encoding/json"
	"io"

	"github.com/JNZader/prgate/internal/gate"
	"github.com/JNZader/prgate/internal/rules"
)

// JSONReporter generates JSON reports.
type JSONReporter struct {
	Indent bool
}

type jsonReport struct {
	Decision gate.Decision `json:"decision"`
	Counts   jsonCounts    `json:"counts"`
	*gate.Report
}

type jsonCounts struct {
	Fail int `json:"fail"`
	Warn int `json:"warn"`
	Info int `json:"info"`
}

func (r *JSONReporter) Format() string { return "json" }

func (r *JSONReporter) Generate(report *gate.Report) (string, error) {
	var data []byte
	var err error

	view := newJSONReport(report)
	if r.Indent {
		data, err = json.MarshalIndent(view, "", "  ")
	} else {
		data, err = json.Marshal(view)
	}

	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *JSONReporter) Write(report *gate.Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if r.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(newJSONReport(report))
}

func newJSONReport(report *gate.Report) jsonReport {
	return jsonReport{
		Decision: report.Decision(),
		Counts: jsonCounts{
			Fail: report.Count(rules.SeverityFail),
			Warn: report.Count(rules.SeverityWarn),
			Info: report.Count(rules.SeverityInfo),
		},
		Report: report,
	}
}
