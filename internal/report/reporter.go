// Package report renders gate reports as Markdown, JSON or SARIF.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JNZader/prgate/internal/gate"
)

// Reporter defines the interface for rendering gate reports.
type Reporter interface {
	// Generate renders the report as a string.
	Generate(report *gate.Report) (string, error)

	// Write writes the report to a writer.
	Write(report *gate.Report, w io.Writer) error

	// Format returns the format name.
	Format() string
}

// NewReporter creates a reporter for the given format.
func NewReporter(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "markdown", "md":
		return &MarkdownReporter{}, nil
	case "json":
		return &JSONReporter{Indent: true}, nil
	case "sarif":
		return &SARIFReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (available: %s)", format, strings.Join(AvailableFormats(), ", "))
	}
}

// AvailableFormats returns the list of supported formats.
func AvailableFormats() []string {
	return []string{"markdown", "json", "sarif"}
}

func generate(r Reporter, report *gate.Report) (string, error) {
	var sb strings.Builder
	if err := r.Write(report, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
