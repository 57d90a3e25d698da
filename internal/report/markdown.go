package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JNZader/prgate/internal/gate"
	"github.com/JNZader/prgate/internal/rules"
)

// CommentMarker tags published comments so later runs can find and update
// them.
const CommentMarker = "<!-- prgate -->"

// MarkdownReporter generates Markdown reports, suitable as a PR comment.
type MarkdownReporter struct{}

func (r *MarkdownReporter) Format() string { return "markdown" }

func (r *MarkdownReporter) Generate(report *gate.Report) (string, error) {
	return generate(r, report)
}

func (r *MarkdownReporter) Write(report *gate.Report, w io.Writer) error {
	var sb strings.Builder

	decision := report.Decision()
	fmt.Fprintf(&sb, "%s\n## %s PR Quality Gate: %s\n\n", CommentMarker, decisionIcon(decision), decision)

	if report.Number > 0 || report.Title != "" {
		sb.WriteString("**")
		if report.Number > 0 {
			fmt.Fprintf(&sb, "#%d ", report.Number)
		}
		sb.WriteString(escapeCell(report.Title))
		sb.WriteString("** · ")
	}
	fmt.Fprintf(&sb, "%d fail · %d warn · %d info\n\n",
		report.Count(rules.SeverityFail), report.Count(rules.SeverityWarn), report.Count(rules.SeverityInfo))

	if len(report.Findings) == 0 {
		sb.WriteString("Nenhum apontamento.\n\n")
	} else {
		sb.WriteString("| | Regra | Mensagem | Arquivo |\n|---|---|---|---|\n")
		for _, sev := range []rules.Severity{rules.SeverityFail, rules.SeverityWarn, rules.SeverityInfo} {
			for _, f := range report.BySeverity(sev) {
				fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", severityIcon(f.Severity), f.RuleID, escapeCell(f.Message), location(f))
			}
		}
		sb.WriteString("\n")
	}

	if len(report.Skipped) > 0 {
		sb.WriteString("### Regras não avaliadas\n\n")
		for _, s := range report.Skipped {
			fmt.Fprintf(&sb, "- `%s`: %s\n", s.RuleID, escapeCell(s.Reason))
		}
		sb.WriteString("\n")
	}

	if len(report.FetchErrors) > 0 {
		sb.WriteString("### Diffs indisponíveis\n\n")
		sb.WriteString("Estes arquivos foram avaliados como vazios.\n\n")
		for _, e := range report.FetchErrors {
			fmt.Fprintf(&sb, "- `%s`: %s\n", e.Path, escapeCell(e.Error))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func location(f rules.Finding) string {
	switch {
	case f.File == "":
		return ""
	case f.Line > 0:
		return fmt.Sprintf("`%s:%d`", f.File, f.Line)
	default:
		return "`" + f.File + "`"
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func decisionIcon(d gate.Decision) string {
	switch d {
	case gate.DecisionFail:
		return "❌"
	case gate.DecisionWarn:
		return "⚠️"
	default:
		return "✅"
	}
}

func severityIcon(s rules.Severity) string {
	switch s {
	case rules.SeverityFail:
		return "❌"
	case rules.SeverityWarn:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
