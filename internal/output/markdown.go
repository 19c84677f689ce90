package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a report as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders a health report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *HealthReport) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Dependency health: %s\n\n", escapeMarkdownCell(report.Status)))
	sb.WriteString("| Dependency | Status | Response Time | Message |\n")
	sb.WriteString("|------------|--------|---------------|----------|\n")

	for _, dep := range sortedDependencies(report.Checks) {
		result := report.Checks[dep]
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(string(dep)),
			escapeMarkdownCell(result.Status),
			escapeMarkdownCell(formatResponseTime(result.ResponseTime)),
			escapeMarkdownCell(result.Message),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Checked**: %s\n", report.Timestamp.Format("2006-01-02 15:04:05 MST")))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
