package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders a report as an ASCII table.
type TableFormatter struct{}

// FormatReport renders a health report as a table.
func (f *TableFormatter) FormatReport(report *HealthReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Dependency", "Status", "Response Time", "Message"})

	for _, dep := range sortedDependencies(report.Checks) {
		result := report.Checks[dep]
		t.AppendRow(table.Row{
			string(dep),
			result.Status,
			formatResponseTime(result.ResponseTime),
			result.Message,
		})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("overall: %s", report.Status),
		"",
		report.Timestamp.Format("15:04:05 MST"),
	})

	return t.Render(), nil
}
