// Package output renders dependency health reports for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/health"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// HealthReport is one full probe sweep ready for rendering.
type HealthReport struct {
	Status    string                            `json:"status"`
	Timestamp time.Time                         `json:"timestamp"`
	Checks    map[core.Dependency]health.Result `json:"checks"`
}

// Formatter renders a health report.
type Formatter interface {
	FormatReport(report *HealthReport) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// JSONFormatter renders a report as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders a health report as JSON.
func (f *JSONFormatter) FormatReport(report *HealthReport) (string, error) {
	if report == nil {
		return "", nil
	}
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sortedDependencies returns check keys in stable order so rendered rows
// do not shuffle between runs.
func sortedDependencies(checks map[core.Dependency]health.Result) []core.Dependency {
	deps := make([]core.Dependency, 0, len(checks))
	for dep := range checks {
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	return deps
}

func formatResponseTime(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.3fs", seconds)
}
