package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/health"
)

func sampleReport() *HealthReport {
	return &HealthReport{
		Status:    "degraded",
		Timestamp: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		Checks: map[core.Dependency]health.Result{
			core.DepChat: {
				Status:       health.StatusHealthy,
				Message:      "bot @ledgermate_bot reachable",
				Healthy:      true,
				ResponseTime: 0.142,
			},
			core.DepAI: {
				Status:  health.StatusTimeout,
				Message: "probe timed out",
				Healthy: false,
			},
			core.DepSpeech: {
				Status:  health.StatusNotConfigured,
				Message: "speech API key not configured",
				Healthy: false,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"  JSON ", FormatJSON, false},
		{"Markdown", FormatMarkdown, false},
		{"yaml", "", true},
	}

	for _, tc := range cases {
		got, err := ParseFormat(tc.input)
		if tc.wantErr {
			require.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		require.Equal(t, tc.want, got)
	}
}

func TestTableFormatter(t *testing.T) {
	out, err := (&TableFormatter{}).FormatReport(sampleReport())
	require.NoError(t, err)

	require.Contains(t, out, "DEPENDENCY")
	require.Contains(t, out, "chat")
	require.Contains(t, out, "0.142s")
	require.Contains(t, out, "probe timed out")
	require.Contains(t, out, "OVERALL: DEGRADED")
}

func TestTableFormatterRowsAreSorted(t *testing.T) {
	out, err := (&TableFormatter{}).FormatReport(sampleReport())
	require.NoError(t, err)

	aiIdx := strings.Index(out, "ai")
	chatIdx := strings.Index(out, "chat")
	speechIdx := strings.Index(out, "speech")
	require.True(t, aiIdx < chatIdx && chatIdx < speechIdx,
		"rows should be sorted by dependency name:\n%s", out)
}

func TestMarkdownFormatter(t *testing.T) {
	out, err := (&MarkdownFormatter{}).FormatReport(sampleReport())
	require.NoError(t, err)

	require.Contains(t, out, "## Dependency health: degraded")
	require.Contains(t, out, "| chat | healthy | 0.142s |")
	require.Contains(t, out, "| speech | not_configured | - |")
}

func TestJSONFormatterRoundTrip(t *testing.T) {
	out, err := (&JSONFormatter{Indent: true}).FormatReport(sampleReport())
	require.NoError(t, err)

	var decoded HealthReport
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "degraded", decoded.Status)
	require.Len(t, decoded.Checks, 3)
	require.Equal(t, "probe timed out", decoded.Checks[core.DepAI].Message)
}

func TestFormattersHandleNilReport(t *testing.T) {
	for _, f := range []Formatter{&TableFormatter{}, &MarkdownFormatter{}, &JSONFormatter{}} {
		out, err := f.FormatReport(nil)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}
