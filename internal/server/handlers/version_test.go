package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	SetVersionInfo("governor", "1.2.3", "abc1234", "2026-01-02")
	t.Cleanup(func() { SetVersionInfo("governor", "dev", "unknown", "unknown") })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "governor", body.App.Name)
	require.Equal(t, "1.2.3", body.App.Version)
	require.Equal(t, "abc1234", body.App.Commit)
	require.NotEmpty(t, body.App.GoVersion)
	require.NotEmpty(t, body.Runtime.Platform)
	require.Positive(t, body.Runtime.NumCPU)
}

func TestSetVersionInfoKeepsNameWhenEmpty(t *testing.T) {
	SetVersionInfo("", "2.0.0", "def5678", "2026-02-03")
	t.Cleanup(func() { SetVersionInfo("governor", "dev", "unknown", "unknown") })

	require.Equal(t, "governor", AppName)
	require.Equal(t, "2.0.0", AppVersion)
}
