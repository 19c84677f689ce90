package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgermate/governor/internal/config"
	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/breaker"
	"github.com/ledgermate/governor/internal/core/collector"
	"github.com/ledgermate/governor/internal/core/health"
	"github.com/ledgermate/governor/internal/core/throttle"
	"github.com/ledgermate/governor/internal/server/handlers"
	servermw "github.com/ledgermate/governor/internal/server/middleware"
)

type staticProbe struct {
	name   core.Dependency
	result health.Result
}

func (p staticProbe) Name() core.Dependency { return p.name }

func (p staticProbe) Probe(context.Context) health.Result { return p.result }

func newTestServer(t *testing.T, admission *servermw.Admission) *Server {
	t.Helper()

	c := collector.New(collector.Config{})
	m := throttle.NewManager(throttle.DefaultProfiles(), nil)
	reg := breaker.NewRegistry(map[core.Dependency]breaker.Config{
		core.DepAI: {FailureThreshold: 3, RecoveryTimeout: 30 * time.Second},
	}, nil, nil)

	handlers.InitStatus(c, m, reg)
	handlers.InitHealthMonitor(health.NewMonitor([]health.Prober{
		staticProbe{name: core.DepChat, result: health.Result{Status: health.StatusHealthy, Healthy: true}},
	}, 0, nil))
	t.Cleanup(func() {
		handlers.InitStatus(nil, nil, nil)
		handlers.InitHealthMonitor(nil)
	})

	return New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, admission)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutesServeJSON(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{
		"/health", "/health/live", "/health/ready",
		"/status", "/status/services", "/status/requests",
		"/version",
	} {
		rec := get(t, s, path)
		require.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		require.Contains(t, rec.Header().Get("Content-Type"), "application/json", "path %s", path)
	}
}

func TestUnknownRouteReturnsNotFoundEnvelope(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestMethodNotAllowedEnvelope(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAdmissionMiddlewareShedsLoad(t *testing.T) {
	admission := &servermw.Admission{
		Manager: throttle.NewManager(throttle.Profiles{
			Normal:   throttle.Config{PerSecond: 1, PerMinute: 5, Burst: 1},
			Degraded: throttle.Config{PerSecond: 1, PerMinute: 2, Burst: 1},
		}, nil),
	}
	s := newTestServer(t, admission)

	require.Equal(t, http.StatusOK, get(t, s, "/status").Code)
	require.Equal(t, http.StatusTooManyRequests, get(t, s, "/status").Code)

	// Liveness stays reachable under load shedding.
	require.Equal(t, http.StatusOK, get(t, s, "/health/live").Code)
}

func TestRequestIDHeaderPropagates(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set("X-Request-ID", "req-42")
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
