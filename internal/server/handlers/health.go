package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/health"
)

// HealthResponse represents the aggregate dependency health response
type HealthResponse struct {
	Status    string                            `json:"status"`
	Timestamp string                            `json:"timestamp"`
	Checks    map[core.Dependency]health.Result `json:"checks"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Global health monitor instance
var healthMonitor *health.Monitor

// InitHealthMonitor wires the dependency health monitor into the handlers.
func InitHealthMonitor(m *health.Monitor) {
	healthMonitor = m
}

// HealthHandler handles aggregate dependency health requests. Pass ?force=1
// to bypass the probe cache.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if healthMonitor == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health monitor not initialized")
		respondWithError(w, r, envelope)
		return
	}

	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"

	checks := healthMonitor.CheckAll(r.Context(), force)
	status := health.Aggregate(checks)

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler handles liveness probe requests.
// Liveness only says the process is serving; it never probes dependencies.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	response := ProbeResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles readiness probe requests.
// Readiness consults the cached dependency results so probes stay cheap.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if healthMonitor == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health monitor not initialized")
		respondWithError(w, r, envelope)
		return
	}

	checks := healthMonitor.CheckAll(r.Context(), false)
	status := health.Aggregate(checks)

	if status == "unhealthy" {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "readiness probe failed")
		envelope = envelope.WithDetails(map[string]interface{}{
			"status": status,
		})
		respondWithError(w, r, envelope)
		return
	}

	response := ProbeResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
