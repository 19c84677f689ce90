package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/breaker"
	"github.com/ledgermate/governor/internal/core/collector"
	"github.com/ledgermate/governor/internal/core/throttle"
)

// Global status dependencies, wired once at startup.
var (
	statusCollector *collector.Collector
	statusThrottle  *throttle.Manager
	statusBreakers  *breaker.Registry
)

// InitStatus wires the operational status handlers.
func InitStatus(c *collector.Collector, t *throttle.Manager, b *breaker.Registry) {
	statusCollector = c
	statusThrottle = t
	statusBreakers = b
}

// StatusResponse is the operator-facing snapshot of the whole governor.
type StatusResponse struct {
	collector.Summary
	DegradedMode bool                       `json:"degraded_mode"`
	Throttle     throttle.Config            `json:"throttle"`
	Breakers     map[core.Dependency]string `json:"breakers,omitempty"`
}

// ServicesResponse lists per-dependency call statistics.
type ServicesResponse struct {
	Services map[core.Dependency]collector.ServiceStatus `json:"services"`
	Breakers map[core.Dependency]string                  `json:"breakers,omitempty"`
}

// RequestsResponse breaks request metrics down per operation class.
type RequestsResponse struct {
	Classes       map[core.Class]collector.RequestMetrics `json:"classes"`
	ResponseTimes collector.Percentiles                   `json:"response_times"`
}

// StatusHandler serves the aggregate operational snapshot.
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	if statusCollector == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "status collector not initialized"))
		return
	}

	response := StatusResponse{
		Summary: statusCollector.Summary(),
	}

	if statusThrottle != nil {
		response.DegradedMode = statusThrottle.Degraded()
		if cfg, ok := statusThrottle.ClassConfig(core.ClassText); ok {
			response.Throttle = cfg
		}
	}
	if statusBreakers != nil {
		response.Breakers = statusBreakers.States()
	}

	writeJSON(w, response)
}

// ServicesHandler serves per-dependency call statistics.
func ServicesHandler(w http.ResponseWriter, r *http.Request) {
	if statusCollector == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "status collector not initialized"))
		return
	}

	response := ServicesResponse{
		Services: statusCollector.ServicesStatus(),
	}
	if statusBreakers != nil {
		response.Breakers = statusBreakers.States()
	}

	writeJSON(w, response)
}

// RequestsHandler serves per-class request statistics.
func RequestsHandler(w http.ResponseWriter, r *http.Request) {
	if statusCollector == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "status collector not initialized"))
		return
	}

	response := RequestsResponse{
		Classes:       statusCollector.RequestClassStats(),
		ResponseTimes: statusCollector.ResponseTimePercentiles(),
	}

	writeJSON(w, response)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
