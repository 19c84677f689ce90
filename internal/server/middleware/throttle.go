package middleware

import (
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/throttle"
	"github.com/ledgermate/governor/internal/metrics"
)

// Admission applies rate limiting to incoming HTTP requests before any
// handler runs. Rejected requests get a RATE_LIMITED envelope and 429.
type Admission struct {
	Manager *throttle.Manager

	// Classify maps a request to an operation class. Defaults to
	// DefaultClassify when nil.
	Classify func(*http.Request) core.Class

	// Exempt paths bypass admission entirely. Liveness and metrics
	// scrapes must not be shed under load.
	Exempt map[string]bool
}

// DefaultExempt lists paths that are never throttled.
func DefaultExempt() map[string]bool {
	return map[string]bool{
		"/health/live": true,
		"/metrics":     true,
	}
}

// DefaultClassify treats API callers as callback traffic.
func DefaultClassify(r *http.Request) core.Class {
	return core.ClassCallback
}

// Handler is the chi middleware entry point.
func (a *Admission) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Manager == nil || a.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		classify := a.Classify
		if classify == nil {
			classify = DefaultClassify
		}
		class := classify(r)

		if !a.Manager.Acquire(r.Context(), class, false) {
			metrics.RecordThrottleRejection(string(class))

			envelope := errors.NewErrorEnvelope("RATE_LIMITED", "Request rate limit exceeded, retry later").
				WithCorrelationID(GetRequestID(r.Context()))
			envelope, _ = envelope.WithSeverity(errors.SeverityLow)

			w.Header().Set("Retry-After", "1")
			writeErrorResponse(w, envelope, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Admission) exempt(path string) bool {
	exempt := a.Exempt
	if exempt == nil {
		exempt = DefaultExempt()
	}
	return exempt[strings.TrimSuffix(path, "/")]
}
