package metrics

import (
	"time"

	"github.com/ledgermate/governor/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Request metrics
	RequestsTotal   = "governor_requests_total"
	RequestDuration = "governor_request_duration_ms"

	// Throttle metrics
	ThrottleRejectionsTotal = "governor_throttle_rejections_total"
	DegradedMode            = "governor_degraded_mode"

	// Circuit breaker metrics
	BreakerTransitionsTotal = "governor_breaker_transitions_total"
	BreakerOpen             = "governor_breaker_open"

	// Dependency call metrics
	DependencyCallsTotal   = "governor_dependency_calls_total"
	DependencyCallDuration = "governor_dependency_call_duration_ms"

	// Resource metrics
	ProcessMemoryMB   = "governor_process_memory_mb"
	ProcessCPUPercent = "governor_process_cpu_percent"

	// Health check metrics
	HealthCheckTotal    = "governor_health_check_total"
	HealthCheckDuration = "governor_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "governor_server_start_time_seconds"
	ServerUptime    = "governor_server_uptime_seconds"
)

// RecordRequest records one governed unit of work with its outcome
func RecordRequest(class string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RequestsTotal,
			1,
			map[string]string{
				"class":  class,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			RequestDuration,
			duration,
			map[string]string{
				"class": class,
			},
		)
	}
}

// RecordThrottleRejection records a request rejected by the rate limiter
func RecordThrottleRejection(class string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ThrottleRejectionsTotal,
			1,
			map[string]string{
				"class": class,
			},
		)
	}
}

// SetDegradedMode records whether reduced throttle profiles are active
func SetDegradedMode(active bool) {
	value := 0.0
	if active {
		value = 1.0
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			DegradedMode,
			value,
			nil,
		)
	}
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(dependency string, from, to string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BreakerTransitionsTotal,
			1,
			map[string]string{
				"dependency": dependency,
				"from":       from,
				"to":         to,
			},
		)
	}
}

// SetBreakerOpen records whether a dependency's breaker is open
func SetBreakerOpen(dependency string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			BreakerOpen,
			value,
			map[string]string{
				"dependency": dependency,
			},
		)
	}
}

// RecordDependencyCall records one outbound call to an external dependency
func RecordDependencyCall(dependency string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			DependencyCallsTotal,
			1,
			map[string]string{
				"dependency": dependency,
				"status":     status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			DependencyCallDuration,
			duration,
			map[string]string{
				"dependency": dependency,
			},
		)
	}
}

// SetResourceUsage records current process memory and CPU consumption
func SetResourceUsage(memoryMB, cpuPercent float64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ProcessMemoryMB, memoryMB, nil)
		_ = observability.TelemetrySystem.Gauge(ProcessCPUPercent, cpuPercent, nil)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
