// Package collector tracks per-operation-class request metrics and
// per-dependency call outcomes, and samples process resource consumption
// into bounded windows for the reporting layer.
package collector

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/metrics"
)

const (
	// latencyWindow bounds the response-time buffer used for percentiles.
	latencyWindow = 1000

	// resourceWindow bounds the CPU/memory sample buffers: 60 samples at the
	// default 5s interval is roughly five minutes of history.
	resourceWindow = 60

	defaultSampleInterval = 5 * time.Second

	// healthySuccessRate is the per-dependency success-rate floor below which
	// a dependency with at least one call counts as unhealthy.
	healthySuccessRate = 0.95
)

// ServiceStatus summarizes the lifetime call history of one dependency.
// Invariant: TotalCalls == SuccessCalls + FailedCalls.
type ServiceStatus struct {
	TotalCalls      int64         `json:"total_calls"`
	SuccessCalls    int64         `json:"success_calls"`
	FailedCalls     int64         `json:"failed_calls"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	LastSuccess     time.Time     `json:"last_success,omitzero"`
	LastFailure     time.Time     `json:"last_failure,omitzero"`
	LastError       string        `json:"last_error,omitempty"`
}

// Healthy reports whether the dependency's success rate is acceptable.
// A dependency with no calls yet is vacuously healthy.
func (s ServiceStatus) Healthy() bool {
	if s.TotalCalls == 0 {
		return true
	}
	return float64(s.SuccessCalls)/float64(s.TotalCalls) >= healthySuccessRate
}

// SuccessRate returns the lifetime success rate as a percentage.
func (s ServiceStatus) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 100.0
	}
	return float64(s.SuccessCalls) / float64(s.TotalCalls) * 100
}

// RequestMetrics accumulates outcomes for one operation class.
// Invariant: Count == Success + Errors.
type RequestMetrics struct {
	Count         int64         `json:"count"`
	Success       int64         `json:"success"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
}

// AvgDuration returns the mean request duration, or 0 with no requests.
func (m RequestMetrics) AvgDuration() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.Count)
}

// SuccessRate returns the success rate as a percentage.
func (m RequestMetrics) SuccessRate() float64 {
	if m.Count == 0 {
		return 100.0
	}
	return float64(m.Success) / float64(m.Count) * 100
}

// Percentiles holds nearest-rank response-time percentiles over the
// latency window.
type Percentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// Config configures a Collector. Zero values select defaults.
type Config struct {
	// SampleInterval is the pause between resource samples.
	SampleInterval time.Duration

	// Sampler measures process resources. Defaults to ProcessSampler.
	Sampler Sampler

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	// Logger receives warnings (unknown dependency names, sampling errors).
	Logger *logging.Logger
}

// Collector is safe for concurrent use by request handlers and the resource
// sampling loop. Request, service, and resource state are guarded by
// separate locks so unrelated recorders never serialize on each other.
type Collector struct {
	start    time.Time
	clock    func() time.Time
	interval time.Duration
	sampler  Sampler
	log      *logging.Logger

	reqMu     sync.Mutex
	requests  map[core.Class]*RequestMetrics
	latencies *latencyRing

	svcMu    sync.Mutex
	services map[core.Dependency]*ServiceStatus

	resMu sync.Mutex
	cpu   *sampleRing
	mem   *sampleRing

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Collector with a ServiceStatus slot for every tracked
// dependency. Call Start to begin resource sampling.
func New(cfg Config) *Collector {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = defaultSampleInterval
	}

	services := make(map[core.Dependency]*ServiceStatus, len(core.Dependencies()))
	for _, dep := range core.Dependencies() {
		services[dep] = &ServiceStatus{}
	}

	return &Collector{
		start:     cfg.Clock(),
		clock:     cfg.Clock,
		interval:  cfg.SampleInterval,
		sampler:   cfg.Sampler,
		log:       cfg.Logger,
		requests:  make(map[core.Class]*RequestMetrics),
		latencies: newLatencyRing(latencyWindow),
		services:  services,
		cpu:       newSampleRing(resourceWindow),
		mem:       newSampleRing(resourceWindow),
	}
}

// Start launches the background resource-sampling loop. It is a no-op when
// no sampler is configured and ProcessSampler cannot be constructed.
func (c *Collector) Start(ctx context.Context) error {
	if c.sampler == nil {
		sampler, err := ProcessSampler()
		if err != nil {
			return err
		}
		c.sampler = sampler
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go c.sampleLoop(ctx)

	if c.log != nil {
		c.log.Info("metrics collector started",
			zap.Duration("sample_interval", c.interval))
	}
	return nil
}

// Stop cancels the sampling loop and waits for it to exit.
func (c *Collector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil

	if c.log != nil {
		c.log.Info("metrics collector stopped")
	}
}

func (c *Collector) sampleLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := c.sampler(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if c.log != nil {
					c.log.Warn("resource sampling failed", zap.Error(err))
				}
				continue
			}

			c.resMu.Lock()
			c.cpu.append(sample.CPUPercent)
			c.mem.append(sample.MemoryMB)
			c.resMu.Unlock()

			metrics.SetResourceUsage(sample.MemoryMB, sample.CPUPercent)
			metrics.SetServerUptime(int64(c.clock().Sub(c.start).Seconds()))
		}
	}
}

// RecordRequest records the outcome of one unit of work of the given class.
func (c *Collector) RecordRequest(class core.Class, duration time.Duration, success bool) {
	metrics.RecordRequest(string(class), success, duration)

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	m, ok := c.requests[class]
	if !ok {
		m = &RequestMetrics{}
		c.requests[class] = m
	}

	m.Count++
	m.TotalDuration += duration
	if success {
		m.Success++
	} else {
		m.Errors++
	}

	c.latencies.append(duration)
}

// RecordServiceCall records the outcome of one outbound dependency call.
// The average response time is a lifetime incremental mean, deliberately
// distinct from the windowed latency buffer: dependency status summarizes
// the whole relationship, percentiles summarize recent behavior.
func (c *Collector) RecordServiceCall(dep core.Dependency, success bool, duration time.Duration, errText string) {
	c.svcMu.Lock()
	defer c.svcMu.Unlock()

	status, ok := c.services[dep]
	if !ok {
		if c.log != nil {
			c.log.Warn("call recorded for unknown dependency",
				zap.String("dependency", string(dep)))
		}
		return
	}

	status.TotalCalls++
	if success {
		status.SuccessCalls++
		status.LastSuccess = c.clock()
	} else {
		status.FailedCalls++
		status.LastFailure = c.clock()
		status.LastError = errText
	}

	status.AvgResponseTime += (duration - status.AvgResponseTime) / time.Duration(status.TotalCalls)

	metrics.RecordDependencyCall(string(dep), success, duration)
}

// Uptime returns the elapsed time since the collector was created.
func (c *Collector) Uptime() time.Duration {
	return c.clock().Sub(c.start)
}

// CPUPercent returns the mean CPU usage over the resource window.
func (c *Collector) CPUPercent() float64 {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	return c.cpu.mean()
}

// MemoryMB returns the mean resident memory over the resource window.
func (c *Collector) MemoryMB() float64 {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	return c.mem.mean()
}

// ResponseTimePercentiles computes nearest-rank percentiles over the
// latency window. An empty window yields all-zero percentiles.
func (c *Collector) ResponseTimePercentiles() Percentiles {
	c.reqMu.Lock()
	window := c.latencies.snapshot()
	c.reqMu.Unlock()

	if len(window) == 0 {
		return Percentiles{}
	}

	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	rank := func(pct float64) time.Duration {
		idx := int(math.Floor(float64(len(window)) * pct))
		if idx >= len(window) {
			idx = len(window) - 1
		}
		return window[idx]
	}

	return Percentiles{
		P50: rank(0.50),
		P95: rank(0.95),
		P99: rank(0.99),
	}
}

// OverallHealth aggregates dependency health into a single status label.
// One unhealthy dependency degrades the system; two or more mark it
// unhealthy. The quorum keeps a single noisy dependency from flapping the
// whole-system status.
func (c *Collector) OverallHealth() string {
	c.svcMu.Lock()
	defer c.svcMu.Unlock()

	unhealthy := 0
	for _, status := range c.services {
		if status.TotalCalls > 0 && !status.Healthy() {
			unhealthy++
		}
	}

	switch {
	case unhealthy == 0:
		return "healthy"
	case unhealthy == 1:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// ServiceSnapshot returns a copy of one dependency's status and whether the
// dependency is tracked.
func (c *Collector) ServiceSnapshot(dep core.Dependency) (ServiceStatus, bool) {
	c.svcMu.Lock()
	defer c.svcMu.Unlock()

	status, ok := c.services[dep]
	if !ok {
		return ServiceStatus{}, false
	}
	return *status, true
}

// ServicesStatus returns a copy of every dependency's status.
func (c *Collector) ServicesStatus() map[core.Dependency]ServiceStatus {
	c.svcMu.Lock()
	defer c.svcMu.Unlock()

	out := make(map[core.Dependency]ServiceStatus, len(c.services))
	for dep, status := range c.services {
		out[dep] = *status
	}
	return out
}

// RequestClassStats returns a copy of per-class metrics for classes that
// have seen at least one request.
func (c *Collector) RequestClassStats() map[core.Class]RequestMetrics {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	out := make(map[core.Class]RequestMetrics, len(c.requests))
	for class, m := range c.requests {
		if m.Count > 0 {
			out[class] = *m
		}
	}
	return out
}

// RequestTotals aggregates request outcomes across all classes.
type RequestTotals struct {
	Total       int64   `json:"total"`
	Success     int64   `json:"success"`
	Errors      int64   `json:"errors"`
	SuccessRate float64 `json:"success_rate"`
}

// Summary is the operator-facing snapshot served by the reporting layer.
type Summary struct {
	Status        string        `json:"status"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	MemoryMB      float64       `json:"memory_mb"`
	CPUPercent    float64       `json:"cpu_percent"`
	Requests      RequestTotals `json:"requests"`
	ResponseTimes Percentiles   `json:"response_times"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Summary assembles the full reporting snapshot.
func (c *Collector) Summary() Summary {
	totals := RequestTotals{SuccessRate: 100.0}

	c.reqMu.Lock()
	for _, m := range c.requests {
		totals.Total += m.Count
		totals.Success += m.Success
		totals.Errors += m.Errors
	}
	c.reqMu.Unlock()

	if totals.Total > 0 {
		totals.SuccessRate = float64(totals.Success) / float64(totals.Total) * 100
	}

	return Summary{
		Status:        c.OverallHealth(),
		UptimeSeconds: int64(c.Uptime().Seconds()),
		MemoryMB:      c.MemoryMB(),
		CPUPercent:    c.CPUPercent(),
		Requests:      totals,
		ResponseTimes: c.ResponseTimePercentiles(),
		Timestamp:     c.clock(),
	}
}
