// Package health runs on-demand, concurrent probes against the assistant's
// external dependencies and caches the aggregate result.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/metrics"
)

// Probe status labels.
const (
	StatusHealthy       = "healthy"
	StatusDegraded      = "degraded"
	StatusTimeout       = "timeout"
	StatusError         = "error"
	StatusConfigured    = "configured"
	StatusNotConfigured = "not_configured"
)

// Result is the normalized outcome of one dependency probe.
type Result struct {
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	Healthy      bool    `json:"healthy"`
	ResponseTime float64 `json:"response_time,omitempty"`
}

// Prober checks one dependency. Implementations own their transport and
// timeout; they report failures as Results, never as panics or errors that
// could abort sibling probes.
type Prober interface {
	Name() core.Dependency
	Probe(ctx context.Context) Result
}

// DefaultCacheTTL bounds how stale a cached aggregate may be served.
const DefaultCacheTTL = 30 * time.Second

// Monitor fans probes out concurrently and caches the aggregate with a TTL.
type Monitor struct {
	probers []Prober
	ttl     time.Duration
	clock   func() time.Time
	log     *logging.Logger

	mu        sync.Mutex
	cached    map[core.Dependency]Result
	lastCheck time.Time
}

// NewMonitor builds a monitor over the given probes. ttl <= 0 selects
// DefaultCacheTTL.
func NewMonitor(probers []Prober, ttl time.Duration, log *logging.Logger) *Monitor {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Monitor{
		probers: probers,
		ttl:     ttl,
		clock:   time.Now,
		log:     log,
	}
}

// CheckAll probes every dependency concurrently and returns the per-
// dependency results. A fresh cached aggregate is returned unless force is
// set.
func (m *Monitor) CheckAll(ctx context.Context, force bool) map[core.Dependency]Result {
	m.mu.Lock()
	if !force && m.cached != nil && m.clock().Sub(m.lastCheck) < m.ttl {
		cached := copyResults(m.cached)
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	if m.log != nil {
		m.log.Info("probing all external dependencies",
			zap.Int("probes", len(m.probers)),
			zap.Bool("force", force))
	}

	results := make(map[core.Dependency]Result, len(m.probers))
	var wg sync.WaitGroup
	var resMu sync.Mutex

	for _, prober := range m.probers {
		wg.Add(1)
		go func(p Prober) {
			defer wg.Done()

			start := m.clock()
			result := m.runProbe(ctx, p)
			metrics.RecordHealthCheck(string(p.Name()), result.Healthy, m.clock().Sub(start))

			resMu.Lock()
			results[p.Name()] = result
			resMu.Unlock()
		}(prober)
	}
	wg.Wait()

	m.mu.Lock()
	m.cached = copyResults(results)
	m.lastCheck = m.clock()
	m.mu.Unlock()

	return results
}

// runProbe contains a single probe's failures: a panic inside the probe
// becomes a failed Result and never aborts the sibling probes.
func (m *Monitor) runProbe(ctx context.Context, p Prober) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			if m.log != nil {
				m.log.Error("health probe panicked",
					zap.String("dependency", string(p.Name())),
					zap.Any("panic", r))
			}
			result = Result{
				Status:  StatusError,
				Message: Truncate(fmt.Sprintf("probe panic: %v", r)),
				Healthy: false,
			}
		}
	}()

	return p.Probe(ctx)
}

// Aggregate folds per-dependency results into one system label. A
// dependency that is simply not configured never counts against the
// system. One failing dependency degrades the system, two or more make
// it unhealthy.
func Aggregate(checks map[core.Dependency]Result) string {
	unhealthy := 0
	for _, result := range checks {
		if !result.Healthy && result.Status != StatusNotConfigured {
			unhealthy++
		}
	}

	switch {
	case unhealthy == 0:
		return StatusHealthy
	case unhealthy == 1:
		return StatusDegraded
	default:
		return "unhealthy"
	}
}

func copyResults(in map[core.Dependency]Result) map[core.Dependency]Result {
	out := make(map[core.Dependency]Result, len(in))
	for dep, r := range in {
		out[dep] = r
	}
	return out
}

// maxMessageLen bounds probe messages; upstream error text can be huge.
const maxMessageLen = 120

// Truncate clips a probe message to maxMessageLen runes.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxMessageLen {
		return s
	}
	return string(runes[:maxMessageLen])
}
