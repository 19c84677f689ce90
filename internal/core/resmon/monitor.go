// Package resmon watches process resource consumption and drives the
// throttle manager's operating mode. It is the only component that switches
// degraded mode on or off.
package resmon

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ledgermate/governor/internal/core/collector"
)

// ModeSwitcher is the slice of the throttle manager the monitor drives.
type ModeSwitcher interface {
	EnableDegradedMode()
	DisableDegradedMode()
}

// Config tunes the monitor. Zero values select defaults.
type Config struct {
	// MemoryThresholdMB is the resident-memory ceiling; crossings also
	// trigger a GC sweep.
	MemoryThresholdMB float64 `mapstructure:"memory_threshold_mb"`

	// CPUThresholdPercent is the CPU ceiling.
	CPUThresholdPercent float64 `mapstructure:"cpu_threshold_percent"`

	// CheckInterval is the pause between resource checks.
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// DefaultConfig mirrors the shipped thresholds.
func DefaultConfig() Config {
	return Config{
		MemoryThresholdMB:   400,
		CPUThresholdPercent: 75,
		CheckInterval:       5 * time.Minute,
	}
}

// Monitor periodically samples process resources, edge-triggers degraded
// mode, and remediates memory pressure with a synchronous GC sweep. The
// sampler blocks for about a second per check, so the loop runs on its own
// goroutine, never a request path.
type Monitor struct {
	cfg      Config
	sampler  collector.Sampler
	switcher ModeSwitcher
	log      *logging.Logger

	mu       sync.RWMutex
	degraded bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a monitor. sampler may be nil, in which case Start constructs a
// process-backed one.
func New(cfg Config, sampler collector.Sampler, switcher ModeSwitcher, log *logging.Logger) *Monitor {
	if cfg.MemoryThresholdMB <= 0 {
		cfg.MemoryThresholdMB = DefaultConfig().MemoryThresholdMB
	}
	if cfg.CPUThresholdPercent <= 0 {
		cfg.CPUThresholdPercent = DefaultConfig().CPUThresholdPercent
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}

	return &Monitor{
		cfg:      cfg,
		sampler:  sampler,
		switcher: switcher,
		log:      log,
	}
}

// Start launches the monitoring loop.
func (m *Monitor) Start(ctx context.Context) error {
	if m.sampler == nil {
		sampler, err := collector.ProcessSampler()
		if err != nil {
			return err
		}
		m.sampler = sampler
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go m.loop(ctx)

	if m.log != nil {
		m.log.Info("resource monitoring started",
			zap.Duration("interval", m.cfg.CheckInterval),
			zap.Float64("memory_threshold_mb", m.cfg.MemoryThresholdMB),
			zap.Float64("cpu_threshold_percent", m.cfg.CPUThresholdPercent))
	}
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil

	if m.log != nil {
		m.log.Info("resource monitoring stopped")
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one sample-decide-act pass. Transitions are edge-triggered:
// only a change in the decision flips the throttle mode, so repeated
// identical decisions are no-ops and the mode never churns on every poll.
func (m *Monitor) check(ctx context.Context) {
	sample, err := m.sampler(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if m.log != nil {
			m.log.Error("resource check failed", zap.Error(err))
		}
		return
	}

	if m.log != nil {
		m.log.Debug("resource check",
			zap.Float64("memory_mb", sample.MemoryMB),
			zap.Float64("cpu_percent", sample.CPUPercent))
	}

	memoryHigh := sample.MemoryMB > m.cfg.MemoryThresholdMB
	cpuHigh := sample.CPUPercent > m.cfg.CPUThresholdPercent
	shouldDegrade := memoryHigh || cpuHigh

	if memoryHigh {
		if m.log != nil {
			m.log.Warn("high memory usage detected",
				zap.Float64("memory_mb", sample.MemoryMB),
				zap.Float64("threshold_mb", m.cfg.MemoryThresholdMB))
		}
		m.sweep()
	} else if cpuHigh && m.log != nil {
		m.log.Warn("high cpu usage detected",
			zap.Float64("cpu_percent", sample.CPUPercent),
			zap.Float64("threshold_percent", m.cfg.CPUThresholdPercent))
	}

	m.mu.Lock()
	changed := shouldDegrade != m.degraded
	m.degraded = shouldDegrade
	m.mu.Unlock()

	if !changed {
		return
	}

	if shouldDegrade {
		m.switcher.EnableDegradedMode()
	} else {
		if m.log != nil {
			m.log.Info("resources back to normal, exiting degraded mode")
		}
		m.switcher.DisableDegradedMode()
	}
}

// sweep runs a synchronous garbage collection and returns freed memory to
// the OS, logging heap usage before and after. This remediates memory
// pressure directly, in addition to the throttling the mode switch applies.
func (m *Monitor) sweep() {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	runtime.GC()
	debug.FreeOSMemory()

	runtime.ReadMemStats(&after)

	if m.log != nil {
		m.log.Info("garbage collection sweep completed",
			zap.Float64("heap_before_mb", float64(before.HeapAlloc)/1024/1024),
			zap.Float64("heap_after_mb", float64(after.HeapAlloc)/1024/1024))
	}
}

// ShouldThrottle reports whether the monitor currently holds the system in
// degraded mode. Read-only; reporting code uses it.
func (m *Monitor) ShouldThrottle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}
