package throttle

import (
	"context"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ledgermate/governor/internal/core"
)

// Profiles holds the two throttle configurations ever in use. The resource
// monitor is the only component that switches between them.
type Profiles struct {
	Normal   Config `mapstructure:"normal" json:"normal"`
	Degraded Config `mapstructure:"degraded" json:"degraded"`
}

// DefaultProfiles mirrors the shipped configuration.
func DefaultProfiles() Profiles {
	return Profiles{
		Normal:   Config{PerSecond: 10, PerMinute: 100, Burst: 5},
		Degraded: Config{PerSecond: 2, PerMinute: 30, Burst: 2},
	}
}

// Manager owns one RateLimiter per operation class and swaps their
// configuration between the normal and degraded profiles.
type Manager struct {
	mu       sync.RWMutex
	limiters map[core.Class]*RateLimiter
	profiles Profiles
	degraded bool
	log      *logging.Logger
}

// NewManager builds limiters for every operation class from the normal
// profile.
func NewManager(profiles Profiles, log *logging.Logger) *Manager {
	m := &Manager{
		profiles: profiles,
		log:      log,
	}
	m.limiters = buildLimiters(profiles.Normal)
	return m
}

func buildLimiters(cfg Config) map[core.Class]*RateLimiter {
	limiters := make(map[core.Class]*RateLimiter, len(core.Classes()))
	for _, class := range core.Classes() {
		limiters[class] = NewRateLimiter(cfg)
	}
	return limiters
}

// Acquire admits or rejects one unit of work of the given class. Unknown
// classes are admitted with a warning rather than failing: admission control
// protects resources, it does not validate routing.
func (m *Manager) Acquire(ctx context.Context, class core.Class, wait bool) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[class]
	m.mu.RUnlock()

	if !ok {
		if m.log != nil {
			m.log.Warn("acquire for unknown operation class",
				zap.String("class", string(class)))
		}
		return true
	}

	return limiter.Acquire(ctx, wait)
}

// EnableDegradedMode atomically replaces every class's limiter with one
// built from the degraded profile. Idempotent.
func (m *Manager) EnableDegradedMode() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.degraded {
		return
	}
	m.degraded = true
	m.limiters = buildLimiters(m.profiles.Degraded)

	if m.log != nil {
		m.log.Warn("degraded mode enabled, stricter rate limits applied",
			zap.Int("per_second", m.profiles.Degraded.PerSecond),
			zap.Int("per_minute", m.profiles.Degraded.PerMinute))
	}
}

// DisableDegradedMode reverts every class's limiter to the normal profile.
// Idempotent.
func (m *Manager) DisableDegradedMode() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.degraded {
		return
	}
	m.degraded = false
	m.limiters = buildLimiters(m.profiles.Normal)

	if m.log != nil {
		m.log.Info("degraded mode disabled, normal rate limits restored")
	}
}

// Degraded reports whether the degraded profile is active.
func (m *Manager) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// ClassConfig returns the configuration currently applied to a class.
func (m *Manager) ClassConfig(class core.Class) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limiter, ok := m.limiters[class]
	if !ok {
		return Config{}, false
	}
	return limiter.Config(), true
}
