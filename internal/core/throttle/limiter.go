// Package throttle implements admission control: a dual sliding-window rate
// limiter per operation class and a manager that swaps every limiter between
// normal and degraded profiles.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Config bounds one operation class's throughput.
type Config struct {
	// PerSecond caps acquisitions inside any trailing one-second window.
	PerSecond int `mapstructure:"per_second" json:"per_second"`

	// PerMinute caps acquisitions inside any trailing sixty-second window.
	PerMinute int `mapstructure:"per_minute" json:"per_minute"`

	// Burst is advisory sizing for callers that batch work.
	Burst int `mapstructure:"burst" json:"burst"`
}

const (
	secondWindow = time.Second
	minuteWindow = time.Minute
)

// RateLimiter counts acquisitions against two trailing windows using
// timestamp queues. The check-prune-append sequence runs under an exclusive
// per-limiter lock; the lock is never held across a sleep.
type RateLimiter struct {
	mu     sync.Mutex
	cfg    Config
	second []time.Time
	minute []time.Time

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter builds a limiter for one operation class.
func NewRateLimiter(cfg Config) *RateLimiter {
	return &RateLimiter{
		cfg:    cfg,
		second: make([]time.Time, 0, cfg.PerSecond*2),
		minute: make([]time.Time, 0, cfg.PerMinute*2),
		clock:  time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config returns the configuration the limiter was built from.
func (l *RateLimiter) Config() Config {
	return l.cfg
}

// Acquire attempts to admit one unit of work. With wait=false a full window
// rejects immediately. With wait=true the caller sleeps exactly until the
// violated window's oldest timestamp ages out, then retries once without
// waiting; a single expiry is enough to make room, so the retry is bounded.
func (l *RateLimiter) Acquire(ctx context.Context, wait bool) bool {
	admitted, delay := l.tryAcquire()
	if admitted || !wait {
		return admitted
	}

	if err := l.sleep(ctx, delay); err != nil {
		return false
	}

	admitted, _ = l.tryAcquire()
	return admitted
}

// tryAcquire runs one check-prune-append pass. On rejection it reports how
// long until the violated window frees a slot.
func (l *RateLimiter) tryAcquire() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.second = prune(l.second, now.Add(-secondWindow))
	l.minute = prune(l.minute, now.Add(-minuteWindow))

	if len(l.second) >= l.cfg.PerSecond {
		return false, secondWindow - now.Sub(l.second[0])
	}
	if len(l.minute) >= l.cfg.PerMinute {
		return false, minuteWindow - now.Sub(l.minute[0])
	}

	l.second = append(l.second, now)
	l.minute = append(l.minute, now)
	return true, 0
}

// prune drops queue entries at or before the cutoff, keeping order.
func prune(queue []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(queue) && !queue[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return queue
	}
	return append(queue[:0], queue[idx:]...)
}
