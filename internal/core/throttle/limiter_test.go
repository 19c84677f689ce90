package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock drives a limiter deterministically; sleep advances it.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(cfg Config, clock *fakeClock) *RateLimiter {
	limiter := NewRateLimiter(cfg)
	limiter.clock = clock.Now
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}
	return limiter
}

func TestRateLimiterPerSecondWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(Config{PerSecond: 3, PerMinute: 100, Burst: 3}, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Acquire(ctx, false), "acquire %d should be admitted", i)
	}
	require.False(t, limiter.Acquire(ctx, false), "fourth acquire should be rejected")

	clock.Advance(1100 * time.Millisecond)
	require.True(t, limiter.Acquire(ctx, false), "acquire after window elapses should be admitted")
}

func TestRateLimiterPerMinuteWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(Config{PerSecond: 100, PerMinute: 2, Burst: 2}, clock)
	ctx := context.Background()

	require.True(t, limiter.Acquire(ctx, false))
	clock.Advance(2 * time.Second)
	require.True(t, limiter.Acquire(ctx, false))
	clock.Advance(2 * time.Second)
	require.False(t, limiter.Acquire(ctx, false), "minute window is full")

	// The first timestamp ages out 60s after it was recorded.
	clock.Advance(57 * time.Second)
	require.True(t, limiter.Acquire(ctx, false))
}

func TestRateLimiterWaitSleepsUntilOldestExpires(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(Config{PerSecond: 1, PerMinute: 100, Burst: 1}, clock)
	ctx := context.Background()

	require.True(t, limiter.Acquire(ctx, false))

	var slept time.Duration
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		clock.Advance(d)
		return nil
	}

	clock.Advance(300 * time.Millisecond)
	require.True(t, limiter.Acquire(ctx, true), "wait path should admit after the oldest entry expires")
	require.Equal(t, 700*time.Millisecond, slept, "delay should be exactly the violated window remainder")
}

func TestRateLimiterWaitRetriesExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(Config{PerSecond: 1, PerMinute: 100, Burst: 1}, clock)
	ctx := context.Background()

	require.True(t, limiter.Acquire(ctx, false))

	// A sleep that frees nothing must not loop: one retry, then rejection.
	calls := 0
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		return nil
	}

	require.False(t, limiter.Acquire(ctx, true))
	require.Equal(t, 1, calls, "wait path retries exactly once")
}

func TestRateLimiterWaitHonorsCancellation(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(Config{PerSecond: 1, PerMinute: 100, Burst: 1}, clock)
	limiter.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, limiter.Acquire(ctx, false))

	cancel()
	require.False(t, limiter.Acquire(ctx, true), "cancelled context rejects instead of sleeping")
}

func TestPruneKeepsRecentEntries(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	queue := []time.Time{
		base,
		base.Add(400 * time.Millisecond),
		base.Add(900 * time.Millisecond),
	}

	pruned := prune(queue, base.Add(500*time.Millisecond))
	require.Len(t, pruned, 1)
	require.Equal(t, base.Add(900*time.Millisecond), pruned[0])
}
