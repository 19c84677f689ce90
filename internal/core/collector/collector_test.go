package collector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgermate/governor/internal/core"
)

func newTestCollector() *Collector {
	return New(Config{Clock: func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}})
}

func TestRecordRequestKeepsCountInvariant(t *testing.T) {
	c := newTestCollector()

	c.RecordRequest(core.ClassText, 10*time.Millisecond, true)
	c.RecordRequest(core.ClassText, 20*time.Millisecond, false)
	c.RecordRequest(core.ClassText, 30*time.Millisecond, true)
	c.RecordRequest(core.ClassAI, 40*time.Millisecond, false)

	stats := c.RequestClassStats()
	for class, m := range stats {
		require.Equal(t, m.Count, m.Success+m.Errors, "class %s: count must equal success+errors", class)
	}
	require.Equal(t, int64(3), stats[core.ClassText].Count)
	require.Equal(t, int64(2), stats[core.ClassText].Success)
	require.Equal(t, int64(1), stats[core.ClassText].Errors)
	require.Equal(t, 20*time.Millisecond, stats[core.ClassText].AvgDuration())
}

func TestRecordServiceCallKeepsTotalInvariant(t *testing.T) {
	c := newTestCollector()

	c.RecordServiceCall(core.DepAI, true, 100*time.Millisecond, "")
	c.RecordServiceCall(core.DepAI, false, 200*time.Millisecond, "rate limited")
	c.RecordServiceCall(core.DepAI, true, 300*time.Millisecond, "")

	status, ok := c.ServiceSnapshot(core.DepAI)
	require.True(t, ok)
	require.Equal(t, status.TotalCalls, status.SuccessCalls+status.FailedCalls)
	require.Equal(t, int64(3), status.TotalCalls)
	require.Equal(t, "rate limited", status.LastError)
	require.False(t, status.LastFailure.IsZero())
}

func TestRecordServiceCallIncrementalMean(t *testing.T) {
	c := newTestCollector()

	c.RecordServiceCall(core.DepStorage, true, 100*time.Millisecond, "")
	status, _ := c.ServiceSnapshot(core.DepStorage)
	require.Equal(t, 100*time.Millisecond, status.AvgResponseTime)

	c.RecordServiceCall(core.DepStorage, true, 300*time.Millisecond, "")
	status, _ = c.ServiceSnapshot(core.DepStorage)
	require.Equal(t, 200*time.Millisecond, status.AvgResponseTime)
}

func TestRecordServiceCallUnknownDependencyIsNoOp(t *testing.T) {
	c := newTestCollector()

	c.RecordServiceCall(core.Dependency("charts"), false, time.Second, "boom")

	_, ok := c.ServiceSnapshot(core.Dependency("charts"))
	require.False(t, ok)
	for _, status := range c.ServicesStatus() {
		require.Zero(t, status.TotalCalls)
	}
}

func TestServiceHealthVacuouslyTrueWithoutCalls(t *testing.T) {
	var status ServiceStatus
	require.True(t, status.Healthy())
	require.Equal(t, 100.0, status.SuccessRate())
}

func TestServiceHealthDropsBelowThreshold(t *testing.T) {
	c := newTestCollector()

	// 19 successes + 1 failure = 95%, still healthy.
	for i := 0; i < 19; i++ {
		c.RecordServiceCall(core.DepChat, true, time.Millisecond, "")
	}
	c.RecordServiceCall(core.DepChat, false, time.Millisecond, "timeout")
	status, _ := c.ServiceSnapshot(core.DepChat)
	require.True(t, status.Healthy())

	c.RecordServiceCall(core.DepChat, false, time.Millisecond, "timeout")
	status, _ = c.ServiceSnapshot(core.DepChat)
	require.False(t, status.Healthy())
}

func TestPercentilesNearestRank(t *testing.T) {
	c := newTestCollector()

	// 100 samples: 0ms..99ms.
	for i := 0; i < 100; i++ {
		c.RecordRequest(core.ClassText, time.Duration(i)*time.Millisecond, true)
	}

	p := c.ResponseTimePercentiles()
	require.Equal(t, 50*time.Millisecond, p.P50)
	require.Equal(t, 95*time.Millisecond, p.P95)
	require.Equal(t, 99*time.Millisecond, p.P99)
}

func TestPercentilesEmptyWindow(t *testing.T) {
	c := newTestCollector()
	require.Equal(t, Percentiles{}, c.ResponseTimePercentiles())
}

func TestLatencyWindowEvictsOldest(t *testing.T) {
	c := newTestCollector()

	// Overfill the window; only the most recent latencyWindow samples count.
	for i := 0; i < latencyWindow; i++ {
		c.RecordRequest(core.ClassText, time.Hour, true)
	}
	for i := 0; i < latencyWindow; i++ {
		c.RecordRequest(core.ClassText, time.Millisecond, true)
	}

	p := c.ResponseTimePercentiles()
	require.Equal(t, time.Millisecond, p.P99, "old samples must be evicted")
}

func TestOverallHealthQuorum(t *testing.T) {
	c := newTestCollector()
	require.Equal(t, "healthy", c.OverallHealth())

	// One unhealthy dependency degrades the system.
	c.RecordServiceCall(core.DepAI, false, time.Millisecond, "down")
	require.Equal(t, "degraded", c.OverallHealth())

	// A second unhealthy dependency marks it unhealthy.
	c.RecordServiceCall(core.DepStorage, false, time.Millisecond, "down")
	require.Equal(t, "unhealthy", c.OverallHealth())
}

func TestSummaryAggregatesRequestTotals(t *testing.T) {
	c := newTestCollector()

	c.RecordRequest(core.ClassText, 10*time.Millisecond, true)
	c.RecordRequest(core.ClassVoice, 20*time.Millisecond, false)

	s := c.Summary()
	require.Equal(t, int64(2), s.Requests.Total)
	require.Equal(t, int64(1), s.Requests.Success)
	require.Equal(t, int64(1), s.Requests.Errors)
	require.Equal(t, 50.0, s.Requests.SuccessRate)
	require.Equal(t, "healthy", s.Status)
}

func TestResourceSamplingLoop(t *testing.T) {
	sampled := make(chan struct{}, 10)
	c := New(Config{
		SampleInterval: 5 * time.Millisecond,
		Sampler: func(ctx context.Context) (ResourceSample, error) {
			select {
			case sampled <- struct{}{}:
			default:
			}
			return ResourceSample{CPUPercent: 12.5, MemoryMB: 256}, nil
		},
	})

	require.NoError(t, c.Start(context.Background()))
	select {
	case <-sampled:
	case <-time.After(time.Second):
		t.Fatal("sampler was never invoked")
	}
	c.Stop()

	require.InDelta(t, 12.5, c.CPUPercent(), 0.001)
	require.InDelta(t, 256, c.MemoryMB(), 0.001)
}

func TestConcurrentRecordingIsRaceFree(t *testing.T) {
	c := newTestCollector()

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.RecordRequest(core.ClassText, time.Millisecond, i%2 == 0)
				c.RecordServiceCall(core.DepChat, i%3 != 0, time.Millisecond, fmt.Sprintf("err %d", worker))
			}
		}(worker)
	}
	wg.Wait()

	stats := c.RequestClassStats()
	require.Equal(t, int64(1600), stats[core.ClassText].Count)
	require.Equal(t, stats[core.ClassText].Count, stats[core.ClassText].Success+stats[core.ClassText].Errors)

	status, _ := c.ServiceSnapshot(core.DepChat)
	require.Equal(t, int64(1600), status.TotalCalls)
	require.Equal(t, status.TotalCalls, status.SuccessCalls+status.FailedCalls)
}
