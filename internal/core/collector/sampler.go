package collector

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ResourceSample holds one measurement of process resource consumption.
type ResourceSample struct {
	CPUPercent float64
	MemoryMB   float64
}

// Sampler measures the current process. Implementations may block for up to
// a second (CPU measurement needs a sampling window), so callers must never
// invoke them on a request path.
type Sampler func(ctx context.Context) (ResourceSample, error)

// ProcessSampler returns a Sampler backed by gopsutil for the current
// process. CPU percent is measured over a forced one-second window, matching
// what the resource monitor compares against its thresholds.
func ProcessSampler() (Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (ResourceSample, error) {
		cpu, err := proc.PercentWithContext(ctx, time.Second)
		if err != nil {
			return ResourceSample{}, err
		}

		mi, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			return ResourceSample{}, err
		}

		return ResourceSample{
			CPUPercent: cpu,
			MemoryMB:   float64(mi.RSS) / 1024 / 1024,
		}, nil
	}, nil
}
