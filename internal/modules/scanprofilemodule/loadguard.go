package scanprofilemodule

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/metrics"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const defaultGuardInterval = 500 * time.Millisecond

// LoadSample is one reading of host utilisation in percent
type LoadSample struct {
	CPUPercent    float64
	MemoryPercent float64
}

// LoadSampler reads the current host load
type LoadSampler func(ctx context.Context) (LoadSample, error)

// SystemLoadSampler samples CPU over a short window and virtual memory use
func SystemLoadSampler(ctx context.Context) (LoadSample, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return LoadSample{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return LoadSample{}, err
	}

	sample := LoadSample{MemoryPercent: vm.UsedPercent}
	if len(cpuPercents) > 0 {
		sample.CPUPercent = cpuPercents[0]
	}
	return sample, nil
}

// LoadGuard holds generator calls back while the host is busy
type LoadGuard struct {
	CPUThreshold    float64
	MemoryThreshold float64
	MaxWait         time.Duration
	Interval        time.Duration
	Sampler         LoadSampler

	logger hclog.Logger
}

// NewLoadGuard creates a guard sampling the host with gopsutil
func NewLoadGuard(cpuThreshold, memoryThreshold float64, maxWait time.Duration, log hclog.Logger) *LoadGuard {
	return &LoadGuard{
		CPUThreshold:    cpuThreshold,
		MemoryThreshold: memoryThreshold,
		MaxWait:         maxWait,
		Interval:        defaultGuardInterval,
		Sampler:         SystemLoadSampler,
		logger:          logger.OrNull(log).Named("load-guard"),
	}
}

func (g *LoadGuard) overloaded(s LoadSample) bool {
	return (g.CPUThreshold > 0 && s.CPUPercent > g.CPUThreshold) ||
		(g.MemoryThreshold > 0 && s.MemoryPercent > g.MemoryThreshold)
}

// Wait blocks while the host is above either threshold. It gives up after
// MaxWait, when ctx is done, or when sampling fails, and returns the time spent.
func (g *LoadGuard) Wait(ctx context.Context) time.Duration {
	if g == nil || g.Sampler == nil {
		return 0
	}
	interval := g.Interval
	if interval <= 0 {
		interval = defaultGuardInterval
	}

	start := time.Now()
	defer func() {
		metrics.ThrottleWaitSeconds.Add(time.Since(start).Seconds())
	}()

	for {
		sample, err := g.Sampler(ctx)
		if err != nil {
			g.logger.Debug("load sampling failed", "error", err)
			return time.Since(start)
		}
		if !g.overloaded(sample) {
			return time.Since(start)
		}

		waited := time.Since(start)
		if g.MaxWait > 0 && waited >= g.MaxWait {
			g.logger.Warn("host still busy, continuing scan",
				"cpu_percent", sample.CPUPercent,
				"memory_percent", sample.MemoryPercent,
				"waited", waited)
			return waited
		}

		select {
		case <-ctx.Done():
			return time.Since(start)
		case <-time.After(interval):
		}
	}
}
