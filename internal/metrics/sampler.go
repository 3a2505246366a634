package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultSampleInterval is used when SampleUsage gets a non-positive interval.
const DefaultSampleInterval = 15 * time.Second

// SampleUsage polls CPU and resident memory of pid every interval and
// publishes them through SetMainUsage until ctx is done or the process is gone.
func SampleUsage(ctx context.Context, pid int, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		log.Debug("usage sampler: process lookup failed", "pid", pid, "error", err)
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if !sampleOnce(ctx, p) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func sampleOnce(ctx context.Context, p *process.Process) bool {
	if running, err := p.IsRunningWithContext(ctx); err != nil || !running {
		return false
	}
	cpu, err := p.PercentWithContext(ctx, 0)
	if err != nil {
		return false
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return false
	}
	SetMainUsage(cpu, mem.RSS)
	return true
}
