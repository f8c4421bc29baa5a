package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics is a MetricsProvider reporting host memory, CPU and process
// uptime.
type SystemMetrics struct {
	started time.Time
	memory  func(context.Context) (*mem.VirtualMemoryStat, error)
	percent func(context.Context, time.Duration, bool) ([]float64, error)
	counts  func(context.Context, bool) (int, error)
}

// NewSystemMetrics creates a SystemMetrics provider. Uptime is measured from
// started; a zero value means now.
func NewSystemMetrics(started time.Time) *SystemMetrics {
	if started.IsZero() {
		started = time.Now()
	}
	return &SystemMetrics{
		started: started,
		memory:  mem.VirtualMemoryWithContext,
		percent: cpu.PercentWithContext,
		counts:  cpu.CountsWithContext,
	}
}

// Snapshot returns {"memory": {...}, "cpu": {...}, "uptime": seconds}.
// Sections whose source fails are omitted; nil is returned when nothing
// could be read.
func (s *SystemMetrics) Snapshot(ctx context.Context) map[string]any {
	out := make(map[string]any, 3)

	if vm, err := s.memory(ctx); err == nil {
		out["memory"] = map[string]any{
			"total":     vm.Total,
			"used":      vm.Used,
			"available": vm.Available,
			"percent":   vm.UsedPercent,
		}
	}

	cpuInfo := make(map[string]any, 2)
	// Interval 0 compares against the previous call instead of sleeping.
	if pct, err := s.percent(ctx, 0, false); err == nil && len(pct) > 0 {
		cpuInfo["percent"] = pct[0]
	}
	if n, err := s.counts(ctx, true); err == nil {
		cpuInfo["count"] = n
	}
	if len(cpuInfo) > 0 {
		out["cpu"] = cpuInfo
	}

	if len(out) == 0 {
		return nil
	}
	out["uptime"] = time.Since(s.started).Seconds()
	return out
}

var _ MetricsProvider = (*SystemMetrics)(nil)
