package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// Thresholds holds usage percentages above which a resource probe reports
// Degraded or Unhealthy. Comparisons are strict: usage equal to a threshold
// does not cross it.
type Thresholds struct {
	// WarningPercent triggers a degraded status.
	// Default: 80
	WarningPercent float64

	// CriticalPercent triggers an unhealthy status.
	// Default: 90
	CriticalPercent float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.WarningPercent <= 0 || t.WarningPercent >= 100 {
		t.WarningPercent = 80
	}
	if t.CriticalPercent <= 0 || t.CriticalPercent > 100 {
		t.CriticalPercent = 90
	}
	if t.CriticalPercent < t.WarningPercent {
		t.CriticalPercent = t.WarningPercent
	}
	return t
}

func (t Thresholds) classify(percent float64) Status {
	switch {
	case percent > t.CriticalPercent:
		return StatusUnhealthy
	case percent > t.WarningPercent:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// MemoryCheckerConfig configures the memory health checker.
type MemoryCheckerConfig struct {
	Thresholds
}

// MemoryChecker checks host virtual memory usage.
type MemoryChecker struct {
	config MemoryCheckerConfig
	stat   func(context.Context) (*mem.VirtualMemoryStat, error)
}

// NewMemoryChecker creates a new memory health checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	config.Thresholds = config.Thresholds.withDefaults()
	return &MemoryChecker{config: config, stat: mem.VirtualMemoryWithContext}
}

// Name returns the name of this checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check performs the memory health check.
func (m *MemoryChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()

	vm, err := m.stat(ctx)
	if err != nil {
		return Unhealthy(m.Name(), fmt.Sprintf("memory check failed: %v", err), err).
			WithDuration(time.Since(start))
	}

	details := map[string]any{
		"total":     vm.Total,
		"used":      vm.Used,
		"available": vm.Available,
		"percent":   vm.UsedPercent,
	}

	var result ComponentHealth
	switch m.config.classify(vm.UsedPercent) {
	case StatusUnhealthy:
		result = Unhealthy(m.Name(), fmt.Sprintf("high memory usage: %.1f%%", vm.UsedPercent), ErrCheckFailed)
	case StatusDegraded:
		result = Degraded(m.Name(), fmt.Sprintf("elevated memory usage: %.1f%%", vm.UsedPercent))
	default:
		result = Healthy(m.Name(), fmt.Sprintf("memory usage normal: %.1f%%", vm.UsedPercent))
	}
	return result.WithDetails(details).WithDuration(time.Since(start))
}
