package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskCheckerConfig configures the disk health checker.
type DiskCheckerConfig struct {
	Thresholds

	// Path is the mount point to inspect.
	// Default: "/"
	Path string
}

// DiskChecker checks filesystem usage of a path.
type DiskChecker struct {
	config DiskCheckerConfig
	stat   func(context.Context, string) (*disk.UsageStat, error)
}

// NewDiskChecker creates a new disk health checker.
func NewDiskChecker(config DiskCheckerConfig) *DiskChecker {
	config.Thresholds = config.Thresholds.withDefaults()
	if config.Path == "" {
		config.Path = "/"
	}
	return &DiskChecker{config: config, stat: disk.UsageWithContext}
}

// Name returns the name of this checker.
func (d *DiskChecker) Name() string {
	return "disk"
}

// Check performs the disk health check. Usage is used/total so reserved
// blocks count as free.
func (d *DiskChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()

	usage, err := d.stat(ctx, d.config.Path)
	if err != nil {
		return Unhealthy(d.Name(), fmt.Sprintf("disk check failed: %v", err), err).
			WithDetails(map[string]any{"path": d.config.Path}).
			WithDuration(time.Since(start))
	}
	if usage.Total == 0 {
		return Unhealthy(d.Name(), "disk check failed: filesystem reports zero size", ErrCheckFailed).
			WithDetails(map[string]any{"path": d.config.Path}).
			WithDuration(time.Since(start))
	}

	percent := float64(usage.Used) / float64(usage.Total) * 100
	details := map[string]any{
		"path":    d.config.Path,
		"total":   usage.Total,
		"used":    usage.Used,
		"free":    usage.Free,
		"percent": percent,
	}

	var result ComponentHealth
	switch d.config.classify(percent) {
	case StatusUnhealthy:
		result = Unhealthy(d.Name(), fmt.Sprintf("high disk usage: %.1f%%", percent), ErrCheckFailed)
	case StatusDegraded:
		result = Degraded(d.Name(), fmt.Sprintf("elevated disk usage: %.1f%%", percent))
	default:
		result = Healthy(d.Name(), fmt.Sprintf("disk usage normal: %.1f%%", percent))
	}
	return result.WithDetails(details).WithDuration(time.Since(start))
}
