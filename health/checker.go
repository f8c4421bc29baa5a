package health

import (
	"context"
	"fmt"
	"time"
)

// Status represents the health status of a component. Larger values are
// worse, so the overall status of a set is its maximum.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its lower-case name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a lower-case status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "healthy":
		*s = StatusHealthy
	case "degraded":
		*s = StatusDegraded
	case "unhealthy":
		*s = StatusUnhealthy
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(b))
	}
	return nil
}

// ComponentHealth is the outcome of one probe in one aggregation cycle.
type ComponentHealth struct {
	// Name identifies the component.
	Name string

	// Status is the health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Details contains arbitrary metadata about the check.
	Details map[string]any

	// ResponseTime is how long the probe took.
	ResponseTime time.Duration

	// Error is the underlying failure, if any.
	Error error
}

// Healthy creates a healthy result.
func Healthy(name, message string) ComponentHealth {
	return ComponentHealth{Name: name, Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded result.
func Degraded(name, message string) ComponentHealth {
	return ComponentHealth{Name: name, Status: StatusDegraded, Message: message}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(name, message string, err error) ComponentHealth {
	return ComponentHealth{Name: name, Status: StatusUnhealthy, Message: message, Error: err}
}

// WithDetails adds details to a result.
func (c ComponentHealth) WithDetails(details map[string]any) ComponentHealth {
	c.Details = details
	return c
}

// WithDuration sets the response time on a result.
func (c ComponentHealth) WithDuration(d time.Duration) ComponentHealth {
	c.ResponseTime = d
	return c
}

// Checker is the interface for health probes.
//
// Contract:
// - Check must not return an error: failures are reported as Unhealthy or
// Degraded results.
// - Check must honor ctx cancellation where it blocks.
// - Implementations must be safe for concurrent use.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check performs the health check and returns the result.
	Check(ctx context.Context) ComponentHealth
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) ComponentHealth
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) ComponentHealth) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) ComponentHealth {
	return f.fn(ctx)
}

// MetricsProvider supplies a point-in-time system metrics snapshot that is
// attached to each OverallHealth. Snapshot is best-effort: it returns nil
// rather than an error when metrics are unavailable.
type MetricsProvider interface {
	Snapshot(ctx context.Context) map[string]any
}

// MetricsProviderFunc adapts a function to MetricsProvider.
type MetricsProviderFunc func(ctx context.Context) map[string]any

// Snapshot calls f.
func (f MetricsProviderFunc) Snapshot(ctx context.Context) map[string]any {
	return f(ctx)
}
