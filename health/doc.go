// Package health probes the service and its host and aggregates the results.
//
// Each probe implements [Checker] and reports a [ComponentHealth]; probe
// failures are values, never errors. An [Aggregator] runs all registered
// probes concurrently under one timeout budget and reduces them to an
// [OverallHealth] whose status is the worst component status. A probe that
// panics or overruns the budget is replaced by a synthetic Unhealthy
// component named "unknown" at the probe's registration position.
//
// Standard probes: [ModelChecker], [MemoryChecker], [DiskChecker] and
// [DependencyChecker]. [SystemMetrics] attaches a host metrics snapshot.
//
// HTTP handlers for /health, /health/simple, /healthz and /readyz are in
// http.go.
package health
