package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/sentimentd/observe"
)

// syntheticName is the component name used when a probe cannot report for
// itself because it panicked or ran out of time.
const syntheticName = "unknown"

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the budget shared by all probes of one cycle.
	// Default: 10 seconds
	Timeout time.Duration

	// Version is reported in every OverallHealth.
	Version string

	// Metrics supplies the system metrics snapshot. Optional.
	Metrics MetricsProvider

	// Recorder receives per-cycle health metrics.
	// Default: observe.NopMetrics()
	Recorder observe.Metrics

	// Tracer wraps each cycle in a span.
	// Default: observe.NopTracer()
	Tracer observe.Tracer

	// Logger receives probe failures.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// OverallHealth is the service-level result of one aggregation cycle.
type OverallHealth struct {
	// Status is the worst component status, Healthy when there are none.
	Status Status

	// Timestamp is when the cycle completed, in UTC.
	Timestamp time.Time

	// Version is the service version.
	Version string

	// Uptime is the time since the aggregator was created.
	Uptime time.Duration

	// Components holds one result per probe in registration order.
	Components []ComponentHealth

	// Metrics is the system metrics snapshot, nil when unavailable.
	Metrics map[string]any
}

// Component returns the first component with the given name.
func (h *OverallHealth) Component(name string) (ComponentHealth, bool) {
	for _, c := range h.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentHealth{}, false
}

// Aggregator runs a set of probes concurrently and combines them into an
// OverallHealth. It holds no per-call state and is safe for concurrent use.
type Aggregator struct {
	config   AggregatorConfig
	started  time.Time
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string // Maintains registration order
}

// NewAggregator creates a new health aggregator. Uptime is measured from
// this call.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Recorder == nil {
		cfg.Recorder = observe.NopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observe.NopTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	return &Aggregator{
		config:   cfg,
		started:  time.Now(),
		checkers: make(map[string]Checker),
	}
}

// Register adds a health checker to the aggregator. Registering an existing
// name replaces the checker and keeps its position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a health checker from the aggregator.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// CheckerNames returns the names of all registered checkers in
// registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// Version returns the configured service version.
func (a *Aggregator) Version() string {
	return a.config.Version
}

// Uptime returns the time since the aggregator was created.
func (a *Aggregator) Uptime() time.Duration {
	return time.Since(a.started)
}

// Check runs a single named health check under the aggregator timeout.
func (a *Aggregator) Check(ctx context.Context, name string) (ComponentHealth, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return ComponentHealth{}, fmt.Errorf("%w: %s", ErrCheckerNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return a.runCheck(ctx, name, checker), nil
}

// CheckAll runs every registered probe concurrently and aggregates the
// results. Probe failures, panics and timeouts are reported as components;
// an error is returned only when the aggregator is nil or ctx is already
// done.
func (a *Aggregator) CheckAll(ctx context.Context) (*OverallHealth, error) {
	if a == nil {
		return nil, ErrNilAggregator
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("health: cycle not started: %w", err)
	}

	a.mu.RLock()
	names := make([]string, len(a.order))
	checkers := make([]Checker, len(a.order))
	for i, name := range a.order {
		names[i] = name
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	ctx, span := a.config.Tracer.StartSpan(ctx, observe.SpanHealthCycle,
		attribute.Int("health.probes", len(checkers)))
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	components := make([]ComponentHealth, len(checkers))

	var wg sync.WaitGroup
	for i := range checkers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			components[i] = a.runCheck(probeCtx, names[i], checkers[i])
		}(i)
	}
	wg.Wait()
	cancel()

	for _, c := range components {
		if c.Status != StatusHealthy {
			a.config.Logger.Warn(ctx, "health probe not healthy",
				observe.F("component", c.Name),
				observe.F("status", c.Status.String()),
				observe.F("message", c.Message),
			)
		}
	}

	overall := &OverallHealth{
		Status:     OverallStatus(components),
		Timestamp:  time.Now().UTC(),
		Version:    a.config.Version,
		Uptime:     a.Uptime(),
		Components: components,
		Metrics:    a.metricsSnapshot(ctx),
	}

	span.SetAttributes(attribute.String("health.status", overall.Status.String()))
	a.config.Tracer.EndSpan(span, nil)
	a.config.Recorder.RecordHealthCheck(ctx, overall.Status.String(), time.Since(start))

	return overall, nil
}

// OverallStatus computes the worst status of components: Unhealthy beats
// Degraded beats Healthy. An empty set is Healthy.
func OverallStatus(components []ComponentHealth) Status {
	status := StatusHealthy
	for _, c := range components {
		if c.Status > status {
			status = c.Status
		}
	}
	return status
}

func (a *Aggregator) runCheck(ctx context.Context, name string, checker Checker) ComponentHealth {
	start := time.Now()

	// Buffered so a late probe never blocks after the deadline.
	resultCh := make(chan ComponentHealth, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- synthetic(name,
					fmt.Sprintf("health check failed: probe %s panicked: %v", name, r),
					ErrCheckPanic, time.Since(start))
			}
		}()
		result := checker.Check(ctx)
		if result.Name == "" {
			result.Name = name
		}
		if result.ResponseTime == 0 {
			result.ResponseTime = time.Since(start)
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return synthetic(name,
			fmt.Sprintf("health check failed: probe %s timed out", name),
			ErrCheckTimeout, time.Since(start))
	}
}

func synthetic(probe, message string, err error, elapsed time.Duration) ComponentHealth {
	return Unhealthy(syntheticName, message, err).
		WithDetails(map[string]any{"probe": probe}).
		WithDuration(elapsed)
}

func (a *Aggregator) metricsSnapshot(ctx context.Context) (snapshot map[string]any) {
	if a.config.Metrics == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			a.config.Logger.Warn(ctx, "metrics snapshot panicked", observe.F("panic", fmt.Sprint(r)))
			snapshot = nil
		}
	}()
	snapshot = a.config.Metrics.Snapshot(ctx)
	if len(snapshot) == 0 {
		return nil
	}
	return snapshot
}
