package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Alert dispatch outcomes recorded by RecordAlert.
const (
	OutcomeDelivered  = "delivered"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
)

// Metrics records service metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records a completed HTTP request.
	RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration)

	// AddActiveRequests adjusts the in-flight HTTP request gauge.
	AddActiveRequests(ctx context.Context, delta int64)

	// RecordInference records one inference call covering n texts.
	RecordInference(ctx context.Context, model string, n int, duration time.Duration, err error)

	// RecordHealthCheck records one aggregation cycle and its overall status.
	RecordHealthCheck(ctx context.Context, status string, duration time.Duration)

	// RecordAlert records the outcome of one dispatch attempt.
	RecordAlert(ctx context.Context, source, outcome string)

	// RecordDelivery records one channel delivery.
	RecordDelivery(ctx context.Context, channel string, err error)
}

type metricsImpl struct {
	requests       metric.Int64Counter
	requestLatency metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
	inferences     metric.Int64Counter
	inferLatency   metric.Float64Histogram
	inferErrors    metric.Int64Counter
	healthChecks   metric.Int64Counter
	healthLatency  metric.Float64Histogram
	alerts         metric.Int64Counter
	deliveries     metric.Int64Counter
}

// NewMetrics creates the service instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.requests, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.requestLatency, err = meter.Float64Histogram(
		"http.server.duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.activeRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.inferences, err = meter.Int64Counter(
		"sentiment.inference.total",
		metric.WithDescription("Total number of texts sent for inference"),
		metric.WithUnit("{text}"),
	); err != nil {
		return nil, err
	}
	if m.inferLatency, err = meter.Float64Histogram(
		"sentiment.inference.duration_ms",
		metric.WithDescription("Inference call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.inferErrors, err = meter.Int64Counter(
		"sentiment.errors",
		metric.WithDescription("Total number of failed inference calls"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.healthChecks, err = meter.Int64Counter(
		"health.checks",
		metric.WithDescription("Total number of health aggregation cycles"),
		metric.WithUnit("{check}"),
	); err != nil {
		return nil, err
	}
	if m.healthLatency, err = meter.Float64Histogram(
		"health.check.duration_ms",
		metric.WithDescription("Health aggregation duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.alerts, err = meter.Int64Counter(
		"alerts.dispatched",
		metric.WithDescription("Alert dispatch attempts by outcome"),
		metric.WithUnit("{alert}"),
	); err != nil {
		return nil, err
	}
	if m.deliveries, err = meter.Int64Counter(
		"alerts.deliveries",
		metric.WithDescription("Channel deliveries by channel and result"),
		metric.WithUnit("{delivery}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, opt)
	m.requestLatency.Record(ctx, durationMs(duration), opt)
}

func (m *metricsImpl) AddActiveRequests(ctx context.Context, delta int64) {
	m.activeRequests.Add(ctx, delta)
}

func (m *metricsImpl) RecordInference(ctx context.Context, model string, n int, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("model", model))
	m.inferences.Add(ctx, int64(n), opt)
	m.inferLatency.Record(ctx, durationMs(duration), opt)
	if err != nil {
		m.inferErrors.Add(ctx, 1, opt)
	}
}

func (m *metricsImpl) RecordHealthCheck(ctx context.Context, status string, duration time.Duration) {
	opt := metric.WithAttributes(attribute.String("status", status))
	m.healthChecks.Add(ctx, 1, opt)
	m.healthLatency.Record(ctx, durationMs(duration), opt)
}

func (m *metricsImpl) RecordAlert(ctx context.Context, source, outcome string) {
	m.alerts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

func (m *metricsImpl) RecordDelivery(ctx context.Context, channel string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("result", result),
	))
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordRequest(context.Context, string, string, int, time.Duration)  {}
func (noopMetrics) AddActiveRequests(context.Context, int64)                           {}
func (noopMetrics) RecordInference(context.Context, string, int, time.Duration, error) {}
func (noopMetrics) RecordHealthCheck(context.Context, string, time.Duration)           {}
func (noopMetrics) RecordAlert(context.Context, string, string)                        {}
func (noopMetrics) RecordDelivery(context.Context, string, error)                      {}

var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = noopMetrics{}
)
