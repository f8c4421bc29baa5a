package resilience

import (
	"context"
	"time"
)

// Executor composes resilience patterns around a single call site.
//
// Layering, outermost first: bulkhead, circuit breaker, retry, timeout. The
// timeout bounds each attempt, and the breaker sees one outcome per call
// after retries are exhausted.
type Executor struct {
	bulkhead *Bulkhead
	breaker  *CircuitBreaker
	retry    *Retry
	timeout  *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor. With no options Execute
// simply calls op.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry adds retry with backoff.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithBulkhead adds a concurrency cap.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// Execute runs op through the configured layers.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	call := op

	if e.timeout != nil {
		inner := call
		call = func(ctx context.Context) error { return e.timeout.Execute(ctx, inner) }
	}
	if e.retry != nil {
		inner := call
		call = func(ctx context.Context) error { return e.retry.Execute(ctx, inner) }
	}
	if e.breaker != nil {
		inner := call
		call = func(ctx context.Context) error { return e.breaker.Execute(ctx, inner) }
	}
	if e.bulkhead != nil {
		inner := call
		call = func(ctx context.Context) error { return e.bulkhead.Execute(ctx, inner) }
	}

	return call(ctx)
}

// Breaker returns the configured circuit breaker, or nil.
func (e *Executor) Breaker() *CircuitBreaker {
	return e.breaker
}
