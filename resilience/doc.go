// Package resilience guards calls into remote dependencies: the model server
// and the notification endpoints.
//
// Patterns compose through Executor:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 8})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return classify(ctx, texts)
//	})
//
// Errors wrapped with Permanent (for example a 4xx from the model server)
// stop the retry loop immediately. RateLimiter is used on its own by the
// HTTP layer.
package resilience
