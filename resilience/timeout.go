package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout bounds an operation's duration. A panicking operation is reported
// as an error wrapping ErrPanic instead of crashing the caller.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout wrapper.
// Default: 10 seconds when d <= 0.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 10 * time.Second
	}
	return &Timeout{d: d}
}

// Execute runs op with a derived deadline. When the deadline passes first it
// returns an error wrapping ErrTimeout without waiting for op to return; op
// observes cancellation through its context.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return ctx.Err()
	}
}

// Duration returns the configured bound.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// ExecuteWithTimeout runs op bounded by d.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	return NewTimeout(d).Execute(ctx, op)
}
