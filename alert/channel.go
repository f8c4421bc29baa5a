package alert

import "context"

// Channel is a notification sink.
//
// Contract:
// - Deliver returns nil only when the alert was accepted by the sink.
// - Deliver must honor ctx cancellation.
// - Implementations must be safe for concurrent use.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Deliver sends the alert.
	Deliver(ctx context.Context, a Alert) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc struct {
	name string
	fn   func(context.Context, Alert) error
}

// NewChannelFunc creates a ChannelFunc.
func NewChannelFunc(name string, fn func(context.Context, Alert) error) *ChannelFunc {
	return &ChannelFunc{name: name, fn: fn}
}

// Name returns the channel name.
func (c *ChannelFunc) Name() string { return c.name }

// Deliver calls the wrapped function.
func (c *ChannelFunc) Deliver(ctx context.Context, a Alert) error { return c.fn(ctx, a) }

var _ Channel = (*ChannelFunc)(nil)
