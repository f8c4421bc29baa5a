package monitor

import (
	"context"
	"time"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/health"
	"github.com/jonwraymond/sentimentd/observe"
)

// HealthSource produces health results. *health.Aggregator implements it.
type HealthSource interface {
	CheckAll(ctx context.Context) (*health.OverallHealth, error)
}

// Sender dispatches alerts. *alert.Dispatcher implements it.
type Sender interface {
	Send(ctx context.Context, a alert.Alert) bool
}

// Config configures the monitor loop.
type Config struct {
	// Interval is the time between cycles.
	// Default: 30 seconds
	Interval time.Duration

	// Source is stamped on every alert.
	// Default: alert.DefaultSource
	Source string

	// Logger receives cycle outcomes.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// Monitor periodically runs the health cycle, feeds the tracker and hands
// the resulting intents to the dispatcher. It is the only writer of the
// tracker.
type Monitor struct {
	source  HealthSource
	tracker *Tracker
	sender  Sender
	config  Config
}

// New creates a monitor.
func New(source HealthSource, tracker *Tracker, sender Sender, config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.Source == "" {
		config.Source = alert.DefaultSource
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if tracker == nil {
		tracker = NewTracker(0)
	}
	return &Monitor{source: source, tracker: tracker, sender: sender, config: config}
}

// Tracker returns the monitor's tracker.
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// CheckOnce runs one cycle: aggregate, observe, then send every intent in
// order. A failed cycle is returned without touching the tracker.
func (m *Monitor) CheckOnce(ctx context.Context) (*health.OverallHealth, error) {
	h, err := m.source.CheckAll(ctx)
	if err != nil {
		m.config.Logger.Error(ctx, "health cycle failed", observe.Err(err))
		return nil, err
	}

	intents := m.tracker.Observe(h)
	sent := 0
	for _, intent := range intents {
		if m.sender != nil && m.sender.Send(ctx, intent.Alert(m.config.Source)) {
			sent++
		}
	}

	m.config.Logger.Debug(ctx, "health cycle completed",
		observe.F("status", h.Status.String()),
		observe.F("components", len(h.Components)),
		observe.F("intents", len(intents)),
		observe.F("alerts_sent", sent),
	)
	return h, nil
}

// Run executes a cycle immediately and then every Interval until ctx is
// done. It returns nil on cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	m.config.Logger.Info(ctx, "health monitor started", observe.F("interval", m.config.Interval.String()))

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			m.config.Logger.Info(ctx, "health monitor stopped")
			return nil
		}
		_, _ = m.CheckOnce(ctx)

		select {
		case <-ctx.Done():
			m.config.Logger.Info(ctx, "health monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}
