package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/sentimentd/observe"
	"github.com/jonwraymond/sentimentd/resilience"
)

// DispatcherConfig configures the alert dispatcher.
type DispatcherConfig struct {
	// Cooldown is the minimum interval between two successful dispatches
	// of alerts sharing a key.
	// Default: 15 minutes
	Cooldown time.Duration

	// HistoryCapacity bounds the alert history.
	// Default: 1000
	HistoryCapacity int

	// DeliveryTimeout bounds each channel delivery.
	// Default: 10 seconds
	DeliveryTimeout time.Duration

	// Channels receive every alert that passes the cooldown.
	Channels []Channel

	// Logger receives delivery outcomes.
	// Default: observe.NopLogger()
	Logger observe.Logger

	// Metrics counts dispatch outcomes and deliveries.
	// Default: observe.NopMetrics()
	Metrics observe.Metrics

	// Tracer wraps each send in a span.
	// Default: observe.NopTracer()
	Tracer observe.Tracer
}

// Dispatcher applies a per-key cooldown to alerts, records them in a
// bounded history and fans them out to its channels. Suppressed alerts are
// dropped, not deferred.
type Dispatcher struct {
	config   DispatcherConfig
	channels []Channel
	timeout  *resilience.Timeout
	history  *history
	now      func() time.Time

	mu       sync.Mutex
	cooldown time.Duration
	lastSent map[string]time.Time
	inFlight map[string]struct{}
}

// NewDispatcher creates a dispatcher. Nil channels are ignored.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Cooldown <= 0 {
		config.Cooldown = 15 * time.Minute
	}
	if config.HistoryCapacity <= 0 {
		config.HistoryCapacity = 1000
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}
	if config.Tracer == nil {
		config.Tracer = observe.NopTracer()
	}

	channels := make([]Channel, 0, len(config.Channels))
	for _, ch := range config.Channels {
		if ch != nil {
			channels = append(channels, ch)
		}
	}

	return &Dispatcher{
		config:   config,
		channels: channels,
		timeout:  resilience.NewTimeout(config.DeliveryTimeout),
		history:  newHistory(config.HistoryCapacity),
		now:      func() time.Time { return time.Now().UTC() },
		cooldown: config.Cooldown,
		lastSent: make(map[string]time.Time),
		inFlight: make(map[string]struct{}),
	}
}

// Send dispatches a to every channel unless an alert with the same key was
// delivered less than the cooldown ago or is being delivered right now. It
// reports whether at least one channel accepted the alert.
func (d *Dispatcher) Send(ctx context.Context, a Alert) bool {
	key := a.Key()
	ctx, span := d.config.Tracer.StartSpan(ctx, observe.SpanAlertSend,
		attribute.String("alert.key", key),
		attribute.String("alert.level", a.Level.String()),
	)

	if !d.reserve(key) {
		d.config.Logger.Debug(ctx, "alert suppressed by cooldown", observe.F("title", a.Title), observe.F("key", key))
		d.config.Metrics.RecordAlert(ctx, a.Source, observe.OutcomeSuppressed)
		span.SetAttributes(attribute.String("alert.outcome", observe.OutcomeSuppressed))
		d.config.Tracer.EndSpan(span, nil)
		return false
	}

	d.history.add(a)
	delivered, err := d.deliver(ctx, a)
	d.release(key, delivered)

	outcome := observe.OutcomeDelivered
	if !delivered {
		outcome = observe.OutcomeFailed
	}
	d.config.Metrics.RecordAlert(ctx, a.Source, outcome)
	span.SetAttributes(attribute.String("alert.outcome", outcome))
	d.config.Tracer.EndSpan(span, err)
	return delivered
}

// reserve checks the cooldown and marks key in flight in one step.
func (d *Dispatcher) reserve(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.inFlight[key]; busy {
		return false
	}
	if last, ok := d.lastSent[key]; ok && d.now().Sub(last) < d.cooldown {
		return false
	}
	d.inFlight[key] = struct{}{}
	return true
}

func (d *Dispatcher) release(key string, delivered bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.inFlight, key)
	if delivered {
		d.lastSent[key] = d.now()
	}
}

// deliver fans a out to every channel and waits for all of them.
func (d *Dispatcher) deliver(ctx context.Context, a Alert) (bool, error) {
	if len(d.channels) == 0 {
		d.config.Logger.Warn(ctx, "alert not delivered", observe.F("title", a.Title), observe.Err(ErrNoChannels))
		return false, ErrNoChannels
	}

	errs := make([]error, len(d.channels))
	var wg sync.WaitGroup
	for i, ch := range d.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			errs[i] = d.timeout.Execute(ctx, func(ctx context.Context) error {
				return ch.Deliver(ctx, a)
			})
			d.config.Metrics.RecordDelivery(ctx, ch.Name(), errs[i])
			if errs[i] != nil {
				d.config.Logger.Error(ctx, "alert delivery failed",
					observe.F("channel", ch.Name()),
					observe.F("title", a.Title),
					observe.Err(errs[i]),
				)
				return
			}
			d.config.Logger.Info(ctx, "alert delivered",
				observe.F("channel", ch.Name()),
				observe.F("title", a.Title),
				observe.F("level", a.Level.String()),
			)
		}(i, ch)
	}
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			return true, nil
		}
	}
	return false, errors.Join(append([]error{ErrDeliveryFailed}, errs...)...)
}

// RecentAlerts returns alerts recorded within window, oldest first. A
// window <= 0 returns the whole history.
func (d *Dispatcher) RecentAlerts(window time.Duration) []Alert {
	if window <= 0 {
		return d.history.since(time.Time{})
	}
	return d.history.since(d.now().Add(-window))
}

// HistoryLen returns the number of alerts in the history.
func (d *Dispatcher) HistoryLen() int {
	return d.history.len()
}

// SetCooldown changes the cooldown for subsequent sends. Non-positive
// values are ignored.
func (d *Dispatcher) SetCooldown(cooldown time.Duration) {
	if cooldown <= 0 {
		return
	}
	d.mu.Lock()
	d.cooldown = cooldown
	d.mu.Unlock()
}

// Cooldown returns the current cooldown.
func (d *Dispatcher) Cooldown() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cooldown
}

// Channels returns the names of the configured channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}
