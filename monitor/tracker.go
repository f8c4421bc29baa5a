package monitor

import (
	"fmt"
	"sync"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/health"
)

// DefaultFailureThreshold is the number of consecutive Unhealthy cycles
// that triggers escalation.
const DefaultFailureThreshold = 3

// Alert titles raised by the tracker.
const (
	TitleDegraded   = "Service Health Degraded"
	TitleRecovered  = "Service Health Recovered"
	TitleEscalation = "Service Continuously Unhealthy"
	titleComponent  = "Component %s Unhealthy"
)

// Intent is an alert the tracker wants raised.
type Intent struct {
	Title    string
	Message  string
	Level    alert.Level
	Metadata map[string]any
}

// Alert converts the intent into an alert from source.
func (i Intent) Alert(source string) alert.Alert {
	return alert.New(i.Title, i.Message, i.Level, source, i.Metadata)
}

// Tracker turns a sequence of health results into alert intents. It
// remembers the previous overall status and counts consecutive Unhealthy
// results. Safe for concurrent use; observations are serialized.
type Tracker struct {
	mu        sync.Mutex
	last      *health.Status
	failures  int
	threshold int
	escalated bool
}

// NewTracker creates a tracker. threshold <= 0 uses
// DefaultFailureThreshold.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Tracker{threshold: threshold}
}

// Observe records h and returns the intents it triggers, in the order:
// status transition, escalation, then one intent per Unhealthy component.
//
// A transition into Unhealthy raises an Error intent; Unhealthy to Healthy
// raises an Info intent; other transitions raise nothing. Escalation fires
// once when the consecutive Unhealthy count reaches the threshold and not
// again until a non-Unhealthy result resets the count. A threshold lowered
// below the running count escalates on the next Unhealthy result.
func (t *Tracker) Observe(h *health.OverallHealth) []Intent {
	if h == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var intents []Intent
	current := h.Status
	uptime := h.Uptime.Seconds()

	if t.last != nil && *t.last != current {
		previous := *t.last
		switch {
		case current == health.StatusUnhealthy:
			intents = append(intents, Intent{
				Title:   TitleDegraded,
				Message: fmt.Sprintf("Service status changed from %s to %s", previous, current),
				Level:   alert.LevelError,
				Metadata: map[string]any{
					"previous_status": previous.String(),
					"current_status":  current.String(),
					"uptime":          uptime,
				},
			})
		case current == health.StatusHealthy && previous == health.StatusUnhealthy:
			intents = append(intents, Intent{
				Title:   TitleRecovered,
				Message: fmt.Sprintf("Service status recovered from %s to %s", previous, current),
				Level:   alert.LevelInfo,
				Metadata: map[string]any{
					"previous_status": previous.String(),
					"current_status":  current.String(),
					"uptime":          uptime,
				},
			})
		}
	}

	if current == health.StatusUnhealthy {
		t.failures++
		if !t.escalated && t.failures >= t.threshold {
			t.escalated = true
			intents = append(intents, Intent{
				Title:   TitleEscalation,
				Message: fmt.Sprintf("Service has been unhealthy for %d consecutive checks", t.failures),
				Level:   alert.LevelCritical,
				Metadata: map[string]any{
					"consecutive_failures": t.failures,
					"uptime":               uptime,
				},
			})
		}
	} else {
		t.failures = 0
		t.escalated = false
	}

	for _, c := range h.Components {
		if c.Status != health.StatusUnhealthy {
			continue
		}
		message := c.Message
		if message == "" {
			message = fmt.Sprintf("Component %s is not healthy", c.Name)
		}
		intents = append(intents, Intent{
			Title:   fmt.Sprintf(titleComponent, c.Name),
			Message: message,
			Level:   alert.LevelWarning,
			Metadata: map[string]any{
				"component":        c.Name,
				"component_status": c.Status.String(),
				"response_time":    c.ResponseTime.Seconds(),
			},
		})
	}

	t.last = &current
	return intents
}

// ConsecutiveFailures returns the current consecutive Unhealthy count.
func (t *Tracker) ConsecutiveFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// LastStatus returns the last observed status, false before the first
// observation.
func (t *Tracker) LastStatus() (health.Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return health.StatusHealthy, false
	}
	return *t.last, true
}

// SetThreshold changes the escalation threshold. Values <= 0 are ignored.
func (t *Tracker) SetThreshold(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	t.threshold = n
	t.mu.Unlock()
}

// Threshold returns the escalation threshold.
func (t *Tracker) Threshold() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.threshold
}
