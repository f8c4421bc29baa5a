package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/health"
)

func overall(status health.Status, components ...health.ComponentHealth) *health.OverallHealth {
	return &health.OverallHealth{Status: status, Components: components, Uptime: time.Minute}
}

func titles(intents []Intent) []string {
	out := make([]string, len(intents))
	for i, in := range intents {
		out[i] = in.Title
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTracker_FirstObservation(t *testing.T) {
	tr := NewTracker(0)
	got := tr.Observe(overall(health.StatusUnhealthy))

	if len(got) != 0 {
		t.Errorf("first Unhealthy observation = %v, want no transition intents", titles(got))
	}
	if s, ok := tr.LastStatus(); !ok || s != health.StatusUnhealthy {
		t.Errorf("LastStatus() = %v, %v", s, ok)
	}
	if tr.ConsecutiveFailures() != 1 {
		t.Errorf("ConsecutiveFailures() = %d, want 1", tr.ConsecutiveFailures())
	}
}

func TestTracker_Transitions(t *testing.T) {
	h, d, u := health.StatusHealthy, health.StatusDegraded, health.StatusUnhealthy
	tests := []struct {
		name     string
		from, to health.Status
		want     []string
	}{
		{"healthy to unhealthy", h, u, []string{TitleDegraded}},
		{"degraded to unhealthy", d, u, []string{TitleDegraded}},
		{"unhealthy to healthy", u, h, []string{TitleRecovered}},
		{"unhealthy to degraded", u, d, nil},
		{"healthy to degraded", h, d, nil},
		{"degraded to healthy", d, h, nil},
		{"unchanged", h, h, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(10)
			tr.Observe(overall(tt.from))
			got := titles(tr.Observe(overall(tt.to)))
			if !equal(got, tt.want) {
				t.Errorf("intents = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_DegradedMetadata(t *testing.T) {
	tr := NewTracker(0)
	tr.Observe(overall(health.StatusHealthy))
	got := tr.Observe(overall(health.StatusUnhealthy))[0]

	if got.Level != alert.LevelError {
		t.Errorf("Level = %v, want error", got.Level)
	}
	if got.Metadata["previous_status"] != "healthy" || got.Metadata["current_status"] != "unhealthy" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if got.Metadata["uptime"] != 60.0 {
		t.Errorf("uptime = %v, want 60", got.Metadata["uptime"])
	}
	if got.Message != "Service status changed from healthy to unhealthy" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestTracker_SingleEscalation(t *testing.T) {
	tr := NewTracker(3)
	var escalations []int

	for cycle := 1; cycle <= 6; cycle++ {
		for _, in := range tr.Observe(overall(health.StatusUnhealthy)) {
			if in.Title == TitleEscalation {
				escalations = append(escalations, cycle)
				if in.Level != alert.LevelCritical {
					t.Errorf("escalation level = %v, want critical", in.Level)
				}
				if in.Metadata["consecutive_failures"] != 3 {
					t.Errorf("consecutive_failures = %v, want 3", in.Metadata["consecutive_failures"])
				}
			}
		}
	}

	if len(escalations) != 1 || escalations[0] != 3 {
		t.Errorf("escalations at cycles %v, want exactly [3]", escalations)
	}
}

func TestTracker_RecoveryResetsCounter(t *testing.T) {
	tr := NewTracker(3)
	for i := 0; i < 4; i++ {
		tr.Observe(overall(health.StatusUnhealthy))
	}

	got := titles(tr.Observe(overall(health.StatusHealthy)))
	if !equal(got, []string{TitleRecovered}) {
		t.Errorf("intents = %v, want recovery", got)
	}
	if tr.ConsecutiveFailures() != 0 {
		t.Errorf("ConsecutiveFailures() = %d, want 0", tr.ConsecutiveFailures())
	}

	// A new streak escalates again.
	var escalated bool
	for i := 0; i < 3; i++ {
		for _, in := range tr.Observe(overall(health.StatusUnhealthy)) {
			escalated = escalated || in.Title == TitleEscalation
		}
	}
	if !escalated {
		t.Error("a new streak should escalate again after recovery")
	}
}

func TestTracker_DegradedResetsCounter(t *testing.T) {
	tr := NewTracker(3)
	tr.Observe(overall(health.StatusUnhealthy))
	tr.Observe(overall(health.StatusUnhealthy))
	tr.Observe(overall(health.StatusDegraded))

	if tr.ConsecutiveFailures() != 0 {
		t.Errorf("ConsecutiveFailures() = %d, want 0", tr.ConsecutiveFailures())
	}
}

func TestTracker_IntentOrder(t *testing.T) {
	tr := NewTracker(2)
	tr.Observe(overall(health.StatusUnhealthy))

	got := tr.Observe(overall(health.StatusUnhealthy,
		health.ComponentHealth{Name: "model", Status: health.StatusHealthy},
		health.ComponentHealth{Name: "memory", Status: health.StatusUnhealthy, Message: "high memory usage: 95.0%"},
		health.ComponentHealth{Name: "disk", Status: health.StatusUnhealthy},
	))
	want := []string{TitleEscalation, "Component memory Unhealthy", "Component disk Unhealthy"}
	if !equal(titles(got), want) {
		t.Fatalf("intents = %v, want %v", titles(got), want)
	}

	tr2 := NewTracker(1)
	tr2.Observe(overall(health.StatusHealthy))
	got = tr2.Observe(overall(health.StatusUnhealthy,
		health.ComponentHealth{Name: "disk", Status: health.StatusUnhealthy},
	))
	want = []string{TitleDegraded, TitleEscalation, "Component disk Unhealthy"}
	if !equal(titles(got), want) {
		t.Errorf("intents = %v, want %v", titles(got), want)
	}
}

func TestTracker_ComponentIntent(t *testing.T) {
	tr := NewTracker(0)
	got := tr.Observe(overall(health.StatusUnhealthy, health.ComponentHealth{
		Name: "disk", Status: health.StatusUnhealthy, ResponseTime: 250 * time.Millisecond,
	}))

	if len(got) != 1 {
		t.Fatalf("intents = %v", titles(got))
	}
	in := got[0]
	if in.Level != alert.LevelWarning {
		t.Errorf("Level = %v, want warning", in.Level)
	}
	if in.Message != "Component disk is not healthy" {
		t.Errorf("Message = %q, want default", in.Message)
	}
	if in.Metadata["component"] != "disk" || in.Metadata["response_time"] != 0.25 {
		t.Errorf("Metadata = %v", in.Metadata)
	}
}

func TestTracker_SetThreshold(t *testing.T) {
	tr := NewTracker(0)
	if tr.Threshold() != DefaultFailureThreshold {
		t.Errorf("Threshold() = %d, want %d", tr.Threshold(), DefaultFailureThreshold)
	}
	tr.SetThreshold(5)
	tr.SetThreshold(0)
	if tr.Threshold() != 5 {
		t.Errorf("Threshold() = %d, want 5", tr.Threshold())
	}
	if tr.Observe(nil) != nil {
		t.Error("Observe(nil) should return nil")
	}
}

func TestTracker_SetThresholdMidOutage(t *testing.T) {
	tests := []struct {
		name          string
		initial, next int
		before, after int
		wantAt        []int
	}{
		{"lowered below count", 5, 3, 4, 10, []int{5}},
		{"raised after escalation", 3, 5, 3, 3, []int{3}},
		{"raised before crossing", 3, 5, 2, 4, []int{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.initial)
			var got []int
			observe := func(cycle int) {
				for _, in := range tr.Observe(overall(health.StatusUnhealthy)) {
					if in.Title == TitleEscalation {
						got = append(got, cycle)
					}
				}
			}
			cycle := 0
			for i := 0; i < tt.before; i++ {
				cycle++
				observe(cycle)
			}
			tr.SetThreshold(tt.next)
			for i := 0; i < tt.after; i++ {
				cycle++
				observe(cycle)
			}
			if len(got) != len(tt.wantAt) || (len(got) > 0 && got[0] != tt.wantAt[0]) {
				t.Errorf("escalations at cycles %v, want %v", got, tt.wantAt)
			}
		})
	}
}

type stubSource struct {
	mu      sync.Mutex
	results []*health.OverallHealth
	err     error
	calls   int
}

func (s *stubSource) CheckAll(ctx context.Context) (*health.OverallHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	h := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return h, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSender struct {
	mu   sync.Mutex
	sent []alert.Alert
}

func (s *stubSender) Send(_ context.Context, a alert.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, a)
	return true
}

func TestMonitor_CheckOnce(t *testing.T) {
	src := &stubSource{results: []*health.OverallHealth{
		overall(health.StatusHealthy),
		overall(health.StatusUnhealthy, health.ComponentHealth{Name: "model", Status: health.StatusUnhealthy}),
	}}
	sender := &stubSender{}
	m := New(src, nil, sender, Config{Source: "svc"})

	if _, err := m.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce() error = %v", err)
	}
	h, err := m.CheckOnce(context.Background())
	if err != nil || h.Status != health.StatusUnhealthy {
		t.Fatalf("CheckOnce() = %v, %v", h, err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d alerts, want 2", len(sender.sent))
	}
	if sender.sent[0].Title != TitleDegraded || sender.sent[0].Source != "svc" {
		t.Errorf("first alert = %+v", sender.sent[0])
	}
	if sender.sent[1].Title != "Component model Unhealthy" {
		t.Errorf("second alert = %q", sender.sent[1].Title)
	}
}

func TestMonitor_CheckOnceError(t *testing.T) {
	boom := errors.New("aggregator down")
	m := New(&stubSource{err: boom}, nil, &stubSender{}, Config{})

	if _, err := m.CheckOnce(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if _, ok := m.Tracker().LastStatus(); ok {
		t.Error("a failed cycle must not update the tracker")
	}
}

func TestMonitor_Run(t *testing.T) {
	src := &stubSource{results: []*health.OverallHealth{overall(health.StatusHealthy)}}
	m := New(src, nil, &stubSender{}, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Run should stop promptly on cancellation")
	}
	if n := src.callCount(); n < 2 {
		t.Errorf("cycles = %d, want an immediate cycle plus ticks", n)
	}
}

func TestMonitor_RunCancelled(t *testing.T) {
	src := &stubSource{results: []*health.OverallHealth{overall(health.StatusHealthy)}}
	m := New(src, nil, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if src.callCount() != 0 {
		t.Errorf("cycles = %d, want none on a cancelled context", src.callCount())
	}
}

func TestMonitor_WithDispatcherCooldown(t *testing.T) {
	var delivered int
	var mu sync.Mutex
	ch := alert.NewChannelFunc("count", func(context.Context, alert.Alert) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	d := alert.NewDispatcher(alert.DispatcherConfig{Channels: []alert.Channel{ch}})

	unhealthy := overall(health.StatusUnhealthy, health.ComponentHealth{Name: "disk", Status: health.StatusUnhealthy})
	src := &stubSource{results: []*health.OverallHealth{unhealthy}}
	m := New(src, NewTracker(3), d, Config{})

	for i := 0; i < 5; i++ {
		_, _ = m.CheckOnce(context.Background())
	}

	// The component warning is cooled down after the first cycle; the
	// escalation fires once on the third.
	mu.Lock()
	defer mu.Unlock()
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2 (one component warning, one escalation)", delivered)
	}
}
