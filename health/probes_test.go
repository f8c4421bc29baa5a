package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type fakeModel struct {
	healthy bool
	loaded  bool
	name    string
}

func (f fakeModel) IsHealthy() bool   { return f.healthy }
func (f fakeModel) ModelName() string { return f.name }

type loadedModel struct {
	fakeModel
}

func (l loadedModel) Loaded() bool { return l.loaded }

func TestModelChecker(t *testing.T) {
	trialErr := errors.New("remote 502")
	tests := []struct {
		name    string
		model   ModelState
		trial   func(context.Context) error
		want    Status
		message string
	}{
		{"not loaded", fakeModel{}, nil, StatusUnhealthy, "model not loaded or not healthy"},
		{"nil model", nil, nil, StatusUnhealthy, "model not loaded or not healthy"},
		{"trial fails", fakeModel{healthy: true, name: "m"},
			func(context.Context) error { return trialErr },
			StatusDegraded, "model loaded but inference failed: remote 502"},
		{"healthy", fakeModel{healthy: true, name: "m"},
			func(context.Context) error { return nil },
			StatusHealthy, "model is loaded and functional"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewModelChecker(tt.model, tt.trial).Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %v, want %v", got.Status, tt.want)
			}
			if got.Message != tt.message {
				t.Errorf("Message = %q, want %q", got.Message, tt.message)
			}
			if got.Name != "model" {
				t.Errorf("Name = %q, want model", got.Name)
			}
		})
	}

	got := NewModelChecker(fakeModel{healthy: true, name: "roberta"}, nil).Check(context.Background())
	if got.Details["model_name"] != "roberta" || got.Details["model_loaded"] != true {
		t.Errorf("Details = %v", got.Details)
	}
}

func TestMemoryChecker_Thresholds(t *testing.T) {
	tests := []struct {
		percent float64
		want    Status
		prefix  string
	}{
		{50, StatusHealthy, "memory usage normal: 50.0%"},
		{80, StatusHealthy, "memory usage normal: 80.0%"},
		{80.1, StatusDegraded, "elevated memory usage: 80.1%"},
		{90, StatusDegraded, "elevated memory usage: 90.0%"},
		{95.5, StatusUnhealthy, "high memory usage: 95.5%"},
	}
	for _, tt := range tests {
		m := NewMemoryChecker(MemoryCheckerConfig{})
		m.stat = func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 1000, Used: 500, Available: 500, UsedPercent: tt.percent}, nil
		}
		got := m.Check(context.Background())
		if got.Status != tt.want {
			t.Errorf("percent %v: Status = %v, want %v", tt.percent, got.Status, tt.want)
		}
		if got.Message != tt.prefix {
			t.Errorf("percent %v: Message = %q, want %q", tt.percent, got.Message, tt.prefix)
		}
		for _, key := range []string{"total", "used", "available", "percent"} {
			if _, ok := got.Details[key]; !ok {
				t.Errorf("Details missing %q", key)
			}
		}
	}
}

func TestMemoryChecker_StatError(t *testing.T) {
	m := NewMemoryChecker(MemoryCheckerConfig{})
	m.stat = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("no /proc")
	}
	got := m.Check(context.Background())
	if got.Status != StatusUnhealthy || got.Message != "memory check failed: no /proc" {
		t.Errorf("got %v %q", got.Status, got.Message)
	}
	if got.ResponseTime <= 0 {
		t.Error("ResponseTime should be populated on failure")
	}
}

func TestThresholds_Defaults(t *testing.T) {
	got := Thresholds{WarningPercent: 95, CriticalPercent: 85}.withDefaults()
	if got.CriticalPercent != 95 {
		t.Errorf("CriticalPercent = %v, want raised to warning", got.CriticalPercent)
	}
	got = Thresholds{}.withDefaults()
	if got.WarningPercent != 80 || got.CriticalPercent != 90 {
		t.Errorf("defaults = %+v, want 80/90", got)
	}
}

func TestDiskChecker(t *testing.T) {
	tests := []struct {
		name string
		used uint64
		want Status
	}{
		{"normal", 50, StatusHealthy},
		{"elevated", 85, StatusDegraded},
		{"high", 95, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDiskChecker(DiskCheckerConfig{Path: "/data"})
			var gotPath string
			d.stat = func(_ context.Context, path string) (*disk.UsageStat, error) {
				gotPath = path
				return &disk.UsageStat{Total: 100, Used: tt.used, Free: 100 - tt.used}, nil
			}
			got := d.Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %v, want %v", got.Status, tt.want)
			}
			if gotPath != "/data" || got.Details["path"] != "/data" {
				t.Errorf("path = %q, details %v", gotPath, got.Details["path"])
			}
		})
	}
}

func TestDiskChecker_FailureIsUnhealthy(t *testing.T) {
	d := NewDiskChecker(DiskCheckerConfig{})
	d.stat = func(context.Context, string) (*disk.UsageStat, error) {
		return nil, errors.New("stat failed")
	}
	if got := d.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", got.Status)
	}
	if d.config.Path != "/" {
		t.Errorf("default Path = %q, want /", d.config.Path)
	}
}

func TestDependencyChecker(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name    string
		deps    []Dependency
		want    Status
		message string
	}{
		{"none", nil, StatusHealthy, "all critical dependencies available"},
		{"all ok", []Dependency{{Name: "a", Required: true, Check: ok}}, StatusHealthy, "all critical dependencies available"},
		{"required missing", []Dependency{
			{Name: "zeta", Required: true, Check: fail},
			{Name: "alpha", Required: true, Check: fail},
			{Name: "opt", Check: fail},
		}, StatusUnhealthy, "missing critical dependencies: alpha, zeta"},
		{"optional missing", []Dependency{
			{Name: "a", Required: true, Check: ok},
			{Name: "cache", Check: fail},
		}, StatusDegraded, "optional dependencies unavailable: cache"},
		{"panicking check", []Dependency{
			{Name: "p", Required: true, Check: func(context.Context) error { panic("x") }},
		}, StatusUnhealthy, "missing critical dependencies: p"},
		{"required without check", []Dependency{
			{Name: "a", Required: true, Check: ok},
			{Name: "db", Required: true},
		}, StatusUnhealthy, "missing critical dependencies: db"},
		{"optional without check", []Dependency{
			{Name: "cache"},
		}, StatusHealthy, "all critical dependencies available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDependencyChecker(tt.deps...).Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %v, want %v", got.Status, tt.want)
			}
			if got.Message != tt.message {
				t.Errorf("Message = %q, want %q", got.Message, tt.message)
			}
		})
	}
}

func TestDependencyChecker_Details(t *testing.T) {
	got := NewDependencyChecker(
		Dependency{Name: "model_server", Required: true, Target: "http://model:8080/", Check: func(context.Context) error { return nil }},
		Dependency{Name: "db", Required: true},
		Dependency{Name: "cache"},
	).Check(context.Background())

	want := map[string]any{
		"model_server":        "available",
		"model_server_target": "http://model:8080/",
		"db":                  ErrNoCheck.Error(),
		"cache":               "unchecked",
	}
	if len(got.Details) != len(want) {
		t.Errorf("Details = %v, want %v", got.Details, want)
	}
	for k, v := range want {
		if got.Details[k] != v {
			t.Errorf("Details[%q] = %v, want %v", k, got.Details[k], v)
		}
	}
}

func TestHTTPDependency(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	check := HTTPDependency(srv.Client(), srv.URL)
	if err := check(context.Background()); err != nil {
		t.Errorf("404 should count as reachable, got %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	if err := check(context.Background()); !errors.Is(err, ErrCheckFailed) {
		t.Errorf("err = %v, want ErrCheckFailed for 503", err)
	}
}

func TestTCPDependency(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	if err := TCPDependency(addr)(context.Background()); err != nil {
		t.Errorf("dial open port: %v", err)
	}
	_ = ln.Close()
	if err := TCPDependency(addr)(context.Background()); err == nil {
		t.Error("dial closed port should fail")
	}
}

func TestSystemMetrics_Snapshot(t *testing.T) {
	s := NewSystemMetrics(time.Time{})
	s.memory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 8, Used: 4, Available: 4, UsedPercent: 50}, nil
	}
	s.percent = func(context.Context, time.Duration, bool) ([]float64, error) { return []float64{12.5}, nil }
	s.counts = func(context.Context, bool) (int, error) { return 4, nil }

	got := s.Snapshot(context.Background())
	memory, ok := got["memory"].(map[string]any)
	if !ok || memory["percent"] != 50.0 {
		t.Errorf("memory = %v", got["memory"])
	}
	cpuInfo, ok := got["cpu"].(map[string]any)
	if !ok || cpuInfo["percent"] != 12.5 || cpuInfo["count"] != 4 {
		t.Errorf("cpu = %v", got["cpu"])
	}
	if _, ok := got["uptime"].(float64); !ok {
		t.Errorf("uptime = %v", got["uptime"])
	}
}

func TestSystemMetrics_AllFail(t *testing.T) {
	boom := errors.New("boom")
	s := NewSystemMetrics(time.Now())
	s.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, boom }
	s.percent = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, boom }
	s.counts = func(context.Context, bool) (int, error) { return 0, boom }

	if got := s.Snapshot(context.Background()); got != nil {
		t.Errorf("Snapshot() = %v, want nil", got)
	}
}

func TestSystemMetrics_RealHost(t *testing.T) {
	got := NewSystemMetrics(time.Now()).Snapshot(context.Background())
	if got == nil {
		t.Skip("host metrics unavailable")
	}
	if _, ok := got["uptime"]; !ok {
		t.Error("uptime missing")
	}
}
