package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/sentimentd/config"
	"github.com/jonwraymond/sentimentd/health"
	"github.com/jonwraymond/sentimentd/resilience"
	"github.com/jonwraymond/sentimentd/sentiment"
)

func positive(context.Context, string) ([]sentiment.Score, error) {
	return []sentiment.Score{
		{Label: "LABEL_0", Score: 0.05},
		{Label: "LABEL_1", Score: 0.15},
		{Label: "LABEL_2", Score: 0.80},
	}, nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Metrics.Enabled = false
	cfg.Health.DiskPath = "."
	cfg.Model.Endpoint = "http://127.0.0.1:1/"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithLogOutput(io.Discard),
		WithClassifier(sentiment.ClassifierFunc(positive)),
		WithLoadRetry(resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}),
	}, opts...)
	a, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func serve(a *App, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(w, r)
	return w
}

func TestNew_AnalyzeAfterLoad(t *testing.T) {
	a := newTestApp(t, testConfig())

	if w := serve(a, "POST", "/analyze", `{"text":"great"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status before load = %d, want 503", w.Code)
	}
	if !a.LoadModel(context.Background()) {
		t.Fatal("LoadModel() = false, want true")
	}
	w := serve(a, "POST", "/analyze", `{"text":"great"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status after load = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"sentiment":"POSITIVE"`) {
		t.Errorf("body = %s, want POSITIVE", w.Body.String())
	}
}

func TestLoadModel_Failure(t *testing.T) {
	var calls atomic.Int32
	failing := sentiment.ClassifierFunc(func(context.Context, string) ([]sentiment.Score, error) {
		calls.Add(1)
		return nil, errors.New("model server down")
	})
	a := newTestApp(t, testConfig(), WithClassifier(failing))

	if a.LoadModel(context.Background()) {
		t.Fatal("LoadModel() = true, want false")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("warm-up attempts = %d, want 2", got)
	}
	if a.Analyzer.Loaded() {
		t.Error("Analyzer.Loaded() = true after failed warm-up")
	}
}

func TestCheckOnce_ProbeOrder(t *testing.T) {
	a := newTestApp(t, testConfig())
	a.LoadModel(context.Background())

	h, err := a.CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce() error = %v", err)
	}
	want := []string{"model", "memory", "disk", "dependencies"}
	if len(h.Components) != len(want) {
		t.Fatalf("components = %d, want %d", len(h.Components), len(want))
	}
	for i, name := range want {
		if h.Components[i].Name != name {
			t.Errorf("components[%d] = %q, want %q", i, h.Components[i].Name, name)
		}
	}
	if h.Version != config.DefaultAppVersion {
		t.Errorf("Version = %q, want %q", h.Version, config.DefaultAppVersion)
	}
}

func TestCheckOnce_ModelServerDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"reachable", srv.URL + "/classify", "healthy"},
		{"unreachable", "http://127.0.0.1:1/", "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Model.Endpoint = tt.endpoint
			a := newTestApp(t, cfg)

			h, err := a.CheckOnce(context.Background())
			if err != nil {
				t.Fatalf("CheckOnce() error = %v", err)
			}
			var deps *health.ComponentHealth
			for i := range h.Components {
				if h.Components[i].Name == "dependencies" {
					deps = &h.Components[i]
				}
			}
			if deps == nil {
				t.Fatal("no dependencies component")
			}
			if got := deps.Status.String(); got != tt.want {
				t.Errorf("dependencies status = %q, want %q (%s)", got, tt.want, deps.Message)
			}
			if got := deps.Details["model_server_target"]; got != tt.endpoint {
				t.Errorf("model_server_target = %v, want %q", got, tt.endpoint)
			}
		})
	}
}

func TestReload(t *testing.T) {
	a := newTestApp(t, testConfig())

	next := testConfig()
	next.Alerts.Cooldown = time.Minute
	next.Alerts.FailureThreshold = 7
	a.Reload(next)

	if got := a.Dispatcher.Cooldown(); got != time.Minute {
		t.Errorf("Cooldown() = %v, want 1m", got)
	}
	if got := a.Monitor.Tracker().Threshold(); got != 7 {
		t.Errorf("Threshold() = %d, want 7", got)
	}
}

func TestAlertsAuth(t *testing.T) {
	tests := []struct {
		name    string
		keys    map[string]string
		headers []string
		want    int
	}{
		{"open when unconfigured", nil, nil, http.StatusOK},
		{"missing key", map[string]string{"ops": "s3cret"}, nil, http.StatusUnauthorized},
		{"valid key", map[string]string{"ops": "s3cret"}, []string{"X-API-Key", "s3cret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Auth.APIKeys = tt.keys
			a := newTestApp(t, cfg)
			if w := serve(a, "GET", "/alerts", "", tt.headers...); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t, testConfig())
	if w := serve(a, "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("disabled status = %d, want 404", w.Code)
	}

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Exporter = "prometheus"
	a = newTestApp(t, cfg)
	a.LoadModel(context.Background())
	serve(a, "POST", "/analyze", `{"text":"great"}`)

	w := serve(a, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("enabled status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "sentiment_inference") {
		t.Errorf("metrics body lacks sentiment_inference series")
	}
}

func TestNew_LogFileError(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.File = t.TempDir() + "/missing/dir/app.log"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("New() error = nil, want log file error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !a.Analyzer.Loaded() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !a.Analyzer.Loaded() {
		t.Error("model not loaded by Run")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
