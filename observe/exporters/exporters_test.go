package exporters

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewTracingExporter(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "stdout"},
		{name: "none"},
		{name: ""},
		{name: "otlp", env: map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "http://localhost:4317"}},
		{name: "otlp", env: map[string]string{"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "http://localhost:4317"}},
		{name: "otlp", wantErr: "endpoint"},
		{name: "jaeger", env: map[string]string{"OTEL_EXPORTER_JAEGER_ENDPOINT": "http://localhost:4317"}},
		{name: "jaeger", wantErr: "endpoint"},
		{name: "zipkin", wantErr: "unknown exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{
				"OTEL_EXPORTER_OTLP_ENDPOINT",
				"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
				"OTEL_EXPORTER_JAEGER_ENDPOINT",
			} {
				t.Setenv(k, tt.env[k])
			}

			var buf bytes.Buffer
			exp, err := NewTracingExporter(context.Background(), tt.name, WithWriter(&buf))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NewTracingExporter(%q) error = %v, want containing %q", tt.name, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTracingExporter(%q) error = %v", tt.name, err)
			}
			if exp == nil {
				t.Fatalf("NewTracingExporter(%q) = nil", tt.name)
			}
			if tt.name == "stdout" {
				if err := exp.Shutdown(context.Background()); err != nil {
					t.Errorf("Shutdown() error = %v", err)
				}
			}
		})
	}
}

func TestNewMetricsReader(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  string
	}{
		{name: "stdout"},
		{name: "none"},
		{name: "prometheus"},
		{name: "otlp", endpoint: "http://localhost:4317"},
		{name: "otlp", wantErr: "endpoint"},
		{name: "statsd", wantErr: "unknown metrics exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tt.endpoint)
			t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

			reader, err := NewMetricsReader(context.Background(), tt.name,
				WithRegisterer(prometheus.NewRegistry()),
				WithWriter(&bytes.Buffer{}),
			)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NewMetricsReader(%q) error = %v, want containing %q", tt.name, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMetricsReader(%q) error = %v", tt.name, err)
			}
			if reader == nil {
				t.Fatalf("NewMetricsReader(%q) = nil", tt.name)
			}
		})
	}
}

func TestPrometheusReader_IsolatedRegistry(t *testing.T) {
	// Two readers on separate registries must not collide on collector names.
	for i := 0; i < 2; i++ {
		if _, err := NewMetricsReader(context.Background(), "prometheus", WithRegisterer(prometheus.NewRegistry())); err != nil {
			t.Fatalf("reader %d: %v", i, err)
		}
	}
}
