package observe

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestRouter(t *testing.T, logs *bytes.Buffer) (http.Handler, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mw := NewHTTPMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("info", logs))

	r := chi.NewRouter()
	r.Use(mw.Handler)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Request-ID", RequestIDFromContext(r.Context()))
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r, reader, rec
}

func TestHTTPMiddleware_SetsHeaders(t *testing.T) {
	var logs bytes.Buffer
	h, _, _ := newTestRouter(t, &logs)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	id := w.Header().Get(HeaderRequestID)
	if len(id) != 8 {
		t.Errorf("request id %q: want 8 chars", id)
	}
	if got := w.Header().Get("X-Seen-Request-ID"); got != id {
		t.Errorf("handler saw request id %q, want %q", got, id)
	}

	rt := w.Header().Get(HeaderResponseTime)
	if _, err := strconv.ParseFloat(rt, 64); err != nil {
		t.Errorf("X-Response-Time %q is not a number: %v", rt, err)
	}
	if i := strings.Index(rt, "."); i < 0 || len(rt)-i-1 != 3 {
		t.Errorf("X-Response-Time %q: want 3 decimals", rt)
	}
}

func TestHTTPMiddleware_PropagatesIncomingRequestID(t *testing.T) {
	var logs bytes.Buffer
	h, _, _ := newTestRouter(t, &logs)

	req := httptest.NewRequest(http.MethodGet, "/items/1", nil)
	req.Header.Set(HeaderRequestID, "abc12345")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "abc12345" {
		t.Errorf("request id = %q, want abc12345", got)
	}
}

func TestHTTPMiddleware_RecordsRoutePattern(t *testing.T) {
	var logs bytes.Buffer
	h, reader, _ := newTestRouter(t, &logs)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	found := findMetric(rm, "http.server.requests")
	if found == nil {
		t.Fatal("http.server.requests not found")
	}
	sum := found.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(sum.DataPoints))
	}
	route, _ := sum.DataPoints[0].Attributes.Value("http.route")
	if route.AsString() != "/items/{id}" {
		t.Errorf("http.route = %q, want /items/{id}", route.AsString())
	}
}

func TestHTTPMiddleware_ServerErrorLogsAndFailsSpan(t *testing.T) {
	var logs bytes.Buffer
	h, _, rec := newTestRouter(t, &logs)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(logs.String(), `"level":"error"`) {
		t.Errorf("expected error-level access log, got %q", logs.String())
	}
	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Description == "" {
		t.Error("expected failed span status")
	}
}

func TestNewHTTPMiddleware_NilComponents(t *testing.T) {
	mw := NewHTTPMiddleware(nil, nil, nil)
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
