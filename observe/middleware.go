package observe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Response headers set by HTTPMiddleware.
const (
	HeaderRequestID    = "X-Request-ID"
	HeaderResponseTime = "X-Response-Time"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID assigned by HTTPMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestID returns a short random request identifier.
func NewRequestID() string {
	return uuid.NewString()[:8]
}

// HTTPMiddleware wraps HTTP handlers with tracing, metrics and access logging.
//
// Contract:
//   - Concurrency: the returned handler is safe for concurrent use.
//   - Ownership: request and response bodies are passed through unmodified.
type HTTPMiddleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewHTTPMiddleware creates a new HTTPMiddleware. Nil components are replaced
// with no-op implementations.
func NewHTTPMiddleware(tracer Tracer, metrics Metrics, logger Logger) *HTTPMiddleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &HTTPMiddleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver creates an HTTPMiddleware from an Observer.
func MiddlewareFromObserver(obs Observer) *HTTPMiddleware {
	return NewHTTPMiddleware(obs.Tracer(), obs.Metrics(), obs.Logger())
}

// Handler wraps next. The request ID is taken from the incoming X-Request-ID
// header when present.
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = NewRequestID()
		}
		w.Header().Set(HeaderRequestID, reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		ctx, span := m.tracer.StartSpan(ctx, "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
			attribute.String("request.id", reqID),
		)

		m.metrics.AddActiveRequests(ctx, 1)
		rec := &responseRecorder{ResponseWriter: w, start: start, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		m.metrics.AddActiveRequests(ctx, -1)

		duration := time.Since(start)
		route := routePattern(r)

		var spanErr error
		if rec.status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("http status %d", rec.status)
		}
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		m.tracer.EndSpan(span, spanErr)

		m.metrics.RecordRequest(ctx, r.Method, route, rec.status, duration)

		fields := []Field{
			F("request_id", reqID),
			F("method", r.Method),
			F("path", r.URL.Path),
			F("status", rec.status),
			F("duration_ms", durationMs(duration)),
			F("remote_addr", r.RemoteAddr),
		}
		switch {
		case rec.status >= http.StatusInternalServerError:
			m.logger.Error(ctx, "request failed", fields...)
		case rec.status >= http.StatusBadRequest:
			m.logger.Warn(ctx, "request rejected", fields...)
		default:
			m.logger.Info(ctx, "request completed", fields...)
		}
	})
}

// routePattern returns the chi route pattern, falling back to the raw path
// for requests served outside a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// responseRecorder captures the status code and stamps X-Response-Time just
// before headers are flushed.
type responseRecorder struct {
	http.ResponseWriter
	start       time.Time
	status      int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
	r.Header().Set(HeaderResponseTime, fmt.Sprintf("%.3f", time.Since(r.start).Seconds()))
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
