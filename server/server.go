package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/auth"
	"github.com/jonwraymond/sentimentd/health"
	"github.com/jonwraymond/sentimentd/observe"
	"github.com/jonwraymond/sentimentd/resilience"
	"github.com/jonwraymond/sentimentd/sentiment"
)

// Description is reported by GET /.
const Description = "HuggingFace-based sentiment analysis service"

// AlertSource lists recently recorded alerts.
type AlertSource interface {
	RecentAlerts(window time.Duration) []alert.Alert
}

// Config wires the server to its collaborators.
type Config struct {
	Name    string
	Version string

	// MaxTextLength is the per-text character limit enforced on requests.
	// Default: 512
	MaxTextLength int

	// BatchSizeLimit is the largest accepted batch.
	// Default: 10
	BatchSizeLimit int

	Engine     sentiment.Engine
	Aggregator *health.Aggregator
	Model      health.ModelState
	Alerts     AlertSource

	// Auth guards GET /alerts. Nil leaves it open.
	Auth auth.Authenticator

	// MetricsHandler serves GET /metrics. Nil answers 404.
	MetricsHandler http.Handler

	// RateLimiter, when set, bounds the analyze endpoints.
	RateLimiter *resilience.RateLimiter

	// Middleware records per-request metrics and access logs.
	Middleware *observe.HTTPMiddleware

	Logger  observe.Logger
	Metrics observe.Metrics

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15 seconds
	ShutdownTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	config Config
	router chi.Router
	logger observe.Logger
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 512
	}
	if cfg.BatchSizeLimit <= 0 {
		cfg.BatchSizeLimit = 10
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NewHTTPMiddleware(nil, cfg.Metrics, cfg.Logger)
	}

	s := &Server{config: cfg, logger: cfg.Logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.config.Middleware.Handler)
	r.Use(s.recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "", "NOT_FOUND")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "", "METHOD_NOT_ALLOWED")
	})

	r.Get("/", s.handleRoot)

	r.Group(func(r chi.Router) {
		if s.config.RateLimiter != nil {
			r.Use(s.rateLimit)
		}
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze/batch", s.handleAnalyzeBatch)
	})

	if s.config.Aggregator != nil {
		health.RegisterHandlers(r, s.config.Aggregator, s.config.Model, s.logger)
	}

	r.With(auth.Require(s.config.Auth, s.logger)).Get("/alerts", s.handleAlerts)
	r.Get("/metrics", s.handleMetrics)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", observe.F("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
