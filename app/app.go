package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/auth"
	"github.com/jonwraymond/sentimentd/cache"
	"github.com/jonwraymond/sentimentd/config"
	"github.com/jonwraymond/sentimentd/health"
	"github.com/jonwraymond/sentimentd/monitor"
	"github.com/jonwraymond/sentimentd/notify"
	"github.com/jonwraymond/sentimentd/observe"
	"github.com/jonwraymond/sentimentd/resilience"
	"github.com/jonwraymond/sentimentd/sentiment"
	"github.com/jonwraymond/sentimentd/server"
)

// HuggingFaceInferenceURL prefixes the model name when no endpoint is
// configured.
const HuggingFaceInferenceURL = "https://api-inference.huggingface.co/models/"

// Option customizes New.
type Option func(*options)

type options struct {
	configPath string
	logOutput  io.Writer
	client     *http.Client
	classifier sentiment.Classifier
	loadRetry  resilience.RetryConfig
}

// WithConfigPath enables hot reload of the file the config was loaded from.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogOutput overrides the log destination, ignoring logging.file.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithHTTPClient sets the client used for the model server, channels,
// JWKS and dependency probes.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithClassifier replaces the remote classifier.
func WithClassifier(c sentiment.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithLoadRetry configures how model warm-up is retried at startup.
// Default: 5 attempts starting at 1 second
func WithLoadRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) { o.loadRetry = cfg }
}

// App is the wired service.
type App struct {
	Config     *config.Config
	Logger     observe.Logger
	Observer   observe.Observer
	Analyzer   *sentiment.Analyzer
	Aggregator *health.Aggregator
	Dispatcher *alert.Dispatcher
	Monitor    *monitor.Monitor
	Server     *server.Server

	metricsHandler http.Handler
	opts           options
	closers        []io.Closer
}

// New builds every component from cfg. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{
		loadRetry: resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{}
	}

	a := &App{Config: cfg, opts: o}

	logger, err := a.buildLogger()
	if err != nil {
		return nil, err
	}
	a.Logger = logger.With(observe.F("service", cfg.App.Name), observe.F("version", cfg.App.Version))

	registry := prometheus.NewRegistry()
	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Tracing.Exporter != "" && cfg.Tracing.Exporter != "none",
			Exporter:  cfg.Tracing.Exporter,
			SamplePct: cfg.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:    cfg.Metrics.Enabled,
			Exporter:   cfg.Metrics.Exporter,
			Registerer: registry,
		},
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: observer: %w", err)
	}
	a.Observer = obs
	if cfg.Metrics.Enabled && cfg.Metrics.Exporter == "prometheus" {
		a.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	a.Analyzer = a.buildAnalyzer()
	a.Aggregator = a.buildAggregator()

	a.Dispatcher = alert.NewDispatcher(alert.DispatcherConfig{
		Cooldown:        cfg.Alerts.Cooldown,
		HistoryCapacity: cfg.Alerts.HistoryCapacity,
		DeliveryTimeout: cfg.Alerts.DeliveryTimeout,
		Channels:        notify.Build(cfg.Alerts.Channels, a.Logger, o.client),
		Logger:          a.Logger,
		Metrics:         obs.Metrics(),
		Tracer:          obs.Tracer(),
	})
	if len(a.Dispatcher.Channels()) == 0 {
		a.Logger.Warn(ctx, "no alert channels configured, alerts are recorded only")
	}

	a.Monitor = monitor.New(a.Aggregator, monitor.NewTracker(cfg.Alerts.FailureThreshold), a.Dispatcher, monitor.Config{
		Interval: cfg.Health.Interval,
		Logger:   a.Logger,
	})

	var limiter *resilience.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  cfg.Server.RateLimit,
			Burst: cfg.Server.RateBurst,
		})
	}

	a.Server = server.New(server.Config{
		Name:            cfg.App.Name,
		Version:         cfg.App.Version,
		MaxTextLength:   cfg.Model.MaxTextLength,
		BatchSizeLimit:  cfg.Model.BatchSizeLimit,
		Engine:          a.Analyzer,
		Aggregator:      a.Aggregator,
		Model:           a.Analyzer,
		Alerts:          a.Dispatcher,
		Auth:            a.buildAuth(),
		MetricsHandler:  a.metricsHandler,
		RateLimiter:     limiter,
		Middleware:      observe.NewHTTPMiddleware(obs.Tracer(), obs.Metrics(), a.Logger),
		Logger:          a.Logger,
		Metrics:         obs.Metrics(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	return a, nil
}

func (a *App) buildLogger() (observe.Logger, error) {
	out := a.opts.logOutput
	if out == nil && a.Config.Logging.File != "" {
		f, err := os.OpenFile(a.Config.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("app: open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		out = f
	}
	return observe.NewLoggerWithConfig(observe.LoggingConfig{
		Enabled: true,
		Level:   a.Config.Logging.Level,
		Format:  a.Config.Logging.Format,
		Output:  out,
	}), nil
}

func (a *App) buildAnalyzer() *sentiment.Analyzer {
	m := a.Config.Model

	classifier := a.opts.classifier
	if classifier == nil {
		classifier = sentiment.NewHTTPClassifier(sentiment.HTTPClassifierConfig{
			Endpoint: a.modelEndpoint(),
			Token:    m.APIToken,
			Timeout:  m.Timeout,
		}, a.opts.client)
	}

	var (
		c      cache.Cache
		policy *cache.Policy
	)
	if m.EnableCache {
		p := cache.DefaultPolicy()
		p.DefaultTTL = m.CacheTTL
		p.MaxEntries = m.CacheEntries
		c = cache.NewMemoryCache(p)
		policy = &p
	}

	return sentiment.NewAnalyzer(classifier, sentiment.Config{
		ModelName:      m.Name,
		MaxTextLength:  m.MaxTextLength,
		BatchSizeLimit: m.BatchSizeLimit,
		Cache:          c,
		CachePolicy:    policy,
		Logger:         a.Logger,
		Metrics:        a.Observer.Metrics(),
		Tracer:         a.Observer.Tracer(),
	})
}

func (a *App) buildAggregator() *health.Aggregator {
	h := a.Config.Health

	agg := health.NewAggregator(health.AggregatorConfig{
		Timeout:  h.Timeout,
		Version:  a.Config.App.Version,
		Metrics:  health.NewSystemMetrics(time.Now()),
		Recorder: a.Observer.Metrics(),
		Tracer:   a.Observer.Tracer(),
		Logger:   a.Logger,
	})

	var trial func(context.Context) error
	if h.TrialInference {
		trial = a.Analyzer.Trial
	}
	agg.Register("model", health.NewModelChecker(a.Analyzer, trial))
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{
		Thresholds: health.Thresholds{WarningPercent: h.MemoryWarningPercent, CriticalPercent: h.MemoryCriticalPercent},
	}))
	agg.Register("disk", health.NewDiskChecker(health.DiskCheckerConfig{
		Thresholds: health.Thresholds{WarningPercent: h.DiskWarningPercent, CriticalPercent: h.DiskCriticalPercent},
		Path:       h.DiskPath,
	}))
	agg.Register("dependencies", health.NewDependencyChecker(a.dependencies()...))
	return agg
}

// modelEndpoint is the classification URL: the configured endpoint or the
// hosted inference URL for the model name.
func (a *App) modelEndpoint() string {
	if a.Config.Model.Endpoint != "" {
		return a.Config.Model.Endpoint
	}
	return HuggingFaceInferenceURL + a.Config.Model.Name
}

// dependencies returns the model server as a required dependency followed
// by the configured extras. Extras with neither URL nor Addr are skipped.
func (a *App) dependencies() []health.Dependency {
	endpoint := a.modelEndpoint()
	deps := []health.Dependency{{
		Name:     "model_server",
		Required: true,
		Target:   endpoint,
		Check:    health.HTTPDependency(a.opts.client, endpoint),
	}}
	for _, d := range a.Config.Health.Dependencies {
		dep := health.Dependency{Name: d.Name, Required: d.Required}
		switch {
		case d.URL != "":
			dep.Check = health.HTTPDependency(a.opts.client, d.URL)
			dep.Target = d.URL
		case d.Addr != "":
			dep.Check = health.TCPDependency(d.Addr)
			dep.Target = d.Addr
		default:
			continue
		}
		deps = append(deps, dep)
	}
	return deps
}

// buildAuth returns nil when no credential is configured, leaving
// GET /alerts open.
func (a *App) buildAuth() auth.Authenticator {
	ac := a.Config.Auth
	if !ac.Enabled() {
		return nil
	}

	var auths []auth.Authenticator
	if len(ac.APIKeys) > 0 {
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{
			Header: ac.APIKeyHeader,
			Keys:   ac.APIKeys,
		}))
	}

	var keys auth.KeyProvider
	switch {
	case ac.JWKSURL != "":
		keys = auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: ac.JWKSURL, Client: a.opts.client})
	case ac.JWTSecret != "":
		keys = auth.NewStaticKeyProvider([]byte(ac.JWTSecret))
	}
	if keys != nil {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   ac.Issuer,
			Audience: ac.Audience,
		}, keys))
	}
	return auth.NewChain(auths...)
}

// Run warms the model, starts the health monitor, the optional config
// watcher and metrics listener, and serves HTTP until ctx is done. The
// service keeps serving when warm-up fails; the model probe reports it.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.LoadModel(ctx)
		return nil
	})
	g.Go(func() error {
		return a.Monitor.Run(ctx)
	})
	if a.opts.configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, a.opts.configPath, a.Reload, a.Logger)
		})
	}
	if port := a.Config.Metrics.Port; port > 0 && port != a.Config.Server.Port && a.metricsHandler != nil {
		g.Go(func() error {
			return a.serveMetrics(ctx, port)
		})
	}
	g.Go(func() error {
		return a.Server.ListenAndServe(ctx, a.Config.Server.Addr())
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := a.Observer.Shutdown(shutdownCtx); serr != nil {
		a.Logger.Warn(shutdownCtx, "telemetry shutdown failed", observe.Err(serr))
	}
	a.Logger.Info(shutdownCtx, "service stopped")
	return err
}

// LoadModel warms the model, retrying with backoff. Failure is logged and
// leaves the model unloaded.
func (a *App) LoadModel(ctx context.Context) bool {
	cfg := a.opts.loadRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.Logger.Warn(ctx, "model warm-up failed, retrying",
			observe.F("attempt", attempt),
			observe.F("delay", delay.String()),
			observe.Err(err),
		)
	}
	err := resilience.NewRetry(cfg).Execute(ctx, a.Analyzer.Load)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.Logger.Error(ctx, "model unavailable, serving degraded", observe.Err(err))
		}
		return false
	}
	return true
}

// Reload applies the hot-reloadable settings of cfg.
func (a *App) Reload(cfg *config.Config) {
	a.Dispatcher.SetCooldown(cfg.Alerts.Cooldown)
	a.Monitor.Tracker().SetThreshold(cfg.Alerts.FailureThreshold)
	a.Logger.Info(context.Background(), "config reloaded",
		observe.F("alert_cooldown", cfg.Alerts.Cooldown.String()),
		observe.F("failure_threshold", cfg.Alerts.FailureThreshold),
	)
}

// CheckOnce runs a single health cycle without alerting.
func (a *App) CheckOnce(ctx context.Context) (*health.OverallHealth, error) {
	return a.Aggregator.CheckAll(ctx)
}

func (a *App) serveMetrics(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metricsHandler)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info(ctx, "metrics listener started", observe.F("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: metrics listener: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases resources held by an App that was never Run.
func (a *App) Close() error {
	a.close()
	if a.Observer == nil {
		return nil
	}
	return a.Observer.Shutdown(context.Background())
}

func (a *App) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}
