package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/sentimentd/notify"
	"github.com/jonwraymond/sentimentd/secret"
)

// Defaults.
const (
	DefaultAppName          = "SentimentSense"
	DefaultAppVersion       = "1.0.0"
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8000
	DefaultModelName        = "cardiffnlp/twitter-roberta-base-sentiment-latest"
	DefaultMaxTextLength    = 512
	DefaultBatchSizeLimit   = 10
	DefaultHealthTimeout    = 30 * time.Second
	DefaultHealthInterval   = 30 * time.Second
	DefaultAlertCooldown    = 15 * time.Minute
	DefaultFailureThreshold = 3
	DefaultHistoryCapacity  = 1000
	DefaultDeliveryTimeout  = 10 * time.Second
)

// Config is the complete service configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Auth    AuthConfig    `yaml:"auth"`
}

// AppConfig identifies the service.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// RateLimit is the allowed requests per second across the API. Zero
	// disables limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the limiter's burst size.
	// Default: twice RateLimit, at least 1
	RateBurst int `yaml:"rate_burst"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ModelConfig configures inference.
type ModelConfig struct {
	Name           string        `yaml:"name"`
	Endpoint       string        `yaml:"endpoint"`
	APIToken       string        `yaml:"api_token"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxTextLength  int           `yaml:"max_text_length"`
	BatchSizeLimit int           `yaml:"batch_size_limit"`
	EnableCache    bool          `yaml:"enable_cache"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	CacheEntries   int           `yaml:"cache_entries"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File, when set, receives log lines instead of stderr.
	File string `yaml:"file"`
}

// MetricsConfig configures the metrics exporter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is one of otlp, prometheus, stdout or none.
	Exporter string `yaml:"exporter"`

	// Port, when non-zero, serves /metrics on a separate listener as well.
	Port int `yaml:"port"`
}

// TracingConfig configures the span exporter.
type TracingConfig struct {
	// Exporter is one of otlp, jaeger, stdout or none.
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// HealthConfig configures probes and the monitor loop.
type HealthConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`

	MemoryWarningPercent  float64 `yaml:"memory_warning_percent"`
	MemoryCriticalPercent float64 `yaml:"memory_critical_percent"`
	DiskWarningPercent    float64 `yaml:"disk_warning_percent"`
	DiskCriticalPercent   float64 `yaml:"disk_critical_percent"`
	DiskPath              string  `yaml:"disk_path"`

	// TrialInference runs a real classification in the model probe.
	TrialInference bool `yaml:"trial_inference"`

	Dependencies []DependencyConfig `yaml:"dependencies"`
}

// DependencyConfig describes one external dependency probed by the
// dependencies checker. Exactly one of URL and Addr is set.
type DependencyConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Required bool   `yaml:"required"`
}

// AlertsConfig configures the dispatcher and tracker.
type AlertsConfig struct {
	Cooldown         time.Duration `yaml:"cooldown"`
	FailureThreshold int           `yaml:"failure_threshold"`
	HistoryCapacity  int           `yaml:"history_capacity"`
	DeliveryTimeout  time.Duration `yaml:"delivery_timeout"`
	Channels         notify.Config `yaml:"channels"`
}

// AuthConfig guards the operator endpoints. Everything empty disables auth.
type AuthConfig struct {
	// APIKeys maps key names to key values.
	APIKeys      map[string]string `yaml:"api_keys"`
	APIKeyHeader string            `yaml:"api_key_header"`

	// JWTSecret enables HS256 bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// JWKSURL enables RS256 bearer tokens verified against a JWKS endpoint.
	JWKSURL string `yaml:"jwks_url"`

	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != "" || a.JWKSURL != ""
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		App:    AppConfig{Name: DefaultAppName, Version: DefaultAppVersion},
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort, ShutdownTimeout: 15 * time.Second},
		Model: ModelConfig{
			Name:           DefaultModelName,
			Timeout:        10 * time.Second,
			MaxTextLength:  DefaultMaxTextLength,
			BatchSizeLimit: DefaultBatchSizeLimit,
			EnableCache:    true,
			CacheTTL:       time.Hour,
			CacheEntries:   10000,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Exporter: "prometheus"},
		Tracing: TracingConfig{Exporter: "none", SamplePct: 1},
		Health: HealthConfig{
			Timeout:               DefaultHealthTimeout,
			Interval:              DefaultHealthInterval,
			MemoryWarningPercent:  80,
			MemoryCriticalPercent: 90,
			DiskWarningPercent:    80,
			DiskCriticalPercent:   90,
			DiskPath:              "/",
		},
		Alerts: AlertsConfig{
			Cooldown:         DefaultAlertCooldown,
			FailureThreshold: DefaultFailureThreshold,
			HistoryCapacity:  DefaultHistoryCapacity,
			DeliveryTimeout:  DefaultDeliveryTimeout,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides, then secret
// references. The result is validated.
func Load(path string) (*Config, error) {
	return LoadContext(context.Background(), path)
}

// LoadContext is Load with a context for secret resolution.
func LoadContext(ctx context.Context, path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.resolveSecrets(ctx, secret.NewDefaultResolver()); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSecrets expands ${VAR} and secretref: values in credential fields.
func (c *Config) resolveSecrets(ctx context.Context, r *secret.Resolver) error {
	fields := map[string]*string{
		"model.api_token":                   &c.Model.APIToken,
		"alerts.channels.slack.webhook_url": &c.Alerts.Channels.Slack.WebhookURL,
		"alerts.channels.webhook.url":       &c.Alerts.Channels.Webhook.URL,
		"alerts.channels.email.password":    &c.Alerts.Channels.Email.Password,
		"auth.jwt_secret":                   &c.Auth.JWTSecret,
	}
	headers := make(map[string]*string, len(c.Alerts.Channels.Webhook.Headers))
	for name, v := range c.Alerts.Channels.Webhook.Headers {
		headers[name] = &v
		fields["alerts.channels.webhook.headers."+name] = &v
	}
	keys := make(map[string]*string, len(c.Auth.APIKeys))
	for name, v := range c.Auth.APIKeys {
		keys[name] = &v
		fields["auth.api_keys."+name] = &v
	}

	if err := r.ResolveFields(ctx, fields); err != nil {
		return err
	}
	for name, v := range headers {
		c.Alerts.Channels.Webhook.Headers[name] = *v
	}
	for name, v := range keys {
		c.Auth.APIKeys[name] = *v
	}
	return nil
}

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Metrics.Exporter = strings.ToLower(strings.TrimSpace(c.Metrics.Exporter))
	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		c.Server.RateBurst = max(1, int(2*c.Server.RateLimit))
	}
}

// Validate checks ranges and enumerations. All problems are reported.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit must not be negative")
	}
	if c.Model.MaxTextLength <= 0 {
		add("model.max_text_length must be positive")
	}
	if c.Model.BatchSizeLimit <= 0 {
		add("model.batch_size_limit must be positive")
	}
	if c.Model.Timeout <= 0 {
		add("model.timeout must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "critical":
	default:
		add("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		add("logging.format %q is not json or text", c.Logging.Format)
	}
	switch c.Metrics.Exporter {
	case "otlp", "prometheus", "stdout", "none", "":
	default:
		add("metrics.exporter %q is unknown", c.Metrics.Exporter)
	}
	switch c.Tracing.Exporter {
	case "otlp", "jaeger", "stdout", "none", "":
	default:
		add("tracing.exporter %q is unknown", c.Tracing.Exporter)
	}
	if c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1 {
		add("tracing.sample_pct must be within [0, 1]")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		add("metrics.port %d out of range", c.Metrics.Port)
	}
	if c.Health.Timeout <= 0 {
		add("health.timeout must be positive")
	}
	if c.Health.Interval <= 0 {
		add("health.interval must be positive")
	}
	if !validThresholds(c.Health.MemoryWarningPercent, c.Health.MemoryCriticalPercent) {
		add("health memory thresholds must satisfy 0 < warning <= critical <= 100")
	}
	if !validThresholds(c.Health.DiskWarningPercent, c.Health.DiskCriticalPercent) {
		add("health disk thresholds must satisfy 0 < warning <= critical <= 100")
	}
	for i, d := range c.Health.Dependencies {
		if d.Name == "" {
			add("health.dependencies[%d]: name is required", i)
		}
		if (d.URL == "") == (d.Addr == "") {
			add("health.dependencies[%d] %q: exactly one of url and addr is required", i, d.Name)
		}
	}
	if c.Alerts.Cooldown <= 0 {
		add("alerts.cooldown must be positive")
	}
	if c.Alerts.FailureThreshold <= 0 {
		add("alerts.failure_threshold must be positive")
	}
	if c.Alerts.HistoryCapacity <= 0 {
		add("alerts.history_capacity must be positive")
	}
	if c.Alerts.DeliveryTimeout <= 0 {
		add("alerts.delivery_timeout must be positive")
	}
	if p := c.Alerts.Channels.Email.Port; p < 0 || p > 65535 {
		add("alerts.channels.email.port %d out of range", p)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validThresholds(warning, critical float64) bool {
	return warning > 0 && warning <= critical && critical <= 100
}
