package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(string) (string, bool)

// envBinding applies one environment variable to the config.
type envBinding struct {
	name  string
	apply func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func float(dst func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*dst(c) = f
		return nil
	}
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func duration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// parseKeyList parses "name=value,name2=value2". A bare value is named
// key1, key2 and so on by position.
func parseKeyList(v string) (map[string]string, error) {
	out := make(map[string]string)
	for i, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, value, ok := strings.Cut(item, "=")
		if !ok {
			name, value = fmt.Sprintf("key%d", i+1), item
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name == "" || value == "" {
			return nil, fmt.Errorf("entry %d is empty", i+1)
		}
		out[name] = value
	}
	return out, nil
}

var envBindings = []envBinding{
	{"APP_NAME", str(func(c *Config) *string { return &c.App.Name })},
	{"APP_VERSION", str(func(c *Config) *string { return &c.App.Version })},
	{"HOST", str(func(c *Config) *string { return &c.Server.Host })},
	{"PORT", integer(func(c *Config) *int { return &c.Server.Port })},
	{"RATE_LIMIT", float(func(c *Config) *float64 { return &c.Server.RateLimit })},
	{"RATE_BURST", integer(func(c *Config) *int { return &c.Server.RateBurst })},

	{"MODEL_NAME", str(func(c *Config) *string { return &c.Model.Name })},
	{"MODEL_ENDPOINT", str(func(c *Config) *string { return &c.Model.Endpoint })},
	{"MODEL_API_TOKEN", str(func(c *Config) *string { return &c.Model.APIToken })},
	{"MODEL_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Model.Timeout })},
	{"MAX_TEXT_LENGTH", integer(func(c *Config) *int { return &c.Model.MaxTextLength })},
	{"BATCH_SIZE_LIMIT", integer(func(c *Config) *int { return &c.Model.BatchSizeLimit })},
	{"ENABLE_MODEL_CACHE", boolean(func(c *Config) *bool { return &c.Model.EnableCache })},

	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
	{"LOG_FILE", str(func(c *Config) *string { return &c.Logging.File })},

	{"ENABLE_METRICS", boolean(func(c *Config) *bool { return &c.Metrics.Enabled })},
	{"METRICS_EXPORTER", str(func(c *Config) *string { return &c.Metrics.Exporter })},
	{"METRICS_PORT", integer(func(c *Config) *int { return &c.Metrics.Port })},
	{"TRACING_EXPORTER", str(func(c *Config) *string { return &c.Tracing.Exporter })},

	{"HEALTH_CHECK_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Health.Timeout })},
	{"HEALTH_CHECK_INTERVAL", duration(func(c *Config) *time.Duration { return &c.Health.Interval })},
	{"HEALTH_DISK_PATH", str(func(c *Config) *string { return &c.Health.DiskPath })},

	{"ALERT_COOLDOWN", duration(func(c *Config) *time.Duration { return &c.Alerts.Cooldown })},
	{"ALERT_FAILURE_THRESHOLD", integer(func(c *Config) *int { return &c.Alerts.FailureThreshold })},
	{"ALERT_HISTORY_CAPACITY", integer(func(c *Config) *int { return &c.Alerts.HistoryCapacity })},
	{"ALERT_EMAIL", str(func(c *Config) *string { return &c.Alerts.Channels.Email.To })},
	{"ALERT_SLACK_WEBHOOK", str(func(c *Config) *string { return &c.Alerts.Channels.Slack.WebhookURL })},
	{"ALERT_WEBHOOK_URL", str(func(c *Config) *string { return &c.Alerts.Channels.Webhook.URL })},

	{"SMTP_HOST", str(func(c *Config) *string { return &c.Alerts.Channels.Email.Host })},
	{"SMTP_PORT", integer(func(c *Config) *int { return &c.Alerts.Channels.Email.Port })},
	{"SMTP_USERNAME", str(func(c *Config) *string { return &c.Alerts.Channels.Email.Username })},
	{"SMTP_PASSWORD", str(func(c *Config) *string { return &c.Alerts.Channels.Email.Password })},
	{"SMTP_FROM", str(func(c *Config) *string { return &c.Alerts.Channels.Email.From })},

	{"AUTH_API_KEYS", func(c *Config, v string) error {
		keys, err := parseKeyList(v)
		if err != nil {
			return err
		}
		c.Auth.APIKeys = keys
		return nil
	}},
	{"AUTH_API_KEY_HEADER", str(func(c *Config) *string { return &c.Auth.APIKeyHeader })},
	{"AUTH_JWT_SECRET", str(func(c *Config) *string { return &c.Auth.JWTSecret })},
	{"AUTH_JWKS_URL", str(func(c *Config) *string { return &c.Auth.JWKSURL })},
	{"AUTH_ISSUER", str(func(c *Config) *string { return &c.Auth.Issuer })},
	{"AUTH_AUDIENCE", str(func(c *Config) *string { return &c.Auth.Audience })},
}

// EnvNames lists the recognized environment variables.
func EnvNames() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = b.name
	}
	return names
}

// applyEnv overrides cfg with every set variable. Empty values are ignored.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidEnv, b.name, err)
		}
	}
	return nil
}
