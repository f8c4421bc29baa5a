package notify

import (
	"errors"
	"net/http"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/observe"
)

// ErrUnexpectedStatus indicates a channel endpoint answered with a non-2xx
// status.
var ErrUnexpectedStatus = errors.New("notify: unexpected status")

// Config selects and configures channels. A channel whose configuration is
// absent is not built.
type Config struct {
	Email   EmailConfig   `yaml:"email"`
	Slack   SlackConfig   `yaml:"slack"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// Build returns the configured channels in the order email, slack,
// webhook. A nil client is replaced by a default client.
func Build(cfg Config, logger observe.Logger, client *http.Client) []alert.Channel {
	var channels []alert.Channel
	if cfg.Email.To != "" {
		channels = append(channels, NewEmailChannel(cfg.Email, logger))
	}
	if cfg.Slack.WebhookURL != "" {
		channels = append(channels, NewSlackChannel(cfg.Slack, client))
	}
	if cfg.Webhook.URL != "" {
		channels = append(channels, NewWebhookChannel(cfg.Webhook, client))
	}
	return channels
}
