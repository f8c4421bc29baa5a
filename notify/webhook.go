package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonwraymond/sentimentd/alert"
)

// WebhookConfig configures the generic JSON webhook channel.
type WebhookConfig struct {
	// URL receives a POST per alert. Empty disables the channel.
	URL string `yaml:"url"`

	// Headers are added to every request, e.g. an Authorization header.
	Headers map[string]string `yaml:"headers"`
}

// WebhookChannel posts alerts as {"alert": {...}}.
type WebhookChannel struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookChannel creates a webhook channel.
func NewWebhookChannel(cfg WebhookConfig, client *http.Client) *WebhookChannel {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookChannel{url: cfg.URL, headers: cfg.Headers, client: client}
}

// Name returns the channel name.
func (w *WebhookChannel) Name() string { return "webhook" }

// Deliver posts a. A non-2xx response is an error.
func (w *WebhookChannel) Deliver(ctx context.Context, a alert.Alert) error {
	body, err := json.Marshal(struct {
		Alert alert.Alert `json:"alert"`
	}{a})
	if err != nil {
		return fmt.Errorf("notify: marshal webhook body: %w", err)
	}
	return postJSON(ctx, w.client, w.url, body, w.headers)
}

var _ alert.Channel = (*WebhookChannel)(nil)
