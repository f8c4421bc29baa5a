package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonwraymond/sentimentd/alert"
)

// Slack attachment colors per level.
var levelColors = map[alert.Level]string{
	alert.LevelInfo:     "#36a64f",
	alert.LevelWarning:  "#ff9500",
	alert.LevelError:    "#ff0000",
	alert.LevelCritical: "#8b0000",
}

var levelEmoji = map[alert.Level]string{
	alert.LevelInfo:     "ℹ️",
	alert.LevelWarning:  "⚠️",
	alert.LevelError:    "🚨",
	alert.LevelCritical: "🔥",
}

// SlackMessage is an incoming-webhook payload.
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments"`
}

// SlackAttachment is one message attachment.
type SlackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField is one attachment field.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	// WebhookURL is the incoming-webhook URL. Empty disables the channel.
	WebhookURL string `yaml:"webhook_url"`
}

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	url    string
	client *http.Client
}

// NewSlackChannel creates a Slack channel. A nil client uses a client with
// no timeout of its own; the dispatcher bounds each delivery.
func NewSlackChannel(cfg SlackConfig, client *http.Client) *SlackChannel {
	if client == nil {
		client = &http.Client{}
	}
	return &SlackChannel{url: cfg.WebhookURL, client: client}
}

// Name returns the channel name.
func (s *SlackChannel) Name() string { return "slack" }

// Deliver posts a to the webhook. A non-2xx response is an error.
func (s *SlackChannel) Deliver(ctx context.Context, a alert.Alert) error {
	payload, err := json.Marshal(SlackPayload(a))
	if err != nil {
		return fmt.Errorf("notify: marshal slack message: %w", err)
	}
	return postJSON(ctx, s.client, s.url, payload, nil)
}

// SlackPayload renders a as a webhook message: a colored attachment with
// Service, Level and Time fields followed by one field per metadata key in
// key order.
func SlackPayload(a alert.Alert) SlackMessage {
	color, ok := levelColors[a.Level]
	if !ok {
		color = levelColors[alert.LevelWarning]
	}
	emoji, ok := levelEmoji[a.Level]
	if !ok {
		emoji = levelEmoji[alert.LevelWarning]
	}

	fields := []SlackField{
		{Title: "Service", Value: a.Source, Short: true},
		{Title: "Level", Value: strings.ToUpper(a.Level.String()), Short: true},
		{Title: "Time", Value: a.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"), Short: true},
	}

	keys := make([]string, 0, len(a.Metadata))
	for k := range a.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, SlackField{
			Title: fieldTitle(k),
			Value: fmt.Sprint(a.Metadata[k]),
			Short: true,
		})
	}

	return SlackMessage{Attachments: []SlackAttachment{{
		Color:  color,
		Title:  emoji + " " + a.Title,
		Text:   a.Message,
		Fields: fields,
	}}}
}

// fieldTitle turns a metadata key such as "response_time" into "Response Time".
func fieldTitle(key string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(key, "_", " "))
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ alert.Channel = (*SlackChannel)(nil)
