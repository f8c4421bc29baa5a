package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/observe"
)

// EmailConfig configures the email channel.
type EmailConfig struct {
	// To is the recipient. Empty disables the channel.
	To string `yaml:"to"`

	// From is the sender address.
	// Default: "sentimentd@localhost"
	From string `yaml:"from"`

	// Host is the SMTP server. Empty makes the channel log the mail
	// instead of sending it.
	Host string `yaml:"host"`

	// Port is the SMTP port.
	// Default: 587
	Port int `yaml:"port"`

	// Username and Password enable PLAIN auth when Username is set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EmailChannel mails alerts as plain text.
type EmailChannel struct {
	cfg    EmailConfig
	logger observe.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates an email channel.
func NewEmailChannel(cfg EmailConfig, logger observe.Logger) *EmailChannel {
	if cfg.From == "" {
		cfg.From = "sentimentd@localhost"
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &EmailChannel{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Name returns the channel name.
func (e *EmailChannel) Name() string { return "email" }

// Deliver mails a. Without an SMTP host the mail is only logged.
func (e *EmailChannel) Deliver(ctx context.Context, a alert.Alert) error {
	if e.cfg.Host == "" {
		e.logger.Info(ctx, "would send email alert",
			observe.F("to", e.cfg.To),
			observe.F("title", a.Title),
			observe.F("message", a.Message),
		)
		return nil
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))

	// smtp.SendMail takes no context; run it aside so cancellation returns.
	done := make(chan error, 1)
	go func() {
		done <- e.send(addr, auth, e.cfg.From, []string{e.cfg.To}, e.message(a))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notify: send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *EmailChannel) message(a alert.Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(e.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(e.cfg.To))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(a.Level.String()), headerValue(a.Title))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", a.Message)
	fmt.Fprintf(&b, "Service: %s\r\n", a.Source)
	fmt.Fprintf(&b, "Time: %s\r\n", a.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))

	keys := make([]string, 0, len(a.Metadata))
	for k := range a.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\r\n", fieldTitle(k), a.Metadata[k])
	}
	return []byte(b.String())
}

// headerValue folds line breaks to spaces so a value cannot start a new
// header.
var headerValue = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace

var _ alert.Channel = (*EmailChannel)(nil)
