package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatch(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "sentimentd.yaml", "alerts:\n  cooldown: 15m\n")

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("alerts:\n  cooldown: [broken\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	writeFile(t, dir, "other.yaml", "ignored: true\n")
	if err := os.WriteFile(path, []byte("alerts:\n  cooldown: 5m\n  failure_threshold: 4\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Alerts.Cooldown != 5*time.Minute {
				// Partial writes can surface an intermediate state.
				continue
			}
			if cfg.Alerts.FailureThreshold != 4 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch() error = %v", err)
			}
			return
		case <-deadline:
			cancel()
			t.Fatal("no reload observed within 5s")
		}
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent-dir-for-watch/sentimentd.yaml", func(*Config) {}, nil)
	if err == nil {
		t.Error("Watch() error = nil, want error for missing directory")
	}
}
