package alert

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Level is the severity of an alert.
type Level string

// Alert levels, in increasing severity.
const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// DefaultSource is the source of alerts raised by the service itself.
const DefaultSource = "sentimentd"

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelInfo, LevelWarning, LevelError, LevelCritical:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// String returns the level name.
func (l Level) String() string {
	return string(l)
}

// Alert is one notification. It is immutable once created.
type Alert struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Level     Level          `json:"level"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New creates an alert stamped with the current UTC time. An empty source
// becomes DefaultSource.
func New(title, message string, level Level, source string, metadata map[string]any) Alert {
	return newAt(time.Now().UTC(), title, message, level, source, metadata)
}

func newAt(ts time.Time, title, message string, level Level, source string, metadata map[string]any) Alert {
	if source == "" {
		source = DefaultSource
	}
	if level == "" {
		level = LevelWarning
	}
	return Alert{
		ID:        source + "_" + ts.Format("20060102_150405"),
		Title:     title,
		Message:   message,
		Level:     level,
		Source:    source,
		Metadata:  maps.Clone(metadata),
		Timestamp: ts,
	}
}

// Key identifies alerts that share a cooldown.
func (a Alert) Key() string {
	return a.Source + "_" + a.Title
}
