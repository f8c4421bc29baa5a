package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that attaches fields to every entry.
	With(fields ...Field) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err returns an "error" field, or an empty-valued one when err is nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown values map to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error", "critical":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// sink is shared between a logger and the loggers derived from it via With,
// so concurrent writers never interleave partial lines.
type sink struct {
	mu     sync.Mutex
	writer io.Writer
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(line)
}

// structuredLogger writes one entry per line in JSON or logfmt-style text.
type structuredLogger struct {
	level     LogLevel
	text      bool
	out       *sink
	baseAttrs []Field
	now       func() time.Time
}

// NewLogger creates a JSON logger writing to stderr at the given level.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return NewLoggerWithConfig(LoggingConfig{Enabled: true, Level: level, Format: "json", Output: w})
}

// NewLoggerWithConfig creates a logger from a LoggingConfig.
func NewLoggerWithConfig(cfg LoggingConfig) Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	return &structuredLogger{
		level: ParseLogLevel(cfg.Level),
		text:  strings.EqualFold(cfg.Format, "text"),
		out:   &sink{writer: w},
		now:   time.Now,
	}
}

func (l *structuredLogger) With(fields ...Field) Logger {
	attrs := make([]Field, 0, len(l.baseAttrs)+len(fields))
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)
	return &structuredLogger{
		level:     l.level,
		text:      l.text,
		out:       l.out,
		baseAttrs: attrs,
		now:       l.now,
	}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *structuredLogger) log(_ context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.baseAttrs)+len(fields)+3)
	for _, f := range l.baseAttrs {
		entry[f.Key] = redact(f)
	}
	for _, f := range fields {
		entry[f.Key] = redact(f)
	}
	entry["timestamp"] = l.now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	var line []byte
	if l.text {
		line = formatText(entry)
	} else {
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		line = data
	}
	l.out.write(append(line, '\n'))
}

// formatText renders "timestamp level msg" followed by sorted key=value pairs.
func formatText(entry map[string]any) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprint(entry["timestamp"]))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(fmt.Sprint(entry["level"])))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprint(entry["msg"]))

	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case "timestamp", "level", "msg":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(textValue(entry[k]))
	}
	return []byte(b.String())
}

func textValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		s = val
	case time.Duration:
		s = val.String()
	case error:
		s = val.Error()
	default:
		s = fmt.Sprint(val)
	}
	if strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func redact(f Field) any {
	if isRedactedField(f.Key) {
		return "[REDACTED]"
	}
	return f.Value
}

var redactedKeys = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[strings.ToLower(k)] = true
	}
	return m
}()

// isRedactedField returns true if the field should be redacted.
func isRedactedField(key string) bool {
	return redactedKeys[strings.ToLower(key)]
}

// nopLogger discards everything.
type nopLogger struct{}

// NopLogger returns a Logger that discards all entries.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (n nopLogger) With(...Field) Logger                  { return n }

var (
	_ Logger = (*structuredLogger)(nil)
	_ Logger = nopLogger{}
)
