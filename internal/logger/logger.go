// Package logger is the leveled logger used across prgate.
//
// Output goes to stderr by default so that reports written to stdout can be
// piped. Messages and field values are scrubbed of forge tokens and other
// credentials before they are written.
package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents logging levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config value to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{40,}`),
	regexp.MustCompile(`glpat-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._~+/-]+=*`),
	regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)(["']?\s*[=:]\s*)["']?[^\s"']{8,}["']?`),
	regexp.MustCompile(`(?i)x-access-token:[^@\s]+@`),
}

var sensitiveFieldNames = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"private_token": true,
	"authorization": true,
	"credentials":   true,
}

// sink is shared by a logger and everything derived from it.
type sink struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
}

// Logger writes leveled, masked log lines.
type Logger struct {
	sink   *sink
	prefix string
	fields map[string]interface{}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the process logger, writing INFO and above to stderr.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(LevelInfo, os.Stderr)
	})
	return defaultLogger
}

// New creates a logger.
func New(level Level, output io.Writer) *Logger {
	return &Logger{
		sink:   &sink{level: level, output: output},
		fields: map[string]interface{}{},
	}
}

// SetLevel changes the level for this logger and all loggers derived from it.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// SetOutput changes the writer for this logger and all loggers derived from it.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// WithField returns a derived logger carrying key=value.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger carrying the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, prefix: l.prefix, fields: merged}
}

// WithPrefix returns a derived logger tagging lines with [prefix].
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{sink: l.sink, prefix: prefix, fields: l.fields}
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.sink.level {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02T15:04:05.000Z07:00"))
	sb.WriteByte(' ')
	sb.WriteString(level.String())
	sb.WriteByte(' ')
	if l.prefix != "" {
		sb.WriteString("[" + l.prefix + "] ")
	}
	sb.WriteString(MaskSecrets(msg))
	sb.WriteString(l.formatFields())
	sb.WriteByte('\n')

	fmt.Fprint(l.sink.output, sb.String())
}

// formatFields renders fields sorted by key.
func (l *Logger) formatFields() string {
	if len(l.fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, maskValue(k, l.fields[k]))
	}
	return sb.String()
}

func maskValue(key string, value interface{}) interface{} {
	if IsSensitiveKey(key) {
		if s, ok := value.(string); ok {
			return maskString(s)
		}
		return "***MASKED***"
	}
	if s, ok := value.(string); ok {
		return MaskSecrets(s)
	}
	return value
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "***MASKED***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

// Package-level helpers on the default logger.

func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }

// SetLevel sets the level of the default logger.
func SetLevel(level Level) { Default().SetLevel(level) }

// SetOutput sets the writer of the default logger.
func SetOutput(w io.Writer) { Default().SetOutput(w) }

// MaskSecrets replaces known credential shapes in s.
func MaskSecrets(s string) string {
	for _, p := range tokenPatterns {
		s = p.ReplaceAllStringFunc(s, maskString)
	}
	return s
}

// IsSensitiveKey reports whether a field name holds a credential.
func IsSensitiveKey(key string) bool {
	return sensitiveFieldNames[strings.ToLower(key)]
}
