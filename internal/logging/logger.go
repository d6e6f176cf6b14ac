// Package logging provides the project's structured logger. It keeps the
// chainable With*/component/trace-ID call shape of the original hand-rolled
// logger but is now backed by zerolog, the library the rest of the codebase
// already depends on for its newer structured-logging call sites.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog.Level so callers configure logging without importing
// zerolog directly.
type Level = zerolog.Level

const (
	DEBUG = zerolog.DebugLevel
	INFO  = zerolog.InfoLevel
	WARN  = zerolog.WarnLevel
	ERROR = zerolog.ErrorLevel
	FATAL = zerolog.FatalLevel
)

// ParseLevel converts a string to a Level, defaulting to INFO on failure.
func ParseLevel(s string) Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return INFO
	}
	return lvl
}

// Config holds logger configuration.
type Config struct {
	Level       string `json:"level"`
	Output      string `json:"output"` // "stdout", "stderr", or a file path
	Component   string `json:"component"`
	IncludeFile bool   `json:"include_file"`
	JSONFormat  bool   `json:"json_format"`
}

// Logger wraps a zerolog.Logger with a fixed set of fields, offering the
// same WithComponent/WithField/WithError-returns-a-derived-logger idiom the
// rest of the codebase already uses.
type Logger struct {
	zl zerolog.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a new logger from the given configuration.
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			output = f
		}
	}

	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
	if cfg.Component != "" {
		zl = zl.With().Str("component", cfg.Component).Logger()
	}
	if cfg.IncludeFile {
		zl = zl.With().Caller().Logger()
	}
	return &Logger{zl: zl}
}

// Default returns the process-wide default logger (JSON, INFO, component "app").
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(&Config{Level: "info", Output: "stdout", Component: "app", JSONFormat: true})
	})
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) { defaultLogger = l }

// WithComponent returns a derived logger tagged with the given component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithTraceID returns a derived logger tagged with a trace/run ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{zl: l.zl.With().Str("trace_id", traceID).Logger()}
}

// WithField returns a derived logger with one additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a derived logger with several additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

// WithError returns a derived logger with an error field. A nil err returns
// l unchanged, matching the prior logger's behavior.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithDuration returns a derived logger with a duration field.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{zl: l.zl.With().Dur("duration", d).Logger()}
}

func logf(e *zerolog.Event, msg string, args ...interface{}) {
	if len(args) == 0 {
		e.Msg(msg)
		return
	}
	if len(args)%2 == 0 {
		if _, ok := args[0].(string); ok {
			for i := 0; i+1 < len(args); i += 2 {
				key, ok := args[i].(string)
				if !ok {
					continue
				}
				e = e.Interface(key, args[i+1])
			}
			e.Msg(msg)
			return
		}
	}
	e.Msgf(msg, args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) { logf(l.zl.Debug(), msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { logf(l.zl.Info(), msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { logf(l.zl.Warn(), msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { logf(l.zl.Error(), msg, args...) }
func (l *Logger) Fatal(msg string, args ...interface{}) { logf(l.zl.Fatal(), msg, args...) }

// Zerolog exposes the underlying zerolog.Logger for call sites that want the
// native event builder directly (e.g. gin request middleware).
func (l *Logger) Zerolog() *zerolog.Logger { return &l.zl }

// Package-level convenience functions delegating to the default logger.

func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }
func Fatal(msg string, args ...interface{}) { Default().Fatal(msg, args...) }

func WithComponent(component string) *Logger          { return Default().WithComponent(component) }
func WithTraceID(traceID string) *Logger               { return Default().WithTraceID(traceID) }
func WithField(key string, value interface{}) *Logger { return Default().WithField(key, value) }
func WithFields(fields map[string]interface{}) *Logger { return Default().WithFields(fields) }
func WithError(err error) *Logger                     { return Default().WithError(err) }
