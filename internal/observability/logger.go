// Package observability provides structured logging and request statistics.
//
// Logger wraps log/slog with a persistent service field. RequestStats counts
// served requests over sliding one-minute, one-hour, and one-day windows for
// the /stats endpoint.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog with a fixed service identity.
type Logger struct {
	inner   *slog.Logger
	service string
}

// NewLogger creates a JSON structured logger for the named service.
// Output defaults to os.Stderr if w is nil.
func NewLogger(service string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{
		inner:   slog.New(handler).With(slog.String("service", service)),
		service: service,
	}
}

// NewLoggerWithHandler creates a logger with a custom slog handler.
func NewLoggerWithHandler(service string, h slog.Handler) *Logger {
	return &Logger{
		inner:   slog.New(h).With(slog.String("service", service)),
		service: service,
	}
}

// With returns a new Logger with an additional persistent field.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		inner:   l.inner.With(slog.Any(key, value)),
		service: l.service,
	}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, args...) }

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, args...) }

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
