// Package logger provides structured, context-aware logging for the
// application, backed by the standard library's slog.
package logger

import (
	"context"
	"io"
	"log/slog"
)

// Level is a logging verbosity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoggerInterface is the logging contract used throughout the application.
// Every call takes a context so trace/span IDs can be attached by
// implementations that care to (this one doesn't, apm.Span carries its
// own).
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
	With(keyvals ...any) LoggerInterface
}

// Logger is the slog-backed implementation of LoggerInterface.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger writing JSON lines to w at the given level. appName
// is attached to every record as the "app" attribute.
func New(w io.Writer, level Level, appName string, extra map[string]any) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	base := slog.New(handler).With("app", appName)
	for k, v := range extra {
		base = base.With(k, v)
	}
	return &Logger{slog: base}
}

func (l *Logger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.slog.DebugContext(ctx, msg, keyvals...)
}

func (l *Logger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.slog.InfoContext(ctx, msg, keyvals...)
}

func (l *Logger) Warn(ctx context.Context, msg string, keyvals ...any) {
	l.slog.WarnContext(ctx, msg, keyvals...)
}

func (l *Logger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.slog.ErrorContext(ctx, msg, keyvals...)
}

// With returns a logger that prepends keyvals to every subsequent record.
func (l *Logger) With(keyvals ...any) LoggerInterface {
	return &Logger{slog: l.slog.With(keyvals...)}
}
