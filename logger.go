package stash

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with stash-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.TimeOnly,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewJSONLoggerTo(os.Stderr, level)
}

// NewJSONLoggerTo is NewJSONLogger writing to w.
func NewJSONLoggerTo(w io.Writer, level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger with colored, human-readable output.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000),
		})),
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else yields info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithService adds a service field to the logger.
func (l *Logger) WithService(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("service", name),
	}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOp logs the outcome of a storage operation.
func (l *Logger) LogOp(ctx context.Context, op, path string, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"path", path,
			"duration", d,
			"kind", KindOf(err).String(),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, op+" completed",
		"path", path,
		"duration", d,
	)
}

// LogSkipped logs an upload that was not performed because the target exists.
func (l *Logger) LogSkipped(ctx context.Context, path string) {
	l.WarnContext(ctx, "upload skipped, target already exists", "path", path)
}

// LogCreated logs the creation of a root container (directory, bucket, ...).
func (l *Logger) LogCreated(ctx context.Context, kind, name string) {
	l.InfoContext(ctx, kind+" created", "name", name)
}

// OrNoop returns l, or a discarding logger when l is nil.
func (l *Logger) OrNoop() *Logger {
	if l == nil {
		return NoopLogger()
	}
	return l
}
