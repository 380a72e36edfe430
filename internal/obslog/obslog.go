// Package obslog wraps log/slog with the tint console handler for local
// development and a JSON handler for production, plus run/node-scoped
// context helpers. Adapted from the teacher's logging conventions
// (structured slog, a tint-colored console mode, a JSON mode) mirrored
// across the example pack's own slog wrappers.
package obslog

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with run/node-scoped child loggers.
type Logger struct {
	*slog.Logger
}

// Format selects the console renderer.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// New builds a Logger writing to os.Stdout at the given level ("debug", "info",
// "warn", "error") in the requested format. An unrecognized level
// defaults to info; an unrecognized format defaults to console.
func New(level string, format Format) *Logger {
	logLevel := parseLevel(level)

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// WithRun returns a child logger tagged with run_id.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.With("run_id", runID)}
}

// WithNode returns a child logger tagged with node_id.
func (l *Logger) WithNode(nodeID string) *Logger {
	return &Logger{Logger: l.With("node_id", nodeID)}
}

// WithFields returns a child logger with the given key/value pairs
// attached.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
