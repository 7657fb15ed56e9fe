// Package log configures the process-wide slog default. Every service logger
// descends from it via WithModule.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default text handler at the requested level. An
// unrecognized level falls back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule tags a logger with the subsystem name used throughout the
// codebase (trigger_engine, rate_limiter, ...).
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
