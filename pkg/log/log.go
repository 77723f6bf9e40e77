// Package log configures slog for the approvio binaries and hands out
// module-scoped loggers.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on the default logger at the given level.
// Unknown levels fall back to info.
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

// WithModule returns the default logger tagged with a module attribute, so
// engine, resolver and binary logs stay distinguishable in one stream.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
