// Package logging holds the process-wide structured logger and the fallback
// failure handler installed by the CLI entry point.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// LevelEnvVar overrides the default log level when Init is never called
// explicitly (library use, tests).
const LevelEnvVar = "BACKPLANE_LOG_LEVEL"

var logger *slog.Logger

// Init initializes the global structured logger at the given level.
func Init(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

func parseLevel(level string) slog.Level {
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

// Logger returns the global logger, initializing it from the environment on
// first use.
func Logger() *slog.Logger {
	if logger == nil {
		Init(os.Getenv(LevelEnvVar))
	}
	return logger
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}
