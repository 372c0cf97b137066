package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// parseLogLevel converts a LOG_LEVEL value to a slog.Level, defaulting to INFO.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogLevel returns the level configured through LOG_LEVEL.
func GetLogLevel() slog.Level {
	return parseLogLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger returns the server logger: JSON lines on stdout.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: GetLogLevel()}))
}

// NewTextLogger returns a human-readable logger for CLI commands. Commands
// that print results to stdout should log to stderr.
func NewTextLogger(output io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: GetLogLevel()}))
}

// NewTestLogger creates a logger for tests. An empty level falls back to
// LOG_LEVEL.
func NewTestLogger(output io.Writer, level string) *slog.Logger {
	logLevel := GetLogLevel()
	if level != "" {
		logLevel = parseLogLevel(level)
	}
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
}
