package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var globalLogger atomic.Pointer[slog.Logger]

// InitSlog initializes the global slog logger with the given level and JSON
// output. The composition root normally replaces the default handler with a
// zap-backed one; this setup is the fallback for early startup and tests.
func InitSlog(levelStr string) {
	var parsedLevel slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		parsedLevel = slog.LevelDebug
	case "INFO":
		parsedLevel = slog.LevelInfo
	case "WARN":
		parsedLevel = slog.LevelWarn
	case "ERROR":
		parsedLevel = slog.LevelError
	default:
		parsedLevel = slog.LevelInfo
		slog.Warn("Invalid log level string, defaulting to INFO", "input", levelStr)
	}

	opts := &slog.HandlerOptions{
		Level:     parsedLevel,
		AddSource: false,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	SetLogger(slog.New(handler))
}

// SetLogger installs an externally built slog logger (typically zap-backed)
// as the global one. Safe to call while other goroutines are logging.
func SetLogger(l *slog.Logger) {
	globalLogger.Store(l)
	slog.SetDefault(l)
}

func current() *slog.Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	fallback := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	// Lose the race, use the winner's logger.
	if globalLogger.CompareAndSwap(nil, fallback) {
		slog.SetDefault(fallback)
		return fallback
	}
	return globalLogger.Load()
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	os.Exit(1)
}
