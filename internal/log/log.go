// Package log holds the orchestrator's process-wide zap logger. The
// deliberation engine, backend factory, and tool executor each tag
// their entries with a component field via Component so one
// deliberation's interleaved output can be filtered per subsystem.
package log

import (
	"go.uber.org/zap"
)

var logger *zap.Logger

func init() {
	logger, _ = zap.NewDevelopment()
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger
}

// SetLogger sets the global logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal logs a fatal message and exits.
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// With returns a logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// Component returns a child logger tagged with the orchestrator
// subsystem name, e.g. "deliberation.engine" or "backend.factory".
func Component(name string) *zap.Logger {
	return logger.With(zap.String("component", name))
}

// Sync flushes any buffered log entries.
func Sync() error {
	return logger.Sync()
}
