package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger is the process-wide application logger. It keeps the printf-style
// call sites used across the service ("%s : message" with a component name
// prefix) while delegating the actual sink, levels and encoding to zap.
type Logger struct {
	sugar *zap.SugaredLogger
}

// -----------------------------------------------------------------------------

// NewLogger creates a production logger for the given application name and
// minimum level ("debug", "info", "warning", "error"). Unknown levels fall
// back to info.
func NewLogger(appName string, level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Build only fails on invalid config; fall back to a bare logger.
		zl = zap.NewNop()
	}

	return &Logger{sugar: zl.Named(appName).Sugar()}
}

// -----------------------------------------------------------------------------

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// -----------------------------------------------------------------------------

// Debug logs a formatted debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs a formatted info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warning logs a formatted warning message.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs a formatted error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Critical logs a formatted message for unrecoverable conditions. The caller
// decides whether to exit.
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.DPanicf(format, args...)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered log entries. Safe to call on shutdown.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// -----------------------------------------------------------------------------

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warning", "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
