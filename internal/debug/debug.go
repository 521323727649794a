package debug

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Development mode switches to the
// console encoder with caller and stacktrace annotations.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// OrNop returns logger, or a no-op logger when it is nil
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Timing logs the start of an operation at debug level and returns a func
// that logs its duration when called.
func Timing(logger *zap.Logger, operation string, fields ...zap.Field) func() {
	if logger == nil || !logger.Core().Enabled(zapcore.DebugLevel) {
		return func() {}
	}

	start := time.Now()
	logger.Debug("starting", append([]zap.Field{zap.String("operation", operation)}, fields...)...)

	return func() {
		logger.Debug("completed", append([]zap.Field{
			zap.String("operation", operation),
			zap.Duration("took", time.Since(start)),
		}, fields...)...)
	}
}
