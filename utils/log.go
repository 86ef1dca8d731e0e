package utils

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	l, err := config.Build()
	if err != nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// Logger returns the process-wide logger
func Logger() *zap.Logger {
	return logger.Load()
}

// SetLogger replaces the process-wide logger and returns the previous one.
// A nil logger discards everything.
func SetLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return logger.Swap(l)
}

// NewLogger builds a production logger, at debug level when verbose is set
func NewLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
