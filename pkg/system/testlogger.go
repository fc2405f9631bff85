package system

import (
	"go.uber.org/zap"
)

// NewTestLogger returns a sugared development logger for tests with
// stacktraces disabled.
func NewTestLogger() *zap.SugaredLogger {
	return NewTestZapLogger().Sugar()
}

// NewTestZapLogger returns the unsugared variant of NewTestLogger.
func NewTestZapLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, _ := cfg.Build()
	return logger
}
