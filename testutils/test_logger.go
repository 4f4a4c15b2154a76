package testutils

import (
	"io"

	"github.com/gocircum/obfsmeter/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger creates a new logger for testing that discards output.
// Every level is enabled, so log call sites are still encoded.
func NewTestLogger() logging.Logger {
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return logging.FromZap(zap.New(zapcore.NewCore(enc, zapcore.AddSync(io.Discard), zapcore.DebugLevel)))
}

// NewObservedLogger returns a logger whose entries can be inspected.
func NewObservedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}
