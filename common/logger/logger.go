// Package logger provides a unified logging facade for the chat engine.
// All packages log through the package-level helpers so the backend can be
// swapped in one place (production zap logger vs. a test logger).
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	current.Store(l.Sugar())
}

// SetLogger replaces the backend logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l.Sugar())
}

// Development switches to a human-readable development logger.
func Development() {
	l, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	current.Store(l.Sugar())
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = current.Load().Sync()
}

// Debugf logs a debug message.
func Debugf(format string, args ...any) { current.Load().Debugf(format, args...) }

// Infof logs an info message.
func Infof(format string, args ...any) { current.Load().Infof(format, args...) }

// Warnf logs a warning message.
func Warnf(format string, args ...any) { current.Load().Warnf(format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...any) { current.Load().Errorf(format, args...) }
