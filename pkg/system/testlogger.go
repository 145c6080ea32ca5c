package system

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger returns a sugared logger that writes through t, so output is
// only shown for failing or verbose tests. Callers are annotated and stack
// traces are limited to panics.
func NewTestLogger(t zaptest.TestingT) *zap.SugaredLogger {
	return zaptest.NewLogger(t,
		zaptest.Level(zapcore.DebugLevel),
		zaptest.WrapOptions(zap.AddCaller(), zap.AddStacktrace(zapcore.DPanicLevel)),
	).Sugar()
}
