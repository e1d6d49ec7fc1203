// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the module logger used across the escrow engine.
// Every sub-component gets its own named logger via NewModuleLogger, the
// same convention engine components have always used: one global zap
// core, one named child per module.
package log

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module identifies a logical component for the purpose of attributing
// log lines. New modules are added here as the engine grows; nothing
// stops a caller from passing an arbitrary string instead.
type Module string

const (
	Escrow     Module = "escrow"
	Store      Module = "store"
	Subtree    Module = "subtree"
	FeePolicy  Module = "feepolicy"
	Ledger     Module = "ledger"
	Reputation Module = "reputation"
	Metrics    Module = "metrics"
	ShakeCtl   Module = "shakectl"
)

// base is held behind an atomic.Value, not a plain package var, so that
// SetDevelopment can swap the process-wide logger after module loggers
// (most of them package-level vars initialized at program startup) have
// already been constructed — each moduleLogger re-reads base on every
// call instead of capturing a *zap.SugaredLogger at construction time.
var base atomic.Value // holds *zap.SugaredLogger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	base.Store(buildLogger(cfg))
}

func buildLogger(cfg zap.Config) *zap.SugaredLogger {
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Logging must never be the reason the engine fails to start;
		// fall back to an unconfigured, always-on logger.
		logger = zap.NewExample()
	}
	return logger.Sugar()
}

func current() *zap.SugaredLogger { return base.Load().(*zap.SugaredLogger) }

// Logger is the narrow key-value logging surface used throughout the
// engine: a message plus an even number of alternating key/value pairs.
type Logger interface {
	Trace(msg string, kv ...interface{})
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// moduleLogger re-reads the process-wide logger on every call rather
// than caching a *zap.SugaredLogger at construction time, so that most
// module loggers — package-level vars initialized long before a host's
// flag parsing runs — still pick up a later SetDevelopment call.
type moduleLogger struct {
	module Module
}

// NewModuleLogger returns a Logger tagging every line with the given
// module name.
func NewModuleLogger(m Module) Logger {
	return &moduleLogger{module: m}
}

func (l *moduleLogger) sugar() *zap.SugaredLogger {
	return current().With("module", string(l.module))
}

// Trace is mapped onto Debug: zap has no level below Debug, and the
// engine's trace-level lines are rare enough not to warrant a custom core.
func (l *moduleLogger) Trace(msg string, kv ...interface{}) { l.sugar().Debugw(msg, kv...) }
func (l *moduleLogger) Debug(msg string, kv ...interface{}) { l.sugar().Debugw(msg, kv...) }
func (l *moduleLogger) Info(msg string, kv ...interface{})  { l.sugar().Infow(msg, kv...) }
func (l *moduleLogger) Warn(msg string, kv ...interface{})  { l.sugar().Warnw(msg, kv...) }
func (l *moduleLogger) Error(msg string, kv ...interface{}) { l.sugar().Errorw(msg, kv...) }

// SetDevelopment swaps the process-wide logger for a human-readable,
// color-free console encoder. Intended for cmd/shakectl and tests; the
// engine itself never calls this.
func SetDevelopment() {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}
	base.Store(buildLogger(cfg))
}
