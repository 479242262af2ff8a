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

// Package log is the scanner's structured logger. Every other package calls
// log.NewModuleLogger(<module>) once at init and logs through the returned
// Logger, the same shape klaytn's own (unvendored) log package is called
// with throughout the tree. Unlike the original hand-rolled formatter, this
// one is backed by zap so key/value pairs get real encoding instead of
// fmt.Sprintf.
package log

import (
	"os"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module identifies the subsystem a Logger was created for. Kept as a
// distinct type (rather than a bare string) so call sites read
// log.NewModuleLogger(log.ModuleScan) the way klaytn's log.ModuleName
// constants do.
type Module string

const (
	ModuleIndex       Module = "index"
	ModuleScan        Module = "scan"
	ModuleReport      Module = "report"
	ModuleEventuality Module = "eventuality"
	ModuleScheduler   Module = "scheduler"
	ModuleScanner     Module = "scanner"
	ModuleDB          Module = "db"
	ModuleTransport   Module = "transport"
	ModuleAudit       Module = "audit"
	ModuleCmd         Module = "cmd"
	ModuleCache       Module = "cache"
	ModuleMetrics     Module = "metrics"
)

// Logger is the interface every scanner package logs through. Arguments
// after the message are alternating key/value pairs, exactly like
// klaytn/geth's log.Logger.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	With(ctx ...interface{}) Logger
}

type logger struct {
	s *zap.SugaredLogger
}

var root = newRoot()

func newRoot() *zap.SugaredLogger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	level := zap.NewAtomicLevel()
	if lv := os.Getenv("SCANNER_LOG_LEVEL"); lv != "" {
		_ = level.UnmarshalText([]byte(lv))
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}

	writer := zapcore.AddSync(colorable.NewColorableStdout())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), writer, level)
	return zap.New(core, zap.AddCallerSkip(2)).Sugar()
}

// New returns a Logger carrying the given context pairs, mirroring
// klaytn's log.New(ctx ...interface{}).
func New(ctx ...interface{}) Logger {
	return &logger{s: root.With(ctx...)}
}

// NewWith is an alias of New kept for call-site parity with
// storage/database's logger.NewWith(...) usage.
func NewWith(ctx ...interface{}) Logger {
	return New(ctx...)
}

// NewModuleLogger returns a Logger tagged with the given module, the
// call klaytn's own code makes at package init across the tree.
func NewModuleLogger(m Module) Logger {
	return New("module", string(m))
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.s.Infow(msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.s.Warnw(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.s.Errorw(msg, ctx...) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.s.Panicw(msg, ctx...) }

func (l *logger) With(ctx ...interface{}) Logger {
	return &logger{s: l.s.With(ctx...)}
}

// CallerFrame returns the caller's call-stack frame, used by invariant
// panics (scanerr.Invariant) to annotate where a double-spend risk was
// detected without pulling the whole stack into the panic message.
func CallerFrame(skip int) stack.Call {
	return stack.Caller(skip + 1)
}
