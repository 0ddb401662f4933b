// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"context"
	"log"
	"os"
)

// Logger decouples the dtable stack from a concrete logging backend, the
// same way the teacher's sstable package takes a LoggerAndTracer rather
// than calling a global logger directly.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	// IsTracingEnabled reports whether Eventf calls are worth making;
	// callers on a hot path should check this before formatting an
	// event message, matching the teacher's guard around
	// logger.IsTracingEnabled(ctx) in the sstable footer reader.
	IsTracingEnabled(ctx context.Context) bool
	Eventf(ctx context.Context, format string, args ...interface{})
}

// stdLogger is the default Logger, writing through the standard library
// log package. Tracing is off by default since Eventf calls are verbose
// per-operation timing notes.
type stdLogger struct {
	*log.Logger
	tracing bool
}

// NewStdLogger returns a Logger over the standard library's log package.
// When tracing is true, Eventf messages are emitted; otherwise they are
// skipped without even being formatted.
func NewStdLogger(tracing bool) Logger {
	return &stdLogger{Logger: log.New(os.Stderr, "anvil: ", log.LstdFlags), tracing: tracing}
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.Printf("INFO "+format, args...)
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.Printf("ERROR "+format, args...)
}

func (l *stdLogger) IsTracingEnabled(ctx context.Context) bool { return l.tracing }

func (l *stdLogger) Eventf(ctx context.Context, format string, args ...interface{}) {
	if !l.tracing {
		return
	}
	l.Printf("EVENT "+format, args...)
}

// NoopLogger discards everything; useful in tests that don't want log
// noise on stderr.
var NoopLogger Logger = noopLogger{}

type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})                   {}
func (noopLogger) Errorf(string, ...interface{})                  {}
func (noopLogger) IsTracingEnabled(context.Context) bool           { return false }
func (noopLogger) Eventf(context.Context, string, ...interface{}) {}
