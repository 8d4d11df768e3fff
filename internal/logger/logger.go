// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package logger is the driver's internal logging shim. It accepts any
// logr.LogSink, buffers messages through a job channel so a connection's
// reader goroutine never blocks on a slow sink, and tracks per-component
// verbosity.
package logger

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
)

// Component names a subsystem emitting log messages.
type Component string

// Components that emit log messages.
const (
	ComponentConnection Component = "connection"
	ComponentServer     Component = "server"
	ComponentCluster    Component = "cluster"
	ComponentPool       Component = "pool"
)

const jobBufferSize = 100

type job struct {
	level int
	msg   string
	kv    []interface{}
}

// Logger buffers log calls onto a channel drained by a single goroutine, so
// that logging from a connection's read loop never blocks on I/O to the
// sink. Verbosity is gated per component before a job is ever enqueued.
type Logger struct {
	Sink   logr.LogSink
	Levels ComponentLevels
	jobs   chan job
	close  chan struct{}
}

// New constructs a Logger. A nil sink falls back to writing to stderr. A nil
// levels map defaults every component to LevelInfo.
func New(sink logr.LogSink, levels ComponentLevels) *Logger {
	l := &Logger{
		Sink:   sink,
		Levels: levels,
		jobs:   make(chan job, jobBufferSize),
		close:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	for {
		select {
		case j := <-l.jobs:
			l.emit(j)
		case <-l.close:
			return
		}
	}
}

func (l *Logger) emit(j job) {
	if l.Sink != nil {
		l.Sink.Info(j.level, j.msg, j.kv...)
		return
	}
	fmt.Fprintln(os.Stderr, append([]interface{}{j.msg}, j.kv...)...)
}

// Info enqueues an informational message, ungated by component. If the job
// buffer is full the message is dropped rather than blocking the caller.
func (l *Logger) Info(msg string, kv ...interface{}) {
	l.enqueue(job{level: 0, msg: msg, kv: kv})
}

// Debug enqueues a debug-level message, ungated by component.
func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.enqueue(job{level: 1, msg: msg, kv: kv})
}

// InfoC enqueues an informational message if component is configured at
// LevelInfo or above.
func (l *Logger) InfoC(c Component, msg string, kv ...interface{}) {
	if l == nil || l.Levels.levelFor(c) < LevelInfo {
		return
	}
	l.enqueue(job{level: 0, msg: msg, kv: kv})
}

// DebugC enqueues a debug-level message if component is configured at
// LevelDebug.
func (l *Logger) DebugC(c Component, msg string, kv ...interface{}) {
	if l == nil || l.Levels.levelFor(c) < LevelDebug {
		return
	}
	l.enqueue(job{level: 1, msg: msg, kv: kv})
}

func (l *Logger) enqueue(j job) {
	if l == nil {
		return
	}
	select {
	case l.jobs <- j:
	default:
	}
}

// Close stops the logger's drain goroutine.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	close(l.close)
}
