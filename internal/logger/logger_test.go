// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

// captureSink records every Info call it receives.
type captureSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *captureSink) Init(logr.RuntimeInfo)                  {}
func (s *captureSink) Enabled(int) bool                       { return true }
func (s *captureSink) Error(error, string, ...interface{})    {}
func (s *captureSink) WithValues(...interface{}) logr.LogSink { return s }
func (s *captureSink) WithName(string) logr.LogSink           { return s }
func (s *captureSink) Info(level int, msg string, kv ...interface{}) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestInfoCReachesSink(t *testing.T) {
	sink := &captureSink{}
	l := New(sink, nil)
	defer l.Close()

	l.InfoC(ComponentConnection, "hello", "k", "v")

	deadline := time.After(time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("message never drained to the sink")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestComponentLevelGatesMessages(t *testing.T) {
	sink := &captureSink{}
	l := New(sink, ComponentLevels{ComponentPool: LevelOff})
	defer l.Close()

	l.InfoC(ComponentPool, "should be dropped")
	l.DebugC(ComponentConnection, "needs debug, gets info")

	// give the drain goroutine a chance to (incorrectly) deliver
	time.Sleep(20 * time.Millisecond)
	if got := sink.count(); got != 0 {
		t.Fatalf("expected all messages gated before enqueue, got %d delivered", got)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("no-op")
	l.InfoC(ComponentServer, "no-op")
	l.DebugC(ComponentServer, "no-op")
	l.Close()
}
