// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"time"

	"github.com/lucidfield/docdb/internal/logger"
)

type config struct {
	maxConnections   int32
	reconnectTimeout time.Duration
	drainTimeout     time.Duration
	idleScanCount    int
	logger           *logger.Logger
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		maxConnections:   10,
		reconnectTimeout: 2 * time.Second,
		drainTimeout:     10 * time.Second,
		idleScanCount:    5,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxConnections < 1 {
		cfg.maxConnections = 1
	}
	if cfg.idleScanCount < 1 {
		cfg.idleScanCount = 1
	}
	return cfg
}

// Option configures a Pool at construction time.
type Option func(*config)

// WithMaxConnections sets the pool's connection cap, clamped to >= 1.
func WithMaxConnections(n int32) Option { return func(c *config) { c.maxConnections = n } }

// WithReconnectTimeout bounds how long Send waits for an in-flight
// reconnect before failing with cannot-connect.
func WithReconnectTimeout(d time.Duration) Option {
	return func(c *config) { c.reconnectTimeout = d }
}

// WithDrainTimeout bounds how long a shrinking or shut-down connection is
// given to finish its in-flight replies before being hard-closed.
func WithDrainTimeout(d time.Duration) Option { return func(c *config) { c.drainTimeout = d } }

// WithIdleScanCount overrides how many connections the pick ladder's idle
// and least-loaded scans sample per call. The default of 5 trades scan cost
// against load diffusion; raise it for very large pools.
func WithIdleScanCount(n int) Option { return func(c *config) { c.idleScanCount = n } }

// WithLogger attaches a logger for grow/shrink/reconnect events.
func WithLogger(l *logger.Logger) Option { return func(c *config) { c.logger = l } }
