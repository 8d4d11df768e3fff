// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package monitor

import (
	"time"

	"github.com/lucidfield/docdb/internal/logger"
)

type config struct {
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		interval: 10 * time.Second,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Monitor at construction time.
type Option func(*config)

// WithInterval overrides the cadence between probe rounds.
func WithInterval(d time.Duration) Option { return func(c *config) { c.interval = d } }

// WithTimeout bounds a single server's probe round (isMaster plus any
// follow-up replSetGetStatus/buildInfo calls).
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithLogger attaches a logger for probe failures.
func WithLogger(l *logger.Logger) Option { return func(c *config) { c.logger = l } }
