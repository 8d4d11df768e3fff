// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package cluster

import "github.com/lucidfield/docdb/internal/logger"

type config struct {
	strategyFactory StrategyFactory
	logger          *logger.Logger
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		strategyFactory: DefaultStrategyFactory,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Cluster at construction time.
type Option func(*config)

// WithStrategyFactory overrides the per-kind reconnect strategy lookup. The
// default backs standalone clusters off at a fixed interval and
// replica-set/sharded clusters off exponentially, capped.
func WithStrategyFactory(f StrategyFactory) Option {
	return func(c *config) { c.strategyFactory = f }
}

// WithLogger attaches a logger for discovery and dedup events.
func WithLogger(l *logger.Logger) Option { return func(c *config) { c.logger = l } }
