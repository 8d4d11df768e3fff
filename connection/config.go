// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/lucidfield/docdb/internal/logger"
)

// Dialer opens network connections. net.Dialer satisfies this directly.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DefaultDialer is used when no dialer option is supplied.
var DefaultDialer Dialer = &net.Dialer{}

// Compressor negotiates and performs wire-message compression for a single
// algorithm.
type Compressor interface {
	Name() string
	ID() byte
	Compress(dst, src []byte) ([]byte, error)
	Uncompress(dst, src []byte) ([]byte, error)
}

type config struct {
	dialer       Dialer
	tlsConfig    *tls.Config
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
	lifetime     time.Duration
	compressors  []Compressor
	logger       *logger.Logger
	outboundSize int
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		dialer:       DefaultDialer,
		outboundSize: 256,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Connection at construction time.
type Option func(*config)

// WithDialer overrides the network dialer.
func WithDialer(d Dialer) Option { return func(c *config) { c.dialer = d } }

// WithTLSConfig enables TLS using the given configuration.
func WithTLSConfig(cfg *tls.Config) Option { return func(c *config) { c.tlsConfig = cfg } }

// WithReadTimeout bounds every individual read.
func WithReadTimeout(d time.Duration) Option { return func(c *config) { c.readTimeout = d } }

// WithWriteTimeout bounds every individual write.
func WithWriteTimeout(d time.Duration) Option { return func(c *config) { c.writeTimeout = d } }

// WithIdleTimeout marks a connection expired after it sits unused for d.
func WithIdleTimeout(d time.Duration) Option { return func(c *config) { c.idleTimeout = d } }

// WithLifetime marks a connection expired d after it was created,
// regardless of use.
func WithLifetime(d time.Duration) Option { return func(c *config) { c.lifetime = d } }

// WithCompressors offers a list of compressors in preference order during
// the handshake's compression negotiation.
func WithCompressors(cs ...Compressor) Option { return func(c *config) { c.compressors = cs } }

// WithLogger attaches a logger for connection lifecycle and orphaned-reply
// events.
func WithLogger(l *logger.Logger) Option { return func(c *config) { c.logger = l } }

// WithOutboundQueueSize sets the buffer depth of the write queue.
func WithOutboundQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.outboundSize = n
		}
	}
}
