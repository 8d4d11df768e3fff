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
)

// configureTLS wraps nc in a TLS client connection and blocks until the
// handshake completes or ctx is done.
func configureTLS(ctx context.Context, nc net.Conn, cfg *tls.Config) (net.Conn, error) {
	tlsConn := tls.Client(nc, cfg)

	done := make(chan error, 1)
	go func() { done <- tlsConn.HandshakeContext(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			nc.Close()
			return nil, err
		}
		return tlsConn, nil
	case <-ctx.Done():
		nc.Close()
		return nil, ctx.Err()
	}
}
