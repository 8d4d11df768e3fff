// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"context"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/wire"
	"github.com/lucidfield/docdb/xerr"
)

// ExecuteCommand runs cmd against db over c and blocks until the reply
// arrives or ctx is done. It exists for the handful of callers -- the
// status-probe monitor and the authentication handshake -- that need a
// synchronous round trip on an otherwise purely asynchronous connection.
func ExecuteCommand(ctx context.Context, c *Connection, db string, cmd bson.Document) (wire.Reply, error) {
	type result struct {
		msg wire.Message
		err error
	}
	done := make(chan result, 1)

	if err := c.Send(wire.NewCommand(db, cmd), func(m wire.Message, err error) {
		done <- result{m, err}
	}); err != nil {
		return wire.Reply{}, err
	}

	select {
	case r := <-done:
		if r.err != nil {
			return wire.Reply{}, r.err
		}
		reply, ok := r.msg.(wire.Reply)
		if !ok {
			return wire.Reply{}, xerr.New(xerr.DecodeFailure, "command reply was not OP_REPLY")
		}
		return reply, nil
	case <-ctx.Done():
		return wire.Reply{}, xerr.Wrap(xerr.Interrupted, "command interrupted", ctx.Err())
	}
}
