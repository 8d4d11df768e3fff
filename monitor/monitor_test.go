// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package monitor

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/cluster"
	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/server"
	"github.com/lucidfield/docdb/wire"
)

// singleReplyServer reads one command frame and always answers with doc,
// regardless of which command was asked -- enough to drive one probe round
// in a test without a full command dispatcher.
func singleReplyServer(doc bson.Document) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		for {
			var sizeBuf [4]byte
			if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
				return
			}
			size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
			rest := make([]byte, size-4)
			if _, err := io.ReadFull(conn, rest); err != nil {
				return
			}
			full := append(sizeBuf[:], rest...)
			hdr, err := wire.ReadHeader(full)
			if err != nil {
				return
			}
			reply := wire.Reply{Documents: []bson.Document{doc}}
			if _, err := conn.Write(reply.Append(nil, 1, hdr.RequestID)); err != nil {
				return
			}
		}
	}
}

func pipeDial(handler func(net.Conn)) Dialer {
	return func(ctx context.Context, addr connection.Address) (*connection.Connection, error) {
		dialer := &fakeDialer{handler: handler}
		c, _, err := connection.New(ctx, addr, nil, connection.WithDialer(dialer))
		return c, err
	}
}

type fakeDialer struct{ handler func(net.Conn) }

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	client, srv := net.Pipe()
	go d.handler(srv)
	return client, nil
}

func TestProbeOneAppliesRoleFromIsMaster(t *testing.T) {
	doc := bson.NewDocument(
		bson.NewElement("ismaster", bson.Boolean(true)),
		bson.NewElement("maxBsonObjectSize", bson.Int32(1<<20)),
	)
	cl := cluster.New(cluster.KindStandalone, []connection.Address{"a:27017"})
	srv := cl.EnsureServer("a:27017")

	m := New(cl, pipeDial(singleReplyServer(doc)), WithTimeout(time.Second))
	m.probeOne(context.Background(), srv)

	if srv.Role() != server.RoleWritable {
		t.Fatalf("expected writable role after isMaster probe, got %s", srv.Role())
	}
	if srv.MaxBSONObjectSize() != 1<<20 {
		t.Fatalf("expected maxBsonObjectSize to be applied, got %d", srv.MaxBSONObjectSize())
	}
}

func TestProbeOneDiscoversHosts(t *testing.T) {
	doc := bson.NewDocument(
		bson.NewElement("ismaster", bson.Boolean(true)),
		bson.NewElement("setName", bson.String("rs0")),
		bson.NewElement("hosts", bson.Array(bson.String("a:27017"), bson.String("b:27017"))),
	)
	cl := cluster.New(cluster.KindReplicaSet, []connection.Address{"a:27017"})
	srv := cl.EnsureServer("a:27017")

	m := New(cl, pipeDial(singleReplyServer(doc)), WithTimeout(time.Second))
	m.probeOne(context.Background(), srv)

	if len(cl.Servers()) != 2 {
		t.Fatalf("expected discovery to add b:27017, got %d servers", len(cl.Servers()))
	}
}
