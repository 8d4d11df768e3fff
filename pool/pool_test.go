// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/cluster"
	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/server"
	"github.com/lucidfield/docdb/wire"
)

// blockingServer never replies, leaving every request permanently pending
// -- useful for forcing the pick ladder to grow instead of reusing an idle
// connection.
func blockingServer(conn net.Conn) {
	<-make(chan struct{})
}

type pipeDialer struct{ handler func(net.Conn) }

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	client, srv := net.Pipe()
	go d.handler(srv)
	return client, nil
}

func blockingFactory() Factory {
	return func(ctx context.Context, addr connection.Address, srv *server.Server) (*connection.Connection, error) {
		dialer := &pipeDialer{handler: blockingServer}
		c, _, err := connection.New(ctx, addr, nil, connection.WithDialer(dialer))
		return c, err
	}
}

func writableCluster(addrs ...connection.Address) *cluster.Cluster {
	c := cluster.New(cluster.KindReplicaSet, addrs)
	for _, a := range addrs {
		s := c.EnsureServer(a)
		s.ApplyProbe(server.IsMasterResult{IsMaster: true}, nil, nil, time.Now())
	}
	return c
}

func TestPickLadderGrowsOnFirstSend(t *testing.T) {
	cl := writableCluster("a:27017")
	p := New(cl, blockingFactory(), WithMaxConnections(3))
	defer p.Close()

	conn, err := p.pick(context.Background(), ReadPreference{Mode: Primary})
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if conn == nil {
		t.Fatal("expected a connection")
	}
	if p.Count() != 1 {
		t.Fatalf("expected pool to have grown to 1 connection, got %d", p.Count())
	}
}

func TestPickLadderGrowsPastBusyConnection(t *testing.T) {
	cl := writableCluster("a:27017", "b:27017", "c:27017")
	p := New(cl, blockingFactory(), WithMaxConnections(3))
	defer p.Close()

	first, err := p.pick(context.Background(), ReadPreference{Mode: Primary})
	if err != nil {
		t.Fatalf("first pick: %v", err)
	}

	// Pin a pending request on `first` so it's no longer idle, then pick
	// again: since it's the only connection and it's busy, the ladder must
	// grow rather than reuse it.
	first.conn.Send(wire.NewCommand("test", bson.NewDocument()), func(wire.Message, error) {})

	second, err := p.pick(context.Background(), ReadPreference{Mode: Primary})
	if err != nil {
		t.Fatalf("second pick: %v", err)
	}
	if second == first {
		t.Fatal("expected the ladder to grow a new connection instead of reusing the busy one")
	}
	if second.conn.PendingCount() != 0 {
		t.Fatalf("expected the newly grown connection to be idle, got %d pending", second.conn.PendingCount())
	}
}

func TestPoolNeverExceedsMaxConnections(t *testing.T) {
	cl := writableCluster("a:27017")
	p := New(cl, blockingFactory(), WithMaxConnections(2))
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.pick(context.Background(), ReadPreference{Mode: Primary})
		}()
	}
	wg.Wait()

	if p.Count() > 2 {
		t.Fatalf("pool grew past its cap: %d connections", p.Count())
	}
}

func TestSetMaxConnectionsShrinksRotation(t *testing.T) {
	cl := writableCluster("a:27017", "b:27017", "c:27017")
	p := New(cl, blockingFactory(), WithMaxConnections(3))
	defer p.Close()

	for i := 0; i < 3; i++ {
		if _, err := p.pick(context.Background(), ReadPreference{Mode: Primary}); err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		// force growth each time by pinning a pending request
		for _, s := range p.snapshot() {
			if s.conn.PendingCount() == 0 {
				s.conn.Send(wire.NewCommand("test", bson.NewDocument()), func(wire.Message, error) {})
			}
		}
	}
	if p.Count() != 3 {
		t.Fatalf("expected 3 connections before shrink, got %d", p.Count())
	}

	p.SetMaxConnections(1)
	if p.Count() != 1 {
		t.Fatalf("expected rotation to drop to 1 connection immediately, got %d", p.Count())
	}
}

func TestSendPairedSharesOneConnection(t *testing.T) {
	cl := writableCluster("a:27017")
	p := New(cl, blockingFactory(), WithMaxConnections(3))
	defer p.Close()

	msg := wire.NewCommand("test", bson.NewDocument())
	if err := p.SendPaired(context.Background(), msg, msg, ReadPreference{Mode: Primary}, nil, nil); err != nil {
		t.Fatalf("SendPaired: %v", err)
	}

	// both messages must land on the same connection: one connection grown,
	// carrying both pending requests.
	if p.Count() != 1 {
		t.Fatalf("expected both messages on one connection, got %d connections", p.Count())
	}
	if got := p.snapshot()[0].conn.PendingCount(); got != 2 {
		t.Fatalf("expected 2 pending requests on the shared connection, got %d", got)
	}
}

func TestReadPreferenceFiltersOutUnavailableRole(t *testing.T) {
	cl := cluster.New(cluster.KindReplicaSet, []connection.Address{"a:27017"})
	s := cl.EnsureServer("a:27017") // stays RoleUnknown
	_ = s

	p := New(cl, blockingFactory(), WithMaxConnections(1))
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.pick(ctx, ReadPreference{Mode: Primary})
	if err == nil {
		t.Fatal("expected cannot-connect: no server satisfies Primary while role is unknown")
	}
}
