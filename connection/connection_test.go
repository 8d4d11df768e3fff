// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/wire"
	"github.com/lucidfield/docdb/xerr"
)

// pipeDialer hands out one side of an in-memory net.Pipe, running a fake
// server on the other side via the supplied handler.
type pipeDialer struct {
	handler func(net.Conn)
}

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	client, server := net.Pipe()
	go d.handler(server)
	return client, nil
}

// echoServer reads one query frame and replies with a single document
// containing ok:1.
func echoServer(conn net.Conn) {
	defer conn.Close()

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

	doc := bson.NewDocument(bson.NewElement("ok", bson.Double(1)))
	reply := wire.Reply{Documents: []bson.Document{doc}}
	buf := reply.Append(nil, 1, hdr.RequestID)
	conn.Write(buf)
}

func TestSendReceivesReply(t *testing.T) {
	dialer := &pipeDialer{handler: echoServer}
	c, _, err := New(context.Background(), Address("fake:27017"), nil, WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	cmd := wire.NewCommand("test", bson.NewDocument(bson.NewElement("ping", bson.Int32(1))))

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	var gotMsg wire.Message
	if sendErr := c.Send(cmd, func(m wire.Message, err error) {
		gotMsg, gotErr = m, err
		wg.Done()
	}); sendErr != nil {
		t.Fatalf("Send: %v", sendErr)
	}

	waitTimeout(t, &wg, time.Second)

	if gotErr != nil {
		t.Fatalf("callback error: %v", gotErr)
	}
	reply, ok := gotMsg.(wire.Reply)
	if !ok {
		t.Fatalf("expected wire.Reply, got %T", gotMsg)
	}
	if len(reply.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(reply.Documents))
	}
}

func TestSendAfterCloseFailsImmediately(t *testing.T) {
	dialer := &pipeDialer{handler: echoServer}
	c, _, err := New(context.Background(), Address("fake:27017"), nil, WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Close()

	called := false
	sendErr := c.Send(wire.NewCommand("test", bson.NewDocument()), func(m wire.Message, err error) {
		called = true
		if !xerr.Is(err, xerr.ConnectionClosed) {
			t.Fatalf("expected ConnectionClosed, got %v", err)
		}
	})
	if !called {
		t.Fatal("callback should be invoked synchronously on a closed connection")
	}
	if !xerr.Is(sendErr, xerr.ConnectionClosed) {
		t.Fatalf("expected ConnectionClosed, got %v", sendErr)
	}
}

func TestSendRejectsInvalidNameBeforeWrite(t *testing.T) {
	dialer := &pipeDialer{handler: echoServer}
	c, _, err := New(context.Background(), Address("fake:27017"), nil, WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	bad := wire.NewCommand("test", bson.NewDocument(bson.NewElement("a\x00b", bson.Int32(1))))

	called := false
	sendErr := c.Send(bad, func(m wire.Message, err error) {
		called = true
		if !xerr.Is(err, xerr.InvalidName) {
			t.Fatalf("expected InvalidName, got %v", err)
		}
	})
	if !called {
		t.Fatal("callback should be invoked synchronously for an unencodable message")
	}
	if !xerr.Is(sendErr, xerr.InvalidName) {
		t.Fatalf("expected InvalidName, got %v", sendErr)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("a rejected message must not be left pending, got %d", c.PendingCount())
	}
	if !c.IsOpen() {
		t.Fatal("a local validation failure must not kill the connection")
	}
}

func TestCloseFailsPendingCallbacks(t *testing.T) {
	blocker := make(chan struct{})
	dialer := &pipeDialer{handler: func(conn net.Conn) {
		<-blocker
		conn.Close()
	}}
	c, _, err := New(context.Background(), Address("fake:27017"), nil, WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	c.Send(wire.NewCommand("test", bson.NewDocument()), func(m wire.Message, err error) {
		gotErr = err
		wg.Done()
	})

	if c.PendingCount() != 1 {
		t.Fatalf("expected 1 pending request, got %d", c.PendingCount())
	}

	c.Close()
	close(blocker)
	waitTimeout(t, &wg, time.Second)

	if !xerr.Is(gotErr, xerr.ConnectionLost) {
		t.Fatalf("expected ConnectionLost, got %v", gotErr)
	}
}

// TestOutOfOrderReplyCorrelation sends two concurrent queries and has the
// fake server answer the second one first: each callback must receive the
// reply matching its own request id, regardless of arrival order.
func TestOutOfOrderReplyCorrelation(t *testing.T) {
	reverseServer := func(conn net.Conn) {
		defer conn.Close()
		var ids []int32
		for len(ids) < 2 {
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
			ids = append(ids, hdr.RequestID)
		}
		for i := len(ids) - 1; i >= 0; i-- {
			doc := bson.NewDocument(bson.NewElement("answered", bson.Int32(ids[i])))
			reply := wire.Reply{Documents: []bson.Document{doc}}
			if _, err := conn.Write(reply.Append(nil, 1, ids[i])); err != nil {
				return
			}
		}
	}

	dialer := &pipeDialer{handler: reverseServer}
	c, _, err := New(context.Background(), Address("fake:27017"), nil, WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]wire.Reply, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		cmd := wire.NewCommand("test", bson.NewDocument(bson.NewElement("seq", bson.Int32(int32(i)))))
		if err := c.Send(cmd, func(m wire.Message, err error) {
			defer wg.Done()
			if err != nil {
				t.Errorf("request %d: %v", i, err)
				return
			}
			results[i] = m.(wire.Reply)
		}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	waitTimeout(t, &wg, time.Second)

	// request ids are allocated 1, 2 in send order; each reply must name
	// the id of the request whose callback received it.
	for i, want := range []int32{1, 2} {
		e, ok := results[i].Documents[0].Lookup("answered")
		if !ok || e.Value.Int32Value() != want {
			t.Fatalf("request %d: got reply for id %v, want %d", i, e.Value, want)
		}
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for callback")
	}
}
