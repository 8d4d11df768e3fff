// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/wire"
)

// stubSaslClient is a two-round SASL conversation fake: Start emits "c1",
// the server is expected to answer with a challenge, Next emits "c2", and
// the conversation completes on the server's second "done" reply.
type stubSaslClient struct {
	step int
	done bool
}

func (s *stubSaslClient) Mechanism() string { return "STUB" }

func (s *stubSaslClient) Start() ([]byte, error) {
	s.step = 1
	return []byte("c1"), nil
}

func (s *stubSaslClient) Next(challenge []byte) ([]byte, error) {
	s.step++
	return []byte("c2"), nil
}

func (s *stubSaslClient) Completed() bool { return s.done }

// scriptedAuthServer answers saslStart with a not-done conversation and
// saslContinue with a done one, driving stubSaslClient through Start and
// one Next call before completion.
func scriptedAuthServer(conn net.Conn) {
	defer conn.Close()
	round := 0
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

		round++
		var doc bson.Document
		switch round {
		case 1: // isMaster
			doc = bson.NewDocument(bson.NewElement("ismaster", bson.Boolean(true)))
		case 2: // saslStart
			doc = bson.NewDocument(
				bson.NewElement("ok", bson.Double(1)),
				bson.NewElement("conversationId", bson.Int32(7)),
				bson.NewElement("done", bson.Boolean(false)),
				bson.NewElement("payload", bson.Binary(0, []byte("challenge1"))),
			)
		default: // saslContinue
			doc = bson.NewDocument(
				bson.NewElement("ok", bson.Double(1)),
				bson.NewElement("conversationId", bson.Int32(7)),
				bson.NewElement("done", bson.Boolean(true)),
				bson.NewElement("payload", bson.Binary(0, nil)),
			)
		}
		reply := wire.Reply{Documents: []bson.Document{doc}}
		if _, err := conn.Write(reply.Append(nil, 1, hdr.RequestID)); err != nil {
			return
		}
	}
}

type fakeDialer struct{ handler func(net.Conn) }

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	client, srv := net.Pipe()
	go d.handler(srv)
	return client, nil
}

func TestAuthenticatorHandshakeCompletesSaslConversation(t *testing.T) {
	client := &stubSaslClient{done: true}
	a := Authenticator{Client: client}

	dialer := &fakeDialer{handler: scriptedAuthServer}
	_, result, err := connection.New(context.Background(), "fake:27017", a, connection.WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = result
	if client.step != 2 {
		t.Fatalf("expected the conversation to run Start and one Next step, got step=%d", client.step)
	}
}

func TestAuthenticatorHandshakeFailsOnRejection(t *testing.T) {
	client := &stubSaslClient{}
	a := Authenticator{Client: client}

	rejectServer := func(conn net.Conn) {
		defer conn.Close()
		round := 0
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
			round++
			var doc bson.Document
			if round == 1 {
				doc = bson.NewDocument(bson.NewElement("ismaster", bson.Boolean(true)))
			} else {
				doc = bson.NewDocument(
					bson.NewElement("ok", bson.Double(0)),
					bson.NewElement("errmsg", bson.String("auth failed")),
				)
			}
			reply := wire.Reply{Documents: []bson.Document{doc}}
			conn.Write(reply.Append(nil, 1, hdr.RequestID))
			if round > 1 {
				return
			}
		}
	}

	dialer := &fakeDialer{handler: rejectServer}
	_, _, err := connection.New(context.Background(), "fake:27017", a, connection.WithDialer(dialer))
	if err == nil {
		t.Fatal("expected handshake to fail on saslStart rejection")
	}
}
