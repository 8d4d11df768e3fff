// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package auth is the reference implementation of the pluggable
// authentication handshake contract named in the external-interfaces
// section: given a fresh connection, it runs a negotiated command sequence
// (isMaster, then a SASL conversation) and reports success or failure
// before the connection enters the pool's rotation.
package auth

import (
	"context"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/wire"
	"github.com/lucidfield/docdb/xerr"
)

// SaslClient is the client side of a single SASL conversation: produce a
// mechanism name and initial payload, then answer each server challenge
// until the conversation reports itself complete. ScramClient is the
// one concrete implementation; the interface exists so other mechanisms
// (named but not implemented here -- GSSAPI, x.509) can plug into the same
// conversation loop.
type SaslClient interface {
	Mechanism() string
	Start() ([]byte, error)
	Next(challenge []byte) ([]byte, error)
	Completed() bool
}

const defaultAuthDB = "admin"

// Authenticator runs isMaster and then a SaslClient's conversation over a
// fresh connection, satisfying connection.Handshaker.
type Authenticator struct {
	DB     string
	Client SaslClient
}

// Handshake implements connection.Handshaker: it runs isMaster to learn the
// server's advertised compression before authenticating, matching the
// order a real handshake negotiates in (compression is agreed before any
// command that might itself want to be compressed).
func (a Authenticator) Handshake(ctx context.Context, addr connection.Address, c *connection.Connection) (connection.HandshakeResult, error) {
	imReply, err := connection.ExecuteCommand(ctx, c, "admin", bson.NewDocument(bson.NewElement("isMaster", bson.Int32(1))))
	if err != nil {
		return connection.HandshakeResult{}, xerr.Wrap(xerr.AuthFailed, "isMaster during handshake failed", err)
	}

	var result connection.HandshakeResult
	if len(imReply.Documents) == 1 {
		if e, ok := imReply.Documents[0].Lookup("compression"); ok && e.Value.Type() == bson.TypeArray {
			for _, el := range e.Value.Document().Elements() {
				result.Compression = append(result.Compression, el.Value.StringValue())
			}
		}
	}

	if a.Client == nil {
		return result, nil
	}

	db := a.DB
	if db == "" {
		db = defaultAuthDB
	}
	if err := conductSaslConversation(ctx, c, db, a.Client); err != nil {
		return connection.HandshakeResult{}, err
	}
	return result, nil
}

// conductSaslConversation drives the saslStart/saslContinue loop for any
// SaslClient until the mechanism reports it is done.
func conductSaslConversation(ctx context.Context, c *connection.Connection, db string, client SaslClient) error {
	payload, err := client.Start()
	if err != nil {
		return xerr.Wrap(xerr.AuthFailed, "sasl start failed", err)
	}

	reply, err := connection.ExecuteCommand(ctx, c, db, bson.NewDocument(
		bson.NewElement("saslStart", bson.Int32(1)),
		bson.NewElement("mechanism", bson.String(client.Mechanism())),
		bson.NewElement("payload", bson.Binary(0, payload)),
	))
	if err != nil {
		return xerr.Wrap(xerr.AuthFailed, "saslStart failed", err)
	}

	conversationID, done, respPayload, err := parseSaslResponse(reply)
	if err != nil {
		return err
	}

	for {
		if done && client.Completed() {
			return nil
		}

		payload, err = client.Next(respPayload)
		if err != nil {
			return xerr.Wrap(xerr.AuthFailed, "sasl conversation step failed", err)
		}

		if done && client.Completed() {
			return nil
		}

		reply, err = connection.ExecuteCommand(ctx, c, db, bson.NewDocument(
			bson.NewElement("saslContinue", bson.Int32(1)),
			bson.NewElement("conversationId", bson.Int32(conversationID)),
			bson.NewElement("payload", bson.Binary(0, payload)),
		))
		if err != nil {
			return xerr.Wrap(xerr.AuthFailed, "saslContinue failed", err)
		}
		conversationID, done, respPayload, err = parseSaslResponse(reply)
		if err != nil {
			return err
		}
	}
}

// parseSaslResponse extracts the fields a saslStart/saslContinue reply
// carries: the server-assigned conversation id, whether the conversation
// is done from the server's side, and the next challenge payload.
func parseSaslResponse(r wire.Reply) (conversationID int32, done bool, payload []byte, err error) {
	if len(r.Documents) != 1 {
		return 0, false, nil, xerr.New(xerr.ReplyShape, "sasl response carried no document")
	}
	doc := r.Documents[0]

	if e, ok := doc.Lookup("ok"); ok && e.Value.Type() == bson.TypeDouble && e.Value.AsFloat64() == 0 {
		msg := "sasl authentication rejected"
		if em, ok := doc.Lookup("errmsg"); ok {
			msg = em.Value.StringValue()
		}
		return 0, false, nil, xerr.New(xerr.AuthFailed, msg)
	}
	if e, ok := doc.Lookup("conversationId"); ok {
		conversationID = e.Value.Int32Value()
	}
	if e, ok := doc.Lookup("done"); ok {
		done = e.Value.Bool()
	}
	if e, ok := doc.Lookup("payload"); ok && e.Value.Type() == bson.TypeBinary {
		_, payload = e.Value.BinaryValue()
	}
	return conversationID, done, payload, nil
}
