// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import (
	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/xerr"
)

// ReplyFlags are the bit flags carried in an OP_REPLY message.
type ReplyFlags int32

// Reply flag bits, per the wire protocol.
const (
	FlagCursorNotFound   ReplyFlags = 1
	FlagQueryFailure     ReplyFlags = 2
	FlagShardConfigStale ReplyFlags = 4
	FlagAwaitCapable     ReplyFlags = 8
)

// Reply is the OP_REPLY message body decoded from a server response.
type Reply struct {
	Flags        ReplyFlags
	CursorID     int64
	StartingFrom int32
	Documents    []bson.Document
	ResponseTo   int32
}

// OpCode implements Message.
func (r Reply) OpCode() OpCode { return OpReply }

// BodyLen implements Message.
func (r Reply) BodyLen() int32 {
	n := int32(4 + 8 + 4 + 4)
	for _, d := range r.Documents {
		n += d.Size()
	}
	return n
}

// Validate implements Message.
func (r Reply) Validate() error {
	for _, d := range r.Documents {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Append implements Message. Replies are server-originated and the client
// never constructs one to send, but Append is provided for symmetry and
// testing.
func (r Reply) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, r.BodyLen(), OpReply, requestID, responseTo)
	dst = appendInt32(dst, int32(r.Flags))
	dst = appendInt64(dst, r.CursorID)
	dst = appendInt32(dst, r.StartingFrom)
	dst = appendInt32(dst, int32(len(r.Documents)))
	for _, d := range r.Documents {
		buf, _ := d.Marshal()
		dst = append(dst, buf...)
	}
	return dst
}

// ReadMessage decodes a single framed message from data, which must contain
// exactly one complete message (header plus body). Only OP_REPLY is
// implemented for decode, since it is the only message a client ever
// receives from the server.
func ReadMessage(data []byte) (Message, error) {
	hdr, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if int(hdr.MessageLength) != len(data) {
		return nil, xerr.New(xerr.DecodeFailure, "message length does not match buffer size")
	}
	body := data[HeaderLength:]

	switch hdr.OpCode {
	case OpReply:
		return readReplyBody(body, hdr.ResponseTo)
	default:
		return nil, xerr.New(xerr.DecodeFailure, "unsupported opcode on decode: "+hdr.OpCode.String())
	}
}

func readReplyBody(data []byte, responseTo int32) (Reply, error) {
	if len(data) < 20 {
		return Reply{}, xerr.New(xerr.DecodeFailure, "truncated reply body")
	}
	r := Reply{
		Flags:        ReplyFlags(readInt32(data[0:4])),
		CursorID:     readInt64(data[4:12]),
		StartingFrom: readInt32(data[12:16]),
		ResponseTo:   responseTo,
	}
	count := int(readInt32(data[16:20]))
	pos := 20
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return Reply{}, xerr.New(xerr.DecodeFailure, "reply document count exceeds buffer")
		}
		if len(data[pos:]) < 4 {
			return Reply{}, xerr.New(xerr.DecodeFailure, "truncated reply document")
		}
		length := int(readInt32(data[pos : pos+4]))
		if length < 5 || pos+length > len(data) {
			return Reply{}, xerr.New(xerr.DecodeFailure, "invalid reply document length")
		}
		doc, err := bson.Unmarshal(data[pos : pos+length])
		if err != nil {
			return Reply{}, err
		}
		r.Documents = append(r.Documents, doc)
		pos += length
	}
	if pos != len(data) {
		return Reply{}, xerr.New(xerr.DecodeFailure, "trailing bytes after reply documents")
	}
	return r, nil
}
