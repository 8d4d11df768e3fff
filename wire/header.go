// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wire implements the length-prefixed message envelope and the
// per-op-code bodies exchanged with the server: a 16-byte header followed
// by an operation-specific payload built on top of the bson package's
// documents.
package wire

import (
	"encoding/binary"

	"github.com/lucidfield/docdb/xerr"
)

// OpCode identifies the shape of a message body.
type OpCode int32

// The operation codes understood by this client.
const (
	OpReply       OpCode = 1
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpDelete      OpCode = 2006
	OpKillCursors OpCode = 2007
)

func (c OpCode) String() string {
	switch c {
	case OpReply:
		return "reply"
	case OpUpdate:
		return "update"
	case OpInsert:
		return "insert"
	case OpQuery:
		return "query"
	case OpGetMore:
		return "getMore"
	case OpDelete:
		return "delete"
	case OpKillCursors:
		return "killCursors"
	default:
		return "unknown"
	}
}

// HeaderLength is the fixed size, in bytes, of every message header.
const HeaderLength = 16

// Header is the 16-byte frame prefix shared by every message.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// Append appends the header's wire encoding to dst.
func (h Header) Append(dst []byte) []byte {
	dst = appendInt32(dst, h.MessageLength)
	dst = appendInt32(dst, h.RequestID)
	dst = appendInt32(dst, h.ResponseTo)
	return appendInt32(dst, int32(h.OpCode))
}

// ReadHeader decodes a Header from the front of data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderLength {
		return Header{}, xerr.New(xerr.DecodeFailure, "buffer too short for a message header")
	}
	return Header{
		MessageLength: readInt32(data[0:4]),
		RequestID:     readInt32(data[4:8]),
		ResponseTo:    readInt32(data[8:12]),
		OpCode:        OpCode(readInt32(data[12:16])),
	}, nil
}

func appendInt32(dst []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

func readInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

func readInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0x00)
}

func readCString(data []byte) (string, int, error) {
	for i, b := range data {
		if b == 0x00 {
			return string(data[:i]), i + 1, nil
		}
	}
	return "", 0, xerr.New(xerr.DecodeFailure, "cstring missing null terminator")
}
