// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import "github.com/lucidfield/docdb/xerr"

// Message is an operation-specific body that knows its own op-code and
// encoded length, and can append its full wire form (header included) to a
// buffer given the request-id/response-to the connection assigns.
type Message interface {
	OpCode() OpCode

	// BodyLen returns the encoded length of the body alone, excluding the
	// 16-byte header.
	BodyLen() int32

	// Validate reports whether the message's embedded documents would
	// encode cleanly. The connection calls it before a message is queued:
	// a failure (xerr.InvalidName) surfaces to the caller instead of
	// corrupting the frame mid-write, so Append may assume it passed.
	Validate() error

	// Append appends the complete wire message (header + body) to dst.
	Append(dst []byte, requestID, responseTo int32) []byte
}

// Len returns the total encoded length of m, header included.
func Len(m Message) int32 {
	return HeaderLength + m.BodyLen()
}

// ValidateSize fails with xerr.DocumentTooLarge if m's encoded length
// exceeds maxBsonObjectSize. This check runs before the message reaches the
// connection's write path.
func ValidateSize(m Message, maxBsonObjectSize int32) error {
	if size := Len(m); size > maxBsonObjectSize {
		return xerr.New(xerr.DocumentTooLarge, "message exceeds maxBsonObjectSize")
	}
	return nil
}

func appendHeader(dst []byte, bodyLen int32, op OpCode, requestID, responseTo int32) []byte {
	h := Header{MessageLength: HeaderLength + bodyLen, RequestID: requestID, ResponseTo: responseTo, OpCode: op}
	return h.Append(dst)
}
