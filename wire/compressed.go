// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import "github.com/lucidfield/docdb/xerr"

// OpCompressed is an additive op-code layered over any other message: it
// wraps an already-encoded body (header stripped) in a compressed envelope.
// It is not one of the operations a caller issues directly; the connection
// applies it transparently when a compressor has been negotiated.
const OpCompressed OpCode = 2012

// Compressed is the OP_COMPRESSED message body.
type Compressed struct {
	OriginalOpCode    OpCode
	UncompressedSize  int32
	CompressorID      byte
	CompressedMessage []byte
}

// OpCode implements Message.
func (c Compressed) OpCode() OpCode { return OpCompressed }

// BodyLen implements Message.
func (c Compressed) BodyLen() int32 {
	return 4 + 4 + 1 + int32(len(c.CompressedMessage))
}

// Validate implements Message. The wrapped body was validated before it was
// encoded and compressed.
func (c Compressed) Validate() error { return nil }

// Append implements Message.
func (c Compressed) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, c.BodyLen(), OpCompressed, requestID, responseTo)
	dst = appendInt32(dst, int32(c.OriginalOpCode))
	dst = appendInt32(dst, c.UncompressedSize)
	dst = append(dst, c.CompressorID)
	return append(dst, c.CompressedMessage...)
}

// ReadCompressed decodes an OP_COMPRESSED body (the bytes after the
// header).
func ReadCompressed(body []byte) (Compressed, error) {
	if len(body) < 9 {
		return Compressed{}, xerr.New(xerr.DecodeFailure, "truncated compressed message")
	}
	return Compressed{
		OriginalOpCode:    OpCode(readInt32(body[0:4])),
		UncompressedSize:  readInt32(body[4:8]),
		CompressorID:      body[8],
		CompressedMessage: body[9:],
	}, nil
}
