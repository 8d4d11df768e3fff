// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"github.com/lucidfield/docdb/wire"
	"github.com/lucidfield/docdb/xerr"
)

// tryCompress wraps msg's body in an OP_COMPRESSED envelope using the
// connection's negotiated compressor. It returns ok=false (leaving the
// caller to send msg uncompressed) if encoding the original body fails.
func (c *Connection) tryCompress(msg wire.Message, requestID int32) (wire.Compressed, bool) {
	uncompressed := msg.Append(nil, requestID, 0)
	if len(uncompressed) < wire.HeaderLength {
		return wire.Compressed{}, false
	}
	body := uncompressed[wire.HeaderLength:]

	compressed, err := c.compressor.Compress(nil, body)
	if err != nil {
		return wire.Compressed{}, false
	}

	return wire.Compressed{
		OriginalOpCode:    msg.OpCode(),
		UncompressedSize:  int32(len(body)),
		CompressorID:      c.compressor.ID(),
		CompressedMessage: compressed,
	}, true
}

// decompressFrame unwraps an OP_COMPRESSED envelope, returning the header
// and body of the original message it carried.
func (c *Connection) decompressFrame(hdr wire.Header, body []byte) (wire.Header, []byte, error) {
	if c.compressor == nil {
		return wire.Header{}, nil, xerr.New(xerr.DecodeFailure, "received compressed message with no compressor negotiated")
	}

	compressedMsg, err := wire.ReadCompressed(body)
	if err != nil {
		return wire.Header{}, nil, err
	}
	if compressedMsg.CompressorID != c.compressor.ID() {
		return wire.Header{}, nil, xerr.New(xerr.DecodeFailure, "reply compressed with an unexpected compressor id")
	}

	original, err := c.compressor.Uncompress(make([]byte, 0, compressedMsg.UncompressedSize), compressedMsg.CompressedMessage)
	if err != nil {
		return wire.Header{}, nil, xerr.Wrap(xerr.DecodeFailure, "failed to uncompress reply", err)
	}

	originalHeader := wire.Header{
		MessageLength: int32(wire.HeaderLength + len(original)),
		RequestID:     0,
		ResponseTo:    hdr.ResponseTo,
		OpCode:        compressedMsg.OriginalOpCode,
	}
	return originalHeader, original, nil
}
