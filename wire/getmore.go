// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

// GetMore is the OP_GET_MORE message body: fetches the next batch from an
// existing cursor.
type GetMore struct {
	FullCollectionName string
	NumberToReturn     int32
	CursorID           int64
}

// OpCode implements Message.
func (g GetMore) OpCode() OpCode { return OpGetMore }

// BodyLen implements Message.
func (g GetMore) BodyLen() int32 {
	return 4 + int32(len(g.FullCollectionName)) + 1 + 4 + 8
}

// Validate implements Message. A GetMore carries no documents.
func (g GetMore) Validate() error { return nil }

// Append implements Message.
func (g GetMore) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, g.BodyLen(), OpGetMore, requestID, responseTo)
	dst = appendInt32(dst, 0)
	dst = appendCString(dst, g.FullCollectionName)
	dst = appendInt32(dst, g.NumberToReturn)
	return appendInt64(dst, g.CursorID)
}

// KillCursors is the OP_KILL_CURSORS message body: releases server-side
// cursor handles the client no longer intends to iterate.
type KillCursors struct {
	CursorIDs []int64
}

// OpCode implements Message.
func (k KillCursors) OpCode() OpCode { return OpKillCursors }

// BodyLen implements Message.
func (k KillCursors) BodyLen() int32 {
	return 4 + 4 + 8*int32(len(k.CursorIDs))
}

// Validate implements Message. A KillCursors carries no documents.
func (k KillCursors) Validate() error { return nil }

// Append implements Message.
func (k KillCursors) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, k.BodyLen(), OpKillCursors, requestID, responseTo)
	dst = appendInt32(dst, 0)
	dst = appendInt32(dst, int32(len(k.CursorIDs)))
	for _, id := range k.CursorIDs {
		dst = appendInt64(dst, id)
	}
	return dst
}
