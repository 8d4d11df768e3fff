// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import "github.com/lucidfield/docdb/bson"

// QueryFlags are the bit flags carried in an OP_QUERY message.
type QueryFlags int32

// Query flag bits, per the wire protocol.
const (
	FlagTailable        QueryFlags = 2
	FlagSlaveOK         QueryFlags = 4
	FlagOplogReplay     QueryFlags = 8
	FlagNoCursorTimeout QueryFlags = 16
	FlagAwaitData       QueryFlags = 32
	FlagExhaust         QueryFlags = 64
	FlagPartial         QueryFlags = 128
)

// Query is the OP_QUERY message body: a namespace, skip/batch-size
// counters, and a query document with an optional projection.
type Query struct {
	Flags                QueryFlags
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Query                bson.Document
	ReturnFieldsSelector *bson.Document
}

// OpCode implements Message.
func (q Query) OpCode() OpCode { return OpQuery }

// BodyLen implements Message.
func (q Query) BodyLen() int32 {
	n := int32(4) + int32(len(q.FullCollectionName)) + 1 + 4 + 4 + q.Query.Size()
	if q.ReturnFieldsSelector != nil {
		n += q.ReturnFieldsSelector.Size()
	}
	return n
}

// Validate implements Message.
func (q Query) Validate() error {
	if err := q.Query.Validate(); err != nil {
		return err
	}
	if q.ReturnFieldsSelector != nil {
		return q.ReturnFieldsSelector.Validate()
	}
	return nil
}

// Append implements Message.
func (q Query) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, q.BodyLen(), OpQuery, requestID, responseTo)
	dst = appendInt32(dst, int32(q.Flags))
	dst = appendCString(dst, q.FullCollectionName)
	dst = appendInt32(dst, q.NumberToSkip)
	dst = appendInt32(dst, q.NumberToReturn)
	buf, _ := q.Query.Marshal()
	dst = append(dst, buf...)
	if q.ReturnFieldsSelector != nil {
		buf, _ = q.ReturnFieldsSelector.Marshal()
		dst = append(dst, buf...)
	}
	return dst
}

// NewCommand builds the generic command framing described by the wire
// protocol: a query against the pseudo-collection "db.$cmd" with
// numberToReturn = -1 (meaning "exactly one document, close the cursor").
func NewCommand(db string, cmd bson.Document) Query {
	return Query{
		FullCollectionName: db + ".$cmd",
		NumberToReturn:     -1,
		Query:              cmd,
	}
}
