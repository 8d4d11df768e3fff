// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import "github.com/lucidfield/docdb/bson"

// Delete is the OP_DELETE message body.
type Delete struct {
	FullCollectionName string
	SingleRemove       bool
	Selector           bson.Document
}

// OpCode implements Message.
func (d Delete) OpCode() OpCode { return OpDelete }

// BodyLen implements Message.
func (d Delete) BodyLen() int32 {
	return 4 + int32(len(d.FullCollectionName)) + 1 + 4 + d.Selector.Size()
}

// Validate implements Message.
func (d Delete) Validate() error { return d.Selector.Validate() }

// Append implements Message.
func (d Delete) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, d.BodyLen(), OpDelete, requestID, responseTo)
	dst = appendInt32(dst, 0)
	dst = appendCString(dst, d.FullCollectionName)
	var flags int32
	if d.SingleRemove {
		flags |= 1
	}
	dst = appendInt32(dst, flags)
	buf, _ := d.Selector.Marshal()
	return append(dst, buf...)
}
