// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import "github.com/lucidfield/docdb/bson"

// Insert is the OP_INSERT message body: a namespace and a run of documents
// filling the remainder of the frame.
type Insert struct {
	ContinueOnError    bool
	FullCollectionName string
	Documents          []bson.Document
}

// OpCode implements Message.
func (i Insert) OpCode() OpCode { return OpInsert }

// BodyLen implements Message.
func (i Insert) BodyLen() int32 {
	n := int32(4) + int32(len(i.FullCollectionName)) + 1
	for _, d := range i.Documents {
		n += d.Size()
	}
	return n
}

// Validate implements Message.
func (i Insert) Validate() error {
	for _, d := range i.Documents {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Append implements Message.
func (i Insert) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, i.BodyLen(), OpInsert, requestID, responseTo)
	var flags int32
	if i.ContinueOnError {
		flags |= 1
	}
	dst = appendInt32(dst, flags)
	dst = appendCString(dst, i.FullCollectionName)
	for _, d := range i.Documents {
		buf, _ := d.Marshal()
		dst = append(dst, buf...)
	}
	return dst
}
