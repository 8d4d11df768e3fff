// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import "github.com/lucidfield/docdb/bson"

// Update is the OP_UPDATE message body.
type Update struct {
	FullCollectionName string
	Upsert             bool
	Multi              bool
	Selector           bson.Document
	Update             bson.Document
}

// OpCode implements Message.
func (u Update) OpCode() OpCode { return OpUpdate }

// BodyLen implements Message.
func (u Update) BodyLen() int32 {
	return 4 + int32(len(u.FullCollectionName)) + 1 + 4 + u.Selector.Size() + u.Update.Size()
}

// Validate implements Message.
func (u Update) Validate() error {
	if err := u.Selector.Validate(); err != nil {
		return err
	}
	return u.Update.Validate()
}

// Append implements Message.
func (u Update) Append(dst []byte, requestID, responseTo int32) []byte {
	dst = appendHeader(dst, u.BodyLen(), OpUpdate, requestID, responseTo)
	dst = appendInt32(dst, 0)
	dst = appendCString(dst, u.FullCollectionName)
	var flags int32
	if u.Upsert {
		flags |= 1
	}
	if u.Multi {
		flags |= 2
	}
	dst = appendInt32(dst, flags)
	buf, _ := u.Selector.Marshal()
	dst = append(dst, buf...)
	buf, _ = u.Update.Marshal()
	dst = append(dst, buf...)
	return dst
}
