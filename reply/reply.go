// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package reply adapts a raw server reply into a typed domain result or a
// typed failure: each adapter wraps a caller's callback and converts the
// decoded OP_REPLY into the shape that caller asked for.
package reply

import (
	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/wire"
	"github.com/lucidfield/docdb/xerr"
)

// serverFailure inspects a reply for the query-failed flag or an ok=0
// first document and, if found, synthesizes a typed server error from its
// errmsg/code/$err fields.
func serverFailure(r wire.Reply) error {
	if r.Flags&wire.FlagQueryFailure != 0 {
		if len(r.Documents) > 0 {
			return synthesizeServerError(r.Documents[0])
		}
		return xerr.New(xerr.ServerError, "query failed with no error document")
	}
	if r.Flags&wire.FlagCursorNotFound != 0 {
		return xerr.New(xerr.CursorNotFound, "cursor not found")
	}
	if r.Flags&wire.FlagShardConfigStale != 0 {
		return xerr.New(xerr.ShardConfigStale, "shard configuration is stale")
	}
	if len(r.Documents) > 0 {
		if ok, present := lookupOk(r.Documents[0]); present && !ok {
			return synthesizeServerError(r.Documents[0])
		}
	}
	return nil
}

func lookupOk(doc bson.Document) (ok bool, present bool) {
	e, found := doc.Lookup("ok")
	if !found {
		return false, false
	}
	switch e.Value.Type() {
	case bson.TypeBoolean:
		return e.Value.Bool(), true
	case bson.TypeInt32:
		return e.Value.Int32Value() != 0, true
	case bson.TypeInt64:
		return e.Value.Int64Value() != 0, true
	case bson.TypeDouble:
		return e.Value.AsFloat64() != 0, true
	default:
		return false, false
	}
}

func synthesizeServerError(doc bson.Document) error {
	msg := "server error"
	if e, ok := doc.Lookup("errmsg"); ok && e.Value.Type() == bson.TypeString {
		msg = e.Value.StringValue()
	} else if e, ok := doc.Lookup("$err"); ok && e.Value.Type() == bson.TypeString {
		msg = e.Value.StringValue()
	}
	var code int32
	if e, ok := doc.Lookup("code"); ok {
		switch e.Value.Type() {
		case bson.TypeInt32:
			code = e.Value.Int32Value()
		case bson.TypeInt64:
			code = int32(e.Value.Int64Value())
		case bson.TypeDouble:
			code = int32(e.Value.AsFloat64())
		}
	}
	return &xerr.Error{Kind: xerr.ServerError, Message: msg, Code: code, Msg: msg}
}

// AsDocument adapts a reply into its single result document, failing with
// xerr.ReplyShape if the reply carries zero or more than one document.
func AsDocument(r wire.Reply, err error) (bson.Document, error) {
	if err != nil {
		return bson.Document{}, err
	}
	if failErr := serverFailure(r); failErr != nil {
		return bson.Document{}, failErr
	}
	if len(r.Documents) != 1 {
		return bson.Document{}, xerr.New(xerr.ReplyShape, "expected exactly one result document")
	}
	return r.Documents[0], nil
}

// AsArray adapts a reply into the named array field of its single result
// document, defaulting to "values" when name is empty.
func AsArray(r wire.Reply, err error, name string) ([]bson.Value, error) {
	doc, err := AsDocument(r, err)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "values"
	}
	e, ok := doc.Lookup(name)
	if !ok || e.Value.Type() != bson.TypeArray {
		return nil, xerr.New(xerr.ReplyShape, "missing or non-array field: "+name)
	}
	arr := e.Value.Document()
	values := make([]bson.Value, 0, arr.Len())
	for _, el := range arr.Elements() {
		values = append(values, el.Value)
	}
	return values, nil
}

// Cursor is a get-more-addressable result batch.
type Cursor struct {
	ID        int64
	Documents []bson.Document
}

// AsCursor adapts a reply into its documents and cursor-id, without the
// single-document cardinality rule.
func AsCursor(r wire.Reply, err error) (Cursor, error) {
	if err != nil {
		return Cursor{}, err
	}
	if failErr := serverFailure(r); failErr != nil {
		return Cursor{}, failErr
	}
	return Cursor{ID: r.CursorID, Documents: r.Documents}, nil
}

// AsCount adapts a reply into a single integer counter field (e.g. "n").
func AsCount(r wire.Reply, err error, field string) (int64, error) {
	doc, err := AsDocument(r, err)
	if err != nil {
		return 0, err
	}
	e, ok := doc.Lookup(field)
	if !ok {
		return 0, xerr.New(xerr.ReplyShape, "missing counter field: "+field)
	}
	switch e.Value.Type() {
	case bson.TypeInt32:
		return int64(e.Value.Int32Value()), nil
	case bson.TypeInt64:
		return e.Value.Int64Value(), nil
	case bson.TypeDouble:
		return int64(e.Value.AsFloat64()), nil
	default:
		return 0, xerr.New(xerr.ReplyShape, "counter field is not numeric: "+field)
	}
}

// AsOK adapts a reply into its boolean "ok" flag.
func AsOK(r wire.Reply, err error) (bool, error) {
	doc, decodeErr := AsDocument(r, err)
	if decodeErr != nil {
		return false, decodeErr
	}
	ok, present := lookupOk(doc)
	if !present {
		return false, xerr.New(xerr.ReplyShape, "missing ok field")
	}
	return ok, nil
}
