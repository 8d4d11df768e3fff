// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package writeplan packs tagged insert/update/delete operations into
// command documents sized against a server's per-command byte and
// operation-count limits, under three ordering policies.
package writeplan

import (
	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/xerr"
)

// OpKind tags the variant of a WriteOperation.
type OpKind int

// The three write-operation kinds a bundle can carry, in the fixed
// emission order used by the reordered mode.
const (
	KindInsert OpKind = iota
	KindUpdate
	KindDelete
)

func (k OpKind) commandField() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

func (k OpKind) opsField() string {
	switch k {
	case KindInsert:
		return "documents"
	case KindUpdate:
		return "updates"
	case KindDelete:
		return "deletes"
	default:
		return "unknown"
	}
}

// WriteOperation is one insert, update, or delete, tagged by Kind. Only the
// fields relevant to Kind are meaningful.
type WriteOperation struct {
	Kind OpKind

	// Insert
	Doc bson.Document

	// Update
	Query  bson.Document
	Update bson.Document
	Upsert bool
	Multi  bool

	// Delete (Query is shared with Update)
	Single bool
}

// payloadSize is the byte contribution of the operation's own document,
// before the array-index overhead of the slot it occupies. It is exact for
// inserts; updates and deletes use fixed allowances (29 and 20 bytes over
// their q/u documents) that are never smaller than what toDocument encodes,
// so the figure can overestimate but never underestimate.
func (op WriteOperation) payloadSize() int32 {
	switch op.Kind {
	case KindInsert:
		return op.Doc.Size()
	case KindUpdate:
		return op.Query.Size() + op.Update.Size() + 29
	case KindDelete:
		return op.Query.Size() + 20
	default:
		return 0
	}
}

// toDocument builds the operation's own document as it appears inside the
// command's array field.
func (op WriteOperation) toDocument() bson.Document {
	switch op.Kind {
	case KindInsert:
		return op.Doc
	case KindUpdate:
		elems := []bson.Element{
			bson.NewElement("q", bson.EmbeddedDocument(op.Query)),
			bson.NewElement("u", bson.EmbeddedDocument(op.Update)),
		}
		if op.Upsert {
			elems = append(elems, bson.NewElement("upsert", bson.Boolean(true)))
		}
		if op.Multi {
			elems = append(elems, bson.NewElement("multi", bson.Boolean(true)))
		}
		return bson.NewDocument(elems...)
	case KindDelete:
		limit := int32(1)
		if !op.Single {
			limit = 0
		}
		return bson.NewDocument(
			bson.NewElement("q", bson.EmbeddedDocument(op.Query)),
			bson.NewElement("limit", bson.Int32(limit)),
		)
	default:
		return bson.NewDocument()
	}
}

// indexOverhead is the exact byte cost of an array element's name: a type
// tag byte plus the stringified index plus its null terminator.
func indexOverhead(i int) int32 {
	switch {
	case i < 10:
		return 3
	case i < 100:
		return 4
	case i < 1000:
		return 5
	case i < 10000:
		return 6
	default:
		return int32(len(itoa(i))) + 2
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// Bundle is one command document plus the operations it carries, in the
// order the planner chose.
type Bundle struct {
	Command bson.Document
	Ops     []WriteOperation
}

// oversizeErr names the operation that alone exceeds maxCommandSize: by its
// document's _id when it has one, else by its submission index.
func oversizeErr(op WriteOperation, index int) error {
	name := "operation " + itoa(index)
	if op.Kind == KindInsert {
		if e, ok := op.Doc.Lookup("_id"); ok && e.Value.Type() == bson.TypeObjectID {
			name = "document _id " + e.Value.ObjectID().Hex()
		}
	}
	return xerr.New(xerr.DocumentTooLarge, name+" exceeds maxCommandSize on its own and cannot be bundled")
}
