// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package writeplan

import (
	"sort"

	"github.com/lucidfield/docdb/bson"
)

// Mode selects one of the planner's three ordering policies.
type Mode int

// The ordering modes a plan can use.
const (
	ModeSerializeAndStop Mode = iota
	ModeSerializeAndContinue
	ModeReordered
)

// builder accumulates operations for one bundle-under-construction and
// tracks its running command-document size: exact for inserts, and an
// upper bound for updates and deletes (see WriteOperation.payloadSize).
type builder struct {
	kind       OpKind
	collection string
	ordered    bool
	wcDoc      bson.Document
	ops        []WriteOperation
	size       int32 // size of the command document with ops appended so far
}

func newBuilder(kind OpKind, collection string, ordered bool, wcDoc bson.Document) *builder {
	b := &builder{kind: kind, collection: collection, ordered: ordered, wcDoc: wcDoc}
	b.size = b.emptyCommandSize()
	return b
}

// emptyCommandSize is the size of the command document with a present but
// empty operations array, computed by actually building that document so
// it reflects bson's real encoding of the collection name, the optional
// ordered flag, and the writeConcern sub-document.
func (b *builder) emptyCommandSize() int32 {
	elems := []bson.Element{
		bson.NewElement(b.kind.commandField(), bson.String(b.collection)),
	}
	if !b.ordered {
		elems = append(elems, bson.NewElement("ordered", bson.Boolean(false)))
	}
	elems = append(elems,
		bson.NewElement("writeConcern", bson.EmbeddedDocument(b.wcDoc)),
		bson.NewElement(b.kind.opsField(), bson.Array()),
	)
	return bson.NewDocument(elems...).Size()
}

// fits reports whether appending op as the next array element (at the
// builder's current op count) would keep the command within maxCommandSize.
func (b *builder) fits(op WriteOperation, maxCommandSize int32) bool {
	added := op.payloadSize() + indexOverhead(len(b.ops))
	return b.size+added <= maxCommandSize
}

func (b *builder) add(op WriteOperation) {
	added := op.payloadSize() + indexOverhead(len(b.ops))
	b.size += added
	b.ops = append(b.ops, op)
}

func (b *builder) empty() bool { return len(b.ops) == 0 }

func (b *builder) build() Bundle {
	elems := []bson.Element{
		bson.NewElement(b.kind.commandField(), bson.String(b.collection)),
	}
	if !b.ordered {
		elems = append(elems, bson.NewElement("ordered", bson.Boolean(false)))
	}
	opsValues := make([]bson.Value, len(b.ops))
	for i, op := range b.ops {
		opsValues[i] = bson.EmbeddedDocument(op.toDocument())
	}
	elems = append(elems,
		bson.NewElement("writeConcern", bson.EmbeddedDocument(b.wcDoc)),
		bson.NewElement(b.kind.opsField(), bson.Array(opsValues...)),
	)
	return Bundle{Command: bson.NewDocument(elems...), Ops: b.ops}
}

// Plan packs ops into bundles under maxCommandSize and maxOpsPerBundle
// using mode, against a collection and durability descriptor. It fails with
// xerr.DocumentTooLarge, naming the offending document, if a single
// operation cannot fit in an otherwise-empty bundle.
func Plan(ops []WriteOperation, collection string, maxCommandSize, maxOpsPerBundle int32, mode Mode, durability Durability) ([]Bundle, error) {
	ordered := mode == ModeSerializeAndStop
	if err := checkOversize(ops, collection, maxCommandSize, ordered, durability); err != nil {
		return nil, err
	}

	switch mode {
	case ModeReordered:
		return planReordered(ops, collection, maxCommandSize, maxOpsPerBundle, durability)
	default:
		return planSerial(ops, collection, maxCommandSize, maxOpsPerBundle, ordered, durability)
	}
}

// checkOversize probes each operation against an otherwise-empty bundle
// built with the same ordered flag the real plan will use, so the command
// overhead it measures matches the bundle it is guarding.
func checkOversize(ops []WriteOperation, collection string, maxCommandSize int32, ordered bool, durability Durability) error {
	wcDoc := durability.Doc()
	for i, op := range ops {
		b := newBuilder(op.Kind, collection, ordered, wcDoc)
		if !b.fits(op, maxCommandSize) {
			return oversizeErr(op, i)
		}
	}
	return nil
}

// planSerial implements serialize-and-stop (ordered=true) and
// serialize-and-continue (ordered=false): operations are walked in
// submission order and a bundle closes when the type changes, the size
// bound would be exceeded, or the op-count bound is reached.
func planSerial(ops []WriteOperation, collection string, maxCommandSize, maxOpsPerBundle int32, ordered bool, durability Durability) ([]Bundle, error) {
	wcDoc := durability.Doc()
	var bundles []Bundle
	var cur *builder

	flush := func() {
		if cur != nil && !cur.empty() {
			bundles = append(bundles, cur.build())
		}
		cur = nil
	}

	for _, op := range ops {
		if cur != nil && cur.kind != op.Kind {
			flush()
		}
		if cur == nil {
			cur = newBuilder(op.Kind, collection, ordered, wcDoc)
		}
		if int32(len(cur.ops)) >= maxOpsPerBundle || !cur.fits(op, maxCommandSize) {
			flush()
			cur = newBuilder(op.Kind, collection, ordered, wcDoc)
		}
		cur.add(op)
	}
	flush()

	return bundles, nil
}

// planReordered buckets operations by kind (insert, update, delete, in that
// fixed order), sorts each bucket by descending size, and greedily packs
// bundles: the largest operation that still fits goes in first.
func planReordered(ops []WriteOperation, collection string, maxCommandSize, maxOpsPerBundle int32, durability Durability) ([]Bundle, error) {
	wcDoc := durability.Doc()
	buckets := [3][]WriteOperation{}
	for _, op := range ops {
		buckets[op.Kind] = append(buckets[op.Kind], op)
	}

	var bundles []Bundle
	for kind := KindInsert; kind <= KindDelete; kind++ {
		bucket := buckets[kind]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].payloadSize() > bucket[j].payloadSize()
		})

		remaining := make([]WriteOperation, len(bucket))
		copy(remaining, bucket)

		for len(remaining) > 0 {
			b := newBuilder(kind, collection, false, wcDoc)
			for {
				idx := -1
				for i, op := range remaining {
					if b.fits(op, maxCommandSize) {
						idx = i
						break
					}
				}
				if idx < 0 || int32(len(b.ops)) >= maxOpsPerBundle {
					break
				}
				b.add(remaining[idx])
				remaining = append(remaining[:idx], remaining[idx+1:]...)
			}
			if b.empty() {
				// Every remaining operation of this kind is individually
				// too large for an otherwise-empty bundle; checkOversize
				// already rules this out, so this is unreachable in
				// practice, but avoid looping forever defensively.
				break
			}
			bundles = append(bundles, b.build())
		}
	}

	return bundles, nil
}
