// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package writeplan

import "github.com/lucidfield/docdb/bson"

// DurabilityKind names one of the fixed acknowledgement levels a caller can
// request for a batched write.
type DurabilityKind int

// The durability levels named in the write-concern mapping.
const (
	DurabilityNone DurabilityKind = iota
	DurabilityAck
	DurabilityJournal
	DurabilityReplicas
	DurabilityMajority
	DurabilityFsync
)

// Durability describes the caller's requested write-concern. N is only
// meaningful for DurabilityReplicas. WTimeoutMS, if non-zero, is copied into
// the writeConcern document as wtimeout.
type Durability struct {
	Kind       DurabilityKind
	N          int32
	WTimeoutMS int32
}

// Doc builds the writeConcern document for this durability descriptor.
func (d Durability) Doc() bson.Document {
	var elems []bson.Element
	switch d.Kind {
	case DurabilityNone:
		elems = append(elems, bson.NewElement("w", bson.Int32(0)))
	case DurabilityAck:
		elems = append(elems, bson.NewElement("w", bson.Int32(1)))
	case DurabilityJournal:
		elems = append(elems,
			bson.NewElement("w", bson.Int32(1)),
			bson.NewElement("j", bson.Boolean(true)),
		)
	case DurabilityReplicas:
		elems = append(elems, bson.NewElement("w", bson.Int32(d.N)))
	case DurabilityMajority:
		elems = append(elems, bson.NewElement("w", bson.String("majority")))
	case DurabilityFsync:
		elems = append(elems,
			bson.NewElement("w", bson.Int32(1)),
			bson.NewElement("fsync", bson.Boolean(true)),
		)
	}
	if d.WTimeoutMS != 0 {
		elems = append(elems, bson.NewElement("wtimeout", bson.Int32(d.WTimeoutMS)))
	}
	return bson.NewDocument(elems...)
}
