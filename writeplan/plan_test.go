// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package writeplan

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/xerr"
)

func insertOfSize(t *testing.T, payloadBytes int) WriteOperation {
	t.Helper()
	// A single padded string field carries a fixed few bytes of framing
	// (type tag, name, length prefix, terminators) on top of the string
	// body; pad to hit an approximate target document size for fixtures
	// where the exact byte count isn't load-bearing.
	pad := payloadBytes
	if pad < 0 {
		pad = 0
	}
	doc := bson.NewDocument(bson.NewElement("pad", bson.String(strings.Repeat("x", pad))))
	return WriteOperation{Kind: KindInsert, Doc: doc}
}

func TestContinueModePacksOneBundle(t *testing.T) {
	ops := make([]WriteOperation, 600)
	for i := range ops {
		ops[i] = insertOfSize(t, 200)
	}

	bundles, err := Plan(ops, "coll", 16_000_000, 1000, ModeSerializeAndContinue, Durability{Kind: DurabilityAck})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected exactly one bundle, got %d", len(bundles))
	}
	if len(bundles[0].Ops) != 600 {
		t.Fatalf("expected 600 ops in the bundle, got %d", len(bundles[0].Ops))
	}
	if _, ok := bundles[0].Command.Lookup("ordered"); !ok {
		t.Fatal("expected an explicit ordered:false field in continue mode")
	}
}

func TestSplitByOpCount(t *testing.T) {
	ops := make([]WriteOperation, 2500)
	for i := range ops {
		ops[i] = insertOfSize(t, 10)
	}

	bundles, err := Plan(ops, "coll", 16_000_000, 1000, ModeSerializeAndContinue, Durability{Kind: DurabilityAck})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(bundles) != 3 {
		t.Fatalf("expected 3 bundles, got %d", len(bundles))
	}
	wantSizes := []int{1000, 1000, 500}
	for i, want := range wantSizes {
		if got := len(bundles[i].Ops); got != want {
			t.Fatalf("bundle %d: expected %d ops, got %d", i, want, got)
		}
	}
}

func TestSplitByBytes(t *testing.T) {
	const twoMiB = 2 * 1024 * 1024
	ops := make([]WriteOperation, 10)
	for i := range ops {
		ops[i] = insertOfSize(t, twoMiB)
	}

	bundles, err := Plan(ops, "coll", 16*1024*1024, 1000, ModeSerializeAndContinue, Durability{Kind: DurabilityAck})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}
	total := 0
	for _, b := range bundles {
		total += len(b.Ops)
		if size := b.Command.Size(); size > 16*1024*1024 {
			t.Fatalf("bundle exceeds maxCommandSize: %d", size)
		}
	}
	if total != 10 {
		t.Fatalf("expected all 10 ops accounted for, got %d", total)
	}
}

func TestOversizeRejection(t *testing.T) {
	const twentyMiB = 20 * 1024 * 1024
	ops := []WriteOperation{insertOfSize(t, twentyMiB)}

	_, err := Plan(ops, "coll", 16*1024*1024, 1000, ModeSerializeAndContinue, Durability{Kind: DurabilityAck})
	if !xerr.Is(err, xerr.DocumentTooLarge) {
		t.Fatalf("expected DocumentTooLarge, got %v", err)
	}
}

func TestPlanPreservesMultisetAndOrder(t *testing.T) {
	ops := []WriteOperation{
		{Kind: KindInsert, Doc: bson.NewDocument(bson.NewElement("n", bson.Int32(1)))},
		{Kind: KindInsert, Doc: bson.NewDocument(bson.NewElement("n", bson.Int32(2)))},
		{Kind: KindUpdate, Query: bson.NewDocument(bson.NewElement("n", bson.Int32(1))), Update: bson.NewDocument(bson.NewElement("$set", bson.EmbeddedDocument(bson.NewDocument(bson.NewElement("n", bson.Int32(9)))))), Multi: true},
		{Kind: KindDelete, Query: bson.NewDocument(bson.NewElement("n", bson.Int32(2))), Single: true},
	}

	bundles, err := Plan(ops, "coll", 16_000_000, 1000, ModeSerializeAndStop, Durability{Kind: DurabilityAck})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	var flattened []WriteOperation
	for _, b := range bundles {
		flattened = append(flattened, b.Ops...)
	}
	if len(flattened) != len(ops) {
		t.Fatalf("expected %d ops preserved, got %d", len(ops), len(flattened))
	}
	for i := range ops {
		if flattened[i].Kind != ops[i].Kind {
			t.Fatalf("op %d: order not preserved in serialize-and-stop mode", i)
		}
	}
}

func TestReorderedGroupsByKindInFixedOrder(t *testing.T) {
	ops := []WriteOperation{
		{Kind: KindDelete, Query: bson.NewDocument(bson.NewElement("n", bson.Int32(1))), Single: true},
		{Kind: KindInsert, Doc: bson.NewDocument(bson.NewElement("n", bson.Int32(1)))},
		{Kind: KindUpdate, Query: bson.NewDocument(bson.NewElement("n", bson.Int32(1))), Update: bson.NewDocument(bson.NewElement("n", bson.Int32(2)))},
	}

	bundles, err := Plan(ops, "coll", 16_000_000, 1000, ModeReordered, Durability{Kind: DurabilityAck})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(bundles) != 3 {
		t.Fatalf("expected one bundle per kind, got %d", len(bundles))
	}
	if bundles[0].Ops[0].Kind != KindInsert || bundles[1].Ops[0].Kind != KindUpdate || bundles[2].Ops[0].Kind != KindDelete {
		t.Fatal("expected insert, update, delete bundle order")
	}
	for _, b := range bundles {
		if _, ok := b.Command.Lookup("ordered"); !ok {
			t.Fatal("expected ordered:false in reordered mode")
		}
	}

	gotKinds := make([]OpKind, len(bundles))
	for i, b := range bundles {
		gotKinds[i] = b.Ops[0].Kind
	}
	wantKinds := []OpKind{KindInsert, KindUpdate, KindDelete}
	if diff := cmp.Diff(wantKinds, gotKinds); diff != "" {
		t.Fatalf("bundle kind order mismatch (-want +got):\n%s", diff)
	}
}
