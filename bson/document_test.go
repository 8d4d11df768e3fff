// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

func TestRoundTrip(t *testing.T) {
	cases := []Document{
		NewDocument(),
		NewDocument(NewElement("a", Int32(1))),
		NewDocument(
			NewElement("_id", ObjectIDValue(NewObjectID())),
			NewElement("name", String("skriptble")),
			NewElement("pi", Double(3.14159)),
			NewElement("big", Int64(1<<40)),
			NewElement("tags", Array(String("x"), String("y"))),
			NewElement("nested", EmbeddedDocument(NewDocument(NewElement("k", Boolean(true))))),
			NewElement("bin", Binary(0x00, []byte{1, 2, 3})),
			NewElement("when", DateTime(time.Unix(1000, 0))),
			NewElement("re", Regex("^a.*z$", "i")),
			NewElement("u", Undefined()),
			NewElement("n", Null()),
			NewElement("min", MinKey()),
			NewElement("max", MaxKey()),
			NewElement("ts", MongoTimestamp(1, 2)),
			NewElement("code", JavaScript("function() {}")),
			NewElement("cws", CodeWithScope("function() {}", NewDocument(NewElement("x", Int32(1))))),
			NewElement("sym", Symbol("s")),
			NewElement("ptr", DBPointer("db.coll", NewObjectID())),
		),
	}

	for i, d := range cases {
		buf, err := d.Marshal()
		if err != nil {
			t.Fatalf("case %d: marshal: %v", i, err)
		}
		if int32(len(buf)) != d.Size() {
			t.Fatalf("case %d: len(encode(d))=%d != d.Size()=%d", i, len(buf), d.Size())
		}
		got, err := Unmarshal(buf)
		if err != nil {
			t.Fatalf("case %d: unmarshal: %v", i, err)
		}
		if !got.Equal(d) {
			t.Fatalf("case %d: round trip mismatch\nwant: %s\ngot:  %s", i, spew.Sdump(d), spew.Sdump(got))
		}
	}
}

func TestEnsureIDInjectsObjectID(t *testing.T) {
	d, id, injected := NewDocument().EnsureID()
	if !injected {
		t.Fatal("expected _id to be injected into an empty document")
	}
	if id.IsZero() {
		t.Fatal("injected id must not be zero")
	}
	if got, want := d.Size(), int32(22); got != want {
		t.Fatalf("expected a 22-byte document after _id injection, got %d", got)
	}

	again, _, injectedAgain := d.EnsureID()
	if injectedAgain {
		t.Fatal("EnsureID must be idempotent once an _id is present")
	}
	if !again.Equal(d) {
		t.Fatal("EnsureID must not modify a document that already has an _id")
	}
}

func TestInvalidName(t *testing.T) {
	d := NewDocument(NewElement("a\x00b", Int32(1)))
	if _, err := d.Marshal(); err == nil {
		t.Fatal("expected an error for a name containing an interior null")
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected Validate to reject the name without encoding")
	}
}

func TestInvalidNameInNestedDocument(t *testing.T) {
	bad := NewDocument(NewElement("a\x00b", Int32(1)))
	cases := []Document{
		NewDocument(NewElement("outer", EmbeddedDocument(bad))),
		NewDocument(NewElement("arr", Array(EmbeddedDocument(bad)))),
		NewDocument(NewElement("cws", CodeWithScope("function() {}", bad))),
	}
	for i, d := range cases {
		if _, err := d.Marshal(); err == nil {
			t.Fatalf("case %d: expected Marshal to return an error for a nested invalid name", i)
		}
		if err := d.Validate(); err == nil {
			t.Fatalf("case %d: expected Validate to reject the nested name", i)
		}
	}
}

func TestLookupAndFind(t *testing.T) {
	d := NewDocument(
		NewElement("a", Int32(1)),
		NewElement("b", EmbeddedDocument(NewDocument(NewElement("c", Int32(2))))),
	)
	if _, ok := d.Lookup("missing"); ok {
		t.Fatal("lookup of missing name should fail")
	}
	e, ok := d.Lookup("a")
	if !ok || e.Value.Int32Value() != 1 {
		t.Fatal("lookup of present name failed")
	}

	found := d.Find(Path{Literal("b"), Literal("c")})
	if len(found) != 1 || found[0].Value.Int32Value() != 2 {
		t.Fatalf("path find failed: %v", found)
	}
}

func TestElementCompareCrossNumeric(t *testing.T) {
	a := NewElement("x", Int32(1))
	b := NewElement("x", Double(1.0))
	if a.Compare(b) != 0 {
		t.Fatal("int32(1) and double(1.0) must compare equal under cross-numeric promotion")
	}
}
