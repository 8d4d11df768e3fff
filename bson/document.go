// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"regexp"
	"sync"
)

// Document is an ordered sequence of elements with distinct names. Name
// lookup is O(1) via a lazily constructed index, built at most once per
// Document value even when that value is shared across goroutines.
type Document struct {
	elems []Element
	idx   *indexCache
}

type indexCache struct {
	once   sync.Once
	byName map[string]int
}

// NewDocument constructs a Document from an ordered list of elements. The
// caller is responsible for the names being distinct; duplicate names are
// permitted by this constructor but only the first occurrence will ever be
// found by Lookup.
func NewDocument(elems ...Element) Document {
	cp := make([]Element, len(elems))
	copy(cp, elems)
	return Document{elems: cp, idx: &indexCache{}}
}

// Len returns the number of elements in the document.
func (d Document) Len() int { return len(d.elems) }

// Elements returns the document's elements in order. The returned slice
// must not be mutated.
func (d Document) Elements() []Element { return d.elems }

// Append returns a new Document with e appended after the existing
// elements. The receiver is left unmodified, matching the field's
// immutable-leaning lifecycle (insert consumes a document and produces a
// new one).
func (d Document) Append(e Element) Document {
	elems := make([]Element, len(d.elems)+1)
	copy(elems, d.elems)
	elems[len(d.elems)] = e
	return Document{elems: elems, idx: &indexCache{}}
}

// Prepend returns a new Document with e inserted before the existing
// elements.
func (d Document) Prepend(e Element) Document {
	elems := make([]Element, len(d.elems)+1)
	elems[0] = e
	copy(elems[1:], d.elems)
	return Document{elems: elems, idx: &indexCache{}}
}

func (d Document) ensureIndex() map[string]int {
	if d.idx == nil {
		// a zero-value Document (no NewDocument call) has no shared cache to
		// race on; build one unconditionally.
		m := make(map[string]int, len(d.elems))
		for i, e := range d.elems {
			if _, ok := m[e.Name]; !ok {
				m[e.Name] = i
			}
		}
		return m
	}
	d.idx.once.Do(func() {
		m := make(map[string]int, len(d.elems))
		for i, e := range d.elems {
			if _, ok := m[e.Name]; !ok {
				m[e.Name] = i
			}
		}
		d.idx.byName = m
	})
	return d.idx.byName
}

// Lookup finds the element with the given name.
func (d Document) Lookup(name string) (Element, bool) {
	idx := d.ensureIndex()
	i, ok := idx[name]
	if !ok {
		return Element{}, false
	}
	return d.elems[i], true
}

// Size returns the exact encoded byte length of the document: the 4-byte
// length prefix, every element, and the trailing null byte. It is computed
// recursively over the element tree without serializing any bytes.
func (d Document) Size() int32 {
	var size int32 = 4 + 1
	for _, e := range d.elems {
		size += e.Size()
	}
	return size
}

// Equal reports whether two documents have the same elements in the same
// order.
func (d Document) Equal(other Document) bool {
	if len(d.elems) != len(other.elems) {
		return false
	}
	for i := range d.elems {
		if !d.elems[i].Equal(other.elems[i]) {
			return false
		}
	}
	return true
}

// PathMatcher matches a single path segment: either a literal name or a
// regular expression over names.
type PathMatcher struct {
	Literal string
	Regex   *regexp.Regexp
}

// Literal constructs a PathMatcher that matches a single name exactly.
func Literal(name string) PathMatcher { return PathMatcher{Literal: name} }

// RegexMatcher constructs a PathMatcher that matches any name satisfying re.
func RegexMatcher(re *regexp.Regexp) PathMatcher { return PathMatcher{Regex: re} }

func (m PathMatcher) matches(name string) bool {
	if m.Regex != nil {
		return m.Regex.MatchString(name)
	}
	return m.Literal == name
}

// Path is an ordered list of matchers applied depth-first: the first
// matcher selects candidate top-level elements, the second descends into
// any of those that are documents, and so on.
type Path []PathMatcher

// Find walks path depth-first and returns every element at the terminal
// path segment that matched along the way.
func (d Document) Find(path Path) []Element {
	if len(path) == 0 {
		return nil
	}
	var out []Element
	for _, e := range d.elems {
		if !path[0].matches(e.Name) {
			continue
		}
		if len(path) == 1 {
			out = append(out, e)
			continue
		}
		if e.Value.t != TypeDocument && e.Value.t != TypeArray {
			continue
		}
		out = append(out, e.Value.Document().Find(path[1:])...)
	}
	return out
}

// EnsureID returns a document guaranteed to carry a top-level "_id"
// element: if one is already present at the top level, d is returned
// unchanged (the element keeps its position) and injected is false, with
// id set only when that element is an ObjectID; otherwise a fresh ObjectID
// is synthesized, prepended at the head, and injected is true. The
// operation is idempotent: calling it again on the result is a no-op.
func (d Document) EnsureID() (out Document, id ObjectID, injected bool) {
	if existing, ok := d.Lookup("_id"); ok && existing.Value.t == TypeObjectID {
		return d, existing.Value.ObjectID(), false
	}
	if _, ok := d.Lookup("_id"); ok {
		return d, ObjectID{}, false
	}
	id = NewObjectID()
	return d.Prepend(NewElement("_id", ObjectIDValue(id))), id, true
}
