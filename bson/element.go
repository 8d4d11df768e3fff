// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import "strings"

// Element is a single named, typed value inside a Document. Elements are
// immutable and comparable: two elements compare by name, then by type
// ordinal, then by value (with cross-numeric promotion for the numeric
// types and string/symbol compared as text).
type Element struct {
	Name  string
	Value Value
}

// NewElement constructs an Element with the given name and value.
func NewElement(name string, v Value) Element {
	return Element{Name: name, Value: v}
}

// Size returns the exact number of bytes this element occupies on the wire:
// the type tag, the CString name, and the type-specific payload. It never
// allocates or serializes the element to compute this.
func (e Element) Size() int32 {
	return 1 + int32(len(e.Name)) + 1 + e.Value.payloadSize()
}

// payloadSize returns the encoded byte length of just the value portion of
// an element (excluding the type tag and name), per the wire layout for
// each type in the closed type set.
func (v Value) payloadSize() int32 {
	switch v.t {
	case TypeDouble, TypeDateTime, TypeTimestamp, TypeInt64:
		return 8
	case TypeString, TypeJavaScript, TypeSymbol:
		return 4 + int32(len(v.str)) + 1
	case TypeDocument, TypeArray:
		return v.Document().Size()
	case TypeBinary:
		return 4 + 1 + int32(len(v.bin))
	case TypeUndefined, TypeNull, TypeMinKey, TypeMaxKey:
		return 0
	case TypeObjectID:
		return 12
	case TypeBoolean:
		return 1
	case TypeRegex:
		return int32(len(v.str)) + 1 + int32(len(v.str2)) + 1
	case TypeDBPointer:
		return 4 + int32(len(v.str)) + 1 + 12
	case TypeCodeWithScope:
		return 4 + (4 + int32(len(v.str)) + 1) + v.Document().Size()
	case TypeInt32:
		return 4
	default:
		panic("bson: unknown type in payloadSize: " + v.t.String())
	}
}

// Compare orders two elements by name, then type ordinal, then value. The
// numeric types (int32, int64, double) count as one class in the ordinal
// step, as do string and symbol, so those pairs are ordered by value. It
// returns -1, 0, or 1.
func (e Element) Compare(other Element) int {
	if c := strings.Compare(e.Name, other.Name); c != 0 {
		return c
	}
	eo, oo := typeOrdinal[e.Value.t], typeOrdinal[other.Value.t]
	sameClass := (e.Value.t.numeric() && other.Value.t.numeric()) ||
		(e.Value.t.textual() && other.Value.t.textual())
	if eo != oo && !sameClass {
		if eo < oo {
			return -1
		}
		return 1
	}
	return e.Value.Compare(other.Value)
}

// Compare orders two values of the same comparison class. Numeric types
// (double, int32, int64) are promoted to float64; string and symbol compare
// as text; everything else falls back to byte-wise comparison of its
// re-encoded payload.
func (v Value) Compare(other Value) int {
	switch {
	case v.t.numeric() && other.t.numeric():
		a, b := v.AsFloat64(), other.AsFloat64()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	case v.t.textual() && other.t.textual():
		return strings.Compare(v.str, other.str)
	default:
		av := appendValue(nil, v)
		bv := appendValue(nil, other)
		switch {
		case len(av) != len(bv):
			if len(av) < len(bv) {
				return -1
			}
			return 1
		default:
			for i := range av {
				if av[i] != bv[i] {
					if av[i] < bv[i] {
						return -1
					}
					return 1
				}
			}
			return 0
		}
	}
}

// Equal reports whether two elements are identical in name, type, and
// value.
func (e Element) Equal(other Element) bool {
	return e.Name == other.Name && e.Value.t == other.Value.t && e.Value.Compare(other.Value) == 0
}
