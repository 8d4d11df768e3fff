// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/lucidfield/docdb/xerr"
)

// Marshal encodes the document to its binary representation. It fails with
// xerr.InvalidName if any element name contains an interior null byte or is
// not valid UTF-8.
func (d Document) Marshal() ([]byte, error) {
	buf := make([]byte, 0, d.Size())
	return d.appendTo(buf)
}

// MarshalCapped is identical to Marshal but fails with xerr.DocumentTooLarge
// before encoding if the document's computed size exceeds maxSize.
func (d Document) MarshalCapped(maxSize int32) ([]byte, error) {
	if size := d.Size(); size > maxSize {
		return nil, xerr.New(xerr.DocumentTooLarge, "document size "+itoa(int(size))+" exceeds maximum "+itoa(int(maxSize)))
	}
	return d.Marshal()
}

func (d Document) appendTo(dst []byte) ([]byte, error) {
	start := len(dst)
	dst = appendInt32(dst, 0) // placeholder, patched below

	var err error
	for _, e := range d.elems {
		dst, err = appendElement(dst, e)
		if err != nil {
			return nil, err
		}
	}
	dst = append(dst, 0x00)

	binary.LittleEndian.PutUint32(dst[start:start+4], uint32(len(dst)-start))
	return dst, nil
}

func appendElement(dst []byte, e Element) ([]byte, error) {
	if err := validateName(e.Name); err != nil {
		return nil, err
	}
	dst = append(dst, byte(e.Value.t))
	dst = appendCString(dst, e.Name)
	return appendValueErr(dst, e.Value)
}

// Validate walks the document tree and reports the first xerr.InvalidName a
// Marshal of it would hit: an element name (at any depth, including inside
// arrays and code-with-scope scopes) containing an interior null or invalid
// UTF-8. It encodes nothing, so the send path can reject a bad document
// before any bytes reach a connection.
func (d Document) Validate() error {
	for _, e := range d.elems {
		if err := validateName(e.Name); err != nil {
			return err
		}
		switch e.Value.t {
		case TypeDocument, TypeArray, TypeCodeWithScope:
			if err := e.Value.Document().Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateName(name string) error {
	if strings.IndexByte(name, 0x00) != -1 {
		return xerr.New(xerr.InvalidName, "element name contains an interior null: "+name)
	}
	if !utf8.ValidString(name) {
		return xerr.New(xerr.InvalidName, "element name is not valid UTF-8")
	}
	return nil
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0x00)
}

func appendString(dst []byte, s string) []byte {
	dst = appendInt32(dst, int32(len(s)+1))
	dst = append(dst, s...)
	return append(dst, 0x00)
}

func appendInt32(dst []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

// appendValue encodes a value's payload (no type tag, no name) for callers
// that have already validated the value via Document.Validate, where an
// encode error is unreachable. The encode path proper uses appendValueErr.
func appendValue(dst []byte, v Value) []byte {
	out, err := appendValueErr(dst, v)
	if err != nil {
		panic(err)
	}
	return out
}

func appendValueErr(dst []byte, v Value) ([]byte, error) {
	switch v.t {
	case TypeDouble:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.f64))
		return append(dst, b[:]...), nil
	case TypeString, TypeJavaScript, TypeSymbol:
		return appendString(dst, v.str), nil
	case TypeDocument, TypeArray:
		return v.Document().appendTo(dst)
	case TypeBinary:
		dst = appendInt32(dst, int32(len(v.bin)))
		dst = append(dst, v.binSub)
		return append(dst, v.bin...), nil
	case TypeUndefined, TypeNull, TypeMinKey, TypeMaxKey:
		return dst, nil
	case TypeObjectID:
		return append(dst, v.oid[:]...), nil
	case TypeBoolean:
		if v.b {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case TypeDateTime, TypeTimestamp, TypeInt64:
		return appendInt64(dst, v.i64), nil
	case TypeRegex:
		dst = appendCString(dst, v.str)
		return appendCString(dst, v.str2), nil
	case TypeDBPointer:
		dst = appendString(dst, v.str)
		return append(dst, v.oid[:]...), nil
	case TypeCodeWithScope:
		start := len(dst)
		dst = appendInt32(dst, 0)
		dst = appendString(dst, v.str)
		var err error
		dst, err = v.Document().appendTo(dst)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(dst[start:start+4], uint32(len(dst)-start))
		return dst, nil
	case TypeInt32:
		return appendInt32(dst, v.i32), nil
	default:
		return nil, xerr.New(xerr.DecodeFailure, "unknown type during encode: "+v.t.String())
	}
}
