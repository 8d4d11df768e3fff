// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/lucidfield/docdb/xerr"
)

// Unmarshal decodes a single document from the front of data. It fails with
// xerr.DecodeFailure on a short buffer, a malformed length prefix, or an
// unterminated document, and also with xerr.DecodeFailure if a string or an
// element name is not valid UTF-8.
func Unmarshal(data []byte) (Document, error) {
	d, n, err := readDocument(data)
	if err != nil {
		return Document{}, err
	}
	if n != len(data) {
		return Document{}, xerr.New(xerr.DecodeFailure, "trailing bytes after document")
	}
	return d, nil
}

func readDocument(data []byte) (Document, int, error) {
	if len(data) < 5 {
		return Document{}, 0, xerr.New(xerr.DecodeFailure, "buffer too short for a document header")
	}
	length := int(int32(binary.LittleEndian.Uint32(data[0:4])))
	if length < 5 || length > len(data) {
		return Document{}, 0, xerr.New(xerr.DecodeFailure, "invalid document length")
	}
	if data[length-1] != 0x00 {
		return Document{}, 0, xerr.New(xerr.DecodeFailure, "document missing trailing null")
	}

	pos := 4
	var elems []Element
	for pos < length-1 {
		e, consumed, err := readElement(data[pos : length-1])
		if err != nil {
			return Document{}, 0, err
		}
		elems = append(elems, e)
		pos += consumed
	}
	return NewDocument(elems...), length, nil
}

func readElement(data []byte) (Element, int, error) {
	if len(data) < 2 {
		return Element{}, 0, xerr.New(xerr.DecodeFailure, "truncated element")
	}
	t := Type(data[0])
	name, nameLen, err := readCString(data[1:])
	if err != nil {
		return Element{}, 0, err
	}
	v, valLen, err := readValue(t, data[1+nameLen:])
	if err != nil {
		return Element{}, 0, err
	}
	return NewElement(name, v), 1 + nameLen + valLen, nil
}

func readCString(data []byte) (string, int, error) {
	for i, b := range data {
		if b == 0x00 {
			if !utf8.Valid(data[:i]) {
				return "", 0, xerr.New(xerr.DecodeFailure, "cstring is not valid UTF-8")
			}
			return string(data[:i]), i + 1, nil
		}
	}
	return "", 0, xerr.New(xerr.DecodeFailure, "cstring missing null terminator")
}

func readString(data []byte) (string, int, error) {
	if len(data) < 4 {
		return "", 0, xerr.New(xerr.DecodeFailure, "truncated string length")
	}
	n := int(int32(binary.LittleEndian.Uint32(data[0:4])))
	if n < 1 || 4+n > len(data) {
		return "", 0, xerr.New(xerr.DecodeFailure, "invalid string length")
	}
	if data[4+n-1] != 0x00 {
		return "", 0, xerr.New(xerr.DecodeFailure, "string missing trailing null")
	}
	s := data[4 : 4+n-1]
	if !utf8.Valid(s) {
		return "", 0, xerr.New(xerr.DecodeFailure, "string is not valid UTF-8")
	}
	return string(s), 4 + n, nil
}

func readValue(t Type, data []byte) (Value, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return xerr.New(xerr.DecodeFailure, "truncated "+t.String()+" value")
		}
		return nil
	}

	switch t {
	case TypeDouble:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		bits := binary.LittleEndian.Uint64(data[:8])
		return Double(math.Float64frombits(bits)), 8, nil
	case TypeString, TypeJavaScript, TypeSymbol:
		s, n, err := readString(data)
		if err != nil {
			return Value{}, 0, err
		}
		switch t {
		case TypeJavaScript:
			return JavaScript(s), n, nil
		case TypeSymbol:
			return Symbol(s), n, nil
		default:
			return String(s), n, nil
		}
	case TypeDocument, TypeArray:
		d, n, err := readDocument(data)
		if err != nil {
			return Value{}, 0, err
		}
		if t == TypeArray {
			return Value{t: TypeArray, doc: &d}, n, nil
		}
		return EmbeddedDocument(d), n, nil
	case TypeBinary:
		if err := need(5); err != nil {
			return Value{}, 0, err
		}
		n := int(int32(binary.LittleEndian.Uint32(data[0:4])))
		if n < 0 || 5+n > len(data) {
			return Value{}, 0, xerr.New(xerr.DecodeFailure, "invalid binary length")
		}
		sub := data[4]
		buf := make([]byte, n)
		copy(buf, data[5:5+n])
		return Binary(sub, buf), 5 + n, nil
	case TypeUndefined:
		return Undefined(), 0, nil
	case TypeObjectID:
		if err := need(12); err != nil {
			return Value{}, 0, err
		}
		var id ObjectID
		copy(id[:], data[:12])
		return ObjectIDValue(id), 12, nil
	case TypeBoolean:
		if err := need(1); err != nil {
			return Value{}, 0, err
		}
		if data[0] != 0 && data[0] != 1 {
			return Value{}, 0, xerr.New(xerr.DecodeFailure, "invalid boolean byte")
		}
		return Boolean(data[0] == 1), 1, nil
	case TypeDateTime:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		return DateTimeMillis(int64(binary.LittleEndian.Uint64(data[:8]))), 8, nil
	case TypeNull:
		return Null(), 0, nil
	case TypeRegex:
		pattern, n1, err := readCString(data)
		if err != nil {
			return Value{}, 0, err
		}
		options, n2, err := readCString(data[n1:])
		if err != nil {
			return Value{}, 0, err
		}
		return Regex(pattern, options), n1 + n2, nil
	case TypeDBPointer:
		ns, n, err := readString(data)
		if err != nil {
			return Value{}, 0, err
		}
		if err := need(n + 12); err != nil {
			return Value{}, 0, err
		}
		var id ObjectID
		copy(id[:], data[n:n+12])
		return DBPointer(ns, id), n + 12, nil
	case TypeCodeWithScope:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		total := int(int32(binary.LittleEndian.Uint32(data[0:4])))
		if total < 4 || total > len(data) {
			return Value{}, 0, xerr.New(xerr.DecodeFailure, "invalid code-with-scope length")
		}
		code, n, err := readString(data[4:])
		if err != nil {
			return Value{}, 0, err
		}
		scope, _, err := readDocument(data[4+n : total])
		if err != nil {
			return Value{}, 0, err
		}
		return CodeWithScope(code, scope), total, nil
	case TypeInt32:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		return Int32(int32(binary.LittleEndian.Uint32(data[:4]))), 4, nil
	case TypeTimestamp:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		bits := binary.LittleEndian.Uint64(data[:8])
		return MongoTimestamp(uint32(bits), uint32(bits>>32)), 8, nil
	case TypeInt64:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		return Int64(int64(binary.LittleEndian.Uint64(data[:8]))), 8, nil
	case TypeMinKey:
		return MinKey(), 0, nil
	case TypeMaxKey:
		return MaxKey(), 0, nil
	default:
		return Value{}, 0, xerr.New(xerr.DecodeFailure, "unknown type tag on the wire")
	}
}
