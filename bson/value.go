// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import "time"

// Value is the payload of an Element: a closed, tagged union over the
// supported BSON types. Values are immutable once constructed.
type Value struct {
	t Type

	f64    float64
	str    string // string, symbol, javascript, regex pattern, dbpointer namespace
	str2   string // regex options
	i32    int32
	i64    int64
	bin    []byte
	binSub byte
	oid    ObjectID
	doc    *Document // document, array, code-with-scope scope
	b      bool
}

// Type reports the value's wire type.
func (v Value) Type() Type { return v.t }

// Double constructs a double-precision floating point value.
func Double(f float64) Value { return Value{t: TypeDouble, f64: f} }

// String constructs a UTF-8 string value.
func String(s string) Value { return Value{t: TypeString, str: s} }

// EmbeddedDocument constructs a nested document value.
func EmbeddedDocument(d Document) Value { return Value{t: TypeDocument, doc: &d} }

// Array constructs an array value from a sequence of elements, assigning
// each one the stringified index of its position as required by the wire
// layout (arrays are encoded as documents named "0", "1", "2", ...).
func Array(values ...Value) Value {
	elems := make([]Element, len(values))
	for i, v := range values {
		elems[i] = NewElement(itoa(i), v)
	}
	d := NewDocument(elems...)
	return Value{t: TypeArray, doc: &d}
}

// Binary constructs a binary value with the given subtype byte.
func Binary(subtype byte, data []byte) Value {
	return Value{t: TypeBinary, binSub: subtype, bin: data}
}

// Undefined constructs the deprecated BSON undefined value.
func Undefined() Value { return Value{t: TypeUndefined} }

// ObjectIDValue constructs a value wrapping an ObjectID.
func ObjectIDValue(id ObjectID) Value { return Value{t: TypeObjectID, oid: id} }

// Boolean constructs a boolean value.
func Boolean(b bool) Value { return Value{t: TypeBoolean, b: b} }

// DateTime constructs a timestamp-millis value from a time.Time, truncated
// to millisecond precision as the wire format requires.
func DateTime(t time.Time) Value {
	return Value{t: TypeDateTime, i64: t.UnixNano() / int64(time.Millisecond)}
}

// DateTimeMillis constructs a timestamp-millis value directly from a
// milliseconds-since-epoch count.
func DateTimeMillis(ms int64) Value { return Value{t: TypeDateTime, i64: ms} }

// Null constructs the BSON null value.
func Null() Value { return Value{t: TypeNull} }

// Regex constructs a regular expression value from a pattern and its option
// flags, both of which are encoded as CStrings.
func Regex(pattern, options string) Value {
	return Value{t: TypeRegex, str: pattern, str2: options}
}

// DBPointer constructs the deprecated db-pointer value.
func DBPointer(namespace string, id ObjectID) Value {
	return Value{t: TypeDBPointer, str: namespace, oid: id}
}

// JavaScript constructs a code value.
func JavaScript(code string) Value { return Value{t: TypeJavaScript, str: code} }

// Symbol constructs a symbol value.
func Symbol(s string) Value { return Value{t: TypeSymbol, str: s} }

// CodeWithScope constructs a code-with-scope value.
func CodeWithScope(code string, scope Document) Value {
	return Value{t: TypeCodeWithScope, str: code, doc: &scope}
}

// Int32 constructs a 32-bit integer value.
func Int32(i int32) Value { return Value{t: TypeInt32, i32: i} }

// MongoTimestamp constructs the internal replication timestamp type: an
// ordinal increment plus a seconds-since-epoch time, packed into a single
// int64 on the wire (increment in the low 32 bits).
func MongoTimestamp(increment, epochSeconds uint32) Value {
	return Value{t: TypeTimestamp, i64: int64(epochSeconds)<<32 | int64(increment)}
}

// Int64 constructs a 64-bit integer value.
func Int64(i int64) Value { return Value{t: TypeInt64, i64: i} }

// MinKey constructs the BSON min-key sentinel value.
func MinKey() Value { return Value{t: TypeMinKey} }

// MaxKey constructs the BSON max-key sentinel value.
func MaxKey() Value { return Value{t: TypeMaxKey} }

// AsFloat64 returns v's numeric value promoted to float64. It panics if v is
// not a numeric type; callers should check Type() first.
func (v Value) AsFloat64() float64 {
	switch v.t {
	case TypeDouble:
		return v.f64
	case TypeInt32:
		return float64(v.i32)
	case TypeInt64:
		return float64(v.i64)
	default:
		panic("bson: value is not numeric: " + v.t.String())
	}
}

// StringValue returns v's textual payload. It panics if v is not a string or
// symbol; callers should check Type() first.
func (v Value) StringValue() string {
	if !v.t.textual() {
		panic("bson: value is not textual: " + v.t.String())
	}
	return v.str
}

// Document returns the embedded document for a document, array, or
// code-with-scope value.
func (v Value) Document() Document {
	if v.doc == nil {
		return Document{}
	}
	return *v.doc
}

// ObjectID returns the embedded ObjectID for an object-id or db-pointer
// value.
func (v Value) ObjectID() ObjectID { return v.oid }

// Bool returns the embedded boolean for a boolean value.
func (v Value) Bool() bool { return v.b }

// Int32Value returns the embedded int32 for an Int32 value.
func (v Value) Int32Value() int32 { return v.i32 }

// Int64Value returns the embedded int64 for an Int64 value.
func (v Value) Int64Value() int64 { return v.i64 }

// BinaryValue returns the subtype and payload of a binary value.
func (v Value) BinaryValue() (byte, []byte) { return v.binSub, v.bin }

// RegexValue returns the pattern and options of a regex value.
func (v Value) RegexValue() (pattern, options string) { return v.str, v.str2 }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
