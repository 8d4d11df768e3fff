// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import "fmt"

// Type is the wire-format tag byte identifying the type of an element's
// value. The set is closed; there is no user extension point.
type Type byte

// The element types supported by the codec, tagged with their wire byte.
const (
	TypeDouble        Type = 0x01
	TypeString        Type = 0x02
	TypeDocument      Type = 0x03
	TypeArray         Type = 0x04
	TypeBinary        Type = 0x05
	TypeUndefined     Type = 0x06
	TypeObjectID      Type = 0x07
	TypeBoolean       Type = 0x08
	TypeDateTime      Type = 0x09
	TypeNull          Type = 0x0A
	TypeRegex         Type = 0x0B
	TypeDBPointer     Type = 0x0C
	TypeJavaScript    Type = 0x0D
	TypeSymbol        Type = 0x0E
	TypeCodeWithScope Type = 0x0F
	TypeInt32         Type = 0x10
	TypeTimestamp     Type = 0x11
	TypeInt64         Type = 0x12
	TypeMinKey        Type = 0xFF
	TypeMaxKey        Type = 0x7F
)

// ordinal gives the type a stable ranking for Element/Value comparison,
// independent of its wire byte value (which is not monotonic: MinKey/MaxKey
// sort outside the 0x01-0x12 run).
var typeOrdinal = map[Type]int{
	TypeDouble: 1, TypeString: 2, TypeDocument: 3, TypeArray: 4, TypeBinary: 5,
	TypeUndefined: 6, TypeObjectID: 7, TypeBoolean: 8, TypeDateTime: 9,
	TypeNull: 10, TypeRegex: 11, TypeDBPointer: 12, TypeJavaScript: 13,
	TypeSymbol: 14, TypeCodeWithScope: 15, TypeInt32: 16, TypeTimestamp: 17,
	TypeInt64: 18, TypeMinKey: 19, TypeMaxKey: 20,
}

func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeDocument:
		return "document"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		return "objectID"
	case TypeBoolean:
		return "boolean"
	case TypeDateTime:
		return "dateTime"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeDBPointer:
		return "dbPointer"
	case TypeJavaScript:
		return "javascript"
	case TypeSymbol:
		return "symbol"
	case TypeCodeWithScope:
		return "codeWithScope"
	case TypeInt32:
		return "int32"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "int64"
	case TypeMinKey:
		return "minKey"
	case TypeMaxKey:
		return "maxKey"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(t))
	}
}

// numeric reports whether the type participates in cross-numeric promotion
// during comparison (int32, int64, double all compare as doubles).
func (t Type) numeric() bool {
	return t == TypeDouble || t == TypeInt32 || t == TypeInt64
}

// textual reports whether the type compares as a string (string, symbol).
func (t Type) textual() bool {
	return t == TypeString || t == TypeSymbol
}
