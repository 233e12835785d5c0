// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package feature implements the record (attribute) codec: the
// column schema, and the functions that encode and decode a record's
// attribute values to and from their compact binary representation.
package feature

// ColumnType identifies the wire representation of a single column's
// values.
type ColumnType byte

const (
	ColumnTypeBool ColumnType = iota
	ColumnTypeByte
	ColumnTypeUByte
	ColumnTypeShort
	ColumnTypeUShort
	ColumnTypeInt
	ColumnTypeUInt
	ColumnTypeLong
	ColumnTypeULong
	ColumnTypeFloat
	ColumnTypeDouble
	ColumnTypeString
	ColumnTypeJSON
	ColumnTypeDateTime
	ColumnTypeBinary
)

var columnTypeNames = map[ColumnType]string{
	ColumnTypeBool:     "Bool",
	ColumnTypeByte:     "Byte",
	ColumnTypeUByte:    "UByte",
	ColumnTypeShort:    "Short",
	ColumnTypeUShort:   "UShort",
	ColumnTypeInt:      "Int",
	ColumnTypeUInt:     "UInt",
	ColumnTypeLong:     "Long",
	ColumnTypeULong:    "ULong",
	ColumnTypeFloat:    "Float",
	ColumnTypeDouble:   "Double",
	ColumnTypeString:   "String",
	ColumnTypeJSON:     "JSON",
	ColumnTypeDateTime: "DateTime",
	ColumnTypeBinary:   "Binary",
}

func (t ColumnType) String() string {
	if s, ok := columnTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// isFixedWidth reports whether values of t are a fixed number of
// bytes on the wire (true) or are length-prefixed (false).
func (t ColumnType) isFixedWidth() bool {
	switch t {
	case ColumnTypeString, ColumnTypeJSON, ColumnTypeDateTime, ColumnTypeBinary:
		return false
	default:
		return true
	}
}

// A Column describes one attribute: its name, wire type, and its
// fixed position (ColIndex) within a Schema. ColIndex is what is
// actually stored in an encoded record; Name is resolved by looking
// the index up in the Schema at decode time.
type Column struct {
	Name     string
	Type     ColumnType
	ColIndex uint16
}

// A Schema is the ordered list of columns that appear, at most once
// each, in a record's encoded attributes. Column order is
// insignificant; ColIndex is what encode/decode actually use.
type Schema []Column

// ColumnByIndex returns the column with the given index, or false if
// none matches.
func (s Schema) ColumnByIndex(i uint16) (Column, bool) {
	for _, c := range s {
		if c.ColIndex == i {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName returns the column with the given name, or false if
// none matches.
func (s Schema) ColumnByName(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
