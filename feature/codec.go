// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package feature

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/goccy/go-json"
)

// Encode writes values, keyed by column name, to their compact binary
// attribute representation: a u16 column index followed by the
// column's fixed- or length-prefixed-width value, repeated for every
// non-null attribute present in values. Columns absent from values,
// or present with a nil value, are omitted entirely rather than
// written with a zero value, so a decoder must treat a missing index
// as "no value", not as zero.
//
// Every key in values must name a column in schema.
func Encode(values map[string]interface{}, schema Schema) ([]byte, error) {
	for name, v := range values {
		if v == nil {
			continue
		}
		if _, ok := schema.ColumnByName(name); !ok {
			return nil, fmtErr("%w: attribute %q", ErrSchemaMismatch, name)
		}
	}

	var buf bytes.Buffer
	for _, col := range schema {
		v, ok := values[col.Name]
		if !ok || v == nil {
			continue
		}
		if err := writeTag(&buf, col.ColIndex); err != nil {
			return nil, err
		}
		if err := writeValue(&buf, col.Type, v); err != nil {
			return nil, wrapErr("encoding column "+col.Name, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode reads a record's encoded attributes and returns them keyed
// by column name, resolving each stored column index against schema.
func Decode(data []byte, schema Schema) (map[string]interface{}, error) {
	r := bytes.NewReader(data)
	values := make(map[string]interface{})
	for {
		idx, err := readTag(r)
		if err == io.EOF {
			return values, nil
		} else if err != nil {
			return nil, wrapErr("reading column index", err)
		}
		col, ok := schema.ColumnByIndex(idx)
		if !ok {
			return nil, fmtErr("%w: index %d", ErrUnknownColumn, idx)
		}
		v, err := readValue(r, col.Type)
		if err != nil {
			return nil, wrapErr("decoding column "+col.Name, err)
		}
		values[col.Name] = v
	}
}

func writeTag(w io.Writer, colIndex uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], colIndex)
	_, err := w.Write(b[:])
	return err
}

func readTag(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func writeValue(w io.Writer, t ColumnType, v interface{}) error {
	switch t {
	case ColumnTypeBool:
		b, ok := v.(bool)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUByte(w, boolByte(b))
	case ColumnTypeByte:
		i, ok := toInt64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUByte(w, byte(int8(i)))
	case ColumnTypeUByte:
		i, ok := toUint64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUByte(w, byte(i))
	case ColumnTypeShort:
		i, ok := toInt64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUint16(w, uint16(int16(i)))
	case ColumnTypeUShort:
		i, ok := toUint64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUint16(w, uint16(i))
	case ColumnTypeInt:
		i, ok := toInt64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUint32(w, uint32(int32(i)))
	case ColumnTypeUInt:
		i, ok := toUint64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUint32(w, uint32(i))
	case ColumnTypeLong:
		i, ok := toInt64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUint64(w, uint64(i))
	case ColumnTypeULong:
		i, ok := toUint64(v)
		if !ok {
			return ErrTypeMismatch
		}
		return writeUint64(w, i)
	case ColumnTypeFloat:
		f, ok := toFloat64v(v)
		if !ok {
			return ErrTypeMismatch
		}
		b := make([]byte, flatbuffers.SizeFloat32)
		flatbuffers.WriteFloat32(b, float32(f))
		_, err := w.Write(b)
		return err
	case ColumnTypeDouble:
		f, ok := toFloat64v(v)
		if !ok {
			return ErrTypeMismatch
		}
		b := make([]byte, flatbuffers.SizeFloat64)
		flatbuffers.WriteFloat64(b, f)
		_, err := w.Write(b)
		return err
	case ColumnTypeString, ColumnTypeDateTime:
		s, ok := v.(string)
		if !ok {
			return ErrTypeMismatch
		}
		return writeBinary(w, []byte(s))
	case ColumnTypeJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return wrapErr("marshaling JSON attribute", err)
		}
		return writeBinary(w, b)
	case ColumnTypeBinary:
		b, ok := v.([]byte)
		if !ok {
			return ErrTypeMismatch
		}
		return writeBinary(w, b)
	default:
		return ErrUnsupportedType
	}
}

func readValue(r io.Reader, t ColumnType) (interface{}, error) {
	switch t {
	case ColumnTypeBool:
		b, err := readUByte(r)
		return b != 0, err
	case ColumnTypeByte:
		b, err := readUByte(r)
		return int64(int8(b)), err
	case ColumnTypeUByte:
		b, err := readUByte(r)
		return uint64(b), err
	case ColumnTypeShort:
		v, err := readUint16(r)
		return int64(int16(v)), err
	case ColumnTypeUShort:
		v, err := readUint16(r)
		return uint64(v), err
	case ColumnTypeInt:
		v, err := readUint32(r)
		return int64(int32(v)), err
	case ColumnTypeUInt:
		v, err := readUint32(r)
		return uint64(v), err
	case ColumnTypeLong:
		v, err := readUint64(r)
		return int64(v), err
	case ColumnTypeULong:
		v, err := readUint64(r)
		return v, err
	case ColumnTypeFloat:
		b := make([]byte, flatbuffers.SizeFloat32)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		return float64(flatbuffers.GetFloat32(b)), nil
	case ColumnTypeDouble:
		b := make([]byte, flatbuffers.SizeFloat64)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		return flatbuffers.GetFloat64(b), nil
	case ColumnTypeString, ColumnTypeDateTime:
		b, err := readBinary(r)
		return string(b), err
	case ColumnTypeJSON:
		b, err := readBinary(r)
		if err != nil {
			return nil, err
		}
		var v interface{}
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, wrapErr("unmarshaling JSON attribute", err)
		}
		return v, nil
	case ColumnTypeBinary:
		return readBinary(r)
	default:
		return nil, ErrUnsupportedType
	}
}

func writeUByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readUByte(r io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeBinary(w io.Writer, v []byte) error {
	if int64(len(v)) > math.MaxUint32 {
		return fmtErr("attribute length %d overflows uint32", len(v))
	}
	if err := writeUint32(w, uint32(len(v))); err != nil {
		return err
	}
	_, err := w.Write(v)
	return err
}

func readBinary(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	case float64:
		return uint64(n), true
	default:
		return 0, false
	}
}

func toFloat64v(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
