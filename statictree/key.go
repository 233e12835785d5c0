// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package statictree

import (
	"encoding/binary"
	"math"
)

// KeyEncoder turns a Go value into a fixed-width key whose plain
// byte-wise ordering (bytes.Compare) matches the value's natural
// ordering. Every Tree is built over a single KeyEncoder, so all of
// its keys have the same width.
type KeyEncoder interface {
	// Width is the fixed number of bytes every encoded key occupies.
	Width() int
	// Encode appends the encoded form of v to dst and returns the
	// result.
	Encode(dst []byte, v interface{}) []byte
}

// IntEncoder encodes signed integers of the given byte width (1, 2,
// 4, or 8) by flipping the sign bit, which maps the signed range onto
// an unsigned range with the same ordering.
type IntEncoder struct{ width int }

// NewIntEncoder returns a KeyEncoder for signed integers encoded in
// width bytes.
func NewIntEncoder(width int) IntEncoder { return IntEncoder{width: width} }

func (e IntEncoder) Width() int { return e.width }

func (e IntEncoder) Encode(dst []byte, v interface{}) []byte {
	u := uint64(toInt64(v)) ^ (uint64(1) << (8*uint(e.width) - 1))
	return appendUint(dst, u, e.width)
}

// UintEncoder encodes unsigned integers of the given byte width (1,
// 2, 4, or 8) directly; big-endian unsigned encoding is already
// order-preserving.
type UintEncoder struct{ width int }

// NewUintEncoder returns a KeyEncoder for unsigned integers encoded in
// width bytes.
func NewUintEncoder(width int) UintEncoder { return UintEncoder{width: width} }

func (e UintEncoder) Width() int { return e.width }

func (e UintEncoder) Encode(dst []byte, v interface{}) []byte {
	return appendUint(dst, toUint64(v), e.width)
}

// Float32Encoder encodes float32 values into a 4-byte, order
// preserving key. NaN values sort after every other value, including
// +Inf.
type Float32Encoder struct{}

func (Float32Encoder) Width() int { return 4 }

func (Float32Encoder) Encode(dst []byte, v interface{}) []byte {
	f := toFloat64(v)
	if math.IsNaN(f) {
		return appendUint(dst, math.MaxUint32, 4)
	}
	bits := math.Float32bits(float32(f))
	return appendUint(dst, uint64(monotoneFloatBits32(bits)), 4)
}

// Float64Encoder encodes float64 values into an 8-byte, order
// preserving key. NaN values sort after every other value, including
// +Inf.
type Float64Encoder struct{}

func (Float64Encoder) Width() int { return 8 }

func (Float64Encoder) Encode(dst []byte, v interface{}) []byte {
	f := toFloat64(v)
	if math.IsNaN(f) {
		return appendUint(dst, math.MaxUint64, 8)
	}
	bits := math.Float64bits(f)
	return appendUint(dst, monotoneFloatBits64(bits), 8)
}

// monotoneFloatBits32 transforms the IEEE-754 bit pattern of a
// non-NaN float32 so that unsigned comparison of the result matches
// floating point comparison of the original value: if the sign bit is
// set (negative), flip every bit; otherwise just flip the sign bit.
func monotoneFloatBits32(bits uint32) uint32 {
	if bits&(1<<31) != 0 {
		return ^bits
	}
	return bits | (1 << 31)
}

// monotoneFloatBits64 is the float64 analogue of monotoneFloatBits32.
func monotoneFloatBits64(bits uint64) uint64 {
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// StringEncoder encodes strings as a fixed-length prefix, truncating
// longer strings and zero-padding shorter ones. Byte-wise comparison
// of the encoded prefix matches lexicographic comparison of the
// original strings up to the configured prefix length; ties beyond
// that length are not distinguished and queries against such keys may
// return false positives that the caller must re-check against the
// full value.
type StringEncoder struct{ prefixLen int }

// NewStringEncoder returns a KeyEncoder truncating/padding strings to
// prefixLen bytes.
func NewStringEncoder(prefixLen int) StringEncoder { return StringEncoder{prefixLen: prefixLen} }

func (e StringEncoder) Width() int { return e.prefixLen }

func (e StringEncoder) Encode(dst []byte, v interface{}) []byte {
	s, _ := v.(string)
	start := len(dst)
	for i := 0; i < e.prefixLen; i++ {
		dst = append(dst, 0)
	}
	n := copy(dst[start:], s)
	_ = n
	return dst
}

// NullKey returns the reserved null-sentinel key for a fixed key width
// of width bytes: all bits set, which sorts after every value any
// KeyEncoder in this file produces. Float32Encoder/Float64Encoder
// already reserve this exact bit pattern exclusively for NaN;
// IntEncoder/UintEncoder share it with that column's maximum
// representable value, so a column whose legitimate maximum must stay
// distinguishable from "missing" should be indexed with
// AttributeIndexOption.AllowPartial instead of relying on this
// sentinel.
func NullKey(width int) []byte {
	k := make([]byte, width)
	for i := range k {
		k[i] = 0xFF
	}
	return k
}

func appendUint(dst []byte, u uint64, width int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	return append(dst, buf[8-width:]...)
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	default:
		return 0
	}
}

func toUint64(v interface{}) uint64 {
	switch x := v.(type) {
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}
