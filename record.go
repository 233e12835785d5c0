// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"encoding/binary"
	"io"
	"math"
)

// A Record is one opaque, length-prefixed payload in the record
// section: a feature's geometry plus its encoded attributes, exactly
// as produced by the caller. This package does not interpret record
// contents beyond framing them; decoding a record's attributes is the
// feature package's job, given the Header's Columns schema.
type Record []byte

// writeRecord writes one record to w as a u32 LE size prefix followed
// by the payload, and returns the number of bytes written.
func writeRecord(w io.Writer, rec Record) (int64, error) {
	if int64(len(rec)) > math.MaxUint32 {
		return 0, fmtErr("record size %d overflows uint32", len(rec))
	}
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(rec)))
	n, err := w.Write(sizeBuf[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(rec)
	return int64(n + m), err
}

// readRecord reads one record previously written by writeRecord. It
// returns io.EOF, unwrapped, when r is exhausted exactly at a record
// boundary, so callers can use it as a natural loop terminator.
func readRecord(r io.Reader) (Record, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, wrapErr("truncated record size prefix", err)
		}
		return nil, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	rec := make(Record, size)
	if _, err := io.ReadFull(r, rec); err != nil {
		return nil, wrapErr("truncated record payload", err)
	}
	return rec, nil
}

// readRecordAt reads exactly one record starting at absolute byte
// offset off within ra, used by bbox/attribute-query record lookup
// where the search index has already produced the record's start
// offset directly.
func readRecordAt(ra io.ReaderAt, off int64) (Record, error) {
	var sizeBuf [4]byte
	if _, err := ra.ReadAt(sizeBuf[:], off); err != nil {
		return nil, wrapErr("reading record size prefix", err)
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	rec := make(Record, size)
	if _, err := ra.ReadAt(rec, off+4); err != nil {
		return nil, wrapErr("reading record payload", err)
	}
	return rec, nil
}
