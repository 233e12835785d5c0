// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/bertt/flatcitybuf/feature"
)

// Transform is the affine transform applied to quantized integer
// coordinates to recover world coordinates: world = quantized*Scale +
// Translate, component-wise over X, Y, Z.
type Transform struct {
	Scale     [3]float64
	Translate [3]float64
}

// GeographicalExtent is the optional bounding box of the dataset in
// world coordinates.
type GeographicalExtent struct {
	Min [3]float64
	Max [3]float64
}

// ReferenceSystem optionally names the coordinate reference system
// the dataset's coordinates are expressed in.
type ReferenceSystem struct {
	Authority  string
	Version    int32
	Code       int32
	CodeString string
}

// AttributeIndexDescriptor locates one attribute-index section within
// the attribute-index region of the file, and carries the few extra
// parameters a statictree.Tree needs to reconstruct its layout that
// aren't otherwise derivable from the column's declared type: the
// width of the fixed-width encoded key (set by whichever
// statictree.KeyEncoder the writer used for this column) and the
// true, unpadded number of entries (statictree pads the leaf level up
// to a multiple of NodeSize).
type AttributeIndexDescriptor struct {
	ColumnIndex uint16
	NodeSize    uint16
	ByteLength  uint64
	KeyWidth    uint16
	LeafCount   uint32

	// Partial reports whether this index deliberately omits features
	// that had no value for the column (AttributeIndexOption.AllowPartial
	// was set when it was built). When false, the index is complete: a
	// valueless feature was indexed under a null-sentinel key instead of
	// being left out.
	Partial bool
}

// PointOfContact holds optional descriptive contact metadata, mirrored
// field-for-field from the dataset's source CityJSON metadata.
type PointOfContact struct {
	ContactName            string
	ContactType            string
	Role                   string
	Phone                  string
	Email                  string
	Website                string
	AddressThoroughfareNumber string
	AddressThoroughfareName   string
	AddressLocality           string
	AddressPostcode           string
	AddressCountry            string
}

// Header is the container's self-describing metadata blob: everything
// a reader needs before it can interpret the index and record
// sections that follow it.
type Header struct {
	Version            string
	Transform          Transform
	FeaturesCount      uint64
	IndexNodeSize      uint16
	GeographicalExtent *GeographicalExtent
	ReferenceSystem    *ReferenceSystem
	Columns            feature.Schema
	AttributeIndices   []AttributeIndexDescriptor
	Identifier         string
	ReferenceDate      string
	Title              string
	PointOfContact     *PointOfContact

	// Checksum is an xxh3-64 digest of the record section exactly as
	// written (each record's size prefix and payload, in file order),
	// or 0 if WriterOptions.Checksum was false when the file was
	// written.
	Checksum uint64
}

// encodeHeader serializes h to its wire representation: a flat
// sequence of fields in a fixed order, with no per-field tags or type
// codes. There is no varint or schema evolution
// machinery here; the whole blob is read in one pass by a reader that
// knows this version's exact field layout, and the blob as a whole is
// length-prefixed by writeHeader/readHeader so a future, incompatible
// header layout can still be skipped by an old reader.
func encodeHeader(h *Header) []byte {
	var buf bytes.Buffer
	writeLenString(&buf, h.Version)
	for _, v := range h.Transform.Scale {
		writeFloat64(&buf, v)
	}
	for _, v := range h.Transform.Translate {
		writeFloat64(&buf, v)
	}
	writeUint64(&buf, h.FeaturesCount)
	writeUint16(&buf, h.IndexNodeSize)
	writeUint64(&buf, h.Checksum)

	writeBool(&buf, h.GeographicalExtent != nil)
	if h.GeographicalExtent != nil {
		for _, v := range h.GeographicalExtent.Min {
			writeFloat64(&buf, v)
		}
		for _, v := range h.GeographicalExtent.Max {
			writeFloat64(&buf, v)
		}
	}

	writeBool(&buf, h.ReferenceSystem != nil)
	if rs := h.ReferenceSystem; rs != nil {
		writeLenString(&buf, rs.Authority)
		writeUint32(&buf, uint32(rs.Version))
		writeUint32(&buf, uint32(rs.Code))
		writeLenString(&buf, rs.CodeString)
	}

	writeUint16(&buf, uint16(len(h.Columns)))
	for _, c := range h.Columns {
		writeUint16(&buf, c.ColIndex)
		writeLenString(&buf, c.Name)
		writeUint16(&buf, uint16(c.Type))
	}

	writeUint16(&buf, uint16(len(h.AttributeIndices)))
	for _, a := range h.AttributeIndices {
		writeUint16(&buf, a.ColumnIndex)
		writeUint16(&buf, a.NodeSize)
		writeUint64(&buf, a.ByteLength)
		writeUint16(&buf, a.KeyWidth)
		writeUint32(&buf, a.LeafCount)
		writeBool(&buf, a.Partial)
	}

	writeLenString(&buf, h.Identifier)
	writeLenString(&buf, h.ReferenceDate)
	writeLenString(&buf, h.Title)

	writeBool(&buf, h.PointOfContact != nil)
	if poc := h.PointOfContact; poc != nil {
		writeLenString(&buf, poc.ContactName)
		writeLenString(&buf, poc.ContactType)
		writeLenString(&buf, poc.Role)
		writeLenString(&buf, poc.Phone)
		writeLenString(&buf, poc.Email)
		writeLenString(&buf, poc.Website)
		writeLenString(&buf, poc.AddressThoroughfareNumber)
		writeLenString(&buf, poc.AddressThoroughfareName)
		writeLenString(&buf, poc.AddressLocality)
		writeLenString(&buf, poc.AddressPostcode)
		writeLenString(&buf, poc.AddressCountry)
	}

	return buf.Bytes()
}

func decodeHeader(data []byte) (*Header, error) {
	r := bytes.NewReader(data)
	h := &Header{}

	var err error
	if h.Version, err = readLenString(r); err != nil {
		return nil, wrapErr("reading version", err)
	}
	for i := range h.Transform.Scale {
		if h.Transform.Scale[i], err = readFloat64(r); err != nil {
			return nil, wrapErr("reading transform scale", err)
		}
	}
	for i := range h.Transform.Translate {
		if h.Transform.Translate[i], err = readFloat64(r); err != nil {
			return nil, wrapErr("reading transform translate", err)
		}
	}
	if h.FeaturesCount, err = readUint64(r); err != nil {
		return nil, wrapErr("reading features count", err)
	}
	if h.IndexNodeSize, err = readUint16(r); err != nil {
		return nil, wrapErr("reading index node size", err)
	}
	if h.Checksum, err = readUint64(r); err != nil {
		return nil, wrapErr("reading checksum", err)
	}

	hasExtent, err := readBool(r)
	if err != nil {
		return nil, wrapErr("reading geographical extent presence", err)
	}
	if hasExtent {
		ext := &GeographicalExtent{}
		for i := range ext.Min {
			if ext.Min[i], err = readFloat64(r); err != nil {
				return nil, wrapErr("reading geographical extent", err)
			}
		}
		for i := range ext.Max {
			if ext.Max[i], err = readFloat64(r); err != nil {
				return nil, wrapErr("reading geographical extent", err)
			}
		}
		h.GeographicalExtent = ext
	}

	hasRS, err := readBool(r)
	if err != nil {
		return nil, wrapErr("reading reference system presence", err)
	}
	if hasRS {
		rs := &ReferenceSystem{}
		if rs.Authority, err = readLenString(r); err != nil {
			return nil, wrapErr("reading reference system authority", err)
		}
		v, err := readUint32(r)
		if err != nil {
			return nil, wrapErr("reading reference system version", err)
		}
		rs.Version = int32(v)
		c, err := readUint32(r)
		if err != nil {
			return nil, wrapErr("reading reference system code", err)
		}
		rs.Code = int32(c)
		if rs.CodeString, err = readLenString(r); err != nil {
			return nil, wrapErr("reading reference system code string", err)
		}
		h.ReferenceSystem = rs
	}

	numCols, err := readUint16(r)
	if err != nil {
		return nil, wrapErr("reading column count", err)
	}
	h.Columns = make(feature.Schema, numCols)
	for i := range h.Columns {
		idx, err := readUint16(r)
		if err != nil {
			return nil, wrapErr("reading column index", err)
		}
		name, err := readLenString(r)
		if err != nil {
			return nil, wrapErr("reading column name", err)
		}
		t, err := readUint16(r)
		if err != nil {
			return nil, wrapErr("reading column type", err)
		}
		h.Columns[i] = feature.Column{Name: name, Type: feature.ColumnType(t), ColIndex: idx}
	}

	numIdx, err := readUint16(r)
	if err != nil {
		return nil, wrapErr("reading attribute index count", err)
	}
	h.AttributeIndices = make([]AttributeIndexDescriptor, numIdx)
	for i := range h.AttributeIndices {
		col, err := readUint16(r)
		if err != nil {
			return nil, wrapErr("reading attribute index column", err)
		}
		nodeSize, err := readUint16(r)
		if err != nil {
			return nil, wrapErr("reading attribute index node size", err)
		}
		byteLen, err := readUint64(r)
		if err != nil {
			return nil, wrapErr("reading attribute index byte length", err)
		}
		keyWidth, err := readUint16(r)
		if err != nil {
			return nil, wrapErr("reading attribute index key width", err)
		}
		leafCount, err := readUint32(r)
		if err != nil {
			return nil, wrapErr("reading attribute index leaf count", err)
		}
		partial, err := readBool(r)
		if err != nil {
			return nil, wrapErr("reading attribute index partial flag", err)
		}
		h.AttributeIndices[i] = AttributeIndexDescriptor{
			ColumnIndex: col, NodeSize: nodeSize, ByteLength: byteLen,
			KeyWidth: keyWidth, LeafCount: leafCount, Partial: partial,
		}
	}

	if h.Identifier, err = readLenString(r); err != nil {
		return nil, wrapErr("reading identifier", err)
	}
	if h.ReferenceDate, err = readLenString(r); err != nil {
		return nil, wrapErr("reading reference date", err)
	}
	if h.Title, err = readLenString(r); err != nil {
		return nil, wrapErr("reading title", err)
	}

	hasPoc, err := readBool(r)
	if err != nil {
		return nil, wrapErr("reading point of contact presence", err)
	}
	if hasPoc {
		poc := &PointOfContact{}
		fields := []*string{
			&poc.ContactName, &poc.ContactType, &poc.Role, &poc.Phone, &poc.Email,
			&poc.Website, &poc.AddressThoroughfareNumber, &poc.AddressThoroughfareName,
			&poc.AddressLocality, &poc.AddressPostcode, &poc.AddressCountry,
		}
		for _, f := range fields {
			if *f, err = readLenString(r); err != nil {
				return nil, wrapErr("reading point of contact field", err)
			}
		}
		h.PointOfContact = poc
	}

	return h, nil
}

// writeHeader writes h to w as a u32-LE-length-prefixed blob, so a
// reader can skip over a header it doesn't otherwise understand.
func writeHeader(w io.Writer, h *Header) (int, error) {
	body := encodeHeader(h)
	if int64(len(body)) > math.MaxUint32 {
		return 0, fmtErr("header size %d overflows uint32", len(body))
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	n, err := w.Write(lenBuf[:])
	if err != nil {
		return n, err
	}
	m, err := w.Write(body)
	return n + m, err
}

// readHeader reads a header written by writeHeader.
func readHeader(r io.Reader) (*Header, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, wrapErr("reading header size prefix", err)
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size > headerMaxLen {
		return nil, fmtErr("%w: %d exceeds maximum of %d", ErrBadHeaderSize, size, headerMaxLen)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, wrapErr("reading header body", err)
	}
	h, err := decodeHeader(body)
	if err != nil {
		return nil, wrapErr("decoding header", err)
	}
	return h, nil
}

func writeBool(w io.Writer, v bool) {
	if v {
		w.Write([]byte{1})
	} else {
		w.Write([]byte{0})
	}
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func writeUint16(w io.Writer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func writeUint32(w io.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeFloat64(w io.Writer, v float64) {
	writeUint64(w, math.Float64bits(v))
}

func readFloat64(r io.Reader) (float64, error) {
	v, err := readUint64(r)
	return math.Float64frombits(v), err
}

func writeLenString(w io.Writer, s string) {
	writeUint32(w, uint32(len(s)))
	io.WriteString(w, s)
}

func readLenString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
