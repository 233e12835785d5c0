// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"bytes"
	"context"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/bertt/flatcitybuf/littleendian"
	"github.com/bertt/flatcitybuf/packedrtree"
	"github.com/bertt/flatcitybuf/rangefetch"
	"github.com/bertt/flatcitybuf/statictree"
)

// VisitFunc is called once per record visited by DataVisit/
// DataSearchVisit. Returning a non-nil error stops the visit early
// and that error is returned from the Visit call; io.EOF is not
// treated specially, it is simply propagated.
type VisitFunc func(rec Record) error

// Reader reads a container file laid out by Writer: magic, header,
// optional spatial index, optional attribute indices, record section,
// in that order. A Reader advances through these sections lazily, one
// at a time, and caches the header and any index section it has read.
type Reader struct {
	stateful
	ra     io.ReaderAt
	src    rangefetch.Source
	header *Header
	index  *packedrtree.PackedRTree

	headerBodyLen        int   // byte length of the encoded header body, excluding its length prefix
	recordSectionOffset  int64 // set once the header (and any index) has been read
}

// NewReader creates a Reader over ra, a source supporting random
// access (a local file, or any rangefetch.Source wrapped to implement
// io.ReaderAt is not required — see NewRangeReader for the
// range-fetch-only entry point used with rangefetch.HTTP).
func NewReader(ra io.ReaderAt) *Reader {
	if ra == nil {
		textPanic("nil reader")
	}
	r := &Reader{ra: ra, src: rangefetch.NewFile(ra, -1)}
	r.state = beforeMagic
	return r
}

// NewRangeReader creates a Reader that performs all reads through a
// rangefetch.Source, used for the HTTP backend where io.ReaderAt is
// not naturally available.
func NewRangeReader(src rangefetch.Source) *Reader {
	if src == nil {
		textPanic("nil source")
	}
	r := &Reader{src: src}
	r.state = beforeMagic
	return r
}

func (r *Reader) readAt(ctx context.Context, off int64, n int) ([]byte, error) {
	if r.ra != nil {
		buf := make([]byte, n)
		if _, err := r.ra.ReadAt(buf, off); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return r.src.ReadRange(ctx, off, n)
}

// Header returns the container's header, reading and caching it on
// first call.
func (r *Reader) Header(ctx context.Context) (*Header, error) {
	if r.header != nil {
		return r.header, nil
	}
	if r.err != nil {
		return nil, r.err
	}

	if _, err := r.Magic(ctx); err != nil {
		return nil, err
	}

	// Read the header's u32 length prefix first, then its body,
	// mirroring writeHeader's framing.
	lenBuf, err := r.readAt(ctx, magicLen, 4)
	if err != nil {
		return nil, r.toErr(wrapErr("reading header size prefix", err))
	}
	size := littleendian.Uint32(lenBuf)
	if size > headerMaxLen {
		return nil, r.toErr(fmtErr("%w: %d exceeds maximum of %d", ErrBadHeaderSize, size, headerMaxLen))
	}
	body, err := r.readAt(ctx, magicLen+4, int(size))
	if err != nil {
		return nil, r.toErr(wrapErr("reading header body", err))
	}
	h, err := decodeHeader(body)
	if err != nil {
		return nil, r.toErr(wrapErr("decoding header", err))
	}
	r.header = h
	r.headerBodyLen = int(size)
	r.recordSectionOffset = magicLen + 4 + int64(size)
	if h.IndexNodeSize > 0 && h.FeaturesCount > 0 {
		n, err := packedrtree.Size(int(h.FeaturesCount), h.IndexNodeSize)
		if err != nil {
			return nil, r.toErr(wrapErr("computing spatial index size", err))
		}
		r.recordSectionOffset += n
	}
	for _, a := range h.AttributeIndices {
		r.recordSectionOffset += int64(a.ByteLength)
	}
	r.state = afterHeader
	return r.header, nil
}

// Magic reads and validates the container's magic number, without
// reading the header. Most callers should use Header instead, which
// calls this internally; Magic is exposed for callers who only want
// to sniff whether a stream looks like a container of this format.
func (r *Reader) Magic(ctx context.Context) (uint8, error) {
	buf, err := r.readAt(ctx, 0, magicLen)
	if err != nil {
		return 0, r.toErr(wrapErr("reading magic number", err))
	}
	version, err := Magic(bytes.NewReader(buf))
	if err != nil {
		return 0, r.toErr(err)
	}
	if r.state == beforeMagic {
		r.state = beforeHeader
	}
	return version, nil
}

// spatialIndexOffset returns the absolute byte offset of the spatial
// index section, immediately following the header. The caller must
// have already read the header (e.g. via Header).
func (r *Reader) spatialIndexOffset() int64 {
	return magicLen + 4 + int64(r.headerBodyLen)
}

// attributeIndexOffset returns the absolute byte offset of the
// attribute index section belonging to columnIndex, or ErrNoIndex if
// h declares no such section. The caller must have already read the
// header (e.g. via Header).
func (r *Reader) attributeIndexOffset(h *Header, columnIndex uint16) (int64, AttributeIndexDescriptor, error) {
	offset := r.spatialIndexOffset()
	if h.IndexNodeSize > 0 && h.FeaturesCount > 0 {
		n, err := packedrtree.Size(int(h.FeaturesCount), h.IndexNodeSize)
		if err != nil {
			return 0, AttributeIndexDescriptor{}, wrapErr("computing spatial index size", err)
		}
		offset += n
	}
	for _, a := range h.AttributeIndices {
		if a.ColumnIndex == columnIndex {
			return offset, a, nil
		}
		offset += int64(a.ByteLength)
	}
	return 0, AttributeIndexDescriptor{}, fmtErr("%w: column %d", ErrNoIndex, columnIndex)
}

// Index returns the spatial index, reading and caching it on first
// call. It returns ErrNoIndex if the header declares no spatial
// index. Index fetches the whole index section in one call; callers
// doing a bounding-box search over a large, possibly remote, index
// should use DataSearchVisit/DataSearch instead, which stream only the
// node ranges the search actually visits.
func (r *Reader) Index(ctx context.Context) (*packedrtree.PackedRTree, error) {
	h, err := r.Header(ctx)
	if err != nil {
		return nil, err
	}
	if h.IndexNodeSize == 0 || h.FeaturesCount == 0 {
		return nil, ErrNoIndex
	}
	if r.index != nil {
		return r.index, nil
	}
	n, err := packedrtree.Size(int(h.FeaturesCount), h.IndexNodeSize)
	if err != nil {
		return nil, wrapErr("computing spatial index size", err)
	}
	buf, err := r.readAt(ctx, r.spatialIndexOffset(), int(n))
	if err != nil {
		return nil, wrapErr("reading spatial index", err)
	}
	idx, err := packedrtree.Unmarshal(bytes.NewReader(buf), int(h.FeaturesCount), h.IndexNodeSize)
	if err != nil {
		return nil, wrapErr("unmarshaling spatial index", err)
	}
	r.index = idx
	return r.index, nil
}

// AttributeIndex opens the static attribute index built over the
// named column, reading its section lazily, one entry at a time, via
// the Reader's underlying source.
func (r *Reader) AttributeIndex(ctx context.Context, columnIndex uint16) (*statictree.Tree, error) {
	h, err := r.Header(ctx)
	if err != nil {
		return nil, err
	}
	offset, a, err := r.attributeIndexOffset(h, columnIndex)
	if err != nil {
		return nil, err
	}
	return statictree.OpenRange(r.source(), offset, int(a.KeyWidth), int(a.NodeSize), int(a.LeafCount))
}

func (r *Reader) source() rangefetch.Source {
	if r.src != nil {
		return r.src
	}
	return rangefetch.NewFile(r.ra, -1)
}

// VerifyChecksum recomputes the xxh3-64 digest of the record section
// and compares it against the value stored in the header, returning
// ErrChecksumMismatch if they differ. It returns ErrNoChecksum if the
// header carries no checksum (Header.Checksum is 0).
func (r *Reader) VerifyChecksum(ctx context.Context) error {
	h, err := r.Header(ctx)
	if err != nil {
		return err
	}
	if h.Checksum == 0 {
		return ErrNoChecksum
	}
	hasher := xxh3.New()
	off := r.recordSectionOffset
	for i := uint64(0); i < h.FeaturesCount; i++ {
		sizeBuf, err := r.readAt(ctx, off, 4)
		if err != nil {
			return wrapErr("reading record size prefix", err)
		}
		size := littleendian.Uint32(sizeBuf)
		body, err := r.readAt(ctx, off+4, int(size))
		if err != nil {
			return wrapErr("reading record payload", err)
		}
		if _, err := writeRecord(hasher, Record(body)); err != nil {
			return wrapErr("hashing record", err)
		}
		off += 4 + int64(size)
	}
	if sum := hasher.Sum64(); sum != h.Checksum {
		return fmtErr("%w: have %016x, want %016x", ErrChecksumMismatch, sum, h.Checksum)
	}
	return nil
}

// DataVisit reads every record in file order (the post-sort order Writer
// wrote them in, which is Hilbert order when a spatial index was
// built), calling v for each.
func (r *Reader) DataVisit(ctx context.Context, v VisitFunc) error {
	h, err := r.Header(ctx)
	if err != nil {
		return err
	}
	off := r.recordSectionOffset
	for i := uint64(0); i < h.FeaturesCount; i++ {
		sizeBuf, err := r.readAt(ctx, off, 4)
		if err != nil {
			return wrapErr("reading record size prefix", err)
		}
		size := littleendian.Uint32(sizeBuf)
		body, err := r.readAt(ctx, off+4, int(size))
		if err != nil {
			return wrapErr("reading record payload", err)
		}
		if err := v(Record(body)); err != nil {
			return err
		}
		off += 4 + int64(size)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Data reads every record into memory and returns them in file order.
func (r *Reader) Data(ctx context.Context) ([]Record, error) {
	var out []Record
	err := r.DataVisit(ctx, func(rec Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// DataSearchVisit visits every record whose bounding box intersects
// box, using the spatial index. It returns ErrNoIndex if the header
// declares no spatial index. The index is searched directly through
// the Reader's rangefetch.Source, fetching only the node ranges the
// search descends into, so a selective query over an HTTP-backed
// Reader does not download the whole index.
func (r *Reader) DataSearchVisit(ctx context.Context, box packedrtree.Box, v VisitFunc) error {
	h, err := r.Header(ctx)
	if err != nil {
		return err
	}
	if h.IndexNodeSize == 0 || h.FeaturesCount == 0 {
		return ErrNoIndex
	}
	results, err := packedrtree.SearchRange(ctx, r.source(), r.spatialIndexOffset(), int(h.FeaturesCount), h.IndexNodeSize, box)
	if err != nil {
		return wrapErr("searching spatial index", err)
	}
	for _, res := range results {
		off := r.recordSectionOffset + res.Offset
		sizeBuf, err := r.readAt(ctx, off, 4)
		if err != nil {
			return wrapErr("reading record size prefix", err)
		}
		size := littleendian.Uint32(sizeBuf)
		body, err := r.readAt(ctx, off+4, int(size))
		if err != nil {
			return wrapErr("reading record payload", err)
		}
		if err := v(Record(body)); err != nil {
			return err
		}
	}
	return nil
}

// DataSearch reads every record intersecting box into memory.
func (r *Reader) DataSearch(ctx context.Context, box packedrtree.Box) ([]Record, error) {
	var out []Record
	err := r.DataSearchVisit(ctx, box, func(rec Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// DataQueryVisit visits every record matching a single attribute
// predicate, using the named column's static index.
func (r *Reader) DataQueryVisit(ctx context.Context, columnIndex uint16, cmp statictree.Comparison, key []byte, v VisitFunc) error {
	tree, err := r.AttributeIndex(ctx, columnIndex)
	if err != nil {
		return err
	}
	offsets, err := tree.Query(ctx, cmp, key)
	if err != nil {
		return wrapErr("querying attribute index", err)
	}
	for _, off := range offsets {
		absolute := r.recordSectionOffset + off
		sizeBuf, err := r.readAt(ctx, absolute, 4)
		if err != nil {
			return wrapErr("reading record size prefix", err)
		}
		size := littleendian.Uint32(sizeBuf)
		body, err := r.readAt(ctx, absolute+4, int(size))
		if err != nil {
			return wrapErr("reading record payload", err)
		}
		if err := v(Record(body)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the Reader's resources. Close is idempotent.
func (r *Reader) Close() error {
	return r.close(r.ra)
}

