// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/bertt/flatcitybuf/feature"
	"github.com/bertt/flatcitybuf/packedrtree"
	"github.com/bertt/flatcitybuf/statictree"
)

const (
	errHeaderNotCalled     = "must call Header() before writing features"
	errHeaderAlreadyCalled = "Header() has already been called"
	errWritePastClose      = "writer is closed"
)

// AttributeIndexOption requests that a static sorted index be built
// over one attribute column, with the given branching factor (the
// statictree package's B). By default the built index is complete: a
// feature with no value for this column is indexed under a reserved
// null-sentinel key (statictree.NullKey) that sorts after every real
// value of the column's type, so no record is silently omitted from
// the index. AllowPartial opts out of that guarantee, skipping
// valueless features and marking the resulting
// AttributeIndexDescriptor.Partial instead.
type AttributeIndexOption struct {
	ColumnIndex  uint16
	NodeSize     uint16
	AllowPartial bool
}

// WriterOptions configures the optional parts of a Writer: the
// descriptive header fields and which indices to build. IndexNodeSize
// of 0 means no spatial index is built.
type WriterOptions struct {
	Transform          Transform
	GeographicalExtent *GeographicalExtent
	ReferenceSystem    *ReferenceSystem
	Identifier         string
	ReferenceDate      string
	Title              string
	PointOfContact     *PointOfContact
	IndexNodeSize      uint16
	AttributeIndices   []AttributeIndexOption
	Columns            []ColumnSpec

	// Checksum requests an xxh3-64 digest of the record section be
	// computed and stored in the header, at the cost of one extra pass
	// over the spill file at Close.
	Checksum bool
}

// ColumnSpec names one attribute column that will appear in records
// added to the writer, fixing its wire ColIndex/type in the header.
// ColIndex is assigned by its position in WriterOptions.Columns.
type ColumnSpec struct {
	Name string
	Type feature.ColumnType
}

type featureOffset struct {
	offset int64
	size   int64
}

// Writer assembles a container file. Features are appended in
// arrival order to a temporary spill file; Close computes the
// dataset's extent, Hilbert-sorts the features, builds the requested
// indices over the sorted order, and writes the final magic, header,
// index sections and re-sorted record section to the underlying
// stream, in that order, matching §3's section-ordering invariant.
type Writer struct {
	stateful
	w       io.Writer
	opts    WriterOptions
	tmp     *os.File
	offsets []featureOffset
	refs    []packedrtree.Ref // Offset field holds the arrival index, remapped at Close
	attrKeys map[uint16][][]byte
}

// NewWriter creates a Writer that assembles its output to w, using a
// private temporary file to spill feature records until Close.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	if w == nil {
		textPanic("nil writer")
	}
	tmp, err := os.CreateTemp("", "flatcitybuf-writer-*")
	if err != nil {
		return nil, wrapErr("creating temporary spill file", err)
	}
	wr := &Writer{
		w:        w,
		opts:     opts,
		tmp:      tmp,
		attrKeys: make(map[uint16][][]byte),
	}
	wr.state = uninitialized
	return wr, nil
}

// AddFeature appends one feature's record to the writer. box is the
// feature's bounding box in world coordinates, used for the spatial
// index when one is requested; it is ignored otherwise. indexKeys
// supplies, for each column named in a requested AttributeIndexOption,
// the column value already encoded by a statictree.KeyEncoder; a
// column with a requested index but no entry here is treated as
// having no value for this feature, and is indexed under a
// null-sentinel key at Close unless that column's
// AttributeIndexOption.AllowPartial is set (see AttributeIndexOption).
func (w *Writer) AddFeature(box packedrtree.Box, rec Record, indexKeys map[uint16][]byte) error {
	if w.err != nil {
		return w.err
	}
	if w.state == uninitialized {
		w.state = beforeHeader
	}
	if w.state != beforeHeader && w.state != inData {
		return w.toErr(textErr(errWritePastClose))
	}
	w.state = inData

	arrivalIndex := int64(len(w.offsets))
	var prevEnd int64
	if n := len(w.offsets); n > 0 {
		prevEnd = w.offsets[n-1].offset + 4 + w.offsets[n-1].size
	}

	n, err := writeRecord(w.tmp, rec)
	if err != nil {
		return w.toErr(wrapErr("spilling feature record", err))
	}
	w.offsets = append(w.offsets, featureOffset{offset: prevEnd, size: n - 4})

	ref := packedrtree.Ref{Box: box, Offset: arrivalIndex}
	w.refs = append(w.refs, ref)

	for col, key := range indexKeys {
		for int64(len(w.attrKeys[col])) < arrivalIndex {
			w.attrKeys[col] = append(w.attrKeys[col], nil)
		}
		w.attrKeys[col] = append(w.attrKeys[col], key)
	}

	return nil
}

// Close finalizes the container: it builds the spatial and attribute
// indices over the Hilbert-sorted feature order, then writes magic,
// header, index sections, and the re-sorted record section to the
// underlying writer, and removes the temporary spill file.
func (w *Writer) Close() (err error) {
	defer func() {
		name := w.tmp.Name()
		w.tmp.Close()
		os.Remove(name)
	}()

	if w.err == ErrClosed {
		return ErrClosed
	}
	if w.err != nil {
		return w.err
	}

	refs := w.refs
	buildIndex := w.opts.IndexNodeSize > 0 && len(refs) > 0
	if buildIndex {
		extent := packedrtree.EmptyBox
		for i := range refs {
			extent.Expand(&refs[i].Box)
		}
		packedrtree.HilbertSort(refs, extent)
	}

	// arrivalOrder[i] is the arrival index of the feature that now sits
	// at sorted position i; captured before Ref.Offset is overwritten
	// below with the feature's post-sort byte offset.
	arrivalOrder := make([]int64, len(refs))
	var cursor int64
	for i := range refs {
		arrival := refs[i].Offset
		arrivalOrder[i] = arrival
		refs[i].Offset = cursor
		cursor += 4 + w.offsets[arrival].size
	}

	var checksum uint64
	if w.opts.Checksum {
		var err error
		checksum, err = w.computeChecksum(arrivalOrder)
		if err != nil {
			return w.toErr(wrapErr("computing checksum", err))
		}
	}

	var indexNodeSize uint16
	if buildIndex {
		indexNodeSize = w.opts.IndexNodeSize
	}

	header := &Header{
		Version:            "1.0.0",
		Checksum:           checksum,
		Transform:          w.opts.Transform,
		FeaturesCount:      uint64(len(refs)),
		IndexNodeSize:      indexNodeSize,
		GeographicalExtent: w.opts.GeographicalExtent,
		ReferenceSystem:    w.opts.ReferenceSystem,
		Identifier:         w.opts.Identifier,
		ReferenceDate:      w.opts.ReferenceDate,
		Title:              w.opts.Title,
		PointOfContact:     w.opts.PointOfContact,
	}
	for i, c := range w.opts.Columns {
		header.Columns = append(header.Columns, feature.Column{
			Name:     c.Name,
			Type:     c.Type,
			ColIndex: uint16(i),
		})
	}

	var attrSections [][]byte
	if len(w.opts.AttributeIndices) > 0 {
		// Build a permutation from arrival index to post-sort offset so
		// attribute index entries point at the final record offsets.
		postSortOffsetOf := make(map[int64]int64, len(refs))
		for i := range refs {
			postSortOffsetOf[arrivalOrder[i]] = refs[i].Offset
		}
		for _, opt := range w.opts.AttributeIndices {
			section, keyWidth, leafCount, partial, err := w.buildAttributeIndex(opt, postSortOffsetOf)
			if err != nil {
				return w.toErr(wrapErr("building attribute index", err))
			}
			attrSections = append(attrSections, section)
			header.AttributeIndices = append(header.AttributeIndices, AttributeIndexDescriptor{
				ColumnIndex: opt.ColumnIndex,
				NodeSize:    opt.NodeSize,
				ByteLength:  uint64(len(section)),
				KeyWidth:    uint16(keyWidth),
				LeafCount:   uint32(leafCount),
				Partial:     partial,
			})
		}
	}

	if _, err := w.w.Write(magic[:]); err != nil {
		return w.toErr(wrapErr("writing magic number", err))
	}
	if _, err := writeHeader(w.w, header); err != nil {
		return w.toErr(wrapErr("writing header", err))
	}
	if buildIndex {
		tree, err := packedrtree.New(refs, w.opts.IndexNodeSize)
		if err != nil {
			return w.toErr(wrapErr("building spatial index", err))
		}
		if _, err := tree.Marshal(w.w); err != nil {
			return w.toErr(wrapErr("writing spatial index", err))
		}
	}
	for _, section := range attrSections {
		if _, err := w.w.Write(section); err != nil {
			return w.toErr(wrapErr("writing attribute index", err))
		}
	}

	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return w.toErr(wrapErr("rewinding spill file", err))
	}
	if err := w.writeSortedRecords(arrivalOrder); err != nil {
		return w.toErr(err)
	}

	return w.close(w.w)
}

// buildAttributeIndex builds the static sorted index for one requested
// column. Unless opt.AllowPartial is set, every feature is represented
// in the index: one with no entry in indexKeys for this column is
// assigned the reserved null-sentinel key (statictree.NullKey), which
// sorts after every value a KeyEncoder can produce, rather than being
// left out of the index entirely.
func (w *Writer) buildAttributeIndex(opt AttributeIndexOption, postSortOffsetOf map[int64]int64) (data []byte, keyWidth, leafCount int, partial bool, err error) {
	keys := w.attrKeys[opt.ColumnIndex]

	for _, k := range keys {
		if k != nil {
			keyWidth = len(k)
			break
		}
	}
	if keyWidth == 0 {
		return nil, 0, 0, false, nil
	}

	type entry struct {
		key    []byte
		offset int64
	}
	entries := make([]entry, 0, len(postSortOffsetOf))
	for arrival := int64(0); int(arrival) < len(postSortOffsetOf); arrival++ {
		off, ok := postSortOffsetOf[arrival]
		if !ok {
			continue
		}
		var key []byte
		if int(arrival) < len(keys) {
			key = keys[arrival]
		}
		if key == nil {
			if opt.AllowPartial {
				continue
			}
			key = statictree.NullKey(keyWidth)
		}
		entries = append(entries, entry{key: key, offset: off})
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })

	if len(entries) == 0 {
		return nil, 0, 0, opt.AllowPartial, nil
	}
	b := statictree.NewBuilder(keyWidth, int(opt.NodeSize))
	for _, e := range entries {
		b.Push(e.key, e.offset)
	}
	data, leafCount, err = b.Build()
	if err != nil {
		return nil, 0, 0, false, err
	}
	partial = opt.AllowPartial && leafCount < len(postSortOffsetOf)
	return data, keyWidth, leafCount, partial, nil
}

// computeChecksum hashes the record section exactly as writeSortedRecords
// will later emit it, without writing anything, so the digest can be
// recorded in the header that precedes the record section in the file.
func (w *Writer) computeChecksum(arrivalOrder []int64) (uint64, error) {
	h := xxh3.New()
	for _, arrival := range arrivalOrder {
		off := w.offsets[arrival]
		if _, err := w.tmp.Seek(off.offset, io.SeekStart); err != nil {
			return 0, wrapErr("seeking spill file", err)
		}
		rec, err := readRecord(w.tmp)
		if err != nil {
			return 0, wrapErr("reading spilled feature", err)
		}
		if _, err := writeRecord(h, rec); err != nil {
			return 0, wrapErr("hashing feature record", err)
		}
	}
	return h.Sum64(), nil
}

func (w *Writer) writeSortedRecords(arrivalOrder []int64) error {
	for _, arrival := range arrivalOrder {
		off := w.offsets[arrival]
		if _, err := w.tmp.Seek(off.offset, io.SeekStart); err != nil {
			return wrapErr("seeking spill file", err)
		}
		rec, err := readRecord(w.tmp)
		if err != nil {
			return wrapErr("reading spilled feature", err)
		}
		if _, err := writeRecord(w.w, rec); err != nil {
			return wrapErr("writing feature record", err)
		}
	}
	return nil
}
