// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package statictree

import (
	"bytes"
	"context"
	"sort"

	"github.com/bertt/flatcitybuf/rangefetch"
)

// entrySource abstracts reading a single Entry by its global,
// root-first index, so that Tree's descent logic works identically
// whether the index is fully resident in memory or is being read
// range-by-range from a rangefetch.Source.
type entrySource interface {
	entryAt(ctx context.Context, i int) (Entry, error)
}

type memSource struct {
	data     []byte
	keyWidth int
}

func (m memSource) entryAt(_ context.Context, i int) (Entry, error) {
	w := entryWidth(m.keyWidth)
	return getEntry(m.data[i*w:], m.keyWidth), nil
}

type rangeSource struct {
	src        rangefetch.Source
	baseOffset int64
	keyWidth   int
}

func (r rangeSource) entryAt(ctx context.Context, i int) (Entry, error) {
	w := entryWidth(r.keyWidth)
	buf, err := r.src.ReadRange(ctx, r.baseOffset+int64(i*w), w)
	if err != nil {
		return Entry{}, wrapErr("reading static index entry", err)
	}
	return getEntry(buf, r.keyWidth), nil
}

// Tree is a static, sorted index over a single attribute, supporting
// lower_bound/upper_bound style queries and the six comparisons in
// Comparison. A Tree is immutable once built; see Builder.
type Tree struct {
	keyWidth  int
	branching int
	leafCount int // true, unpadded count of original entries
	ls        []level
	src       entrySource
}

// Open reconstructs a Tree over data produced by Builder.Build held
// entirely in memory. keyWidth and branching must match the values
// used to build the index, and leafCount must be the true (unpadded)
// entry count returned by Build.
func Open(data []byte, keyWidth, branching, leafCount int) (*Tree, error) {
	if leafCount < 1 {
		return nil, ErrEmptyTree
	}
	if branching < 2 {
		return nil, ErrInvalidNodeSize
	}
	ls := levels(ascendingCounts(leafCount, branching))
	return &Tree{
		keyWidth:  keyWidth,
		branching: branching,
		leafCount: leafCount,
		ls:        ls,
		src:       memSource{data: data, keyWidth: keyWidth},
	}, nil
}

// OpenRange reconstructs a Tree over a serialized index section that
// lives at baseOffset within src, without reading the whole section
// into memory. Each query reads only the entries it visits during
// descent.
func OpenRange(src rangefetch.Source, baseOffset int64, keyWidth, branching, leafCount int) (*Tree, error) {
	if leafCount < 1 {
		return nil, ErrEmptyTree
	}
	if branching < 2 {
		return nil, ErrInvalidNodeSize
	}
	ls := levels(ascendingCounts(leafCount, branching))
	return &Tree{
		keyWidth:  keyWidth,
		branching: branching,
		leafCount: leafCount,
		ls:        ls,
		src:       rangeSource{src: src, baseOffset: baseOffset, keyWidth: keyWidth},
	}, nil
}

// Comparison identifies one of the six supported query predicates.
type Comparison int

const (
	Eq Comparison = iota
	Ne
	Gt
	Ge
	Lt
	Le
)

// Query evaluates cmp against key and returns the matching record
// offsets. The order of returned offsets is not defined.
func (t *Tree) Query(ctx context.Context, cmp Comparison, key []byte) ([]int64, error) {
	switch cmp {
	case Eq:
		lo, err := t.lowerBound(ctx, key)
		if err != nil {
			return nil, err
		}
		hi, err := t.upperBound(ctx, key)
		if err != nil {
			return nil, err
		}
		return t.offsetsInRange(ctx, lo, hi)
	case Ge:
		lo, err := t.lowerBound(ctx, key)
		if err != nil {
			return nil, err
		}
		return t.offsetsInRange(ctx, lo, t.leafCount)
	case Gt:
		hi, err := t.upperBound(ctx, key)
		if err != nil {
			return nil, err
		}
		return t.offsetsInRange(ctx, hi, t.leafCount)
	case Le:
		hi, err := t.upperBound(ctx, key)
		if err != nil {
			return nil, err
		}
		return t.offsetsInRange(ctx, 0, hi)
	case Lt:
		lo, err := t.lowerBound(ctx, key)
		if err != nil {
			return nil, err
		}
		return t.offsetsInRange(ctx, 0, lo)
	case Ne:
		lo, err := t.lowerBound(ctx, key)
		if err != nil {
			return nil, err
		}
		hi, err := t.upperBound(ctx, key)
		if err != nil {
			return nil, err
		}
		below, err := t.offsetsInRange(ctx, 0, lo)
		if err != nil {
			return nil, err
		}
		above, err := t.offsetsInRange(ctx, hi, t.leafCount)
		if err != nil {
			return nil, err
		}
		return append(below, above...), nil
	default:
		return nil, fmtErr("unsupported comparison %d", cmp)
	}
}

// offsetsInRange returns the offsets of leaf entries at leaf-relative
// indices [start, end).
func (t *Tree) offsetsInRange(ctx context.Context, start, end int) ([]int64, error) {
	if start >= end {
		return nil, nil
	}
	leaf := t.ls[len(t.ls)-1]
	offsets := make([]int64, 0, end-start)
	for i := start; i < end; i++ {
		e, err := t.src.entryAt(ctx, leaf.globalStart+i)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, e.Offset)
	}
	return offsets, nil
}

// lowerBound returns the leaf-relative index of the first entry whose
// key is >= target, or t.leafCount if there is none.
func (t *Tree) lowerBound(ctx context.Context, target []byte) (int, error) {
	return t.descend(ctx, target, false)
}

// upperBound returns the leaf-relative index of the first entry whose
// key is > target, or t.leafCount if there is none.
func (t *Tree) upperBound(ctx context.Context, target []byte) (int, error) {
	return t.descend(ctx, target, true)
}

func (t *Tree) descend(ctx context.Context, target []byte, strictlyGreater bool) (int, error) {
	blockStart := t.ls[0].globalStart
	blockLen := t.ls[0].count
	lvl := 0
	for {
		pos, found, err := t.searchBlock(ctx, blockStart, blockLen, target, strictlyGreater)
		if err != nil {
			return 0, err
		}
		if lvl == len(t.ls)-1 {
			leaf := t.ls[lvl]
			if !found {
				pos = blockStart + blockLen
			}
			idx := pos - leaf.globalStart
			if idx > t.leafCount {
				idx = t.leafCount
			}
			return idx, nil
		}
		var child int64
		if found {
			// Each internal key is the first key of its child block, so
			// earlier matches can sit in the preceding child.
			if pos > blockStart {
				pos--
			}
			e, err := t.src.entryAt(ctx, pos)
			if err != nil {
				return 0, err
			}
			child = e.Offset
		} else {
			e, err := t.src.entryAt(ctx, blockStart+blockLen-1)
			if err != nil {
				return 0, err
			}
			child = e.Offset
		}
		lvl++
		blockStart = int(child)
		remaining := t.ls[lvl].globalStart + t.ls[lvl].count - blockStart
		blockLen = t.branching
		if remaining < blockLen {
			blockLen = remaining
		}
	}
}

// searchBlock performs a binary search over the sorted block of
// entries [blockStart, blockStart+blockLen) for the first entry
// satisfying the comparison selected by strictlyGreater, returning
// its global index and whether one was found.
func (t *Tree) searchBlock(ctx context.Context, blockStart, blockLen int, target []byte, strictlyGreater bool) (int, bool, error) {
	var searchErr error
	n := sort.Search(blockLen, func(i int) bool {
		e, err := t.src.entryAt(ctx, blockStart+i)
		if err != nil {
			searchErr = err
			return true
		}
		cmp := bytes.Compare(e.Key, target)
		if strictlyGreater {
			return cmp > 0
		}
		return cmp >= 0
	})
	if searchErr != nil {
		return 0, false, searchErr
	}
	if n == blockLen {
		return 0, false, nil
	}
	return blockStart + n, true, nil
}
