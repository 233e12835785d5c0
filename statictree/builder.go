// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package statictree

import "bytes"

// A Builder accumulates (key, offset) pairs, already sorted by key,
// and produces the serialized, level-packed static index.
type Builder struct {
	keyWidth  int
	branching int
	entries   []Entry
}

// NewBuilder creates a Builder for keys of keyWidth bytes and the
// given branching factor (fan-out). Entries must be pushed to the
// Builder in non-decreasing key order.
func NewBuilder(keyWidth, branching int) *Builder {
	return &Builder{keyWidth: keyWidth, branching: branching}
}

// Push appends a (key, offset) pair. key must be exactly keyWidth
// bytes, as produced by a KeyEncoder.
func (b *Builder) Push(key []byte, offset int64) {
	b.entries = append(b.entries, Entry{Key: key, Offset: offset})
}

// Len returns the number of entries pushed so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Build validates that the pushed entries are sorted and serializes
// the level-packed index, returning the raw bytes and the true (i.e.
// unpadded) leaf entry count, which callers must record alongside
// Build's keyWidth/branching in order to later reconstruct a Tree.
func (b *Builder) Build() ([]byte, int, error) {
	if len(b.entries) == 0 {
		return nil, 0, ErrEmptyTree
	}
	if b.branching < 2 {
		return nil, 0, ErrInvalidNodeSize
	}
	for i := 1; i < len(b.entries); i++ {
		if bytes.Compare(b.entries[i-1].Key, b.entries[i].Key) > 0 {
			return nil, 0, ErrUnsortedInput
		}
	}

	leafCount := len(b.entries)
	ascending := ascendingCounts(leafCount, b.branching)
	ls := levels(ascending)
	width := entryWidth(b.keyWidth)
	total := 0
	for _, l := range ls {
		total += l.count
	}
	buf := make([]byte, total*width)

	// Leaf level is the last in storage order; pad by repeating the
	// last real entry.
	leafLevel := ls[len(ls)-1]
	last := b.entries[leafCount-1]
	for i := 0; i < leafLevel.count; i++ {
		var e Entry
		if i < leafCount {
			e = b.entries[i]
		} else {
			e = last
		}
		putEntry(buf[(leafLevel.globalStart+i)*width:], b.keyWidth, e)
	}

	// Build internal levels bottom-up (storage order from the leaf
	// level upward to the root).
	for li := len(ls) - 2; li >= 0; li-- {
		child := ls[li+1]
		parent := ls[li]
		for p := 0; p < parent.count; p++ {
			childStart := p * b.branching
			var key []byte
			var childOffset int64
			if childStart < child.count {
				childEntry := getEntry(buf[(child.globalStart+childStart)*width:], b.keyWidth)
				key = childEntry.Key
				childOffset = int64(child.globalStart + childStart)
			} else {
				// Reached when ascendingCounts padded parent.count
				// past the number of child blocks; the padding entry
				// repeats the child level's last entry.
				key = getEntry(buf[(child.globalStart+child.count-1)*width:], b.keyWidth).Key
				childOffset = int64(child.globalStart + child.count - 1)
			}
			putEntry(buf[(parent.globalStart+p)*width:], b.keyWidth, Entry{Key: key, Offset: childOffset})
		}
	}

	return buf, leafCount, nil
}
