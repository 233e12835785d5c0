// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package statictree

import "encoding/binary"

// An Entry pairs a fixed-width, byte-comparable key with the record
// offset it refers to. Entries compare by Key alone; when two Entry
// values share a Key, their relative order among themselves is
// whatever order they were pushed to the Builder in.
type Entry struct {
	Key    []byte
	Offset int64
}

// entryWidth returns the serialized size in bytes of an Entry with
// keys of the given width.
func entryWidth(keyWidth int) int {
	return keyWidth + 8
}

func putEntry(dst []byte, keyWidth int, e Entry) {
	copy(dst[:keyWidth], e.Key)
	binary.LittleEndian.PutUint64(dst[keyWidth:keyWidth+8], uint64(e.Offset))
}

func getEntry(src []byte, keyWidth int) Entry {
	key := make([]byte, keyWidth)
	copy(key, src[:keyWidth])
	offset := int64(binary.LittleEndian.Uint64(src[keyWidth : keyWidth+8]))
	return Entry{Key: key, Offset: offset}
}
