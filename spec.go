// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"io"
)

const (
	// magicLen is the length of the container magic number in bytes.
	magicLen = 8
	// MaxFormatVersion is the highest format version byte this package
	// can read. A file whose version byte exceeds this is rejected
	// with ErrUnsupportedVersion rather than misread.
	MaxFormatVersion = 0x01
	// headerMaxLen is an artificial limit, not imposed by the format,
	// on the maximum size of a header this package will read. Its
	// purpose is to prevent a corrupted or malicious length prefix
	// from causing a huge, pointless allocation.
	headerMaxLen = 32 * 1024 * 1024
)

// magic contains the container magic number: "fcb" + version byte +
// "fcb" + a trailing zero byte.
var magic = [magicLen]byte{0x66, 0x63, 0x62, MaxFormatVersion, 0x66, 0x63, 0x62, 0x00}

// Magic reads the container magic number from a stream and, if valid,
// returns the format version found in it. It does not read beyond the
// magic number, so it can be used to sniff whether a stream looks
// like a container of this format before committing to a full open.
func Magic(r io.Reader) (version uint8, err error) {
	m := make([]byte, magicLen)
	if _, err = io.ReadFull(r, m); err != nil {
		return 0, err
	}
	if m[0] != magic[0] || m[1] != magic[1] || m[2] != magic[2] ||
		m[4] != magic[4] || m[5] != magic[5] || m[6] != magic[6] || m[7] != magic[7] {
		return 0, ErrBadMagic
	}
	if m[3] > MaxFormatVersion {
		return m[3], ErrUnsupportedVersion
	}
	return m[3], nil
}
