// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rangefetch

import (
	"context"
	"io"
)

// File is a Source backed by a local io.ReaderAt, such as an *os.File.
// Reads are synchronous; ctx is only checked for cancellation before
// each read begins.
type File struct {
	r    io.ReaderAt
	size int64
	// haveSize is false when the underlying size is unknown, i.e.
	// NewFile was given a negative size.
	haveSize bool
}

// NewFile wraps r as a Source. size, if non-negative, is reported by
// Size; pass -1 if the size is not known up front.
func NewFile(r io.ReaderAt, size int64) *File {
	return &File{r: r, size: size, haveSize: size >= 0}
}

// ReadRange implements Source.
func (f *File) ReadRange(ctx context.Context, offset int64, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(f.r, offset, int64(length)), buf); err != nil {
		return nil, wrapErr("file range read failed", err)
	}
	return buf, nil
}

// Size implements Source.
func (f *File) Size(ctx context.Context) (int64, bool, error) {
	return f.size, f.haveSize, nil
}
