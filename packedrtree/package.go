// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package packedrtree provides an immutable, level-packed Hilbert
// R-tree spatial index suitable for embedding in a binary container
// format and for querying over both seekable local files and
// range-fetched remote sources.
package packedrtree
