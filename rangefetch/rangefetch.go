// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package rangefetch provides a single abstraction over reading
// byte ranges from either a local seekable file or a remote HTTP
// resource via range requests, so that the spatial and attribute
// indices can be queried identically regardless of where the
// container bytes live.
package rangefetch

import "context"

// A Source supplies byte ranges on demand. Implementations must be
// safe for concurrent use by multiple goroutines only if they
// document that guarantee; the File and HTTP implementations in this
// package are safe for concurrent use.
type Source interface {
	// ReadRange returns the length bytes starting at offset. It
	// returns an error if fewer than length bytes are available.
	ReadRange(ctx context.Context, offset int64, length int) ([]byte, error)

	// Size returns the total size of the underlying resource, if
	// known. It returns false if the size cannot be determined.
	Size(ctx context.Context) (int64, bool, error)
}

const packageName = "rangefetch: "
