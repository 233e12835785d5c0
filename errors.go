// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"errors"
	"fmt"
)

const packageName = "flatcitybuf: "

// Sentinel errors, one per error-taxonomy kind. Callers compare
// against these with errors.Is; call-site context is added by
// wrapping, never by allocating a new unrelated error.
var (
	ErrBadMagic           = errors.New(packageName + "bad magic number")
	ErrUnsupportedVersion = errors.New(packageName + "unsupported format version")
	ErrBadHeaderSize      = errors.New(packageName + "invalid header size")
	ErrInvalidFormat      = errors.New(packageName + "malformed section")
	ErrNoIndex            = errors.New(packageName + "no index for this query")
	ErrUnsupportedQuery   = errors.New(packageName + "unsupported query")
	ErrClosed             = errors.New(packageName + "already closed")
	ErrNoChecksum         = errors.New(packageName + "header carries no checksum")
	ErrChecksumMismatch   = errors.New(packageName + "record section checksum mismatch")
	errUnexpectedState    = errors.New(packageName + "unexpected internal state")
)

func textErr(text string) error {
	return errors.New(packageName + text)
}

func fmtErr(format string, a ...interface{}) error {
	return fmt.Errorf(packageName+format, a...)
}

func wrapErr(text string, err error) error {
	return fmt.Errorf(packageName+text+": %w", err)
}

func textPanic(text string) {
	panic(packageName + text)
}

func fmtPanic(format string, a ...interface{}) {
	panic(fmt.Sprintf(packageName+format, a...))
}
