// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package statictree

import (
	"errors"
	"fmt"
)

const packageName = "statictree: "

// ErrUnsortedInput is returned by Builder.Build when the pushed
// entries are not in non-decreasing key order.
var ErrUnsortedInput = errors.New(packageName + "entries must be pushed in non-decreasing key order")

// ErrEmptyTree is returned when attempting to build an index with no
// entries.
var ErrEmptyTree = errors.New(packageName + "empty tree not allowed")

// ErrInvalidNodeSize is returned when the configured branching factor
// is too small to form a tree.
var ErrInvalidNodeSize = errors.New(packageName + "branching factor must be at least 2")

// ErrKeyWidth is returned when a key does not match the tree's fixed
// key width.
var ErrKeyWidth = errors.New(packageName + "key has the wrong width for this tree")

func textErr(text string) error {
	return errors.New(packageName + text)
}

func fmtErr(format string, a ...interface{}) error {
	return fmt.Errorf(packageName+format, a...)
}

func wrapErr(text string, err error) error {
	return fmt.Errorf(packageName+text+": %w", err)
}
