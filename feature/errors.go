// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package feature

import (
	"errors"
	"fmt"
)

const packageName = "feature: "

// ErrUnknownColumn is returned when an encoded record references a
// column index absent from the schema used to decode it.
var ErrUnknownColumn = errors.New(packageName + "unknown column index")

// ErrTypeMismatch is returned when a value cannot be represented as
// its column's declared type.
var ErrTypeMismatch = errors.New(packageName + "value does not match column type")

// ErrUnsupportedType is returned for a ColumnType value with no known
// wire representation.
var ErrUnsupportedType = errors.New(packageName + "unsupported column type")

// ErrSchemaMismatch is returned by Encode when values carries an
// attribute whose name has no corresponding column in schema.
var ErrSchemaMismatch = errors.New(packageName + "attribute has no matching column in schema")

func fmtErr(format string, a ...interface{}) error {
	return fmt.Errorf(packageName+format, a...)
}

func wrapErr(text string, err error) error {
	return fmt.Errorf(packageName+text+": %w", err)
}
