// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package feature

// SchemaBuilder incrementally infers a Schema from sample attribute
// values, assigning each newly seen attribute name the next free
// ColIndex in first-seen order. A name's type and index are fixed the
// first time a non-nil value for it is observed; later Add calls for
// the same name do not change either, even if a differently-typed
// value is seen.
type SchemaBuilder struct {
	order []string
	cols  map[string]Column
}

// NewSchemaBuilder returns an empty SchemaBuilder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{cols: make(map[string]Column)}
}

// Add folds one record's attribute values into the schema under
// construction. Keys already known are left unchanged; new,
// non-nil-valued keys are appended with a type guessed from the
// value's Go representation (the shape produced by decoding JSON:
// bool, float64, string, map/slice).
func (b *SchemaBuilder) Add(values map[string]interface{}) {
	for name, v := range values {
		if v == nil {
			continue
		}
		if _, ok := b.cols[name]; ok {
			continue
		}
		t, ok := guessType(v)
		if !ok {
			continue
		}
		b.cols[name] = Column{
			Name:     name,
			Type:     t,
			ColIndex: uint16(len(b.order)),
		}
		b.order = append(b.order, name)
	}
}

// Schema returns the built schema, in ColIndex order.
func (b *SchemaBuilder) Schema() Schema {
	schema := make(Schema, len(b.order))
	for i, name := range b.order {
		schema[i] = b.cols[name]
	}
	return schema
}

// guessType infers a ColumnType from a decoded-JSON value's dynamic
// Go type. Integral float64 values are not distinguished from
// fractional ones: json.Unmarshal into interface{} always produces
// float64 for JSON numbers, so every number is typed Double. A writer
// with access to the original typed value (rather than its decoded
// JSON form) should build the Schema by hand instead of through
// SchemaBuilder to get narrower integer column types.
func guessType(v interface{}) (ColumnType, bool) {
	switch v.(type) {
	case bool:
		return ColumnTypeBool, true
	case float64, float32:
		return ColumnTypeDouble, true
	case int, int8, int16, int32, int64:
		return ColumnTypeLong, true
	case uint, uint8, uint16, uint32, uint64:
		return ColumnTypeULong, true
	case string:
		return ColumnTypeString, true
	case []byte:
		return ColumnTypeBinary, true
	case []interface{}, map[string]interface{}:
		return ColumnTypeJSON, true
	default:
		return 0, false
	}
}
