// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bertt/flatcitybuf/feature"
	"github.com/bertt/flatcitybuf/packedrtree"
	"github.com/bertt/flatcitybuf/rangefetch"
	"github.com/bertt/flatcitybuf/statictree"
)

var testSchema = feature.Schema{
	{Name: "id", Type: feature.ColumnTypeString, ColIndex: 0},
	{Name: "height", Type: feature.ColumnTypeDouble, ColIndex: 1},
}

func testColumns() []ColumnSpec {
	return []ColumnSpec{
		{Name: "id", Type: feature.ColumnTypeString},
		{Name: "height", Type: feature.ColumnTypeDouble},
	}
}

type testFeature struct {
	box    packedrtree.Box
	id     string
	height float64
}

func writeTestContainer(t *testing.T, opts WriterOptions, feats []testFeature) []byte {
	t.Helper()
	var buf bytes.Buffer
	if opts.Columns == nil {
		opts.Columns = testColumns()
	}
	w, err := NewWriter(&buf, opts)
	require.NoError(t, err)

	for _, f := range feats {
		attrs, err := feature.Encode(map[string]interface{}{"id": f.id, "height": f.height}, testSchema)
		require.NoError(t, err)
		var keys map[uint16][]byte
		if len(opts.AttributeIndices) > 0 {
			keys = map[uint16][]byte{1: statictree.Float64Encoder{}.Encode(nil, f.height)}
		}
		require.NoError(t, w.AddFeature(f.box, Record(attrs), keys))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterReader_RoundTrip(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "a", height: 3.5},
		{box: packedrtree.Box{XMin: 5, YMin: 5, XMax: 6, YMax: 6}, id: "b", height: 12.0},
		{box: packedrtree.Box{XMin: 10, YMin: 10, XMax: 11, YMax: 11}, id: "c", height: 7.25},
	}
	data := writeTestContainer(t, WriterOptions{Title: "test dataset", IndexNodeSize: 4}, feats)

	ctx := context.Background()
	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	h, err := r.Header(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test dataset", h.Title)
	assert.Equal(t, uint64(3), h.FeaturesCount)
	assert.Equal(t, feature.Schema(testSchema), h.Columns)

	records, err := r.Data(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	seen := make(map[string]float64)
	for _, rec := range records {
		vals, err := feature.Decode(rec, h.Columns)
		require.NoError(t, err)
		seen[vals["id"].(string)] = vals["height"].(float64)
	}
	assert.Equal(t, map[string]float64{"a": 3.5, "b": 12.0, "c": 7.25}, seen)
}

func TestWriterReader_NoSpatialIndex(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "only", height: 1},
	}
	data := writeTestContainer(t, WriterOptions{IndexNodeSize: 0}, feats)

	ctx := context.Background()
	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	_, err := r.Index(ctx)
	assert.ErrorIs(t, err, ErrNoIndex)

	records, err := r.Data(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWriterReader_DataSearch(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "near", height: 1},
		{box: packedrtree.Box{XMin: 100, YMin: 100, XMax: 101, YMax: 101}, id: "far", height: 2},
	}
	data := writeTestContainer(t, WriterOptions{IndexNodeSize: 2}, feats)

	ctx := context.Background()
	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	h, err := r.Header(ctx)
	require.NoError(t, err)

	results, err := r.DataSearch(ctx, packedrtree.Box{XMin: -1, YMin: -1, XMax: 2, YMax: 2})
	require.NoError(t, err)
	require.Len(t, results, 1)
	vals, err := feature.Decode(results[0], h.Columns)
	require.NoError(t, err)
	assert.Equal(t, "near", vals["id"])
}

func TestWriterReader_AttributeIndexQuery(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "a", height: 1},
		{box: packedrtree.Box{XMin: 1, YMin: 1, XMax: 2, YMax: 2}, id: "b", height: 5},
		{box: packedrtree.Box{XMin: 2, YMin: 2, XMax: 3, YMax: 3}, id: "c", height: 9},
	}
	opts := WriterOptions{
		IndexNodeSize:    4,
		AttributeIndices: []AttributeIndexOption{{ColumnIndex: 1, NodeSize: 4}},
	}
	data := writeTestContainer(t, opts, feats)

	ctx := context.Background()
	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	h, err := r.Header(ctx)
	require.NoError(t, err)
	require.Len(t, h.AttributeIndices, 1)

	key := statictree.Float64Encoder{}.Encode(nil, 5.0)
	var got []map[string]interface{}
	err = r.DataQueryVisit(ctx, 1, statictree.Eq, key, func(rec Record) error {
		vals, err := feature.Decode(rec, h.Columns)
		if err != nil {
			return err
		}
		got = append(got, vals)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0]["id"])
}

func TestWriterReader_Checksum(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "a", height: 1},
	}
	data := writeTestContainer(t, WriterOptions{IndexNodeSize: 0, Checksum: true}, feats)

	ctx := context.Background()
	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	h, err := r.Header(ctx)
	require.NoError(t, err)
	assert.NotZero(t, h.Checksum)
	assert.NoError(t, r.VerifyChecksum(ctx))
}

func TestWriterReader_NoChecksum(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "a", height: 1},
	}
	data := writeTestContainer(t, WriterOptions{IndexNodeSize: 0}, feats)

	ctx := context.Background()
	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	_, err := r.Header(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, r.VerifyChecksum(ctx), ErrNoChecksum)
}

func TestReader_BadMagic(t *testing.T) {
	ctx := context.Background()
	r := NewReader(bytes.NewReader([]byte("not-a-container-file!!")))
	defer r.Close()

	_, err := r.Header(ctx)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestWriter_DoubleClose(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{Columns: testColumns()})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), ErrClosed)
}

func TestWriterReader_ZeroRecordsWithIndexRequested(t *testing.T) {
	data := writeTestContainer(t, WriterOptions{IndexNodeSize: 16}, nil)

	ctx := context.Background()
	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	h, err := r.Header(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.FeaturesCount)
	assert.Equal(t, uint16(0), h.IndexNodeSize)

	_, err = r.Index(ctx)
	assert.ErrorIs(t, err, ErrNoIndex)

	_, err = r.AttributeIndex(ctx, 1)
	assert.ErrorIs(t, err, ErrNoIndex)

	results, err := r.DataSearch(ctx, packedrtree.EmptyBox)
	assert.ErrorIs(t, err, ErrNoIndex)
	assert.Nil(t, results)

	records, err := r.Data(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 0)
}

func TestWriterReader_AttributeIndexNullSentinel(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "has-height", height: 5},
		{box: packedrtree.Box{XMin: 1, YMin: 1, XMax: 2, YMax: 2}, id: "no-height", height: 0},
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{
		Columns:          testColumns(),
		IndexNodeSize:    4,
		AttributeIndices: []AttributeIndexOption{{ColumnIndex: 1, NodeSize: 4}},
	})
	require.NoError(t, err)

	attrs0, err := feature.Encode(map[string]interface{}{"id": feats[0].id, "height": feats[0].height}, testSchema)
	require.NoError(t, err)
	require.NoError(t, w.AddFeature(feats[0].box, Record(attrs0), map[uint16][]byte{
		1: statictree.Float64Encoder{}.Encode(nil, feats[0].height),
	}))

	attrs1, err := feature.Encode(map[string]interface{}{"id": feats[1].id}, testSchema)
	require.NoError(t, err)
	require.NoError(t, w.AddFeature(feats[1].box, Record(attrs1), nil))

	require.NoError(t, w.Close())

	ctx := context.Background()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()

	h, err := r.Header(ctx)
	require.NoError(t, err)
	require.Len(t, h.AttributeIndices, 1)
	assert.False(t, h.AttributeIndices[0].Partial)
	assert.EqualValues(t, 2, h.AttributeIndices[0].LeafCount)

	var got []string
	err = r.DataQueryVisit(ctx, 1, statictree.Eq, statictree.NullKey(int(h.AttributeIndices[0].KeyWidth)), func(rec Record) error {
		vals, err := feature.Decode(rec, h.Columns)
		if err != nil {
			return err
		}
		got = append(got, vals["id"].(string))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"no-height"}, got)
}

func TestWriterReader_AttributeIndexAllowPartial(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "has-height", height: 5},
		{box: packedrtree.Box{XMin: 1, YMin: 1, XMax: 2, YMax: 2}, id: "no-height", height: 0},
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{
		Columns:          testColumns(),
		IndexNodeSize:    4,
		AttributeIndices: []AttributeIndexOption{{ColumnIndex: 1, NodeSize: 4, AllowPartial: true}},
	})
	require.NoError(t, err)

	attrs0, err := feature.Encode(map[string]interface{}{"id": feats[0].id, "height": feats[0].height}, testSchema)
	require.NoError(t, err)
	require.NoError(t, w.AddFeature(feats[0].box, Record(attrs0), map[uint16][]byte{
		1: statictree.Float64Encoder{}.Encode(nil, feats[0].height),
	}))

	attrs1, err := feature.Encode(map[string]interface{}{"id": feats[1].id}, testSchema)
	require.NoError(t, err)
	require.NoError(t, w.AddFeature(feats[1].box, Record(attrs1), nil))

	require.NoError(t, w.Close())

	ctx := context.Background()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()

	h, err := r.Header(ctx)
	require.NoError(t, err)
	require.Len(t, h.AttributeIndices, 1)
	assert.True(t, h.AttributeIndices[0].Partial)
	assert.EqualValues(t, 1, h.AttributeIndices[0].LeafCount)
}

func TestWriterReader_LocalAndHTTPSearchAgree(t *testing.T) {
	feats := []testFeature{
		{box: packedrtree.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, id: "near", height: 1},
		{box: packedrtree.Box{XMin: 20, YMin: 20, XMax: 21, YMax: 21}, id: "mid", height: 2},
		{box: packedrtree.Box{XMin: 100, YMin: 100, XMax: 101, YMax: 101}, id: "far", height: 3},
	}
	data := writeTestContainer(t, WriterOptions{IndexNodeSize: 2}, feats)
	box := packedrtree.Box{XMin: -1, YMin: -1, XMax: 2, YMax: 2}

	ctx := context.Background()

	local := NewReader(bytes.NewReader(data))
	defer local.Close()
	localResults, err := local.DataSearch(ctx, box)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.ServeContent(w, req, "container.fcb", time.Time{}, bytes.NewReader(data))
	}))
	defer server.Close()

	src := rangefetch.NewHTTP(server.Client(), server.URL, 0)
	remote := NewRangeReader(src)
	defer remote.Close()
	remoteResults, err := remote.DataSearch(ctx, box)
	require.NoError(t, err)

	require.Len(t, localResults, 1)
	assert.Equal(t, localResults, remoteResults)
}
