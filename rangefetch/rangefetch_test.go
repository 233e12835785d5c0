// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rangefetch_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bertt/flatcitybuf/rangefetch"
)

func TestFile_ReadRange(t *testing.T) {
	data := []byte("0123456789abcdefghij")
	src := rangefetch.NewFile(bytes.NewReader(data), int64(len(data)))

	got, err := src.ReadRange(context.Background(), 5, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("5678"), got)

	size, ok, err := src.Size(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(len(data)), size)
}

func TestFile_ReadRange_ShortRead(t *testing.T) {
	data := []byte("short")
	src := rangefetch.NewFile(bytes.NewReader(data), int64(len(data)))

	_, err := src.ReadRange(context.Background(), 0, 100)
	assert.Error(t, err)
}

func newRangeServer(t *testing.T, data []byte, requests *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		*requests = append(*requests, rng)
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			return
		}
		http.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
}

func TestHTTP_Size(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1000)
	var requests []string
	srv := newRangeServer(t, data, &requests)
	defer srv.Close()

	src := rangefetch.NewHTTP(srv.Client(), srv.URL, 0)
	size, ok, err := src.Size(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), size)
}

func TestHTTP_ReadRanges_Coalesces(t *testing.T) {
	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i)
	}
	var requests []string
	srv := newRangeServer(t, data, &requests)
	defer srv.Close()

	src := rangefetch.NewHTTP(srv.Client(), srv.URL, 100)

	results, err := src.ReadRanges(context.Background(), []rangefetch.Range{
		{Offset: 0, Length: 10},
		{Offset: 20, Length: 10}, // gap of 10 bytes, within threshold, should coalesce with the first
		{Offset: 9000, Length: 10},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, data[0:10], results[0])
	assert.Equal(t, data[20:30], results[1])
	assert.Equal(t, data[9000:9010], results[2])

	// Expect 2 GET requests (coalesced first group, separate far group).
	assert.Len(t, requests, 2)
	assert.Less(t, src.BytesFetched(), int64(len(data)))
}

func TestHTTP_OpenTail(t *testing.T) {
	data := []byte("0123456789")
	var requests []string
	srv := newRangeServer(t, data, &requests)
	defer srv.Close()

	src := rangefetch.NewHTTP(srv.Client(), srv.URL, 0)
	rc, err := src.OpenTail(context.Background(), 5)
	require.NoError(t, err)
	defer rc.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, "56789", buf.String())
}
