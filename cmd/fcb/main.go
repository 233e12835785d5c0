// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command fcb is a thin wrapper around the flatcitybuf package: it
// serializes a JSON description of a feature set into a container
// file, deserializes a container file back to JSON, and prints a
// container's header as JSON.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/bertt/flatcitybuf"
	"github.com/bertt/flatcitybuf/feature"
	"github.com/bertt/flatcitybuf/packedrtree"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "serialize":
		err = runSerialize(os.Args[2:])
	case "deserialize":
		err = runDeserialize(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fcb:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fcb <serialize|deserialize|info> [flags]")
}

// jsonFeature is the CLI's on-disk JSON representation of one feature:
// a bounding box for the spatial index, an opaque base64-encoded
// geometry blob (this container never interprets geometry bytes), and
// an attributes object encoded against the dataset's inferred schema.
type jsonFeature struct {
	Bbox       [4]float64             `json:"bbox"`
	Geometry   string                 `json:"geometry"`
	Attributes map[string]interface{} `json:"attributes"`
}

type jsonDataset struct {
	Title    string        `json:"title,omitempty"`
	Features []jsonFeature `json:"features"`
}

func runSerialize(args []string) error {
	fs := flag.NewFlagSet("serialize", flag.ExitOnError)
	in := fs.String("i", "", "input JSON file")
	out := fs.String("o", "", "output container file")
	title := fs.String("title", "", "dataset title")
	nodeSize := fs.Uint("index-node-size", 16, "spatial index node size, 0 disables the spatial index")
	checksum := fs.Bool("checksum", false, "compute and store a record-section checksum")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmtErrCLI("serialize requires -i and -o")
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	var ds jsonDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return fmt.Errorf("parsing %s: %w", *in, err)
	}
	if ds.Title == "" {
		ds.Title = *title
	}

	builder := feature.NewSchemaBuilder()
	for _, f := range ds.Features {
		builder.Add(f.Attributes)
	}
	schema := builder.Schema()

	columns := make([]flatcitybuf.ColumnSpec, len(schema))
	for i, c := range schema {
		columns[i] = flatcitybuf.ColumnSpec{Name: c.Name, Type: c.Type}
	}

	outFile, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer outFile.Close()

	w, err := flatcitybuf.NewWriter(outFile, flatcitybuf.WriterOptions{
		Title:         ds.Title,
		IndexNodeSize: uint16(*nodeSize),
		Columns:       columns,
		Checksum:      *checksum,
	})
	if err != nil {
		return err
	}

	for _, f := range ds.Features {
		geom, err := base64.StdEncoding.DecodeString(f.Geometry)
		if err != nil {
			return fmt.Errorf("decoding geometry: %w", err)
		}
		attrs, err := feature.Encode(f.Attributes, schema)
		if err != nil {
			return fmt.Errorf("encoding attributes: %w", err)
		}
		rec := encodeRecord(geom, attrs)
		box := packedrtree.Box{XMin: f.Bbox[0], YMin: f.Bbox[1], XMax: f.Bbox[2], YMax: f.Bbox[3]}
		if err := w.AddFeature(box, rec, nil); err != nil {
			return err
		}
	}
	return w.Close()
}

func runDeserialize(args []string) error {
	fs := flag.NewFlagSet("deserialize", flag.ExitOnError)
	in := fs.String("i", "", "input container file")
	out := fs.String("o", "", "output JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmtErrCLI("deserialize requires -i and -o")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	r := flatcitybuf.NewReader(f)
	defer r.Close()

	h, err := r.Header(ctx)
	if err != nil {
		return err
	}

	ds := jsonDataset{Title: h.Title}
	err = r.DataVisit(ctx, func(rec flatcitybuf.Record) error {
		geom, attrBytes := decodeRecord(rec)
		attrs, err := feature.Decode(attrBytes, h.Columns)
		if err != nil {
			return err
		}
		ds.Features = append(ds.Features, jsonFeature{
			Geometry:   base64.StdEncoding.EncodeToString(geom),
			Attributes: attrs,
		})
		return nil
	})
	if err != nil {
		return err
	}

	out2, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(*out, out2, 0o644)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("i", "", "input container file")
	verify := fs.Bool("verify-checksum", false, "verify the record-section checksum")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmtErrCLI("info requires -i")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	r := flatcitybuf.NewReader(f)
	defer r.Close()

	h, err := r.Header(ctx)
	if err != nil {
		return err
	}

	if *verify {
		if err := r.VerifyChecksum(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "checksum OK")
	}

	out, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fmtErrCLI(s string) error {
	return fmt.Errorf("%s", s)
}

// encodeRecord frames a feature's opaque geometry blob and its encoded
// attributes into the single byte slice flatcitybuf.Record carries: a
// u32 LE geometry length, the geometry bytes, then the attribute
// bytes running to the end. The container package never looks inside
// this framing; only this CLI's own reverse, decodeRecord, does.
func encodeRecord(geom, attrs []byte) flatcitybuf.Record {
	rec := make([]byte, 4+len(geom)+len(attrs))
	rec[0] = byte(len(geom))
	rec[1] = byte(len(geom) >> 8)
	rec[2] = byte(len(geom) >> 16)
	rec[3] = byte(len(geom) >> 24)
	copy(rec[4:], geom)
	copy(rec[4+len(geom):], attrs)
	return rec
}

func decodeRecord(rec flatcitybuf.Record) (geom, attrs []byte) {
	n := int(rec[0]) | int(rec[1])<<8 | int(rec[2])<<16 | int(rec[3])<<24
	return rec[4 : 4+n], rec[4+n:]
}
