// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package statictree

import (
	"context"
	"sort"
)

// A Predicate names one attribute index, the comparison to run
// against it, and the encoded key to compare with.
type Predicate struct {
	Tree       *Tree
	Comparison Comparison
	Key        []byte
}

// And evaluates every predicate independently and returns the
// intersection of their result sets: the offsets of records matching
// every predicate. The result is returned in ascending offset order.
// And returns an error naming the offending predicate if any Tree
// query fails.
func And(ctx context.Context, predicates []Predicate) ([]int64, error) {
	if len(predicates) == 0 {
		return nil, nil
	}
	sets := make([][]int64, len(predicates))
	for i, p := range predicates {
		offsets, err := p.Tree.Query(ctx, p.Comparison, p.Key)
		if err != nil {
			return nil, fmtErr("evaluating predicate %d: %w", i, err)
		}
		sort.Slice(offsets, func(a, b int) bool { return offsets[a] < offsets[b] })
		sets[i] = offsets
	}
	return intersectSorted(sets), nil
}

// intersectSorted returns the intersection of a list of sorted,
// duplicate-free int64 slices, preserving ascending order.
func intersectSorted(sets [][]int64) []int64 {
	// Start from the smallest set; it upper-bounds the result size and
	// minimizes work in the common case of a highly selective index.
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })

	result := sets[0]
	for _, s := range sets[1:] {
		if len(result) == 0 {
			return nil
		}
		result = intersectTwo(result, s)
	}
	return result
}

func intersectTwo(a, b []int64) []int64 {
	out := make([]int64, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
