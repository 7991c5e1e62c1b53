// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package array

import (
	"encoding/binary"
	"sort"

	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// NewChunked builds a ChunkedArray: children of arbitrary (possibly
// differing) encodings, all sharing dtype, concatenated logically.
// Cumulative chunk offsets are precomputed into metadata so ScalarAt
// and Slice can binary search them, matching spec.md §4.2.
func NewChunked(chunks []Array, dtype vxtype.DType) Array {
	n := 0
	offsets := make([]byte, 8*(len(chunks)+1))
	binary.LittleEndian.PutUint64(offsets[0:8], 0)
	for i, c := range chunks {
		n += c.length
		binary.LittleEndian.PutUint64(offsets[8*(i+1):], uint64(n))
	}
	return New(ChunkedID, dtype, n, offsets, chunks, nil)
}

func chunkedOffsets(a Array) []uint64 {
	n := len(a.metadata) / 8
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(a.metadata[i*8:])
	}
	return out
}

// chunkedFind returns the chunk index containing logical position i
// and the position local to that chunk.
func chunkedFind(offsets []uint64, i int) (int, int) {
	chunk := sort.Search(len(offsets)-1, func(c int) bool { return offsets[c+1] > uint64(i) })
	return chunk, i - int(offsets[chunk])
}

func chunkedEncoding() *Encoding {
	return &Encoding{
		ID: ChunkedID,
		Flatten: func(ctx *Context, a Array) (Array, error) {
			flattened := make([]Array, len(a.children))
			for i, c := range a.children {
				f, err := Flatten(ctx, c)
				if err != nil {
					return Array{}, err
				}
				flattened[i] = f
			}
			return AsContiguous(ctx, flattened)
		},
		ScalarAt: func(ctx *Context, a Array, i int) (scalar.Scalar, error) {
			offsets := chunkedOffsets(a)
			chunk, local := chunkedFind(offsets, i)
			return ScalarAt(ctx, a.children[chunk], local)
		},
		Slice: func(ctx *Context, a Array, start, stop int) (Array, error) {
			offsets := chunkedOffsets(a)
			startChunk, startLocal := chunkedFind(offsets, start)
			var out []Array
			remaining := stop - start
			local := startLocal
			for c := startChunk; remaining > 0 && c < len(a.children); c++ {
				chunkLen := int(offsets[c+1] - offsets[c])
				take := chunkLen - local
				if take > remaining {
					take = remaining
				}
				sliced, err := Slice(ctx, a.children[c], local, local+take)
				if err != nil {
					return Array{}, err
				}
				out = append(out, sliced)
				remaining -= take
				local = 0
			}
			return NewChunked(out, a.dtype), nil
		},
		// Take is intentionally unset: indices may land in any chunk in
		// any order, so there is no cross-chunk gather cheaper than
		// flattening first, which the dispatcher does automatically.
		AsArrow: func(ctx *Context, a Array) (any, error) {
			return nil, vxerror.Unimplemented("as_arrow", ChunkedID)
		},
	}
}
