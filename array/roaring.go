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

	"github.com/a10y/vortex/buffer"
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxtype"
)

// NewRoaringBool builds a RoaringBoolArray: the sorted positions of the
// true bits, stored as little-endian uint32s, standing in for a
// serialized croaring Bitmap. Matches spec.md's encoding of a sparse
// boolean column as "the set bits" rather than a dense bitmap.
//
// RoaringBool always reports its dtype as non-nullable bool regardless
// of the source array's nullability (spec.md §9 Open Questions,
// following the Rust original's RoaringBoolArray::try_new which hard
// codes DType::Bool(NonNullable)).
func NewRoaringBool(bits []bool) Array {
	var indices []uint32
	for i, b := range bits {
		if b {
			indices = append(indices, uint32(i))
		}
	}
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	meta := binary.LittleEndian.AppendUint64(nil, uint64(len(bits)))
	return New(RoaringID, vxtype.Bool(false), len(bits), meta, nil, []buffer.Buffer{buffer.New(buf)})
}

func roaringIndices(a Array) []uint32 {
	raw := a.buffers[0].Bytes()
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out
}

func roaringContains(indices []uint32, i int) bool {
	pos := sort.Search(len(indices), func(j int) bool { return indices[j] >= uint32(i) })
	return pos < len(indices) && indices[pos] == uint32(i)
}

func roaringBoolEncoding() *Encoding {
	return &Encoding{
		ID: RoaringID,
		Flatten: func(ctx *Context, a Array) (Array, error) {
			indices := roaringIndices(a)
			bits := make([]bool, a.length)
			for _, idx := range indices {
				bits[int(idx)] = true
			}
			return NewBool(bits, validity.None()), nil
		},
		ScalarAt: func(ctx *Context, a Array, i int) (scalar.Scalar, error) {
			return scalar.Of(a.dtype, roaringContains(roaringIndices(a), i)), nil
		},
		Slice: func(ctx *Context, a Array, start, stop int) (Array, error) {
			indices := roaringIndices(a)
			lo := sort.Search(len(indices), func(j int) bool { return indices[j] >= uint32(start) })
			hi := sort.Search(len(indices), func(j int) bool { return indices[j] >= uint32(stop) })
			bits := make([]bool, stop-start)
			for _, idx := range indices[lo:hi] {
				bits[int(idx)-start] = true
			}
			return NewRoaringBool(bits), nil
		},
	}
}

