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
	"github.com/a10y/vortex/buffer"
	"github.com/a10y/vortex/ints"
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxtype"
)

// NewBool builds a BoolArray: packed boolean bits (buffer[0]) plus a
// Validity mask, matching spec.md §4.2.
func NewBool(bits []bool, v validity.Validity) Array {
	words := (len(bits) + 63) / 64
	packed := make([]uint64, words)
	for i, b := range bits {
		if b {
			ints.SetBit(packed, i)
		}
	}
	buf := make([]byte, words*8)
	for i, w := range packed {
		putU64(buf[i*8:], w)
	}
	dtype := vxtype.Bool(v.Kind() != validity.NonNullable)
	a := New(BoolID, dtype, len(bits), nil, nil, []buffer.Buffer{buffer.New(buf)})
	a.validity = v
	return a
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func boolBitAt(a Array, i int) bool {
	words := make([]uint64, (a.length+63)/64)
	buf := a.buffers[0].Bytes()
	for w := range words {
		if (w+1)*8 <= len(buf) {
			words[w] = getU64(buf[w*8:])
		}
	}
	return ints.TestBit(words, i)
}

func boolEncoding() *Encoding {
	return &Encoding{
		ID: BoolID,
		Flatten: func(ctx *Context, a Array) (Array, error) {
			return a, nil
		},
		ScalarAt: func(ctx *Context, a Array, i int) (scalar.Scalar, error) {
			if !a.validity.IsValid(i) {
				return scalar.Null(a.dtype), nil
			}
			return scalar.Of(a.dtype, boolBitAt(a, i)), nil
		},
		Slice: func(ctx *Context, a Array, start, stop int) (Array, error) {
			bits := make([]bool, stop-start)
			for i := range bits {
				bits[i] = boolBitAt(a, start+i)
			}
			return NewBool(bits, a.validity.Slice(start, stop)), nil
		},
		Take: func(ctx *Context, a Array, indices []int) (Array, error) {
			bits := make([]bool, len(indices))
			for i, idx := range indices {
				bits[i] = boolBitAt(a, idx)
			}
			return NewBool(bits, a.validity.Take(indices)), nil
		},
		AsContiguous: func(ctx *Context, arrays []Array) (Array, error) {
			var bits []bool
			vs := make([]validity.Validity, len(arrays))
			for i, arr := range arrays {
				for j := 0; j < arr.length; j++ {
					bits = append(bits, boolBitAt(arr, j))
				}
				vs[i] = arr.validity.PromoteNonNullable()
			}
			return NewBool(bits, validity.Concat(vs)), nil
		},
	}
}
