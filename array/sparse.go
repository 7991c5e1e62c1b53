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
	"sort"

	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxerror"
)

// NewSparse builds a SparseArray: indices (a Primitive integer array,
// strictly ascending, unique, all < length) and values (an Array of
// the same length as indices); position i reads values[j] when
// indices[j] == i, else fillValue. Matches spec.md §4.2.
func NewSparse(indices Array, values Array, length int, fillValue scalar.Scalar) Array {
	meta := fillValue.Encode(nil)
	return New(SparseID, values.dtype, length, meta, []Array{indices, values}, nil)
}

func sparseIndices(a Array) Array { return a.children[0] }
func sparseValues(a Array) Array  { return a.children[1] }

func sparseFillValue(a Array) (scalar.Scalar, error) {
	s, _, err := scalar.Decode(a.metadata)
	return s, err
}

// sparseFind returns the position within indices holding value i, or
// -1 if i is not present (fill_value applies), via binary search since
// spec.md requires indices strictly ascending.
func sparseFind(a Array, i int) int {
	idx := sparseIndices(a)
	n := idx.length
	pos := sort.Search(n, func(j int) bool { return Int64At(idx, j) >= int64(i) })
	if pos < n && Int64At(idx, pos) == int64(i) {
		return pos
	}
	return -1
}

func sparseEncoding() *Encoding {
	return &Encoding{
		ID: SparseID,
		Flatten: func(ctx *Context, a Array) (Array, error) {
			return Array{}, vxerror.Unimplemented("flatten", SparseID)
		},
		ScalarAt: func(ctx *Context, a Array, i int) (scalar.Scalar, error) {
			if pos := sparseFind(a, i); pos >= 0 {
				return ScalarAt(ctx, sparseValues(a), pos)
			}
			return sparseFillValue(a)
		},
		Slice: func(ctx *Context, a Array, start, stop int) (Array, error) {
			idx := sparseIndices(a)
			n := idx.length
			lo := sort.Search(n, func(j int) bool { return Int64At(idx, j) >= int64(start) })
			hi := sort.Search(n, func(j int) bool { return Int64At(idx, j) >= int64(stop) })
			rebased := make([]int64, hi-lo)
			for j := lo; j < hi; j++ {
				rebased[j-lo] = Int64At(idx, j) - int64(start)
			}
			newIdx := NewPrimitive(PrimitivePType(idx), rebased, validity.None())
			slicedValues, err := Slice(ctx, sparseValues(a), lo, hi)
			if err != nil {
				return Array{}, err
			}
			fv, err := sparseFillValue(a)
			if err != nil {
				return Array{}, err
			}
			return NewSparse(newIdx, slicedValues, stop-start, fv), nil
		},
		Take: func(ctx *Context, a Array, indices []int) (Array, error) {
			fv, err := sparseFillValue(a)
			if err != nil {
				return Array{}, err
			}
			var newIdx []int64
			var positions []int
			for out, i := range indices {
				if pos := sparseFind(a, i); pos >= 0 {
					newIdx = append(newIdx, int64(out))
					positions = append(positions, pos)
				}
			}
			takenValues, err := Take(ctx, sparseValues(a), positions)
			if err != nil {
				return Array{}, err
			}
			idxArr := NewPrimitive(PrimitivePType(sparseIndices(a)), newIdx, validity.None())
			return NewSparse(idxArr, takenValues, len(indices), fv), nil
		},
	}
}
