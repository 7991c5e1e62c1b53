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
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// NewExtension builds an ExtensionArray: a single storage child array
// physically representing the extension dtype's values, matching
// spec.md §4.2. Concrete extensions (LocalDateTime, ...) are built on
// top of this via their own constructors.
func NewExtension(dtype vxtype.DType, storage Array) Array {
	return New(ExtensionID, dtype, storage.length, nil, []Array{storage}, nil)
}

func extensionStorage(a Array) Array { return a.children[0] }

// extensionEncoding's Flatten is deliberately left unimplemented: an
// extension's canonical form depends on what the extension means
// (LocalDateTime flattens to its storage primitive reinterpreted, a
// hypothetical UUID extension would flatten to fixed-size binary),
// and there is no generic decompressed shape to fall back to. Spec.md
// lists this as an open question resolved in favor of the Rust
// original's behavior: ExtensionArray::flatten() is unimplemented.
func extensionEncoding() *Encoding {
	return &Encoding{
		ID: ExtensionID,
		Flatten: func(ctx *Context, a Array) (Array, error) {
			return Array{}, vxerror.Unimplemented("flatten", ExtensionID)
		},
		ScalarAt: func(ctx *Context, a Array, i int) (scalar.Scalar, error) {
			s, err := ScalarAt(ctx, extensionStorage(a), i)
			if err != nil {
				return scalar.Scalar{}, err
			}
			if s.IsNull() {
				return scalar.Null(a.dtype), nil
			}
			return scalar.Of(a.dtype, s.Value()), nil
		},
		Slice: func(ctx *Context, a Array, start, stop int) (Array, error) {
			sliced, err := Slice(ctx, extensionStorage(a), start, stop)
			if err != nil {
				return Array{}, err
			}
			return NewExtension(a.dtype, sliced), nil
		},
		Take: func(ctx *Context, a Array, indices []int) (Array, error) {
			taken, err := Take(ctx, extensionStorage(a), indices)
			if err != nil {
				return Array{}, err
			}
			return NewExtension(a.dtype, taken), nil
		},
		AsContiguous: func(ctx *Context, arrays []Array) (Array, error) {
			storages := make([]Array, len(arrays))
			for i, a := range arrays {
				storages[i] = extensionStorage(a)
			}
			combined, err := AsContiguous(ctx, storages)
			if err != nil {
				return Array{}, err
			}
			return NewExtension(arrays[0].dtype, combined), nil
		},
		AsArrow: func(ctx *Context, a Array) (any, error) {
			switch a.dtype.ExtID() {
			case LocalDateTimeExtID:
				return localDateTimeAsArrow(ctx, a)
			default:
				return nil, vxerror.Unimplemented("as_arrow", a.dtype.ExtID())
			}
		},
		SubtractScalar: func(ctx *Context, a Array, s scalar.Scalar) (Array, error) {
			switch a.dtype.ExtID() {
			case LocalDateTimeExtID:
				return localDateTimeSubtractScalar(ctx, a, s)
			default:
				return Array{}, vxerror.Unimplemented("subtract_scalar", a.dtype.ExtID())
			}
		},
	}
}
