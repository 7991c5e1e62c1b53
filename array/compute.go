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

// Flatten produces the canonical, lossless decompressed form of a
// under ctx: Bool/Primitive/Utf8/Binary/Struct/List/Extension arrays as
// described by spec.md §4.1.
func Flatten(ctx *Context, a Array) (Array, error) {
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return Array{}, vxerror.Unknown(a.encodingID)
	}
	if enc.Flatten == nil {
		return Array{}, vxerror.Unimplemented("flatten", a.encodingID)
	}
	return enc.Flatten(ctx, a)
}

func checkBounds(a Array, i int) error {
	if i < 0 || i >= a.length {
		return vxerror.Bounds(i, 0, a.length)
	}
	return nil
}

func checkRange(a Array, start, stop int) error {
	if start > a.length {
		return vxerror.Bounds(start, 0, a.length)
	}
	if stop > a.length {
		return vxerror.Bounds(stop, 0, a.length)
	}
	if stop < start {
		return vxerror.Invalid("slice stop %d precedes start %d", stop, start)
	}
	return nil
}

// ScalarAt returns the logical value at position i, dispatching to the
// outer encoding's kernel or falling back to flatten+retry.
func ScalarAt(ctx *Context, a Array, i int) (scalar.Scalar, error) {
	if err := checkBounds(a, i); err != nil {
		return scalar.Scalar{}, err
	}
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return scalar.Scalar{}, vxerror.Unknown(a.encodingID)
	}
	if enc.ScalarAt != nil {
		return enc.ScalarAt(ctx, a, i)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return scalar.Scalar{}, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.ScalarAt == nil {
		return scalar.Scalar{}, vxerror.Unimplemented("scalar_at", a.encodingID)
	}
	return flatEnc.ScalarAt(ctx, flat, i)
}

// Slice returns a[start:stop], dispatching to the outer encoding's
// kernel or falling back to flatten+retry.
func Slice(ctx *Context, a Array, start, stop int) (Array, error) {
	if err := checkRange(a, start, stop); err != nil {
		return Array{}, err
	}
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return Array{}, vxerror.Unknown(a.encodingID)
	}
	if enc.Slice != nil {
		return enc.Slice(ctx, a, start, stop)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return Array{}, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.Slice == nil {
		return Array{}, vxerror.Unimplemented("slice", a.encodingID)
	}
	return flatEnc.Slice(ctx, flat, start, stop)
}

// Take gathers elements of a at the given indices, dispatching to the
// outer encoding's kernel or falling back to flatten+retry. Bounds on
// individual indices are the kernel's responsibility, matching
// spec.md §4.2's "bounds are caller-checked" note for PrimitiveArray.
func Take(ctx *Context, a Array, indices []int) (Array, error) {
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return Array{}, vxerror.Unknown(a.encodingID)
	}
	if enc.Take != nil {
		return enc.Take(ctx, a, indices)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return Array{}, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.Take == nil {
		return Array{}, vxerror.Unimplemented("take", a.encodingID)
	}
	return flatEnc.Take(ctx, flat, indices)
}

// Cast converts a to dtype, dispatching to the outer encoding's kernel
// or falling back to flatten+retry.
func Cast(ctx *Context, a Array, dtype vxtype.DType) (Array, error) {
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return Array{}, vxerror.Unknown(a.encodingID)
	}
	if enc.Cast != nil {
		return enc.Cast(ctx, a, dtype)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return Array{}, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.Cast == nil {
		return Array{}, vxerror.Unimplemented("cast", a.encodingID)
	}
	return flatEnc.Cast(ctx, flat, dtype)
}

// FillForward replaces each null element with the most recent non-null
// value preceding it. Nulls before the first non-null value become
// zero, and the result has no nulls.
func FillForward(ctx *Context, a Array) (Array, error) {
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return Array{}, vxerror.Unknown(a.encodingID)
	}
	if enc.FillForward != nil {
		return enc.FillForward(ctx, a)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return Array{}, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.FillForward == nil {
		return Array{}, vxerror.Unimplemented("fill_forward", a.encodingID)
	}
	return flatEnc.FillForward(ctx, flat)
}

// SearchSorted returns the insertion point of v in a, which the caller
// guarantees is monotonic.
func SearchSorted(ctx *Context, a Array, v scalar.Scalar, side Side) (int, error) {
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return 0, vxerror.Unknown(a.encodingID)
	}
	if enc.SearchSorted != nil {
		return enc.SearchSorted(ctx, a, v, side)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return 0, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.SearchSorted == nil {
		return 0, vxerror.Unimplemented("search_sorted", a.encodingID)
	}
	return flatEnc.SearchSorted(ctx, flat, v, side)
}

// SubtractScalar computes a - s element-wise.
func SubtractScalar(ctx *Context, a Array, s scalar.Scalar) (Array, error) {
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return Array{}, vxerror.Unknown(a.encodingID)
	}
	if enc.SubtractScalar != nil {
		return enc.SubtractScalar(ctx, a, s)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return Array{}, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.SubtractScalar == nil {
		return Array{}, vxerror.Unimplemented("subtract_scalar", a.encodingID)
	}
	return flatEnc.SubtractScalar(ctx, flat, s)
}

// AsArrow renders a as a foreign arrow-like representation (an opaque
// `any` in this port, since the concrete foreign format is an external
// collaborator per spec.md §1's scope notes).
func AsArrow(ctx *Context, a Array) (any, error) {
	enc, ok := ctx.Lookup(a.encodingID)
	if !ok {
		return nil, vxerror.Unknown(a.encodingID)
	}
	if enc.AsArrow != nil {
		return enc.AsArrow(ctx, a)
	}
	flat, err := Flatten(ctx, a)
	if err != nil {
		return nil, err
	}
	flatEnc, ok := ctx.Lookup(flat.encodingID)
	if !ok || flatEnc.AsArrow == nil {
		return nil, vxerror.Unimplemented("as_arrow", a.encodingID)
	}
	return flatEnc.AsArrow(ctx, flat)
}

// AsContiguous concatenates arrays, which must share an encoding, into
// a single contiguous array of the same encoding.
func AsContiguous(ctx *Context, arrays []Array) (Array, error) {
	if len(arrays) == 0 {
		return Array{}, vxerror.ComputeErr("no arrays")
	}
	id := arrays[0].encodingID
	for _, a := range arrays[1:] {
		if a.encodingID != id {
			return Array{}, vxerror.ComputeErr("differing encodings")
		}
	}
	enc, ok := ctx.Lookup(id)
	if !ok {
		return Array{}, vxerror.Unknown(id)
	}
	if enc.AsContiguous != nil {
		return enc.AsContiguous(ctx, arrays)
	}
	flattened := make([]Array, len(arrays))
	for i, a := range arrays {
		flat, err := Flatten(ctx, a)
		if err != nil {
			return Array{}, err
		}
		flattened[i] = flat
	}
	flatEnc, ok := ctx.Lookup(flattened[0].encodingID)
	if !ok || flatEnc.AsContiguous == nil {
		return Array{}, vxerror.Unimplemented("as_contiguous", id)
	}
	return flatEnc.AsContiguous(ctx, flattened)
}
