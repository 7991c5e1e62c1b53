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
	"math"
	"sort"

	"github.com/a10y/vortex/buffer"
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// NewPrimitive builds a PrimitiveArray: a contiguous native-width
// buffer plus a Validity mask, matching spec.md §4.2. values must be a
// slice of one of the Go types corresponding to ptype (int8, int16,
// int32, int64, uint8, uint16, uint32, uint64, float32, float64).
func NewPrimitive(ptype vxtype.PType, values any, v validity.Validity) Array {
	buf := encodeNative(ptype, values)
	n := reflectLen(values)
	dtype := vxtype.Primitive(ptype, v.Kind() != validity.NonNullable)
	a := New(PrimitiveID, dtype, n, []byte{byte(ptype)}, nil, []buffer.Buffer{buffer.New(buf)})
	a.validity = v
	return a
}

func reflectLen(values any) int {
	switch v := values.(type) {
	case []int8:
		return len(v)
	case []int16:
		return len(v)
	case []int32:
		return len(v)
	case []int64:
		return len(v)
	case []uint8:
		return len(v)
	case []uint16:
		return len(v)
	case []uint32:
		return len(v)
	case []uint64:
		return len(v)
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	default:
		panic("array: unsupported native slice type")
	}
}

func encodeNative(ptype vxtype.PType, values any) []byte {
	w := ptype.ByteWidth()
	n := reflectLen(values)
	buf := make([]byte, n*w)
	switch ptype {
	case vxtype.I8, vxtype.U8:
		copy(buf, asBytes1(values))
	case vxtype.I16, vxtype.U16, vxtype.F16:
		vs := asU16(values)
		for i, x := range vs {
			binary.LittleEndian.PutUint16(buf[i*2:], x)
		}
	case vxtype.I32, vxtype.U32, vxtype.F32:
		vs := asU32(values)
		for i, x := range vs {
			binary.LittleEndian.PutUint32(buf[i*4:], x)
		}
	case vxtype.I64, vxtype.U64, vxtype.F64:
		vs := asU64(values)
		for i, x := range vs {
			binary.LittleEndian.PutUint64(buf[i*8:], x)
		}
	}
	return buf
}

func asBytes1(values any) []byte {
	switch v := values.(type) {
	case []int8:
		out := make([]byte, len(v))
		for i, x := range v {
			out[i] = byte(x)
		}
		return out
	case []uint8:
		return v
	}
	panic("array: expected 1-byte native slice")
}

func asU16(values any) []uint16 {
	switch v := values.(type) {
	case []int16:
		out := make([]uint16, len(v))
		for i, x := range v {
			out[i] = uint16(x)
		}
		return out
	case []uint16:
		return v
	case []float32:
		panic("array: f16 not representable from float32 directly")
	}
	panic("array: expected 2-byte native slice")
}

func asU32(values any) []uint32 {
	switch v := values.(type) {
	case []int32:
		out := make([]uint32, len(v))
		for i, x := range v {
			out[i] = uint32(x)
		}
		return out
	case []uint32:
		return v
	case []float32:
		out := make([]uint32, len(v))
		for i, x := range v {
			out[i] = math.Float32bits(x)
		}
		return out
	}
	panic("array: expected 4-byte native slice")
}

func asU64(values any) []uint64 {
	switch v := values.(type) {
	case []int64:
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = uint64(x)
		}
		return out
	case []uint64:
		return v
	case []float64:
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = math.Float64bits(x)
		}
		return out
	}
	panic("array: expected 8-byte native slice")
}

// PrimitivePType returns the physical type a PrimitiveArray's metadata
// declares.
func PrimitivePType(a Array) vxtype.PType {
	return vxtype.PType(a.metadata[0])
}

// Int64At reads element i of a PrimitiveArray as an int64, widening
// from whatever native ptype it stores; used by encodings (ALP,
// BitPacked, Sparse) that need raw integer access irrespective of
// signedness for index/offset arithmetic.
func Int64At(a Array, i int) int64 {
	p := PrimitivePType(a)
	buf := a.buffers[0].Bytes()
	w := p.ByteWidth()
	off := i * w
	switch p {
	case vxtype.I8:
		return int64(int8(buf[off]))
	case vxtype.U8:
		return int64(buf[off])
	case vxtype.I16:
		return int64(int16(binary.LittleEndian.Uint16(buf[off:])))
	case vxtype.U16:
		return int64(binary.LittleEndian.Uint16(buf[off:]))
	case vxtype.I32:
		return int64(int32(binary.LittleEndian.Uint32(buf[off:])))
	case vxtype.U32:
		return int64(binary.LittleEndian.Uint32(buf[off:]))
	case vxtype.I64:
		return int64(binary.LittleEndian.Uint64(buf[off:]))
	case vxtype.U64:
		return int64(binary.LittleEndian.Uint64(buf[off:]))
	default:
		panic("array: Int64At on non-integer ptype")
	}
}

// Float64At reads element i of a PrimitiveArray as a float64.
func Float64At(a Array, i int) float64 {
	p := PrimitivePType(a)
	buf := a.buffers[0].Bytes()
	w := p.ByteWidth()
	off := i * w
	switch p {
	case vxtype.F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
	case vxtype.F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	default:
		panic("array: Float64At on non-float ptype")
	}
}

func primitiveScalarAt(a Array, i int) scalar.Scalar {
	p := PrimitivePType(a)
	dtype := vxtype.Primitive(p, a.dtype.Nullable())
	if p.IsFloat() {
		f := Float64At(a, i)
		if p == vxtype.F32 {
			return scalar.Of(dtype, float32(f))
		}
		return scalar.Of(dtype, f)
	}
	v := Int64At(a, i)
	switch p {
	case vxtype.I8:
		return scalar.Of(dtype, int8(v))
	case vxtype.I16:
		return scalar.Of(dtype, int16(v))
	case vxtype.I32:
		return scalar.Of(dtype, int32(v))
	case vxtype.I64:
		return scalar.Of(dtype, v)
	case vxtype.U8:
		return scalar.Of(dtype, uint8(v))
	case vxtype.U16:
		return scalar.Of(dtype, uint16(v))
	case vxtype.U32:
		return scalar.Of(dtype, uint32(v))
	case vxtype.U64:
		return scalar.Of(dtype, uint64(v))
	}
	panic("unreachable")
}

// sliceNative returns the sub-slice [start:stop) of a PrimitiveArray's
// backing buffer, still encoded in its native width.
func sliceNative(a Array, start, stop int) []byte {
	w := PrimitivePType(a).ByteWidth()
	return a.buffers[0].Bytes()[start*w : stop*w]
}

func primitiveEncoding() *Encoding {
	return &Encoding{
		ID: PrimitiveID,
		Flatten: func(ctx *Context, a Array) (Array, error) {
			return a, nil
		},
		ScalarAt: func(ctx *Context, a Array, i int) (scalar.Scalar, error) {
			if !a.validity.IsValid(i) {
				return scalar.Null(a.dtype), nil
			}
			return primitiveScalarAt(a, i), nil
		},
		Slice: func(ctx *Context, a Array, start, stop int) (Array, error) {
			p := PrimitivePType(a)
			buf := buffer.New(append([]byte(nil), sliceNative(a, start, stop)...))
			out := New(PrimitiveID, a.dtype, stop-start, []byte{byte(p)}, nil, []buffer.Buffer{buf})
			out.validity = a.validity.Slice(start, stop)
			return out, nil
		},
		Take: func(ctx *Context, a Array, indices []int) (Array, error) {
			p := PrimitivePType(a)
			w := p.ByteWidth()
			src := a.buffers[0].Bytes()
			buf := make([]byte, len(indices)*w)
			for i, idx := range indices {
				copy(buf[i*w:(i+1)*w], src[idx*w:(idx+1)*w])
			}
			out := New(PrimitiveID, a.dtype, len(indices), []byte{byte(p)}, nil, []buffer.Buffer{buffer.New(buf)})
			out.validity = a.validity.Take(indices)
			return out, nil
		},
		Cast: func(ctx *Context, a Array, dtype vxtype.DType) (Array, error) {
			return castPrimitive(a, dtype)
		},
		FillForward: func(ctx *Context, a Array) (Array, error) {
			return fillForwardPrimitive(a)
		},
		SubtractScalar: func(ctx *Context, a Array, s scalar.Scalar) (Array, error) {
			return subtractScalarPrimitive(a, s)
		},
		SearchSorted: func(ctx *Context, a Array, v scalar.Scalar, side Side) (int, error) {
			return searchSortedPrimitive(a, v, side)
		},
		AsContiguous: func(ctx *Context, arrays []Array) (Array, error) {
			return primitiveAsContiguous(arrays)
		},
	}
}

func castPrimitive(a Array, dtype vxtype.DType) (Array, error) {
	if dtype.Kind() != vxtype.KPrimitive {
		return Array{}, vxerror.Invalid("cannot cast primitive array to %s", dtype)
	}
	to := dtype.PType()
	n := a.length
	switch to {
	case vxtype.F32, vxtype.F64:
		vals := make([]float64, n)
		for i := 0; i < n; i++ {
			if PrimitivePType(a).IsFloat() {
				vals[i] = Float64At(a, i)
			} else {
				vals[i] = float64(Int64At(a, i))
			}
		}
		if to == vxtype.F32 {
			out := make([]float32, n)
			for i, v := range vals {
				out[i] = float32(v)
			}
			return NewPrimitive(to, out, a.validity).WithDType(dtype), nil
		}
		return NewPrimitive(to, vals, a.validity).WithDType(dtype), nil
	default:
		vals := make([]int64, n)
		for i := 0; i < n; i++ {
			if PrimitivePType(a).IsFloat() {
				f := Float64At(a, i)
				if f != math.Trunc(f) {
					return Array{}, vxerror.ComputeErr("cast overflow: %v not representable as %s", f, to)
				}
				vals[i] = int64(f)
			} else {
				vals[i] = Int64At(a, i)
			}
		}
		return castIntSlice(to, vals, a.validity, dtype)
	}
}

func castIntSlice(to vxtype.PType, vals []int64, v validity.Validity, dtype vxtype.DType) (Array, error) {
	n := len(vals)
	switch to {
	case vxtype.I8:
		out := make([]int8, n)
		for i, x := range vals {
			if int64(int8(x)) != x {
				return Array{}, vxerror.ComputeErr("cast overflow: %d does not fit in i8", x)
			}
			out[i] = int8(x)
		}
		return NewPrimitive(to, out, v).WithDType(dtype), nil
	case vxtype.I16:
		out := make([]int16, n)
		for i, x := range vals {
			if int64(int16(x)) != x {
				return Array{}, vxerror.ComputeErr("cast overflow: %d does not fit in i16", x)
			}
			out[i] = int16(x)
		}
		return NewPrimitive(to, out, v).WithDType(dtype), nil
	case vxtype.I32:
		out := make([]int32, n)
		for i, x := range vals {
			if int64(int32(x)) != x {
				return Array{}, vxerror.ComputeErr("cast overflow: %d does not fit in i32", x)
			}
			out[i] = int32(x)
		}
		return NewPrimitive(to, out, v).WithDType(dtype), nil
	case vxtype.I64:
		return NewPrimitive(to, vals, v).WithDType(dtype), nil
	case vxtype.U8, vxtype.U16, vxtype.U32, vxtype.U64:
		out := make([]uint64, n)
		for i, x := range vals {
			if x < 0 {
				return Array{}, vxerror.ComputeErr("cast overflow: negative %d does not fit in %s", x, to)
			}
			out[i] = uint64(x)
		}
		return castUintSlice(to, out, v, dtype)
	default:
		return Array{}, vxerror.Unimplemented("cast", to.String())
	}
}

func castUintSlice(to vxtype.PType, vals []uint64, v validity.Validity, dtype vxtype.DType) (Array, error) {
	n := len(vals)
	switch to {
	case vxtype.U8:
		out := make([]uint8, n)
		for i, x := range vals {
			if uint64(uint8(x)) != x {
				return Array{}, vxerror.ComputeErr("cast overflow: %d does not fit in u8", x)
			}
			out[i] = uint8(x)
		}
		return NewPrimitive(to, out, v).WithDType(dtype), nil
	case vxtype.U16:
		out := make([]uint16, n)
		for i, x := range vals {
			if uint64(uint16(x)) != x {
				return Array{}, vxerror.ComputeErr("cast overflow: %d does not fit in u16", x)
			}
			out[i] = uint16(x)
		}
		return NewPrimitive(to, out, v).WithDType(dtype), nil
	case vxtype.U32:
		out := make([]uint32, n)
		for i, x := range vals {
			if uint64(uint32(x)) != x {
				return Array{}, vxerror.ComputeErr("cast overflow: %d does not fit in u32", x)
			}
			out[i] = uint32(x)
		}
		return NewPrimitive(to, out, v).WithDType(dtype), nil
	default:
		return NewPrimitive(to, vals, v).WithDType(dtype), nil
	}
}

// WithDType returns a shallow copy of a carrying dtype (used after a
// cast, where length/buffers are already correct but nullability may
// have changed).
func (a Array) WithDType(dtype vxtype.DType) Array {
	a.dtype = dtype
	return a
}

func fillForwardPrimitive(a Array) (Array, error) {
	n := a.length
	p := PrimitivePType(a)
	if p.IsFloat() {
		vals := make([]float64, n)
		last := 0.0
		for i := 0; i < n; i++ {
			if a.validity.IsValid(i) {
				last = Float64At(a, i)
			}
			vals[i] = last
		}
		if p == vxtype.F32 {
			out := make([]float32, n)
			for i, v := range vals {
				out[i] = float32(v)
			}
			return NewPrimitive(p, out, validity.Valid()), nil
		}
		return NewPrimitive(p, vals, validity.Valid()), nil
	}
	vals := make([]int64, n)
	var last int64
	for i := 0; i < n; i++ {
		if a.validity.IsValid(i) {
			last = Int64At(a, i)
		}
		vals[i] = last
	}
	return castIntSlice(p, vals, validity.Valid(), vxtype.Primitive(p, false))
}

func subtractScalarPrimitive(a Array, s scalar.Scalar) (Array, error) {
	n := a.length
	p := PrimitivePType(a)
	if p.IsFloat() {
		sub := toF64(s.Value())
		vals := make([]float64, n)
		for i := 0; i < n; i++ {
			vals[i] = Float64At(a, i) - sub
		}
		if p == vxtype.F32 {
			out := make([]float32, n)
			for i, v := range vals {
				out[i] = float32(v)
			}
			return NewPrimitive(p, out, a.validity), nil
		}
		return NewPrimitive(p, vals, a.validity), nil
	}
	sub := toI64(s.Value())
	vals := make([]int64, n)
	for i := 0; i < n; i++ {
		vals[i] = Int64At(a, i) - sub
	}
	return castIntSlice(p, vals, a.validity, a.dtype)
}

func toF64(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func toI64(v any) int64 {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return 0
	}
}

func searchSortedPrimitive(a Array, v scalar.Scalar, side Side) (int, error) {
	n := a.length
	p := PrimitivePType(a)
	target := toF64(v.Value())
	if !p.IsFloat() {
		target = float64(toI64(v.Value()))
	}
	at := func(i int) float64 {
		if p.IsFloat() {
			return Float64At(a, i)
		}
		return float64(Int64At(a, i))
	}
	idx := sort.Search(n, func(i int) bool {
		if side == Left {
			return at(i) >= target
		}
		return at(i) > target
	})
	return idx, nil
}

func primitiveAsContiguous(arrays []Array) (Array, error) {
	p := PrimitivePType(arrays[0])
	for _, a := range arrays[1:] {
		if PrimitivePType(a) != p {
			return Array{}, vxerror.ComputeErr("differing ptypes")
		}
	}
	w := p.ByteWidth()
	total := 0
	for _, a := range arrays {
		total += a.length
	}
	buf := make([]byte, 0, total*w)
	vs := make([]validity.Validity, len(arrays))
	for i, a := range arrays {
		buf = append(buf, a.buffers[0].Bytes()...)
		vs[i] = a.validity.PromoteNonNullable()
	}
	out := New(PrimitiveID, arrays[0].dtype, total, []byte{byte(p)}, nil, []buffer.Buffer{buffer.New(buf)})
	out.validity = validity.Concat(vs)
	return out, nil
}
