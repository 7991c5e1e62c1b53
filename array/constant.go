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
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// NewConstant builds a ConstantArray: every logical position reads the
// same scalar value, stored once in metadata rather than replicated.
// Matches spec.md §4.2.
func NewConstant(value scalar.Scalar, length int) Array {
	meta := value.Encode(nil)
	return New(ConstantID, value.DType(), length, meta, nil, nil)
}

func constantValue(a Array) (scalar.Scalar, error) {
	s, _, err := scalar.Decode(a.metadata)
	return s, err
}

func constantValidity(a Array, n int) validity.Validity {
	v, err := constantValue(a)
	if err != nil {
		return validity.Valid()
	}
	if v.IsNull() {
		return validity.Invalid()
	}
	return validity.Valid()
}

func constantEncoding() *Encoding {
	return &Encoding{
		ID: ConstantID,
		Flatten: func(ctx *Context, a Array) (Array, error) {
			v, err := constantValue(a)
			if err != nil {
				return Array{}, err
			}
			switch a.dtype.Kind() {
			case vxtype.KBool:
				bits := make([]bool, a.length)
				if !v.IsNull() {
					b := v.Value().(bool)
					for i := range bits {
						bits[i] = b
					}
				}
				return NewBool(bits, constantValidity(a, a.length)), nil
			case vxtype.KPrimitive:
				return constantPrimitive(a, v)
			case vxtype.KUtf8, vxtype.KBinary:
				values := make([][]byte, a.length)
				if !v.IsNull() {
					raw := toRawBytes(a.dtype, v.Value())
					for i := range values {
						values[i] = raw
					}
				} else {
					for i := range values {
						values[i] = nil
					}
				}
				return NewVarBinView(values, a.dtype, constantValidity(a, a.length), 0), nil
			default:
				return Array{}, vxerror.Unimplemented("flatten", ConstantID)
			}
		},
		ScalarAt: func(ctx *Context, a Array, i int) (scalar.Scalar, error) {
			return constantValue(a)
		},
		Slice: func(ctx *Context, a Array, start, stop int) (Array, error) {
			v, err := constantValue(a)
			if err != nil {
				return Array{}, err
			}
			return NewConstant(v, stop-start), nil
		},
		Take: func(ctx *Context, a Array, indices []int) (Array, error) {
			v, err := constantValue(a)
			if err != nil {
				return Array{}, err
			}
			return NewConstant(v, len(indices)), nil
		},
		AsContiguous: func(ctx *Context, arrays []Array) (Array, error) {
			v, err := constantValue(arrays[0])
			if err != nil {
				return Array{}, err
			}
			total := 0
			for _, a := range arrays {
				ov, err := constantValue(a)
				if err != nil {
					return Array{}, err
				}
				if ov.IsNull() != v.IsNull() || (!v.IsNull() && fmtScalar(ov) != fmtScalar(v)) {
					return Array{}, vxerror.ComputeErr("AsContiguous: differing constant values")
				}
				total += a.length
			}
			return NewConstant(v, total), nil
		},
	}
}

func fmtScalar(s scalar.Scalar) string { return s.String() }

func toRawBytes(dtype vxtype.DType, v any) []byte {
	if dtype.Kind() == vxtype.KUtf8 {
		return []byte(v.(string))
	}
	return v.([]byte)
}

func constantPrimitive(a Array, v scalar.Scalar) (Array, error) {
	p := a.dtype.PType()
	n := a.length
	if v.IsNull() {
		return constantNullPrimitive(p, n), nil
	}
	switch p {
	case vxtype.I8:
		return fillPrimitive(p, n, v.Value().(int8)), nil
	case vxtype.I16:
		return fillPrimitive(p, n, v.Value().(int16)), nil
	case vxtype.I32:
		return fillPrimitive(p, n, v.Value().(int32)), nil
	case vxtype.I64:
		return fillPrimitive(p, n, v.Value().(int64)), nil
	case vxtype.U8:
		return fillPrimitive(p, n, v.Value().(uint8)), nil
	case vxtype.U16:
		return fillPrimitive(p, n, v.Value().(uint16)), nil
	case vxtype.U32:
		return fillPrimitive(p, n, v.Value().(uint32)), nil
	case vxtype.U64:
		return fillPrimitive(p, n, v.Value().(uint64)), nil
	case vxtype.F32:
		return fillPrimitive(p, n, v.Value().(float32)), nil
	case vxtype.F64:
		return fillPrimitive(p, n, v.Value().(float64)), nil
	default:
		return Array{}, vxerror.Unimplemented("flatten_constant", p.String())
	}
}

func fillPrimitive[T any](p vxtype.PType, n int, v T) Array {
	vals := make([]T, n)
	for i := range vals {
		vals[i] = v
	}
	return NewPrimitive(p, vals, validity.Valid())
}

func constantNullPrimitive(p vxtype.PType, n int) Array {
	switch p {
	case vxtype.I8:
		return NewPrimitive(p, make([]int8, n), validity.Invalid())
	case vxtype.I16:
		return NewPrimitive(p, make([]int16, n), validity.Invalid())
	case vxtype.I32:
		return NewPrimitive(p, make([]int32, n), validity.Invalid())
	case vxtype.I64:
		return NewPrimitive(p, make([]int64, n), validity.Invalid())
	case vxtype.U8:
		return NewPrimitive(p, make([]uint8, n), validity.Invalid())
	case vxtype.U16:
		return NewPrimitive(p, make([]uint16, n), validity.Invalid())
	case vxtype.U32:
		return NewPrimitive(p, make([]uint32, n), validity.Invalid())
	case vxtype.U64:
		return NewPrimitive(p, make([]uint64, n), validity.Invalid())
	case vxtype.F32:
		return NewPrimitive(p, make([]float32, n), validity.Invalid())
	default:
		return NewPrimitive(p, make([]float64, n), validity.Invalid())
	}
}
