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

// Package scalar implements Vortex's tagged scalar value union: one
// variant per DType kind, each optionally null.
package scalar

import (
	"fmt"
	"math"

	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// Scalar is a single logical value mirroring one DType variant. A nil
// Value means the scalar is null; Null scalars still remember their
// DType so casts and null() round-trip correctly.
type Scalar struct {
	dtype vxtype.DType
	value any // nil means null
}

// Null constructs a null scalar of dtype, which must be nullable.
func Null(dtype vxtype.DType) Scalar {
	if !dtype.Nullable() {
		panic("scalar.Null: dtype is not nullable")
	}
	return Scalar{dtype: dtype}
}

// Of wraps a concrete, non-null Go value as a Scalar of dtype.
func Of(dtype vxtype.DType, value any) Scalar {
	return Scalar{dtype: dtype, value: value}
}

func (s Scalar) DType() vxtype.DType { return s.dtype }
func (s Scalar) IsNull() bool        { return s.value == nil }
func (s Scalar) Value() any          { return s.value }

// NBytes estimates the in-memory size of the scalar's payload.
func (s Scalar) NBytes() int {
	if s.value == nil {
		return 0
	}
	switch s.dtype.Kind() {
	case vxtype.KPrimitive:
		return s.dtype.PType().ByteWidth()
	case vxtype.KBool:
		return 1
	case vxtype.KUtf8:
		return len(s.value.(string))
	case vxtype.KBinary:
		return len(s.value.([]byte))
	default:
		return 0
	}
}

func (s Scalar) String() string {
	if s.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%v", s.value)
}

// Cast converts s to dtype, failing if the conversion is lossy or
// undefined, matching spec.md's "cast fails if conversion is lossy or
// undefined" rule.
func (s Scalar) Cast(dtype vxtype.DType) (Scalar, error) {
	if s.IsNull() {
		if !dtype.Nullable() {
			return Scalar{}, vxerror.Invalid("cannot cast null scalar to non-nullable dtype %s", dtype)
		}
		return Null(dtype), nil
	}
	if s.dtype.Kind() != dtype.Kind() {
		return Scalar{}, vxerror.Invalid("cannot cast %s scalar to %s", s.dtype, dtype)
	}
	switch dtype.Kind() {
	case vxtype.KBool, vxtype.KUtf8, vxtype.KBinary:
		return Scalar{dtype: dtype, value: s.value}, nil
	case vxtype.KPrimitive:
		v, err := castNumeric(s.value, s.dtype.PType(), dtype.PType())
		if err != nil {
			return Scalar{}, err
		}
		return Scalar{dtype: dtype, value: v}, nil
	default:
		return Scalar{}, vxerror.Unimplemented("scalar_cast", dtype.String())
	}
}

func castNumeric(v any, from, to vxtype.PType) (any, error) {
	f := toFloat64(v)
	switch to {
	case vxtype.I8, vxtype.I16, vxtype.I32, vxtype.I64:
		i := int64(f)
		if float64(i) != f || toFloat64(reinterpretInt(i, to)) != f {
			return nil, vxerror.ComputeErr("overflow casting %v from %s to %s", v, from, to)
		}
		return reinterpretInt(i, to), nil
	case vxtype.U8, vxtype.U16, vxtype.U32, vxtype.U64:
		if f < 0 {
			return nil, vxerror.ComputeErr("overflow casting negative %v to %s", v, to)
		}
		u := uint64(f)
		if float64(u) != f || toFloat64(reinterpretUint(u, to)) != f {
			return nil, vxerror.ComputeErr("overflow casting %v from %s to %s", v, from, to)
		}
		return reinterpretUint(u, to), nil
	case vxtype.F32:
		if float64(float32(f)) != f && !math.IsNaN(f) {
			return nil, vxerror.ComputeErr("lossy cast of %v from %s to %s", v, from, to)
		}
		return float32(f), nil
	case vxtype.F64:
		return f, nil
	default:
		return nil, vxerror.Unimplemented("cast", to.String())
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return math.NaN()
	}
}

func reinterpretInt(i int64, to vxtype.PType) any {
	switch to {
	case vxtype.I8:
		return int8(i)
	case vxtype.I16:
		return int16(i)
	case vxtype.I32:
		return int32(i)
	default:
		return i
	}
}

func reinterpretUint(u uint64, to vxtype.PType) any {
	switch to {
	case vxtype.U8:
		return uint8(u)
	case vxtype.U16:
		return uint16(u)
	case vxtype.U32:
		return uint32(u)
	default:
		return u
	}
}
