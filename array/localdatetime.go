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
	"github.com/a10y/vortex/date"
	"github.com/a10y/vortex/fastdate"
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// TimeUnit is the resolution a LocalDateTimeArray's storage integers
// are counted in, matching spec.md's extension metadata.
type TimeUnit uint8

const (
	Seconds TimeUnit = iota
	Millis
	Micros
	Nanos
)

// NewLocalDateTime builds a LocalDateTimeArray: the vortex.localdatetime
// extension over an Int64 storage array holding epoch offsets in unit.
func NewLocalDateTime(values []int64, unit TimeUnit, v validity.Validity) Array {
	storage := NewPrimitive(vxtype.I64, values, v)
	dtype := vxtype.Extension(
		LocalDateTimeExtID,
		[]byte{byte(unit)},
		vxtype.Primitive(vxtype.I64, v.Kind() != validity.NonNullable),
		v.Kind() != validity.NonNullable,
	)
	return NewExtension(dtype, storage)
}

func localDateTimeUnit(a Array) TimeUnit {
	return TimeUnit(a.dtype.ExtMeta()[0])
}

func localDateTimeToTime(unit TimeUnit, v int64) date.Time {
	switch unit {
	case Seconds:
		return date.Unix(v, 0)
	case Millis:
		return date.Unix(v/1000, (v%1000)*1_000_000)
	case Micros:
		return date.UnixMicro(v)
	default:
		return date.Unix(v/1_000_000_000, v%1_000_000_000)
	}
}

func unitToMicros(unit TimeUnit, v int64) int64 {
	switch unit {
	case Seconds:
		return v * 1_000_000
	case Millis:
		return v * 1_000
	case Micros:
		return v
	default:
		return v / 1_000
	}
}

func microsToUnit(unit TimeUnit, us int64) int64 {
	switch unit {
	case Seconds:
		return us / 1_000_000
	case Millis:
		return us / 1_000
	case Micros:
		return us
	default:
		return us * 1_000
	}
}

// localDateTimeSubtractScalar implements spec.md's subtract_scalar
// kernel for the localdatetime extension: s is an integer offset in
// the array's own unit, subtracted from every valid element. The
// actual shift is performed in fastdate.Timestamp's microsecond domain
// via AddMicrosecond so that int64 overflow at the representable range
// boundary is caught (fastdate.Timestamp.AddMicrosecond's ok==false)
// and reported as a Compute error rather than silently wrapping.
func localDateTimeSubtractScalar(ctx *Context, a Array, s scalar.Scalar) (Array, error) {
	offset, ok := s.Value().(int64)
	if !ok {
		return Array{}, vxerror.Invalid("subtract_scalar: localdatetime expects an int64 scalar, got %T", s.Value())
	}
	unit := localDateTimeUnit(a)
	storage := extensionStorage(a)
	n := storage.Len()
	out := make([]int64, n)
	offsetMicros := unitToMicros(unit, offset)
	for i := 0; i < n; i++ {
		if !storage.IsValid(i) {
			continue
		}
		us := unitToMicros(unit, Int64At(storage, i))
		shifted, ok := fastdate.Timestamp(us).AddMicrosecond(-offsetMicros)
		if !ok {
			return Array{}, vxerror.ComputeErr("subtract_scalar: localdatetime offset overflows representable range")
		}
		out[i] = microsToUnit(unit, int64(shifted))
	}
	newStorage := NewPrimitive(vxtype.I64, out, storage.Validity())
	return NewExtension(a.dtype, newStorage), nil
}

// localDateTimeAsArrow renders a LocalDateTimeArray as a slice of
// date.Time values (nil entries for nulls), the stand-in this port
// uses for a foreign arrow timestamp array.
func localDateTimeAsArrow(ctx *Context, a Array) (any, error) {
	unit := localDateTimeUnit(a)
	storage := extensionStorage(a)
	out := make([]*date.Time, a.length)
	for i := 0; i < a.length; i++ {
		if !storage.IsValid(i) {
			continue
		}
		t := localDateTimeToTime(unit, Int64At(storage, i))
		out[i] = &t
	}
	return out, nil
}
