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

// Package vxtype implements Vortex's logical type system: the DType
// variants and the physical PType family that backs Primitive dtypes.
package vxtype

import "fmt"

// PType is the physical representation of a Primitive dtype.
type PType uint8

const (
	I8 PType = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F16
	F32
	F64
)

func (p PType) String() string {
	switch p {
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case F16:
		return "f16"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("ptype(%d)", p)
	}
}

// IsInt returns whether p is an integer (signed or unsigned) family.
func (p PType) IsInt() bool {
	return p <= U64
}

// IsSigned returns whether p is a signed integer family.
func (p PType) IsSigned() bool {
	return p <= I64
}

// IsFloat returns whether p is a floating-point family.
func (p PType) IsFloat() bool {
	return p >= F16
}

// ByteWidth returns the width in bytes of one native element of p.
func (p PType) ByteWidth() int {
	switch p {
	case I8, U8:
		return 1
	case I16, U16, F16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	default:
		panic(fmt.Sprintf("vxtype: unknown ptype %d", p))
	}
}
