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

package scalar

import (
	"encoding/binary"
	"math"

	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// Encode appends dst with the flat wire representation of s: its
// dtype, an is-null byte, and (if non-null) the value payload. Used to
// embed scalars (e.g. Sparse's fill_value) inside an encoding's
// metadata bytes.
func (s Scalar) Encode(dst []byte) []byte {
	dst = s.dtype.Encode(dst)
	if s.IsNull() {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	switch s.dtype.Kind() {
	case vxtype.KBool:
		if s.value.(bool) {
			return append(dst, 1)
		}
		return append(dst, 0)
	case vxtype.KUtf8:
		str := s.value.(string)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(str)))
		return append(dst, str...)
	case vxtype.KBinary:
		b := s.value.([]byte)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(b)))
		return append(dst, b...)
	case vxtype.KPrimitive:
		return encodeNumeric(dst, s.dtype.PType(), s.value)
	default:
		panic("scalar: Encode unsupported for " + s.dtype.String())
	}
}

func encodeNumeric(dst []byte, p vxtype.PType, v any) []byte {
	switch p {
	case vxtype.I8:
		return append(dst, byte(v.(int8)))
	case vxtype.U8:
		return append(dst, v.(uint8))
	case vxtype.I16:
		return binary.LittleEndian.AppendUint16(dst, uint16(v.(int16)))
	case vxtype.U16:
		return binary.LittleEndian.AppendUint16(dst, v.(uint16))
	case vxtype.I32:
		return binary.LittleEndian.AppendUint32(dst, uint32(v.(int32)))
	case vxtype.U32:
		return binary.LittleEndian.AppendUint32(dst, v.(uint32))
	case vxtype.I64:
		return binary.LittleEndian.AppendUint64(dst, uint64(v.(int64)))
	case vxtype.U64:
		return binary.LittleEndian.AppendUint64(dst, v.(uint64))
	case vxtype.F32:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.(float32)))
	case vxtype.F64:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.(float64)))
	default:
		panic("scalar: unsupported ptype in Encode")
	}
}

// Decode parses a Scalar from the front of src, returning the scalar
// and the remaining bytes.
func Decode(src []byte) (Scalar, []byte, error) {
	dtype, rest, err := vxtype.Decode(src)
	if err != nil {
		return Scalar{}, nil, err
	}
	if len(rest) < 1 {
		return Scalar{}, nil, vxerror.Corrupt("truncated scalar is-null byte")
	}
	isNull := rest[0]
	rest = rest[1:]
	if isNull == 0 {
		return Null(dtype), rest, nil
	}
	switch dtype.Kind() {
	case vxtype.KBool:
		if len(rest) < 1 {
			return Scalar{}, nil, vxerror.Corrupt("truncated bool scalar")
		}
		return Of(dtype, rest[0] != 0), rest[1:], nil
	case vxtype.KUtf8:
		if len(rest) < 4 {
			return Scalar{}, nil, vxerror.Corrupt("truncated utf8 scalar length")
		}
		n := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return Scalar{}, nil, vxerror.Corrupt("truncated utf8 scalar")
		}
		return Of(dtype, string(rest[:n])), rest[n:], nil
	case vxtype.KBinary:
		if len(rest) < 4 {
			return Scalar{}, nil, vxerror.Corrupt("truncated binary scalar length")
		}
		n := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return Scalar{}, nil, vxerror.Corrupt("truncated binary scalar")
		}
		return Of(dtype, append([]byte(nil), rest[:n]...)), rest[n:], nil
	case vxtype.KPrimitive:
		return decodeNumeric(dtype, rest)
	default:
		return Scalar{}, nil, vxerror.Unimplemented("scalar_decode", dtype.String())
	}
}

func decodeNumeric(dtype vxtype.DType, src []byte) (Scalar, []byte, error) {
	p := dtype.PType()
	n := p.ByteWidth()
	if len(src) < n {
		return Scalar{}, nil, vxerror.Corrupt("truncated numeric scalar")
	}
	switch p {
	case vxtype.I8:
		return Of(dtype, int8(src[0])), src[1:], nil
	case vxtype.U8:
		return Of(dtype, src[0]), src[1:], nil
	case vxtype.I16:
		return Of(dtype, int16(binary.LittleEndian.Uint16(src))), src[2:], nil
	case vxtype.U16:
		return Of(dtype, binary.LittleEndian.Uint16(src)), src[2:], nil
	case vxtype.I32:
		return Of(dtype, int32(binary.LittleEndian.Uint32(src))), src[4:], nil
	case vxtype.U32:
		return Of(dtype, binary.LittleEndian.Uint32(src)), src[4:], nil
	case vxtype.I64:
		return Of(dtype, int64(binary.LittleEndian.Uint64(src))), src[8:], nil
	case vxtype.U64:
		return Of(dtype, binary.LittleEndian.Uint64(src)), src[8:], nil
	case vxtype.F32:
		return Of(dtype, math.Float32frombits(binary.LittleEndian.Uint32(src))), src[4:], nil
	case vxtype.F64:
		return Of(dtype, math.Float64frombits(binary.LittleEndian.Uint64(src))), src[8:], nil
	default:
		return Scalar{}, nil, vxerror.Unimplemented("scalar_decode", p.String())
	}
}
