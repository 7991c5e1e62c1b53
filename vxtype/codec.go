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

package vxtype

import (
	"encoding/binary"
	"fmt"
)

// Encode appends dst's flat wire representation of d, used both by the
// IPC schema frame and by extension/struct metadata that embeds a
// nested DType (spec.md §4.6: "the reader reconstructs dtype per child
// from parent metadata").
func (d DType) Encode(dst []byte) []byte {
	dst = append(dst, byte(d.kind))
	if d.kind == KNull {
		return dst
	}
	dst = appendBool(dst, d.nullable)
	switch d.kind {
	case KPrimitive:
		dst = append(dst, byte(d.ptype))
	case KStruct:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(d.fields)))
		for _, f := range d.fields {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(f.Name)))
			dst = append(dst, f.Name...)
			dst = f.DType.Encode(dst)
		}
	case KList:
		dst = d.elem.Encode(dst)
	case KExtension:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(d.extID)))
		dst = append(dst, d.extID...)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(d.extMeta)))
		dst = append(dst, d.extMeta...)
		dst = d.extStore.Encode(dst)
	}
	return dst
}

func appendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// Decode parses a DType from the front of src, returning the dtype and
// the remaining unconsumed bytes.
func Decode(src []byte) (DType, []byte, error) {
	if len(src) < 1 {
		return DType{}, nil, fmt.Errorf("vxtype: truncated dtype")
	}
	kind := Kind(src[0])
	src = src[1:]
	if kind == KNull {
		return Null(), src, nil
	}
	if len(src) < 1 {
		return DType{}, nil, fmt.Errorf("vxtype: truncated dtype nullability")
	}
	nullable := src[0] != 0
	src = src[1:]
	switch kind {
	case KBool:
		return Bool(nullable), src, nil
	case KUtf8:
		return Utf8(nullable), src, nil
	case KBinary:
		return Binary(nullable), src, nil
	case KPrimitive:
		if len(src) < 1 {
			return DType{}, nil, fmt.Errorf("vxtype: truncated ptype")
		}
		p := PType(src[0])
		return Primitive(p, nullable), src[1:], nil
	case KStruct:
		if len(src) < 4 {
			return DType{}, nil, fmt.Errorf("vxtype: truncated struct field count")
		}
		n := binary.LittleEndian.Uint32(src)
		src = src[4:]
		fields := make([]Field, n)
		for i := range fields {
			if len(src) < 4 {
				return DType{}, nil, fmt.Errorf("vxtype: truncated field name length")
			}
			nl := binary.LittleEndian.Uint32(src)
			src = src[4:]
			if uint32(len(src)) < nl {
				return DType{}, nil, fmt.Errorf("vxtype: truncated field name")
			}
			name := string(src[:nl])
			src = src[nl:]
			var ft DType
			var err error
			ft, src, err = Decode(src)
			if err != nil {
				return DType{}, nil, err
			}
			fields[i] = Field{Name: name, DType: ft}
		}
		return Struct(fields, nullable), src, nil
	case KList:
		elem, rest, err := Decode(src)
		if err != nil {
			return DType{}, nil, err
		}
		return List(elem, nullable), rest, nil
	case KExtension:
		if len(src) < 4 {
			return DType{}, nil, fmt.Errorf("vxtype: truncated ext id length")
		}
		idl := binary.LittleEndian.Uint32(src)
		src = src[4:]
		id := string(src[:idl])
		src = src[idl:]
		if len(src) < 4 {
			return DType{}, nil, fmt.Errorf("vxtype: truncated ext meta length")
		}
		ml := binary.LittleEndian.Uint32(src)
		src = src[4:]
		meta := append([]byte(nil), src[:ml]...)
		src = src[ml:]
		storage, rest, err := Decode(src)
		if err != nil {
			return DType{}, nil, err
		}
		return Extension(id, meta, storage, nullable), rest, nil
	default:
		return DType{}, nil, fmt.Errorf("vxtype: unknown dtype kind %d", kind)
	}
}
