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

import "fmt"

// Kind identifies which DType variant a value holds.
type Kind uint8

const (
	KNull Kind = iota
	KBool
	KPrimitive
	KUtf8
	KBinary
	KStruct
	KList
	KExtension
)

// DType is Vortex's logical type. It is a closed tagged union; the
// fields relevant to a given Kind are documented per accessor below.
// DType values are immutable and safe to copy and compare with Equal.
type DType struct {
	kind     Kind
	ptype    PType  // KPrimitive
	nullable bool   // all kinds except KNull
	fields   []Field // KStruct
	elem     *DType  // KList
	extID    string  // KExtension
	extMeta  []byte  // KExtension
	extStore *DType  // KExtension: storage dtype
}

// Field is one member of a Struct dtype.
type Field struct {
	Name  string
	DType DType
}

func Null() DType { return DType{kind: KNull} }

func Bool(nullable bool) DType { return DType{kind: KBool, nullable: nullable} }

func Primitive(p PType, nullable bool) DType {
	return DType{kind: KPrimitive, ptype: p, nullable: nullable}
}

func Utf8(nullable bool) DType { return DType{kind: KUtf8, nullable: nullable} }

func Binary(nullable bool) DType { return DType{kind: KBinary, nullable: nullable} }

func Struct(fields []Field, nullable bool) DType {
	return DType{kind: KStruct, fields: fields, nullable: nullable}
}

func List(elem DType, nullable bool) DType {
	return DType{kind: KList, elem: &elem, nullable: nullable}
}

// Extension constructs an extension dtype identified by extID, carrying
// opaque metadata and a storage dtype that describes how the extension's
// child array is physically represented.
func Extension(extID string, meta []byte, storage DType, nullable bool) DType {
	return DType{kind: KExtension, extID: extID, extMeta: meta, extStore: &storage, nullable: nullable}
}

func (d DType) Kind() Kind      { return d.kind }
func (d DType) Nullable() bool  { return d.kind != KNull && d.nullable }
func (d DType) PType() PType    { return d.ptype }
func (d DType) Fields() []Field { return d.fields }
func (d DType) Elem() DType     { return *d.elem }
func (d DType) ExtID() string   { return d.extID }
func (d DType) ExtMeta() []byte { return d.extMeta }
func (d DType) ExtStorage() DType { return *d.extStore }

// IsInt reports whether d is a Primitive dtype over an integer PType.
func (d DType) IsInt() bool {
	return d.kind == KPrimitive && d.ptype.IsInt()
}

// AsNullable returns a copy of d with nullability forced to true.
func (d DType) AsNullable() DType {
	d2 := d
	d2.nullable = true
	return d2
}

// AsNonNullable returns a copy of d with nullability forced to false.
func (d DType) AsNonNullable() DType {
	d2 := d
	d2.nullable = false
	return d2
}

// Equal reports whether d and other describe the same logical type,
// including nullability.
func (d DType) Equal(other DType) bool {
	if d.kind != other.kind || d.nullable != other.nullable {
		return false
	}
	switch d.kind {
	case KPrimitive:
		return d.ptype == other.ptype
	case KStruct:
		if len(d.fields) != len(other.fields) {
			return false
		}
		for i := range d.fields {
			if d.fields[i].Name != other.fields[i].Name || !d.fields[i].DType.Equal(other.fields[i].DType) {
				return false
			}
		}
		return true
	case KList:
		return d.elem.Equal(*other.elem)
	case KExtension:
		return d.extID == other.extID && string(d.extMeta) == string(other.extMeta)
	default:
		return true
	}
}

func (d DType) String() string {
	switch d.kind {
	case KNull:
		return "null"
	case KBool:
		return nullSuffix("bool", d.nullable)
	case KPrimitive:
		return nullSuffix(d.ptype.String(), d.nullable)
	case KUtf8:
		return nullSuffix("utf8", d.nullable)
	case KBinary:
		return nullSuffix("binary", d.nullable)
	case KStruct:
		return nullSuffix(fmt.Sprintf("struct(%d fields)", len(d.fields)), d.nullable)
	case KList:
		return nullSuffix(fmt.Sprintf("list(%s)", d.elem), d.nullable)
	case KExtension:
		return nullSuffix(fmt.Sprintf("ext(%s)", d.extID), d.nullable)
	default:
		return "?"
	}
}

func nullSuffix(s string, nullable bool) string {
	if nullable {
		return s + "?"
	}
	return s
}
