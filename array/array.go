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

// Package array implements Vortex's polymorphic array handle, the
// encoding registry that gives it meaning, and the compute-kernel
// dispatch that operates on it without requiring a canonical
// decompressed form.
package array

import (
	"github.com/a10y/vortex/buffer"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxtype"
)

// Array is the universal, immutable handle for a Vortex column under
// any encoding. Mutating operations (Slice, Take, Cast, ...) return new
// Array values that may share buffers or children with the input;
// Array itself is never mutated after construction.
type Array struct {
	encodingID string
	dtype      vxtype.DType
	length     int
	metadata   []byte
	children   []Array
	buffers    []buffer.Buffer
	stats      *statCache

	// validity is carried as array-level state rather than as an
	// explicit child slot: most encodings' validity is one of the
	// compact NonNullable/AllValid/AllInvalid variants with no backing
	// allocation, and only the ArrayMask variant needs a real bitmap.
	// The IPC layer serializes it as part of the node's metadata
	// record (a tag byte, plus an inline bitmap buffer for
	// ArrayMask) instead of recursing into a bool-array child, which
	// spec.md's "child[0]: validity" leaves as an implementation
	// choice for encodings that materialize it at all.
	validity validity.Validity
}

// New constructs an Array. metadata is copied; children and buffers are
// shared by reference (the caller must treat them as immutable from
// this point on), matching spec.md §3's ownership model.
func New(encodingID string, dtype vxtype.DType, length int, metadata []byte, children []Array, buffers []buffer.Buffer) Array {
	md := append([]byte(nil), metadata...)
	return Array{
		encodingID: encodingID,
		dtype:      dtype,
		length:     length,
		metadata:   md,
		children:   children,
		buffers:    buffers,
		stats:      newStatCache(),
	}
}

func (a Array) EncodingID() string       { return a.encodingID }
func (a Array) DType() vxtype.DType      { return a.dtype }
func (a Array) Len() int                 { return a.length }
func (a Array) Metadata() []byte         { return a.metadata }
func (a Array) NChildren() int           { return len(a.children) }
func (a Array) NBuffers() int            { return len(a.buffers) }

// Child returns the i-th child array.
func (a Array) Child(i int) Array { return a.children[i] }

// Children returns the child arrays in order. The returned slice must
// not be mutated.
func (a Array) Children() []Array { return a.children }

// Validity returns the array's null mask.
func (a Array) Validity() validity.Validity { return a.validity }

// WithValidity returns a shallow copy of a carrying v as its null mask.
func (a Array) WithValidity(v validity.Validity) Array {
	a.validity = v
	return a
}

// IsValid reports whether element i is non-null, consulting the
// array's own validity without requiring a Context.
func (a Array) IsValid(i int) bool { return a.validity.IsValid(i) }

// LogicalValidity returns the array's validity mask, the spec.md §4.1
// analogue of "logical_validity()".
func (a Array) LogicalValidity() validity.Validity { return a.validity }

// Buffer returns the i-th raw buffer.
func (a Array) Buffer(i int) buffer.Buffer { return a.buffers[i] }

// Buffers returns the raw buffers in order. The returned slice must
// not be mutated.
func (a Array) Buffers() []buffer.Buffer { return a.buffers }

// WithChildren returns a shallow copy of a with its children replaced,
// used by the compressor to swap in recompressed children without
// reconstructing metadata/buffers (both unaffected by child encoding).
func (a Array) WithChildren(children []Array) Array {
	a.children = children
	return a
}

// withLen returns a shallow copy of a with a new reported length,
// sharing the same stats cache.
func (a Array) withLen(n int) Array {
	a.length = n
	return a
}
