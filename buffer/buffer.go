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

// Package buffer implements Buffer, an owned or borrowed immutable byte
// range with an alignment guarantee suitable for SIMD-style unpacking of
// fixed-width elements (bit-packed lanes, ALP integer streams, views).
package buffer

import (
	"unsafe"

	"github.com/a10y/vortex/ints"
)

// WireAlignment is the alignment Vortex's IPC format pads buffer
// payloads to between frames.
const WireAlignment = 64

// Buffer is an immutable, reference-counted-by-sharing byte range.
// Once installed on an Array it is never mutated; Slice returns a new
// Buffer view over the same backing storage.
type Buffer struct {
	data []byte
}

// New wraps p as a Buffer. The caller must not mutate p afterwards.
func New(p []byte) Buffer { return Buffer{data: p} }

// Alloc allocates a new zeroed Buffer of n bytes whose backing array is
// aligned to align bytes, mirroring the original's AlignedVec allocator.
// align must be a power of two.
func Alloc(n int, align int) Buffer {
	raw := make([]byte, n+align)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	off := int(ints.AlignUp(uint(base), uint(align)) - uint(base))
	return Buffer{data: raw[off : off+n]}
}

// Bytes returns the buffer's contents. Callers must not mutate the
// returned slice.
func (b Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes in the buffer.
func (b Buffer) Len() int { return len(b.data) }

// Slice returns a Buffer viewing b.data[start:stop], sharing storage.
func (b Buffer) Slice(start, stop int) Buffer {
	return Buffer{data: b.data[start:stop]}
}

// Concat copies the contents of bufs into a single new Buffer.
func Concat(bufs []Buffer) Buffer {
	total := 0
	for _, b := range bufs {
		total += b.Len()
	}
	out := make([]byte, 0, total)
	for _, b := range bufs {
		out = append(out, b.data...)
	}
	return Buffer{data: out}
}

// PadTo returns the number of padding bytes required to bring n up to
// the next multiple of WireAlignment.
func PadTo(n int) int {
	return int(ints.AlignUp(uint(n), WireAlignment)) - n
}
