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

package ipc

import (
	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/vxerror"
)

// encodeBatch serialises a Batch message: length, encoding_tree,
// compressor name (empty if uncompressed), buffer_lengths[] and the
// raw buffer bytes, per spec.md §4.6.
func encodeBatch(a array.Array, comp Compressor) []byte {
	dst := []byte{tagBatch}
	dst = appendUint32(dst, uint32(a.Len()))
	dst = appendLenPrefixed(dst, encodeNode(nil, a))
	name := ""
	if comp != nil {
		name = comp.Name()
	}
	dst = appendLenPrefixed(dst, []byte(name))
	bufs := collectBuffers(a, nil)
	dst = encodeBuffers(dst, bufs, comp)
	return dst
}

// decodeBatch reconstructs the Array a Batch message describes.
// decompFor resolves a compressor name (as recorded by the writer) to
// a Decompressor; it is only consulted when the frame declares a
// non-empty name.
func decodeBatch(payload []byte, decompFor func(name string) Decompressor) (array.Array, error) {
	if len(payload) < 1 || payload[0] != tagBatch {
		return array.Array{}, vxerror.Corrupt("ipc: expected batch frame")
	}
	rest := payload[1:]
	declaredLen, rest, err := takeUint32(rest)
	if err != nil {
		return array.Array{}, err
	}
	treeBytes, rest, err := takeLenPrefixed(rest)
	if err != nil {
		return array.Array{}, err
	}
	spec, leftover, err := decodeNode(treeBytes)
	if err != nil {
		return array.Array{}, err
	}
	if len(leftover) != 0 {
		return array.Array{}, vxerror.Corrupt("ipc: %d trailing bytes after encoding tree", len(leftover))
	}
	if spec.length != int(declaredLen) {
		return array.Array{}, vxerror.Corrupt("ipc: batch length %d does not match root node length %d", declaredLen, spec.length)
	}
	nameBytes, rest, err := takeLenPrefixed(rest)
	if err != nil {
		return array.Array{}, err
	}
	var decomp Decompressor
	if len(nameBytes) > 0 {
		if decompFor == nil {
			return array.Array{}, vxerror.Corrupt("ipc: batch compressed with %q but no decompressor available", nameBytes)
		}
		decomp = decompFor(string(nameBytes))
		if decomp == nil {
			return array.Array{}, vxerror.Corrupt("ipc: unknown buffer codec %q", nameBytes)
		}
	}
	bufs, rest, err := decodeBuffers(rest, decomp)
	if err != nil {
		return array.Array{}, err
	}
	if len(rest) != 0 {
		return array.Array{}, vxerror.Corrupt("ipc: %d trailing bytes after buffers", len(rest))
	}
	cur := &bufCursor{bufs: bufs}
	out, err := buildArray(spec, cur)
	if err != nil {
		return array.Array{}, err
	}
	if cur.pos != len(cur.bufs) {
		return array.Array{}, vxerror.Corrupt("ipc: %d unconsumed buffers", len(cur.bufs)-cur.pos)
	}
	return out, nil
}
