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
	"bufio"
	"io"

	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/heap"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// DecompressorFor resolves a buffer codec name, as recorded by a
// StreamWriter, to the Decompressor that undoes it. Passing nil means
// the reader can only read uncompressed streams.
type DecompressorFor func(name string) Decompressor

// StreamReader reads a Schema frame (captured at construction, per
// spec.md §4.6's "StreamReader::try_new reads the schema and captures
// dtype") followed by an iterator of Batch frames.
type StreamReader struct {
	r         *bufio.Reader
	dtype     vxtype.DType
	decompFor DecompressorFor
}

// NewStreamReader reads and validates the stream's Schema frame,
// returning a reader positioned at the first Batch frame.
func NewStreamReader(r io.Reader, decompFor DecompressorFor) (*StreamReader, error) {
	br := bufio.NewReader(r)
	payload, err := readFrame(br)
	if err != nil {
		if err == io.EOF {
			return nil, vxerror.Corrupt("ipc: stream ended before schema frame")
		}
		return nil, err
	}
	if len(payload) < 1 || payload[0] != tagSchema {
		return nil, vxerror.Corrupt("ipc: expected schema frame")
	}
	dtype, rest, err := vxtype.Decode(payload[1:])
	if err != nil {
		return nil, vxerror.Corrupt("ipc: bad schema dtype: %v", err)
	}
	if len(rest) != 0 {
		return nil, vxerror.Corrupt("ipc: %d trailing bytes after schema", len(rest))
	}
	return &StreamReader{r: br, dtype: dtype, decompFor: decompFor}, nil
}

// DType returns the stream's schema dtype.
func (s *StreamReader) DType() vxtype.DType { return s.dtype }

// Next returns the next batch's Array, or io.EOF once the stream is
// exhausted. Each returned Array has dtype DType().
func (s *StreamReader) Next() (array.Array, error) {
	payload, err := readFrame(s.r)
	if err != nil {
		return array.Array{}, err
	}
	a, err := decodeBatch(payload, s.decompFor)
	if err != nil {
		return array.Array{}, err
	}
	if !a.DType().Equal(s.dtype) {
		return array.Array{}, vxerror.Corrupt("ipc: batch dtype %s does not match schema dtype %s", a.DType(), s.dtype)
	}
	return a, nil
}

// Take evaluates take(indices) lazily against the stream: it decodes
// batches one at a time with Next, stopping after the batch that holds
// the largest requested index, gathers only from the batches that
// contain a requested index, and returns those elements concatenated in
// ascending index order (spec.md §4.6, §8 scenario 6). Batches between
// hits are still decoded in full.
//
// indices need not be sorted on input; they are heap-ordered internally
// so each batch is visited at most once as the cursor advances
// monotonically through the stream.
func (s *StreamReader) Take(ctx *array.Context, indices []int) (array.Array, error) {
	pending := append([]int(nil), indices...)
	less := func(a, b int) bool { return a < b }
	heap.OrderSlice(pending, less)

	var parts []array.Array
	offset := 0
	for len(pending) > 0 {
		batch, err := s.Next()
		if err == io.EOF {
			return array.Array{}, vxerror.Bounds(pending[0], 0, offset)
		}
		if err != nil {
			return array.Array{}, err
		}
		batchLen := batch.Len()

		var local []int
		for len(pending) > 0 && pending[0] < offset+batchLen {
			i := heap.PopSlice(&pending, less)
			local = append(local, i-offset)
		}
		if len(local) > 0 {
			part, err := array.Take(ctx, batch, local)
			if err != nil {
				return array.Array{}, err
			}
			parts = append(parts, part)
		}
		offset += batchLen
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return array.AsContiguous(ctx, parts)
}
