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
	"fmt"
	"io"

	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/vxtype"
)

// StreamWriter writes a Schema frame once, followed by zero or more
// Batch frames, onto w. It is not safe for concurrent use: spec.md
// §4.6 describes a single-producer/single-consumer protocol.
type StreamWriter struct {
	w           *bufio.Writer
	dtype       vxtype.DType
	wroteSchema bool
	comp        Compressor
}

// NewStreamWriter returns a StreamWriter for the given root dtype. comp
// may be nil for no buffer compression, or e.g. compr.Compression("zstd")
// to compress every batch's buffers before they are framed.
func NewStreamWriter(w io.Writer, dtype vxtype.DType, comp Compressor) *StreamWriter {
	return &StreamWriter{w: bufio.NewWriter(w), dtype: dtype, comp: comp}
}

// WriteSchema writes the Schema frame. It must be called exactly once,
// before any WriteBatch call.
func (s *StreamWriter) WriteSchema() error {
	if s.wroteSchema {
		return fmt.Errorf("ipc: WriteSchema called more than once")
	}
	payload := append([]byte{tagSchema}, s.dtype.Encode(nil)...)
	if err := writeFrame(s.w, payload); err != nil {
		return wrapIO("write schema", err)
	}
	s.wroteSchema = true
	return nil
}

// WriteBatch writes one Batch frame for a. a's dtype must equal the
// stream's schema dtype.
func (s *StreamWriter) WriteBatch(a array.Array) error {
	if !s.wroteSchema {
		return fmt.Errorf("ipc: WriteBatch called before WriteSchema")
	}
	if !a.DType().Equal(s.dtype) {
		return fmt.Errorf("ipc: batch dtype %s does not match schema dtype %s", a.DType(), s.dtype)
	}
	payload := encodeBatch(a, s.comp)
	if err := writeFrame(s.w, payload); err != nil {
		return wrapIO("write batch", err)
	}
	return nil
}

// Flush flushes any buffered output to the underlying writer. Callers
// should Flush once they are done writing batches.
func (s *StreamWriter) Flush() error {
	return wrapIO("flush", s.w.Flush())
}
