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

// Package ipc implements Vortex's streaming wire format: a sequence of
// length-delimited frames, a Schema message written once, and zero or
// more Batch messages following it, each serialising an encoding tree
// and its buffers.
package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/a10y/vortex/vxerror"
)

// maxFrameLen bounds a single frame's declared length, guarding against
// a corrupt or adversarial length prefix driving an unbounded
// allocation before any content has been validated.
const maxFrameLen = 1 << 31

const (
	tagSchema byte = 0
	tagBatch  byte = 1
)

// writeFrame writes a length-delimited frame: a 4-byte little-endian
// length followed by payload, matching spec.md §4.6's framing.
func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one length-delimited frame's payload. It returns
// io.EOF unmodified when the stream ends cleanly between frames (the
// array reader iterator's "no more batches" signal), and wraps any
// other truncation as Corruption so a partially read frame is never
// mistaken for a clean end of stream.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, vxerror.Corrupt("ipc: truncated frame length: %v", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, vxerror.Corrupt("ipc: frame length %d exceeds maximum", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, vxerror.Corrupt("ipc: truncated frame body: %v", err)
	}
	return payload, nil
}

func takeUint32(src []byte) (uint32, []byte, error) {
	if len(src) < 4 {
		return 0, nil, vxerror.Corrupt("ipc: truncated uint32 field")
	}
	return binary.LittleEndian.Uint32(src), src[4:], nil
}

func takeBytes(src []byte, n int) ([]byte, []byte, error) {
	if len(src) < n {
		return nil, nil, vxerror.Corrupt("ipc: truncated field: want %d bytes, have %d", n, len(src))
	}
	return src[:n], src[n:], nil
}

func takeLenPrefixed(src []byte) ([]byte, []byte, error) {
	n, rest, err := takeUint32(src)
	if err != nil {
		return nil, nil, err
	}
	return takeBytes(rest, int(n))
}

func appendUint32(dst []byte, n uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, n)
}

func appendLenPrefixed(dst []byte, p []byte) []byte {
	dst = appendUint32(dst, uint32(len(p)))
	return append(dst, p...)
}

func wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ipc: %s: %w", op, err)
}
