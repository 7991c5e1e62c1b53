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
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/compr"
	"github.com/a10y/vortex/compress"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

func intArray(n int) array.Array {
	xs := make([]int32, n)
	for i := range xs {
		xs[i] = int32(i)
	}
	return array.NewPrimitive(vxtype.I32, xs, validity.Valid())
}

func TestRoundTripSingleBatch(t *testing.T) {
	src := intArray(1000)
	var buf bytes.Buffer

	w := NewStreamWriter(&buf, src.DType(), nil)
	if err := w.WriteSchema(); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	if err := w.WriteBatch(src); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r, err := NewStreamReader(&buf, nil)
	if err != nil {
		t.Fatalf("NewStreamReader: %v", err)
	}
	if !r.DType().Equal(src.DType()) {
		t.Fatalf("dtype mismatch: got %s, want %s", r.DType(), src.DType())
	}
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.Len() != src.Len() {
		t.Fatalf("length mismatch: got %d, want %d", got.Len(), src.Len())
	}
	for i := 0; i < src.Len(); i++ {
		if array.Int64At(got, i) != array.Int64At(src, i) {
			t.Fatalf("value %d: got %d, want %d", i, array.Int64At(got, i), array.Int64At(src, i))
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after one batch, got %v", err)
	}
}

func TestRoundTripNulls(t *testing.T) {
	xs := make([]int64, 200)
	valid := make([]bool, 200)
	for i := range xs {
		xs[i] = int64(i * i)
		valid[i] = i%7 != 0
	}
	src := array.NewPrimitive(vxtype.I64, xs, validity.FromBools(valid))

	var buf bytes.Buffer
	w := NewStreamWriter(&buf, src.DType(), nil)
	w.WriteSchema()
	w.WriteBatch(src)
	w.Flush()

	r, err := NewStreamReader(&buf, nil)
	if err != nil {
		t.Fatalf("NewStreamReader: %v", err)
	}
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i := range xs {
		if got.IsValid(i) != src.IsValid(i) {
			t.Fatalf("validity %d: got %v, want %v", i, got.IsValid(i), src.IsValid(i))
		}
		if got.IsValid(i) && array.Int64At(got, i) != xs[i] {
			t.Fatalf("value %d: got %d, want %d", i, array.Int64At(got, i), xs[i])
		}
	}
}

func TestRoundTripCompressedEncodingTree(t *testing.T) {
	n := 4000
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i % 50)
	}
	flat := array.NewPrimitive(vxtype.F64, xs, validity.Valid())

	ctx := compress.Context()
	cfg := array.CompressConfig{SampleSize: 32, SampleCount: 4, MaxDepth: 4, MinLen: 8}
	src, err := compress.Compress(ctx, flat, nil, cfg)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	var buf bytes.Buffer
	w := NewStreamWriter(&buf, src.DType(), nil)
	w.WriteSchema()
	if err := w.WriteBatch(src); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	w.Flush()

	r, err := NewStreamReader(&buf, nil)
	if err != nil {
		t.Fatalf("NewStreamReader: %v", err)
	}
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.EncodingID() != src.EncodingID() {
		t.Fatalf("encoding id: got %s, want %s", got.EncodingID(), src.EncodingID())
	}

	gotFlat, err := array.Flatten(ctx, got)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range xs {
		if got := array.Float64At(gotFlat, i); got != want {
			t.Fatalf("value %d: got %v, want %v", i, got, want)
		}
	}
}

func TestRoundTripWithBufferCompression(t *testing.T) {
	src := intArray(2000)
	var buf bytes.Buffer

	comp := compr.Compression("zstd")
	w := NewStreamWriter(&buf, src.DType(), comp)
	w.WriteSchema()
	if err := w.WriteBatch(src); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	w.Flush()

	decompFor := func(name string) Decompressor { return compr.Decompression(name) }
	r, err := NewStreamReader(&buf, decompFor)
	if err != nil {
		t.Fatalf("NewStreamReader: %v", err)
	}
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i := 0; i < src.Len(); i++ {
		if array.Int64At(got, i) != array.Int64At(src, i) {
			t.Fatalf("value %d: got %d, want %d", i, array.Int64At(got, i), array.Int64At(src, i))
		}
	}
}

// TestLazyTakeOverManyBatches mirrors spec.md §8 scenario 6: write a
// stream of batches and confirm stream.Take resolves a scattered index
// set spanning several batches to the right elements, in order.
func TestLazyTakeOverManyBatches(t *testing.T) {
	const batches = 20
	const rowsPerBatch = 500
	var buf bytes.Buffer

	dtype := vxtype.Primitive(vxtype.I32, false)
	w := NewStreamWriter(&buf, dtype, nil)
	w.WriteSchema()
	for b := 0; b < batches; b++ {
		xs := make([]int32, rowsPerBatch)
		for i := range xs {
			xs[i] = int32(b*rowsPerBatch + i)
		}
		if err := w.WriteBatch(array.NewPrimitive(vxtype.I32, xs, validity.None())); err != nil {
			t.Fatalf("WriteBatch %d: %v", b, err)
		}
	}
	w.Flush()

	r, err := NewStreamReader(&buf, nil)
	if err != nil {
		t.Fatalf("NewStreamReader: %v", err)
	}

	indices := []int{1, 501, 1999, 2001, 2151, 7900, 9499}
	ctx := array.Canonical()
	out, err := r.Take(ctx, indices)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if out.Len() != len(indices) {
		t.Fatalf("Take length = %d, want %d", out.Len(), len(indices))
	}
	for k, idx := range indices {
		if got := array.Int64At(out, k); got != int64(idx) {
			t.Fatalf("Take[%d] = %d, want %d (index %d)", k, got, idx, idx)
		}
	}
}

func TestCorruptFrameLengthIsReportedAsCorruption(t *testing.T) {
	src := intArray(10)
	var buf bytes.Buffer
	w := NewStreamWriter(&buf, src.DType(), nil)
	w.WriteSchema()
	w.WriteBatch(src)
	w.Flush()

	raw := buf.Bytes()
	// corrupt the batch frame's length prefix (first frame is schema,
	// second is the batch) to claim more bytes than actually follow.
	schemaLen := int(raw[0]) | int(raw[1])<<8 | int(raw[2])<<16 | int(raw[3])<<24
	batchLenOff := 4 + schemaLen
	raw[batchLenOff] = 0xff
	raw[batchLenOff+1] = 0xff

	r, err := NewStreamReader(bytes.NewReader(raw), nil)
	if err != nil {
		t.Fatalf("NewStreamReader: %v", err)
	}
	_, err = r.Next()
	if err == nil {
		t.Fatal("expected an error reading a corrupted frame")
	}
	var corrupt *vxerror.Corruption
	if !errors.As(err, &corrupt) {
		t.Fatalf("error = %v, want *vxerror.Corruption", err)
	}
}
