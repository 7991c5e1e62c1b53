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

package compress

import (
	"math"
	"testing"

	"github.com/a10y/vortex/alp"
	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/fastlanes"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxtype"
)

func smallConfig() array.CompressConfig {
	return array.CompressConfig{
		SampleSize:  32,
		SampleCount: 4,
		MaxDepth:    4,
		MinLen:      8,
	}
}

func TestCompressFloatsChoosesALP(t *testing.T) {
	n := 2000
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i) * 0.5
	}
	src := array.NewPrimitive(vxtype.F64, xs, validity.Valid())

	ctx := Context()
	out, err := Compress(ctx, src, nil, smallConfig())
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out.EncodingID() != alp.EncodingID {
		t.Fatalf("outer encoding = %s, want %s", out.EncodingID(), alp.EncodingID)
	}

	flat, err := array.Flatten(ctx, out)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range xs {
		if got := array.Float64At(flat, i); got != want {
			t.Errorf("value %d = %v, want %v", i, got, want)
		}
	}
}

func TestCompressFloatsRecursesIntoBitPacked(t *testing.T) {
	n := 4000
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i % 50)
	}
	src := array.NewPrimitive(vxtype.F64, xs, validity.Valid())

	ctx := Context()
	out, err := Compress(ctx, src, nil, smallConfig())
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out.EncodingID() != alp.EncodingID {
		t.Fatalf("outer encoding = %s, want %s", out.EncodingID(), alp.EncodingID)
	}
	encoded := out.Child(0)
	if encoded.EncodingID() != fastlanes.EncodingID {
		t.Fatalf("encoded child's encoding = %s, want %s (recursion into BitPacked)", encoded.EncodingID(), fastlanes.EncodingID)
	}

	flat, err := array.Flatten(ctx, out)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range xs {
		if got := array.Float64At(flat, i); got != want {
			t.Errorf("value %d = %v, want %v", i, got, want)
		}
	}
}

func TestCompressBelowMinLenLeavesArrayUnchanged(t *testing.T) {
	xs := []float64{1.5, 2.5, 3.5}
	src := array.NewPrimitive(vxtype.F64, xs, validity.Valid())

	cfg := smallConfig()
	cfg.MinLen = 100
	ctx := Context()
	out, err := Compress(ctx, src, nil, cfg)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out.EncodingID() != array.PrimitiveID {
		t.Fatalf("encoding = %s, want unchanged %s", out.EncodingID(), array.PrimitiveID)
	}
}

// TestCompressFloatsWithExceptionsEndToEnd covers spec.md §4.3/§7's
// per-candidate resilience when an ALP/BitPacked patches child (a
// SparseArray spanning the parent's full length, see alp.buildArray)
// itself needs to be sampled across more than one window:
// array.Sparse has no AsContiguous, so sampleArray's multi-window path
// must degrade to leaving that child uncompressed rather than failing
// the whole Compress call.
func TestCompressFloatsWithExceptionsEndToEnd(t *testing.T) {
	n := 2000
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i) * 0.5
		if i%13 == 0 {
			// a second value family; the ALP exceptions/patches
			// come from the many i*0.5 values that do not
			// round-trip at the shift chosen for this data.
			xs[i] = math.Pi
		}
	}
	src := array.NewPrimitive(vxtype.F64, xs, validity.Valid())

	ctx := Context()
	out, err := Compress(ctx, src, nil, smallConfig())
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out.EncodingID() != alp.EncodingID {
		t.Fatalf("outer encoding = %s, want %s", out.EncodingID(), alp.EncodingID)
	}

	flat, err := array.Flatten(ctx, out)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range xs {
		if got := array.Float64At(flat, i); got != want {
			t.Errorf("value %d = %v, want %v", i, got, want)
		}
	}
}

func TestCompressLikeReusesChosenEncoding(t *testing.T) {
	n := 1000
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i) * 0.25
	}
	src := array.NewPrimitive(vxtype.F64, xs, validity.Valid())
	ctx := Context()

	first, err := Compress(ctx, src, nil, smallConfig())
	if err != nil {
		t.Fatalf("first Compress: %v", err)
	}

	second, err := Compress(ctx, src, &first, smallConfig())
	if err != nil {
		t.Fatalf("second Compress: %v", err)
	}
	if second.EncodingID() != alp.EncodingID {
		t.Fatalf("encoding = %s, want %s (reused from like)", second.EncodingID(), alp.EncodingID)
	}
}
