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

package fastlanes

import (
	"testing"

	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxtype"
)

func ctx() *array.Context {
	return array.Canonical().WithEncoding(Encoding())
}

func TestTakeIndices(t *testing.T) {
	values := make([]uint64, 4096)
	for i := range values {
		values[i] = uint64(i % 63)
	}
	packed := Encode(vxtype.U8, values, validity.Valid(), 6)

	c := ctx()
	indices := []int{0, 125, 2047, 2049, 2151, 2790}
	result, err := array.Take(c, packed, indices)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	want := []int64{0, 62, 31, 33, 9, 18}
	for i, w := range want {
		got := array.Int64At(result, i)
		if got != w {
			t.Errorf("result[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestScalarAtAllPositions(t *testing.T) {
	values := make([]uint64, 257)
	for i := range values {
		values[i] = uint64(i)
	}
	packed := Encode(vxtype.U32, values, validity.Valid(), 8)
	if _, ok := patchesChild(packed); !ok {
		t.Fatal("expected patches for a value (256) exceeding an 8-bit width")
	}

	c := ctx()
	for i, want := range values {
		s, err := array.ScalarAt(c, packed, i)
		if err != nil {
			t.Fatalf("ScalarAt(%d): %v", i, err)
		}
		if got := s.Value().(uint32); uint64(got) != want {
			t.Errorf("ScalarAt(%d) = %v, want %d", i, got, want)
		}
	}
}

func TestTakeWithPatches(t *testing.T) {
	n := 300
	values := make([]uint64, n)
	for i := range values {
		values[i] = uint64(i)
	}
	packed := Encode(vxtype.U32, values, validity.Valid(), 8)

	c := ctx()
	indices := []int{0, 1, 200, 255, 256, 270, 299}
	result, err := array.Take(c, packed, indices)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	for i, idx := range indices {
		got := array.Int64At(result, i)
		if got != int64(values[idx]) {
			t.Errorf("result[%d] (source index %d) = %d, want %d", i, idx, got, values[idx])
		}
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	values := make([]uint64, 2500)
	for i := range values {
		values[i] = uint64(i % 100)
	}
	packed := Encode(vxtype.U16, values, validity.Valid(), 7)

	c := ctx()
	flat, err := array.Flatten(c, packed)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range values {
		if got := array.Int64At(flat, i); got != int64(want) {
			t.Errorf("flat[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestSliceAcrossChunks(t *testing.T) {
	values := make([]uint64, 3000)
	for i := range values {
		values[i] = uint64(i % 50)
	}
	packed := Encode(vxtype.U8, values, validity.Valid(), 6)

	c := ctx()
	start, stop := 1000, 2500
	sliced, err := array.Slice(c, packed, start, stop)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if sliced.Len() != stop-start {
		t.Fatalf("sliced length = %d, want %d", sliced.Len(), stop-start)
	}
	for i := 0; i < sliced.Len(); i++ {
		s, err := array.ScalarAt(c, sliced, i)
		if err != nil {
			t.Fatalf("ScalarAt(%d): %v", i, err)
		}
		want := values[start+i]
		if got := uint64(s.Value().(uint8)); got != want {
			t.Errorf("sliced[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestNullValidityPreserved(t *testing.T) {
	values := []uint64{1, 2, 3, 4}
	v := validity.FromBools([]bool{true, false, true, false})
	packed := Encode(vxtype.U8, values, v, 4)

	c := ctx()
	for i, valid := range []bool{true, false, true, false} {
		s, err := array.ScalarAt(c, packed, i)
		if err != nil {
			t.Fatalf("ScalarAt(%d): %v", i, err)
		}
		if s.IsNull() == valid {
			t.Errorf("index %d: IsNull() = %v, want %v", i, s.IsNull(), !valid)
		}
	}
}
