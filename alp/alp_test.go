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

package alp

import (
	"math"
	"testing"

	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/validity"
)

func ctx() *array.Context {
	return array.Canonical().WithEncoding(Encoding())
}

func TestEncodeF64RoundTrip(t *testing.T) {
	xs := []float64{1.234, 2.718, 3.14159, 4.0, -8.5, 0.0}
	enc := EncodeF64(xs, validity.Valid(), nil)
	if enc.Len() != len(xs) {
		t.Fatalf("length = %d, want %d", enc.Len(), len(xs))
	}
	flat, err := array.Flatten(ctx(), enc)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range xs {
		got := array.Float64At(flat, i)
		if got != want {
			t.Errorf("value %d = %v, want %v", i, got, want)
		}
	}
}

func TestEncodeF32RoundTrip(t *testing.T) {
	xs := []float32{1.25, -3.5, 0, 100.125}
	enc := EncodeF32(xs, validity.Valid(), nil)
	flat, err := array.Flatten(ctx(), enc)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range xs {
		got := float32(array.Float64At(flat, i))
		if got != want {
			t.Errorf("value %d = %v, want %v", i, got, want)
		}
	}
}

func TestEncodeNulls(t *testing.T) {
	xs := []float64{1.5, 0, 2.5, 0}
	v := validity.FromBools([]bool{true, false, true, false})
	enc := EncodeF64(xs, v, nil)

	c := ctx()
	for i, valid := range []bool{true, false, true, false} {
		s, err := array.ScalarAt(c, enc, i)
		if err != nil {
			t.Fatalf("ScalarAt(%d): %v", i, err)
		}
		if s.IsNull() == valid {
			t.Errorf("index %d: IsNull() = %v, want %v", i, s.IsNull(), !valid)
		}
	}

	flat, err := array.Flatten(c, enc)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if flat.IsValid(1) || flat.IsValid(3) {
		t.Error("flattened null positions should remain invalid")
	}
	if !flat.IsValid(0) || array.Float64At(flat, 0) != 1.5 {
		t.Error("flattened valid positions should round-trip")
	}
}

// Values that cannot be represented exactly at the chosen shift (here
// 1.1, 2.2, π and 4.4 at the largest f64 shift, 17) must round-trip via
// the patches child rather than losing precision.
func TestEncodeExceptionsRoundTrip(t *testing.T) {
	xs := []float64{1.1, 2.2, math.Pi, 4.4, 5.5}
	enc := EncodeF64(xs, validity.Valid(), nil)
	if !hasPatches(enc) {
		t.Fatal("expected patches child for a value requiring full float64 precision")
	}

	c := ctx()
	for i, want := range xs {
		s, err := array.ScalarAt(c, enc, i)
		if err != nil {
			t.Fatalf("ScalarAt(%d): %v", i, err)
		}
		if s.Value().(float64) != want {
			t.Errorf("ScalarAt(%d) = %v, want %v", i, s.Value(), want)
		}
	}

	flat, err := array.Flatten(c, enc)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i, want := range xs {
		if got := array.Float64At(flat, i); got != want {
			t.Errorf("flattened value %d = %v, want %v", i, got, want)
		}
	}
}

func TestEncodeLikeReusesExponents(t *testing.T) {
	base := EncodeF64([]float64{12.34, 56.78}, validity.Valid(), nil)
	exp := metaExponents(base)

	other := EncodeF64([]float64{1.2, 3.4, 5.6}, validity.Valid(), &exp)
	if got := metaExponents(other); got != exp {
		t.Errorf("exponents = %+v, want reused %+v", got, exp)
	}
}

func TestChooseShiftStaysWithinMagnitude(t *testing.T) {
	values := []float64{1e8, 2e8, 3e8}
	s := chooseShift(values, maxShiftF64, maxIntMagnitudeI64)
	scale := pow10(s)
	for _, v := range values {
		if math.Abs(v*scale) > maxIntMagnitudeI64 {
			t.Fatalf("chosen shift %d overflows for value %v", s, v)
		}
	}
}
