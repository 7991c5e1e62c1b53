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

package array

import (
	"testing"

	"github.com/a10y/vortex/date"
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxtype"
)

func TestLocalDateTimeAsArrow(t *testing.T) {
	ctx := Canonical()
	secs := []int64{0, 86400, 1_700_000_000}
	a := NewLocalDateTime(secs, Seconds, validity.Valid())

	got, err := AsArrow(ctx, a)
	if err != nil {
		t.Fatalf("AsArrow: %v", err)
	}
	times, ok := got.([]*date.Time)
	if !ok {
		t.Fatalf("AsArrow returned %T, want []*date.Time", got)
	}
	for i, want := range secs {
		if times[i] == nil {
			t.Fatalf("entry %d: unexpected nil", i)
		}
		if got := times[i].Unix(); got != want {
			t.Errorf("entry %d: Unix() = %d, want %d", i, got, want)
		}
	}
}

func TestLocalDateTimeSubtractScalarSeconds(t *testing.T) {
	ctx := Canonical()
	secs := []int64{1000, 2000, 3000}
	a := NewLocalDateTime(secs, Seconds, validity.Valid())

	s := scalar.Of(vxtype.Primitive(vxtype.I64, false), int64(500))
	out, err := SubtractScalar(ctx, a, s)
	if err != nil {
		t.Fatalf("SubtractScalar: %v", err)
	}
	storage := extensionStorage(out)
	want := []int64{500, 1500, 2500}
	for i, w := range want {
		if got := Int64At(storage, i); got != w {
			t.Errorf("entry %d: got %d, want %d", i, got, w)
		}
	}
}

func TestLocalDateTimeSubtractScalarSkipsNulls(t *testing.T) {
	ctx := Canonical()
	micros := []int64{10, 20, 30}
	v := validity.FromBools([]bool{true, false, true})
	a := NewLocalDateTime(micros, Micros, v)

	s := scalar.Of(vxtype.Primitive(vxtype.I64, false), int64(5))
	out, err := SubtractScalar(ctx, a, s)
	if err != nil {
		t.Fatalf("SubtractScalar: %v", err)
	}
	storage := extensionStorage(out)
	if storage.IsValid(1) {
		t.Fatalf("expected entry 1 to remain invalid")
	}
	if got := Int64At(storage, 0); got != 5 {
		t.Errorf("entry 0: got %d, want 5", got)
	}
	if got := Int64At(storage, 2); got != 25 {
		t.Errorf("entry 2: got %d, want 25", got)
	}
}

func TestLocalDateTimeFlattenUnimplemented(t *testing.T) {
	ctx := Canonical()
	a := NewLocalDateTime([]int64{1}, Seconds, validity.Valid())
	if _, err := Flatten(ctx, a); err == nil {
		t.Fatal("expected Flatten to be unimplemented for the extension encoding")
	}
}

func TestLocalDateTimeSliceAndTake(t *testing.T) {
	ctx := Canonical()
	secs := []int64{10, 20, 30, 40, 50}
	a := NewLocalDateTime(secs, Seconds, validity.Valid())

	sliced, err := Slice(ctx, a, 1, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if sliced.Len() != 3 {
		t.Fatalf("Slice length = %d, want 3", sliced.Len())
	}
	slicedStorage := extensionStorage(sliced)
	for i, want := range []int64{20, 30, 40} {
		if got := Int64At(slicedStorage, i); got != want {
			t.Errorf("sliced entry %d: got %d, want %d", i, got, want)
		}
	}

	taken, err := Take(ctx, a, []int{4, 0, 2})
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	takenStorage := extensionStorage(taken)
	for i, want := range []int64{50, 10, 30} {
		if got := Int64At(takenStorage, i); got != want {
			t.Errorf("taken entry %d: got %d, want %d", i, got, want)
		}
	}
}
