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

// Package validity implements the per-element null mask sum type used
// by every array encoding. The compact variants (NonNullable, AllValid,
// AllInvalid) avoid allocating a bitmap in the overwhelmingly common
// cases; only Array carries an explicit per-element mask.
package validity

import "github.com/a10y/vortex/ints"

// Kind identifies which Validity variant a value holds.
type Kind uint8

const (
	NonNullable Kind = iota
	AllValid
	AllInvalid
	ArrayMask
)

// Validity is the null mask of an array. The zero value is NonNullable.
type Validity struct {
	kind Kind
	bits []uint64 // ArrayMask: packed bits, 1 == valid
	n    int       // ArrayMask: number of logical elements
}

func None() Validity     { return Validity{kind: NonNullable} }
func Valid() Validity    { return Validity{kind: AllValid} }
func Invalid() Validity  { return Validity{kind: AllInvalid} }

// FromBools builds an ArrayMask-backed Validity from a slice of bools,
// one per element. It may be simplified to AllValid/AllInvalid.
func FromBools(valid []bool) Validity {
	allTrue, allFalse := true, true
	for _, v := range valid {
		if v {
			allFalse = false
		} else {
			allTrue = false
		}
	}
	if allTrue {
		return Valid()
	}
	if allFalse {
		return Invalid()
	}
	words := (len(valid) + 63) / 64
	bits := make([]uint64, words)
	for i, v := range valid {
		if v {
			ints.SetBit(bits, i)
		}
	}
	return Validity{kind: ArrayMask, bits: bits, n: len(valid)}
}

func (v Validity) Kind() Kind { return v.kind }
func (v Validity) Len() int   { return v.n }

// IsValid reports whether element i is non-null.
func (v Validity) IsValid(i int) bool {
	switch v.kind {
	case NonNullable, AllValid:
		return true
	case AllInvalid:
		return false
	default:
		return ints.TestBit(v.bits, i)
	}
}

// Slice restricts the mask to [start, stop), preserving the most
// compact representation.
func (v Validity) Slice(start, stop int) Validity {
	switch v.kind {
	case NonNullable, AllValid, AllInvalid:
		return v
	default:
		n := stop - start
		bools := make([]bool, n)
		for i := 0; i < n; i++ {
			bools[i] = v.IsValid(start + i)
		}
		return FromBools(bools)
	}
}

// Take gathers the mask at the given indices, preserving the most
// compact representation.
func (v Validity) Take(indices []int) Validity {
	switch v.kind {
	case NonNullable, AllValid, AllInvalid:
		return v
	default:
		bools := make([]bool, len(indices))
		for i, idx := range indices {
			bools[i] = v.IsValid(idx)
		}
		return FromBools(bools)
	}
}

// Concat concatenates validity masks end to end, preserving
// NonNullable only if every input is NonNullable, per spec.md's
// "AsContiguous promotes NonNullable validity to AllValid eagerly"
// open-question resolution: callers that need that promotion should
// call PromoteNonNullable first.
func Concat(vs []Validity) Validity {
	allNonNullable := true
	for _, v := range vs {
		if v.kind != NonNullable {
			allNonNullable = false
			break
		}
	}
	if allNonNullable {
		return None()
	}
	var bools []bool
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			bools = append(bools, v.IsValid(i))
		}
	}
	return FromBools(bools)
}

// PromoteNonNullable turns a NonNullable validity of length n into an
// explicit AllValid, leaving other kinds untouched. AsContiguous uses
// this before concatenating mixed-representation inputs (spec.md §9
// Open Questions).
func (v Validity) PromoteNonNullable() Validity {
	if v.kind == NonNullable {
		return Valid()
	}
	return v
}

// Bools materializes the mask as a []bool of length n.
func (v Validity) Bools(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v.IsValid(i)
	}
	return out
}
