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

// Package alp implements Adaptive Lossless floating-Point encoding: a
// float array is represented as an integer stream plus a pair of
// decimal exponents, with values that do not round-trip exactly
// carried as sparse patches.
package alp

import (
	"math"

	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// EncodingID is the registry id for ALP arrays.
const EncodingID = "vortex.alp"

// Exponents is the (e, f) decimal exponent pair chosen once per array.
// A value x is represented as ALPInt = round(x * 10^(e-f)); decoding
// multiplies back by 10^(f-e). f <= e always: the net shift e-f is the
// number of decimal places the encoder moves the value by.
type Exponents struct {
	E uint8
	F uint8
}

func pow10(n int) float64 {
	if n >= 0 {
		return math.Pow(10, float64(n))
	}
	return 1 / math.Pow(10, float64(-n))
}

// shift is the net decimal exponent e-f applied by Exponents.
func (x Exponents) shift() int { return int(x.E) - int(x.F) }

const maxShiftF32 = 9
const maxShiftF64 = 17

// maxIntMagnitude bounds |x * 10^shift| so the rounded result fits the
// integer width without overflow, with headroom for rounding.
const maxIntMagnitudeI32 = float64(1) << 30
const maxIntMagnitudeI64 = float64(1) << 62

// chooseShift picks the largest decimal shift in [0, maxShift] that
// keeps every finite sampled value within the integer's safe range,
// maximising the chance later values round-trip exactly.
func chooseShift(values []float64, maxShift int, maxMagnitude float64) int {
	for s := maxShift; s > 0; s-- {
		scale := pow10(s)
		overflow := false
		for _, x := range values {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				continue
			}
			if math.Abs(x*scale) > maxMagnitude {
				overflow = true
				break
			}
		}
		if !overflow {
			return s
		}
	}
	return 0
}

// EncodeF32 builds an ALP array from xs, choosing exponents from the
// data itself unless like is non-nil (in which case its exponents are
// reused verbatim, matching spec.md §4.3's "like" reuse contract).
func EncodeF32(xs []float32, v validity.Validity, like *Exponents) array.Array {
	asF64 := make([]float64, len(xs))
	for i, x := range xs {
		asF64[i] = float64(x)
	}
	exp, ints, excPos, excVals := encode(asF64, v, maxShiftF32, maxIntMagnitudeI32, like)
	encVals := make([]int32, len(ints))
	for i, v := range ints {
		encVals[i] = int32(v)
	}
	encoded := array.NewPrimitive(vxtype.I32, encVals, v)
	return buildArray(vxtype.F32, len(xs), exp, encoded, excPos, excVals, toF32Slice(excVals))
}

// EncodeF64 is EncodeF32's float64 counterpart.
func EncodeF64(xs []float64, v validity.Validity, like *Exponents) array.Array {
	exp, ints, excPos, excVals := encode(xs, v, maxShiftF64, maxIntMagnitudeI64, like)
	encoded := array.NewPrimitive(vxtype.I64, ints, v)
	return buildArray(vxtype.F64, len(xs), exp, encoded, excPos, excVals, excVals)
}

func toF32Slice(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = float32(x)
	}
	return out
}

// encode runs the core ALP algorithm over float64-widened values,
// returning the chosen exponents, the (int64-widened) ALPInt stream,
// and the positions/values of exceptions that did not round-trip.
func encode(xs []float64, v validity.Validity, maxShift int, maxMagnitude float64, like *Exponents) (Exponents, []int64, []int64, []float64) {
	var exp Exponents
	if like != nil {
		exp = *like
	} else {
		var sample []float64
		for i, x := range xs {
			if v.IsValid(i) {
				sample = append(sample, x)
			}
		}
		s := chooseShift(sample, maxShift, maxMagnitude)
		exp = Exponents{E: uint8(s), F: 0}
	}

	shift := exp.shift()
	up, down := pow10(shift), pow10(-shift)

	ints := make([]int64, len(xs))
	var excPos []int64
	var excVals []float64
	var lastGood int64
	for i, x := range xs {
		if !v.IsValid(i) {
			ints[i] = 0
			continue
		}
		candidate := int64(math.Round(x * up))
		if float64(candidate)*down == x {
			ints[i] = candidate
			lastGood = candidate
			continue
		}
		excPos = append(excPos, int64(i))
		excVals = append(excVals, x)
		ints[i] = lastGood
	}
	return exp, ints, excPos, excVals
}

func buildArray(ptype vxtype.PType, length int, exp Exponents, encoded array.Array, excPos []int64, excF64 []float64, excNative any) array.Array {
	meta := []byte{exp.E, exp.F, 0}
	var children []array.Array
	children = append(children, encoded)
	if len(excPos) > 0 {
		meta[2] = 1
		idx := array.NewPrimitive(vxtype.I64, excPos, validity.None())
		values := array.NewPrimitive(ptype, excNative, validity.Valid())
		fillValue := scalar.Null(vxtype.Primitive(ptype, true))
		patches := array.NewSparse(idx, values, length, fillValue)
		children = append(children, patches)
	}
	return array.New(EncodingID, vxtype.Primitive(ptype, encoded.DType().Nullable()), length, meta, children, nil)
}

func metaExponents(a array.Array) Exponents {
	md := a.Metadata()
	return Exponents{E: md[0], F: md[1]}
}

func hasPatches(a array.Array) bool { return len(a.Metadata()) > 2 && a.Metadata()[2] != 0 }

func encodedChild(a array.Array) array.Array { return a.Child(0) }

func patchesChild(a array.Array) (array.Array, bool) {
	if hasPatches(a) {
		return a.Child(1), true
	}
	return array.Array{}, false
}

func decodeSingle(ptype vxtype.PType, encodedInt int64, exp Exponents) float64 {
	return float64(encodedInt) * pow10(-exp.shift())
}

// Encoding returns the vtable registered for "vortex.alp", to be added
// to a Context via ctx.WithEncoding(alp.Encoding()).
func Encoding() *array.Encoding {
	return &array.Encoding{
		ID:      EncodingID,
		Flatten: flatten,
		ScalarAt: func(ctx *array.Context, a array.Array, i int) (scalar.Scalar, error) {
			return scalarAt(ctx, a, i)
		},
		CanCompress: canCompress,
		Compress:    compress,
	}
}

// canCompress restricts ALP to float arrays: it is the compressor's
// stand-in for "is this a column of floats worth re-representing as
// scaled integers".
func canCompress(a array.Array, cfg array.CompressConfig) bool {
	p := a.DType().PType()
	return p == vxtype.F32 || p == vxtype.F64
}

// compress flattens a to raw float values and re-encodes them,
// reusing like's exponents when like is itself an ALP array (spec.md
// §4.3's "like" reuse contract).
func compress(a array.Array, like *array.Array, ctx *array.Context, cfg array.CompressConfig) (array.Array, error) {
	flat, err := array.Flatten(ctx, a)
	if err != nil {
		return array.Array{}, err
	}
	ptype := a.DType().PType()
	n := flat.Len()
	v := flat.Validity()

	var likeExp *Exponents
	if like != nil && like.EncodingID() == EncodingID {
		e := metaExponents(*like)
		likeExp = &e
	}

	if ptype == vxtype.F32 {
		vals := make([]float32, n)
		for i := 0; i < n; i++ {
			vals[i] = float32(array.Float64At(flat, i))
		}
		return EncodeF32(vals, v, likeExp), nil
	}
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = array.Float64At(flat, i)
	}
	return EncodeF64(vals, v, likeExp), nil
}

func flatten(ctx *array.Context, a array.Array) (array.Array, error) {
	encoded, err := array.Flatten(ctx, encodedChild(a))
	if err != nil {
		return array.Array{}, err
	}
	ptype := a.DType().PType()
	exp := metaExponents(a)
	n := a.Len()
	v := encoded.Validity()

	var out array.Array
	switch ptype {
	case vxtype.F32:
		vals := make([]float32, n)
		for i := 0; i < n; i++ {
			vals[i] = float32(decodeSingle(ptype, array.Int64At(encoded, i), exp))
		}
		out = array.NewPrimitive(ptype, vals, v)
	case vxtype.F64:
		vals := make([]float64, n)
		for i := 0; i < n; i++ {
			vals[i] = decodeSingle(ptype, array.Int64At(encoded, i), exp)
		}
		out = array.NewPrimitive(ptype, vals, v)
	default:
		return array.Array{}, vxerror.Unimplemented("flatten", EncodingID)
	}

	patches, ok := patchesChild(a)
	if !ok {
		return out, nil
	}
	return applyPatches(ctx, out, patches, ptype)
}

func applyPatches(ctx *array.Context, out array.Array, patches array.Array, ptype vxtype.PType) (array.Array, error) {
	n := out.Len()
	if ptype == vxtype.F32 {
		buf := make([]float32, n)
		for i := 0; i < n; i++ {
			buf[i] = float32(array.Float64At(out, i))
		}
		for i := 0; i < n; i++ {
			ps, err := array.ScalarAt(ctx, patches, i)
			if err != nil {
				return array.Array{}, err
			}
			if !ps.IsNull() {
				buf[i] = ps.Value().(float32)
			}
		}
		return array.NewPrimitive(ptype, buf, out.Validity()), nil
	}
	buf := make([]float64, n)
	for i := 0; i < n; i++ {
		buf[i] = array.Float64At(out, i)
	}
	for i := 0; i < n; i++ {
		ps, err := array.ScalarAt(ctx, patches, i)
		if err != nil {
			return array.Array{}, err
		}
		if !ps.IsNull() {
			buf[i] = ps.Value().(float64)
		}
	}
	return array.NewPrimitive(ptype, buf, out.Validity()), nil
}

func scalarAt(ctx *array.Context, a array.Array, i int) (scalar.Scalar, error) {
	if patches, ok := patchesChild(a); ok {
		ps, err := array.ScalarAt(ctx, patches, i)
		if err != nil {
			return scalar.Scalar{}, err
		}
		if !ps.IsNull() {
			return scalar.Of(a.DType(), ps.Value()), nil
		}
	}
	encoded := encodedChild(a)
	if !encoded.IsValid(i) {
		return scalar.Null(a.DType()), nil
	}
	exp := metaExponents(a)
	v := decodeSingle(a.DType().PType(), array.Int64At(encoded, i), exp)
	if a.DType().PType() == vxtype.F32 {
		return scalar.Of(a.DType(), float32(v)), nil
	}
	return scalar.Of(a.DType(), v), nil
}
