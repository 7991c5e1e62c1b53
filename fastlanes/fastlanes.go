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

// Package fastlanes implements BitPacked integer encoding: values
// packed to a width smaller than their native type, grouped into
// fixed 1024-element chunks, with out-of-range values carried as
// sparse patches.
package fastlanes

import (
	"encoding/binary"
	"math/bits"
	"sort"

	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/validity"
	"github.com/a10y/vortex/vxerror"
	"github.com/a10y/vortex/vxtype"
)

// EncodingID is the registry id for BitPacked arrays.
const EncodingID = "fastlanes.bitpacked"

const chunkSize = 1024

// unpackChunkThreshold is the number of lanes above which bulk-
// unpacking a whole chunk beats unpacking lanes one at a time.
const unpackChunkThreshold = 8

type meta struct {
	bitWidth           uint8
	signed             bool
	length             int
	offsetInFirstChunk uint16
}

func encodeMeta(m meta) []byte {
	buf := make([]byte, 12)
	buf[0] = m.bitWidth
	if m.signed {
		buf[1] = 1
	}
	binary.LittleEndian.PutUint64(buf[2:10], uint64(m.length))
	binary.LittleEndian.PutUint16(buf[10:12], m.offsetInFirstChunk)
	return buf
}

func decodeMeta(b []byte) meta {
	return meta{
		bitWidth:           b[0],
		signed:             b[1] != 0,
		length:             int(binary.LittleEndian.Uint64(b[2:10])),
		offsetInFirstChunk: binary.LittleEndian.Uint16(b[10:12]),
	}
}

func bitMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// packChunk bit-packs exactly chunkSize values (zero-pad the tail
// yourself) into ceil(chunkSize*bitWidth/8) == 128*bitWidth bytes,
// lanes written least-significant-bit first.
func packChunk(vals []uint64, bitWidth int) []byte {
	out := make([]byte, chunkSize*bitWidth/8)
	if bitWidth == 0 {
		return out
	}
	bitpos := 0
	for _, v := range vals {
		v &= bitMask(bitWidth)
		for b := 0; b < bitWidth; b++ {
			if v&(1<<uint(b)) != 0 {
				out[bitpos/8] |= 1 << uint(bitpos%8)
			}
			bitpos++
		}
	}
	return out
}

func unpackSingle(chunk []byte, bitWidth int, lane int) uint64 {
	if bitWidth == 0 {
		return 0
	}
	bitpos := lane * bitWidth
	var v uint64
	for b := 0; b < bitWidth; b++ {
		if chunk[bitpos/8]&(1<<uint(bitpos%8)) != 0 {
			v |= 1 << uint(b)
		}
		bitpos++
	}
	return v
}

func unpackChunk(chunk []byte, bitWidth int, n int) []uint64 {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = unpackSingle(chunk, bitWidth, i)
	}
	return out
}

// Encode bit-packs values (widened, unsigned representation of
// ptype's native width) to bitWidth bits per lane in 1024-lane
// chunks. Values that don't fit bitWidth bits are recorded as
// patches rather than truncated silently.
func Encode(ptype vxtype.PType, values []uint64, v validity.Validity, bitWidth int) array.Array {
	n := len(values)
	nchunks := (n + chunkSize - 1) / chunkSize
	packed := make([]byte, nchunks*chunkSize*bitWidth/8)
	mask := bitMask(bitWidth)

	var excPos []int64
	var excVals []uint64
	for c := 0; c < nchunks; c++ {
		lo := c * chunkSize
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		chunkVals := make([]uint64, chunkSize)
		for i := lo; i < hi; i++ {
			x := values[i]
			if bitWidth < 64 && x > mask {
				excPos = append(excPos, int64(i))
				excVals = append(excVals, x)
				x = 0
			}
			chunkVals[i-lo] = x
		}
		copy(packed[c*chunkSize*bitWidth/8:], packChunk(chunkVals, bitWidth))
	}

	m := meta{bitWidth: uint8(bitWidth), signed: ptype.IsSigned(), length: n}
	children := []array.Array{array.NewPrimitive(vxtype.U8, packed, validity.None())}
	if len(excPos) > 0 {
		idx := array.NewPrimitive(vxtype.I64, excPos, validity.None())
		native := nativeFromUint64(ptype, excVals)
		vals := array.NewPrimitive(ptype, native, validity.Valid())
		fillValue := scalar.Null(vxtype.Primitive(ptype, true))
		patches := array.NewSparse(idx, vals, n, fillValue)
		children = append(children, patches)
	}

	dtype := vxtype.Primitive(ptype, v.Kind() != validity.NonNullable)
	a := array.New(EncodingID, dtype, n, encodeMeta(m), children, nil)
	return a.WithValidity(v)
}

func nativeFromUint64(ptype vxtype.PType, xs []uint64) any {
	switch ptype {
	case vxtype.I8, vxtype.U8:
		out := make([]uint8, len(xs))
		for i, x := range xs {
			out[i] = uint8(x)
		}
		return out
	case vxtype.I16, vxtype.U16:
		out := make([]uint16, len(xs))
		for i, x := range xs {
			out[i] = uint16(x)
		}
		return out
	case vxtype.I32, vxtype.U32:
		out := make([]uint32, len(xs))
		for i, x := range xs {
			out[i] = uint32(x)
		}
		return out
	default:
		return xs
	}
}

func metaOf(a array.Array) meta              { return decodeMeta(a.Metadata()) }
func packedChild(a array.Array) array.Array  { return a.Child(0) }

func patchesChild(a array.Array) (array.Array, bool) {
	if a.NChildren() > 1 {
		return a.Child(1), true
	}
	return array.Array{}, false
}

// chunkBytes returns the packed bytes for chunk c (relative to the
// packed child's own chunk 0, which may already represent a sliced-
// away prefix of the original array).
func chunkBytes(a array.Array, bitWidth, c int) []byte {
	raw := packedChild(a).Buffer(0).Bytes()
	stride := chunkSize * bitWidth / 8
	return raw[c*stride : (c+1)*stride]
}

func castToDType(ptype vxtype.PType, dtype vxtype.DType, v uint64) scalar.Scalar {
	if !ptype.IsSigned() {
		switch ptype {
		case vxtype.U8:
			return scalar.Of(dtype, uint8(v))
		case vxtype.U16:
			return scalar.Of(dtype, uint16(v))
		case vxtype.U32:
			return scalar.Of(dtype, uint32(v))
		default:
			return scalar.Of(dtype, v)
		}
	}
	switch ptype {
	case vxtype.I8:
		return scalar.Of(dtype, int8(v))
	case vxtype.I16:
		return scalar.Of(dtype, int16(v))
	case vxtype.I32:
		return scalar.Of(dtype, int32(v))
	default:
		return scalar.Of(dtype, int64(v))
	}
}

// Encoding returns the vtable registered for "fastlanes.bitpacked", to
// be added to a Context via ctx.WithEncoding(fastlanes.Encoding()).
func Encoding() *array.Encoding {
	return &array.Encoding{
		ID:          EncodingID,
		Flatten:     flatten,
		ScalarAt:    scalarAt,
		Slice:       sliceArray,
		Take:        take,
		CanCompress: canCompress,
		Compress:    compress,
	}
}

// canCompress restricts BitPacked to integer arrays.
func canCompress(a array.Array, cfg array.CompressConfig) bool {
	return a.DType().PType().IsInt()
}

// compress flattens a to its raw integer values and bit-packs them at
// a width covering the bulk of the distribution (the 95th percentile
// of the sorted sample), leaving the rest as patches; like reuses a
// previously chosen width rather than re-deriving one.
func compress(a array.Array, like *array.Array, ctx *array.Context, cfg array.CompressConfig) (array.Array, error) {
	flat, err := array.Flatten(ctx, a)
	if err != nil {
		return array.Array{}, err
	}
	ptype := a.DType().PType()
	n := flat.Len()
	values := make([]uint64, n)
	for i := 0; i < n; i++ {
		values[i] = uint64(array.Int64At(flat, i))
	}

	bitWidth := chooseBitWidth(values)
	if like != nil && like.EncodingID() == EncodingID {
		bitWidth = int(metaOf(*like).bitWidth)
	}
	return Encode(ptype, values, flat.Validity(), bitWidth), nil
}

// chooseBitWidth picks the smallest width covering the 95th
// percentile of values, so the rare large outlier becomes a patch
// rather than forcing every lane wider.
func chooseBitWidth(values []uint64) int {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]uint64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * 95 / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	w := bits.Len64(sorted[idx])
	if w == 0 {
		w = 1
	}
	return w
}

func flatten(ctx *array.Context, a array.Array) (array.Array, error) {
	m := metaOf(a)
	ptype := a.DType().PType()
	n := m.length

	native := make([]uint64, n)
	nchunks := 0
	if n > 0 {
		nchunks = (int(m.offsetInFirstChunk) + n + chunkSize - 1) / chunkSize
	}
	for c := 0; c < nchunks; c++ {
		chunk := chunkBytes(a, int(m.bitWidth), c)
		lo, hi := chunkLocalRange(m, c, n)
		for lane := lo; lane < hi; lane++ {
			native[chunkAbsolute(m, c, lane)] = unpackSingle(chunk, int(m.bitWidth), lane)
		}
	}

	vals := nativeFromUint64(ptype, native)
	out := array.NewPrimitive(ptype, vals, a.Validity())
	patches, ok := patchesChild(a)
	if !ok {
		return out, nil
	}
	return applyPatches(ctx, out, patches, ptype)
}

// chunkLocalRange returns the [lo,hi) lane range within chunk c that
// belongs to this (possibly sliced) array's logical elements.
func chunkLocalRange(m meta, c, n int) (int, int) {
	lo := 0
	if c == 0 {
		lo = int(m.offsetInFirstChunk)
	}
	hi := chunkSize
	lastAbs := int(m.offsetInFirstChunk) + n
	if (c+1)*chunkSize > lastAbs {
		hi = lastAbs - c*chunkSize
	}
	return lo, hi
}

// chunkAbsolute maps a chunk-local lane back to the logical (0-based)
// position within this array.
func chunkAbsolute(m meta, c, lane int) int {
	return c*chunkSize + lane - int(m.offsetInFirstChunk)
}

func applyPatches(ctx *array.Context, out array.Array, patches array.Array, ptype vxtype.PType) (array.Array, error) {
	n := out.Len()
	for i := 0; i < n; i++ {
		s, err := array.ScalarAt(ctx, patches, i)
		if err != nil {
			return array.Array{}, err
		}
		if s.IsNull() {
			continue
		}
		out = overwriteAt(out, i, s)
	}
	return out, nil
}

// overwriteAt rebuilds out with position i replaced by s's value; used
// only while applying the (typically sparse) patch set during Flatten.
func overwriteAt(a array.Array, i int, s scalar.Scalar) array.Array {
	ptype := array.PrimitivePType(a)
	n := a.Len()
	native := make([]uint64, n)
	for j := 0; j < n; j++ {
		native[j] = uint64(array.Int64At(a, j))
	}
	native[i] = uint64(castScalarToInt64(s))
	vals := nativeFromUint64(ptype, native)
	return array.NewPrimitive(ptype, vals, a.Validity())
}

func castScalarToInt64(s scalar.Scalar) int64 {
	switch v := s.Value().(type) {
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return 0
	}
}

func scalarAt(ctx *array.Context, a array.Array, i int) (scalar.Scalar, error) {
	m := metaOf(a)
	if i < 0 || i >= m.length {
		return scalar.Scalar{}, vxerror.Bounds(i, 0, m.length)
	}
	ptype := a.DType().PType()

	if patches, ok := patchesChild(a); ok {
		if m.bitWidth == 0 || patches.IsValid(i) {
			s, err := array.ScalarAt(ctx, patches, i)
			if err != nil {
				return scalar.Scalar{}, err
			}
			if !s.IsNull() {
				return scalar.Of(a.DType(), s.Value()), nil
			}
		}
	}
	if !a.IsValid(i) {
		return scalar.Null(a.DType()), nil
	}

	abs := i + int(m.offsetInFirstChunk)
	c := abs / chunkSize
	lane := abs % chunkSize
	chunk := chunkBytes(a, int(m.bitWidth), c)
	v := unpackSingle(chunk, int(m.bitWidth), lane)
	return castToDType(ptype, a.DType(), v), nil
}

// sliceArray narrows the packed child to the chunks that cover
// [start,stop), sharing its backing bytes, and records the leading
// offset into the first of those chunks in offsetInFirstChunk, matching
// spec.md §4.5's no-repack slicing contract.
func sliceArray(ctx *array.Context, a array.Array, start, stop int) (array.Array, error) {
	m := metaOf(a)
	absStart := start + int(m.offsetInFirstChunk)
	absStop := stop + int(m.offsetInFirstChunk)
	firstChunk := absStart / chunkSize
	lastChunk := (absStop - 1) / chunkSize

	packed := packedChild(a)
	stride := chunkSize * int(m.bitWidth) / 8
	rawPacked, err := array.Slice(ctx, packed, firstChunk*stride, (lastChunk+1)*stride)
	if err != nil {
		return array.Array{}, err
	}

	newMeta := meta{
		bitWidth:           m.bitWidth,
		signed:             m.signed,
		length:             stop - start,
		offsetInFirstChunk: uint16(absStart - firstChunk*chunkSize),
	}
	children := []array.Array{rawPacked}
	if patches, ok := patchesChild(a); ok {
		slicedPatches, err := array.Slice(ctx, patches, start, stop)
		if err != nil {
			return array.Array{}, err
		}
		children = append(children, slicedPatches)
	}
	out := array.New(EncodingID, a.DType(), stop-start, encodeMeta(newMeta), children, nil)
	return out.WithValidity(a.Validity().Slice(start, stop)), nil
}

// take groups indices by 1024-lane chunk (the dominant cost is
// unpacking, not gathering) and, per chunk, bulk-unpacks when the
// group is larger than unpackChunkThreshold lanes, else unpacks lanes
// one at a time; patches are applied in a final bulk pass.
func take(ctx *array.Context, a array.Array, indices []int) (array.Array, error) {
	m := metaOf(a)
	ptype := a.DType().PType()

	groups := map[int][]int{}
	order := []int{}
	for pos, idx := range indices {
		c := (idx + int(m.offsetInFirstChunk)) / chunkSize
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], pos)
	}

	native := make([]uint64, len(indices))
	for _, c := range order {
		positions := groups[c]
		chunk := chunkBytes(a, int(m.bitWidth), c)
		if len(positions) > unpackChunkThreshold {
			full := unpackChunk(chunk, int(m.bitWidth), chunkSize)
			for _, pos := range positions {
				lane := (indices[pos] + int(m.offsetInFirstChunk)) % chunkSize
				native[pos] = full[lane]
			}
		} else {
			for _, pos := range positions {
				lane := (indices[pos] + int(m.offsetInFirstChunk)) % chunkSize
				native[pos] = unpackSingle(chunk, int(m.bitWidth), lane)
			}
		}
	}

	vals := nativeFromUint64(ptype, native)
	out := array.NewPrimitive(ptype, vals, a.Validity().Take(indices))

	if patches, ok := patchesChild(a); ok {
		taken, err := array.Take(ctx, patches, indices)
		if err != nil {
			return array.Array{}, err
		}
		return applyPatches(ctx, out, taken, ptype)
	}
	return out, nil
}
