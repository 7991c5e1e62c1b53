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

// Package compress implements the sampler-driven recursive compressor
// described in spec.md §4.3: given an array and a Context enumerating
// candidate encodings, it selects the encoding whose compressed form
// of a sample is smallest, applies it to the full array, and recurses
// into the result's children.
package compress

import (
	"encoding/binary"

	"github.com/a10y/vortex/alp"
	"github.com/a10y/vortex/array"
	"github.com/a10y/vortex/fastlanes"
	"github.com/dchest/siphash"
)

// Context returns a Canonical array.Context augmented with every
// encoding this package knows how to select as a compression target.
func Context() *array.Context {
	return array.Canonical().
		WithEncoding(alp.Encoding()).
		WithEncoding(fastlanes.Encoding())
}

// Compress chooses and applies an encoding tree for a, per spec.md
// §4.3's algorithm: skip below min_len or past max_depth, reuse like
// directly when provided, otherwise sample candidates and pick the
// smallest, then recurse into the winner's children (child 0 as the
// main payload under Named, later children as auxiliary under
// Auxiliary with the winning encoding excluded from their own
// candidate set).
func Compress(ctx *array.Context, a array.Array, like *array.Array, cfg array.CompressConfig) (array.Array, error) {
	return compressAt(ctx, a, like, cfg, 0)
}

func compressAt(ctx *array.Context, a array.Array, like *array.Array, cfg array.CompressConfig, depth int) (array.Array, error) {
	if a.Len() < cfg.MinLen || depth >= cfg.MaxDepth {
		return a, nil
	}

	if like != nil {
		if enc, ok := ctx.Lookup(like.EncodingID()); ok && enc.Compress != nil {
			out, err := enc.Compress(a, like, ctx, cfg)
			if err == nil {
				return recurseChildren(ctx, out, cfg, depth+1)
			}
		}
	}

	best, err := chooseEncoding(ctx, a, cfg)
	if err != nil {
		return array.Array{}, err
	}
	if best == nil {
		return a, nil
	}
	out, err := best.Compress(a, nil, ctx, cfg)
	if err != nil {
		return a, nil
	}
	return recurseChildren(ctx, out, cfg, depth+1)
}

// chooseEncoding samples a, compresses the sample under every
// eligible candidate, and returns the encoding producing the smallest
// serialized sample (nil if no candidate applies).
//
// A sampling failure (e.g. a's shape has no AsContiguous and needs more
// than one window, such as a SparseArray patches child) is treated the
// same as every candidate declining a: there is nothing to choose, not
// a hard error, so the caller leaves a unchanged.
func chooseEncoding(ctx *array.Context, a array.Array, cfg array.CompressConfig) (*array.Encoding, error) {
	sample, err := sampleArray(ctx, a, cfg)
	if err != nil {
		return nil, nil
	}

	var best *array.Encoding
	bestSize := -1
	for _, enc := range ctx.Candidates() {
		if !cfg.Allowed(enc.ID) || enc.CanCompress == nil || enc.Compress == nil {
			continue
		}
		if !enc.CanCompress(a, cfg) {
			continue
		}
		compressed, err := enc.Compress(sample, nil, ctx, cfg)
		if err != nil {
			continue
		}
		size := serializedSize(compressed)
		if bestSize < 0 || size < bestSize {
			bestSize = size
			best = enc
		}
	}
	return best, nil
}

// sampleArray draws up to cfg.SampleCount non-overlapping windows of
// cfg.SampleSize elements, placed deterministically from cfg.Seed via
// siphash, and concatenates them into one array for candidate sizing.
func sampleArray(ctx *array.Context, a array.Array, cfg array.CompressConfig) (array.Array, error) {
	n := a.Len()
	size := cfg.SampleSize
	if size <= 0 || size >= n {
		return a, nil
	}
	count := cfg.SampleCount
	if count <= 0 {
		count = 1
	}
	maxWindows := n / size
	if count > maxWindows {
		count = maxWindows
	}

	offsets := sampleOffsets(cfg.Seed, maxWindows, count, size, n)
	windows := make([]array.Array, 0, len(offsets))
	for _, off := range offsets {
		w, err := array.Slice(ctx, a, off, off+size)
		if err != nil {
			return array.Array{}, err
		}
		windows = append(windows, w)
	}
	if len(windows) == 1 {
		return windows[0], nil
	}
	return array.AsContiguous(ctx, windows)
}

// sampleOffsets picks count distinct window start offsets among the
// maxWindows evenly-spaced candidate slots, ordered by a siphash of
// (seed, slot index) so the selection is deterministic in seed alone
// and stable regardless of map/slice iteration order elsewhere.
func sampleOffsets(seed uint64, maxWindows, count, size, n int) []int {
	type scored struct {
		slot int
		h    uint64
	}
	scores := make([]scored, maxWindows)
	var buf [8]byte
	for i := 0; i < maxWindows; i++ {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		scores[i] = scored{slot: i, h: siphash.Hash(seed, 0, buf[:])}
	}
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].h < scores[j-1].h; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	if count > len(scores) {
		count = len(scores)
	}
	picked := scores[:count]
	offsets := make([]int, len(picked))
	for i, s := range picked {
		offsets[i] = s.slot * size
	}
	// restore ascending offset order so the sample preserves the
	// source's element order within the concatenated window.
	for i := 1; i < len(offsets); i++ {
		for j := i; j > 0 && offsets[j] < offsets[j-1]; j-- {
			offsets[j], offsets[j-1] = offsets[j-1], offsets[j]
		}
	}
	return offsets
}

// serializedSize estimates the on-wire byte size of a: its own
// buffers plus metadata, plus its children's sizes recursively. This
// stands in for actually running the IPC encoder during candidate
// selection.
func serializedSize(a array.Array) int {
	size := len(a.Metadata())
	for i := 0; i < a.NBuffers(); i++ {
		size += a.Buffer(i).Len()
	}
	for i := 0; i < a.NChildren(); i++ {
		size += serializedSize(a.Child(i))
	}
	return size
}

// recurseChildren recompresses out's children in place: child 0 (the
// main payload, if any) is compressed under ctx.Named("child0"); any
// further children are treated as auxiliary (e.g. patches) under
// ctx.Auxiliary, with the parent's own encoding excluded from their
// candidate set so it cannot immediately re-wrap its own patches.
func recurseChildren(ctx *array.Context, out array.Array, cfg array.CompressConfig, depth int) (array.Array, error) {
	if out.NChildren() == 0 {
		return out, nil
	}
	children := make([]array.Array, out.NChildren())
	for i, child := range out.Children() {
		var childCtx *array.Context
		if i == 0 {
			childCtx = ctx.Named("child0")
		} else {
			childCtx = ctx.Auxiliary("patches").Excluding(out.EncodingID())
		}
		compressed, err := compressAt(childCtx, child, nil, cfg, depth)
		if err != nil {
			return array.Array{}, err
		}
		children[i] = compressed
	}
	return out.WithChildren(children), nil
}
