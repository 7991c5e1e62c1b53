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

// CompressConfig bundles the options the sampler-driven compressor
// consults, per spec.md §4.3. It lives alongside the Encoding vtable
// (rather than in package compress) so that CanCompressFn/CompressFn
// implementations can depend on array without importing compress.
type CompressConfig struct {
	// SampleSize is the number of contiguous elements per sample window.
	SampleSize int
	// SampleCount is the maximum number of non-overlapping sample
	// windows to draw.
	SampleCount int
	// MaxDepth bounds the recursion depth of the encoding tree.
	MaxDepth int
	// MinLen is the length below which compression is skipped
	// entirely and the input array is returned unchanged.
	MinLen int
	// Seed drives deterministic sample-window placement.
	Seed uint64
	// Allow, if non-empty, restricts candidates to these encoding ids.
	Allow []string
	// Deny excludes these encoding ids from the candidate set.
	Deny []string
}

// DefaultCompressConfig returns general-purpose settings: small-enough
// samples to be fast, large enough to be representative.
func DefaultCompressConfig() CompressConfig {
	return CompressConfig{
		SampleSize:  64,
		SampleCount: 8,
		MaxDepth:    4,
		MinLen:      64,
		Seed:        0,
	}
}

// Allowed reports whether encodingID may be used as a compression
// candidate under cfg's Allow/Deny lists.
func (cfg CompressConfig) Allowed(encodingID string) bool {
	if len(cfg.Allow) > 0 {
		found := false
		for _, id := range cfg.Allow {
			if id == encodingID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, id := range cfg.Deny {
		if id == encodingID {
			return false
		}
	}
	return true
}
