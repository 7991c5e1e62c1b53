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

// Encoding ids for the canonical and auxiliary encodings implemented
// in this package. ALP and BitPacked register themselves from their
// own packages (alp.EncodingID, fastlanes.EncodingID) to avoid an
// import cycle, but are listed here in spec.md §3's id list for
// reference: "vortex.alp", "fastlanes.bitpacked".
const (
	BoolID       = "vortex.bool"
	PrimitiveID  = "vortex.primitive"
	VarBinViewID = "vortex.varbinview"
	SparseID     = "vortex.sparse"
	ConstantID   = "vortex.constant"
	ChunkedID    = "vortex.chunked"
	ExtensionID  = "vortex.ext"
	RoaringID    = "vortex.roaring_bool"

	LocalDateTimeExtID = "vortex.localdatetime"
)

// Canonical returns a Context with every canonical and auxiliary
// encoding implemented by this package registered, mirroring
// Context::default().with_encoding(E) chaining from spec.md §6.
func Canonical() *Context {
	return Default().
		WithEncoding(boolEncoding()).
		WithEncoding(primitiveEncoding()).
		WithEncoding(varBinViewEncoding()).
		WithEncoding(sparseEncoding()).
		WithEncoding(constantEncoding()).
		WithEncoding(chunkedEncoding()).
		WithEncoding(extensionEncoding()).
		WithEncoding(roaringBoolEncoding())
}
