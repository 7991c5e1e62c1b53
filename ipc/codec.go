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

package ipc

// Compressor and Decompressor mirror compr.Compressor/compr.Decompressor
// structurally (rather than importing compr directly) so this package
// depends on nothing beyond what a batch actually needs: a name to
// record on the wire and a Compress/Decompress pair. Any
// *compr.Compression("name") value already satisfies these.
type Compressor interface {
	Name() string
	Compress(src, dst []byte) []byte
}

type Decompressor interface {
	Name() string
	Decompress(src, dst []byte) error
}
