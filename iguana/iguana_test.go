// Copyright (C) 2023 Sneller, Inc.
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

package iguana

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundtrip(t *testing.T) {
	testRoundtrip(t, []byte("hello, world"))
	testRoundtrip(t, nil)

	// a bunch of short-length strings, re-sliced for small test cases
	buf := []byte(`this is a short string that we will re-slice for small test-cases`)
	for len(buf) < minOffset*3 {
		buf = append(buf, buf...)
	}
	t.Run("short-strings", func(t *testing.T) {
		for i := range buf {
			testRoundtrip(t, buf[i:])
		}
	})

	buf = bytes.Repeat([]byte{'a'}, 3*minOffset)
	t.Run("short-repeats", func(t *testing.T) {
		for i := range buf {
			testRoundtrip(t, buf[i:])
		}
	})

	// a synthetic columnar-ish payload: runs of repeated values
	// interspersed with pseudo-random bytes, similar in shape to what
	// compr's buffer compression sees on a poorly-compressible column.
	rng := rand.New(rand.NewSource(1))
	var columnar []byte
	for i := 0; i < 64; i++ {
		columnar = append(columnar, bytes.Repeat([]byte{byte(i)}, 40)...)
		tail := make([]byte, 16)
		rng.Read(tail)
		columnar = append(columnar, tail...)
	}
	t.Run("columnar-like", func(t *testing.T) {
		testRoundtrip(t, columnar)
	})
}

func testRoundtrip(t *testing.T, src []byte) {
	srcLen := len(src)

	var dec Decoder
	var enc Encoder
	dst, err := enc.Compress(src, nil, DefaultANSThreshold)
	if err != nil {
		t.Fatal(err)
	}

	// encoder state must reset correctly between calls
	dst2, err := enc.Compress(src, nil, DefaultANSThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, dst2) {
		t.Fatal("second Compress not equivalent?")
	}

	// provide a buffer that is perfectly-sized so any
	// out-of-bounds write is visible as a length mismatch
	out := make([]byte, srcLen, srcLen+minLength)
	ret, err := dec.DecompressTo(out[:0:srcLen], dst)
	if err != nil {
		t.Fatal(err)
	}
	tail := out[len(out):cap(out)]
	for i := range tail {
		if tail[i] != 0 {
			t.Fatalf("wrote garbage past the end of the destination buffer: %x", tail)
		}
	}
	if !bytes.Equal(src, ret) {
		t.Fatalf("round-trip mismatch: src len=%d ret len=%d", len(src), len(ret))
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte("hello, world"))
	f.Add([]byte(""))
	f.Add(bytes.Repeat([]byte{'x'}, 256))
	f.Fuzz(func(t *testing.T, ref []byte) {
		var dec Decoder
		var enc Encoder
		compressed, err := enc.Compress(ref, nil, DefaultANSThreshold)
		if err != nil {
			return
		}
		decompressed, err := dec.Decompress(compressed)
		if err != nil {
			t.Fatalf("round-trip failed: %s", err)
		}
		if !bytes.Equal(ref, decompressed) {
			t.Fatal("round trip result is not equal to the input")
		}
	})
}

func BenchmarkCompress(b *testing.B) {
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 256)
	var enc Encoder
	dst, err := enc.Compress(src, nil, DefaultANSThreshold)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportMetric(float64(len(src)), "input-bytes")
	b.ReportMetric(float64(len(dst)), "output-bytes")
	b.ReportAllocs()
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dst, err = enc.Compress(src, dst[:0], DefaultANSThreshold)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecompress(b *testing.B) {
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 256)
	var enc Encoder
	dst, err := enc.Compress(src, nil, DefaultANSThreshold)
	if err != nil {
		b.Fatal(err)
	}
	var dec Decoder
	b.ReportAllocs()
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	var tmp []byte
	for i := 0; i < b.N; i++ {
		tmp, err = dec.DecompressTo(tmp[:0], dst)
		if err != nil {
			b.Fatal(err)
		}
	}
}
