// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package fits

import (
	"testing"

	"github.com/hoxca/fpimageio/internal/fiterr"
	"github.com/hoxca/fpimageio/internal/fitsheader"
)

func newTestHeader(kv map[string]fitsheader.Value) *fitsheader.Header {
	return &fitsheader.Header{Keys: kv}
}

func strVal(s string) fitsheader.Value  { return fitsheader.Value{Kind: fitsheader.KindString, S: s} }
func intVal(i int64) fitsheader.Value   { return fitsheader.Value{Kind: fitsheader.KindInt, I: i} }
func floatVal(f float64) fitsheader.Value { return fitsheader.Value{Kind: fitsheader.KindFloat, F: f} }
func boolVal(b bool) fitsheader.Value   { return fitsheader.Value{Kind: fitsheader.KindBool, B: b} }

// TestParseDatasecRoundTrip is spec section 8's "Datasec parse round-trip"
// invariant: for every [x1:x2,y1:y2] with 1<=x1<=x2, 1<=y1<=y2, the parser
// yields (x1-1, y1-1, x2-x1+1, y2-y1+1).
func TestParseDatasecRoundTrip(t *testing.T) {
	cases := []struct{ x1, x2, y1, y2 int }{
		{1, 1, 1, 1},
		{1, 512, 1, 2000},
		{9, 522, 1, 2000},
		{100, 100, 50, 50},
	}
	for _, c := range cases {
		s := sprintfDatasec(c.x1, c.x2, c.y1, c.y2)
		r, err := parseDatasec(s)
		if err != nil {
			t.Fatalf("parseDatasec(%q): %v", s, err)
		}
		want := Rect{X: c.x1 - 1, Y: c.y1 - 1, W: c.x2 - c.x1 + 1, H: c.y2 - c.y1 + 1}
		if r != want {
			t.Fatalf("parseDatasec(%q) = %+v, want %+v", s, r, want)
		}
	}
}

func sprintfDatasec(x1, x2, y1, y2 int) string {
	return "[" + itoa(x1) + ":" + itoa(x2) + "," + itoa(y1) + ":" + itoa(y2) + "]"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func TestParseDatasecMalformed(t *testing.T) {
	for _, s := range []string{"", "[1:2]", "[2:1,1:2]", "[1:2,2:1]", "garbage"} {
		if _, err := parseDatasec(s); err == nil {
			t.Fatalf("parseDatasec(%q): expected error", s)
		} else if _, ok := err.(*fiterr.MalformedDatasec); !ok {
			t.Fatalf("parseDatasec(%q): expected MalformedDatasec, got %T", s, err)
		}
	}
}

func uncompressedAmpHeader() *fitsheader.Header {
	return newTestHeader(map[string]fitsheader.Value{
		"BITPIX":  intVal(32),
		"NAXIS1":  intVal(10),
		"NAXIS2":  intVal(20),
		"DATASEC": strVal("[1:8,1:18]"),
		"PC1_1Q":  floatVal(1),
		"PC1_2Q":  floatVal(0),
		"PC2_1Q":  floatVal(0),
		"PC2_2Q":  floatVal(1),
		"CRVAL1Q": floatVal(1000),
		"CRVAL2Q": floatVal(2000),
		"EXTNAME": strVal("Segment00"),
	})
}

func TestDecodeSegmentUncompressed(t *testing.T) {
	h := uncompressedAmpHeader()
	seg, err := decodeSegment(h, 1, 2880, 123456, "test.fits", "", "S00", 'Q', nil)
	if err != nil {
		t.Fatalf("decodeSegment: %v", err)
	}
	if seg.Bitpix != 32 || seg.NAxis1 != 10 || seg.NAxis2 != 20 {
		t.Fatalf("pixel layout: got bitpix=%d naxis=(%d,%d)", seg.Bitpix, seg.NAxis1, seg.NAxis2)
	}
	if seg.RawDataLen != 10*20*4 {
		t.Fatalf("RawDataLen: got %d, want %d", seg.RawDataLen, 800)
	}
	if seg.Datasec != (Rect{X: 0, Y: 0, W: 8, H: 18}) {
		t.Fatalf("Datasec: got %+v", seg.Datasec)
	}
	// translation is the WCS origin offset by datasec.x+0.5, datasec.y+0.5
	x, y := seg.Affine.Transform(0, 0)
	if x != 1000.5 || y != 2000.5 {
		t.Fatalf("affine translation: got (%v,%v), want (1000.5,2000.5)", x, y)
	}
}

func TestDecodeSegmentCornerRaftShift(t *testing.T) {
	h := newTestHeader(map[string]fitsheader.Value{
		"BITPIX":  intVal(32),
		"NAXIS1":  intVal(10),
		"NAXIS2":  intVal(20),
		"DATASEC": strVal("[1:8,1:18]"),
		"PC1_1E":  floatVal(1),
		"PC1_2E":  floatVal(0),
		"PC2_1E":  floatVal(0),
		"PC2_2E":  floatVal(1),
		"CRVAL1E": floatVal(50000),
		"CRVAL2E": floatVal(60000),
	})
	// RAFTBAY "R21": digits at positions 1,2 are '2','1' -> raftX=2, raftY=1.
	// crval1 shifts by raftY steps, crval2 by raftX steps (SPEC_FULL.md's
	// "Corner-raft WCS fallback" supplement).
	seg, err := decodeSegment(h, 1, 2880, 123456, "test.fits", "R21", "S00", 'Q', nil)
	if err != nil {
		t.Fatalf("decodeSegment: %v", err)
	}
	x, y := seg.Affine.Transform(0, 0)
	wantX := 50000 - 1*12700 + 0.5
	wantY := 60000 - 2*12700 + 0.5
	if x != wantX {
		t.Fatalf("shifted crval1: got %v, want %v", x, wantX)
	}
	if y != wantY {
		t.Fatalf("shifted crval2: got %v, want %v", y, wantY)
	}
}

func TestExtractImageInfoUnsupportedCompression(t *testing.T) {
	h := newTestHeader(map[string]fitsheader.Value{
		"ZIMAGE":   boolVal(true),
		"ZBITPIX":  intVal(32),
		"ZCMPTYPE": strVal("HCOMPRESS_1"),
		"ZNAXIS1":  intVal(10),
		"ZNAXIS2":  intVal(20),
		"NAXIS1":   intVal(10),
		"NAXIS2":   intVal(20),
		"PCOUNT":   intVal(0),
	})
	seg := &Segment{}
	err := extractImageInfo(seg, h, "test.fits")
	if err == nil {
		t.Fatalf("expected UnsupportedCompression error")
	}
	if _, ok := err.(*fiterr.UnsupportedCompression); !ok {
		t.Fatalf("expected UnsupportedCompression, got %T: %v", err, err)
	}
}

func TestExtractImageInfoCompressedRice(t *testing.T) {
	h := newTestHeader(map[string]fitsheader.Value{
		"ZIMAGE":   boolVal(true),
		"ZBITPIX":  intVal(32),
		"ZCMPTYPE": strVal("RICE_1"),
		"ZNAXIS1":  intVal(10),
		"ZNAXIS2":  intVal(20),
		"NAXIS1":   intVal(4),
		"NAXIS2":   intVal(20),
		"PCOUNT":   intVal(16),
	})
	seg := &Segment{}
	if err := extractImageInfo(seg, h, "test.fits"); err != nil {
		t.Fatalf("extractImageInfo: %v", err)
	}
	if seg.Compression != CompressionRice1 || !seg.IsCompressed {
		t.Fatalf("compression: got %v isCompressed=%v", seg.Compression, seg.IsCompressed)
	}
	if seg.RawDataLen != 4*20+16 {
		t.Fatalf("RawDataLen: got %d, want %d", seg.RawDataLen, 4*20+16)
	}
}

func TestDecodeDMSegmentGutters(t *testing.T) {
	h := newTestHeader(map[string]fitsheader.Value{
		"BITPIX": intVal(32),
		"NAXIS1": intVal(100),
		"NAXIS2": intVal(200),
	})
	// CCDSLOT "S12": ccdx=1, ccdy=2
	seg, err := decodeDMSegment(h, 1, 2880, 123456, "test.fits", "R00", "S12")
	if err != nil {
		t.Fatalf("decodeDMSegment: %v", err)
	}
	if seg.WCSLetter != 'D' {
		t.Fatalf("WCSLetter: got %c, want D", seg.WCSLetter)
	}
	if seg.Datasec != (Rect{X: 0, Y: 0, W: 100, H: 200}) {
		t.Fatalf("Datasec: got %+v, want full image", seg.Datasec)
	}
	x, y := seg.Affine.Transform(0, 0)
	wantX := 100 + float64(2)*(100+150) + 0.5
	wantY := 100 + float64(1)*(200+200) + 0.5
	if x != wantX || y != wantY {
		t.Fatalf("DM gutter translation: got (%v,%v), want (%v,%v)", x, y, wantX, wantY)
	}
}

func TestSegmentKeyIdentity(t *testing.T) {
	a := &Segment{File: "a.fits", HDUNumber: 3, WCSLetter: 'Q'}
	b := &Segment{File: "a.fits", HDUNumber: 3, WCSLetter: 'Q'}
	c := &Segment{File: "a.fits", HDUNumber: 4, WCSLetter: 'Q'}
	if a.Key() != b.Key() {
		t.Fatalf("identical Segment inputs must yield equal keys")
	}
	if a.Key() == c.Key() {
		t.Fatalf("different HDU ordinal must yield different keys")
	}
}
