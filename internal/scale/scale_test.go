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

package scale

import (
	"testing"

	"github.com/valyala/fastrand"

	"github.com/hoxca/fpimageio/internal/fits"
)

type zeroFactors struct{}

func (zeroFactors) At(x, y int) int32 { return 0 }
func (zeroFactors) Overall() int32    { return 0 }

type constFactors int32

func (f constFactors) At(x, y int) int32 { return int32(f) }
func (f constFactors) Overall() int32    { return int32(f) }

func segFull(w, h int) *fits.Segment {
	return &fits.Segment{NAxis1: w, NAxis2: h, Datasec: fits.Rect{X: 0, Y: 0, W: w, H: h}}
}

// TestHistogramConservation is spec section 8's "Histogram conservation"
// invariant: sum of bins equals datasec.width * datasec.height.
func TestHistogramConservation(t *testing.T) {
	seg := segFull(20, 15)
	buf := make([]int32, 20*15)
	var rng fastrand.RNG
	for i := range buf {
		buf[i] = int32(rng.Uint32n(1 << 17))
	}
	h := Build(seg, buf, zeroFactors{})
	var total uint64
	for _, c := range h.Bins {
		total += uint64(c)
	}
	want := uint64(20 * 15)
	if total != want {
		t.Fatalf("histogram conservation: got %d, want %d", total, want)
	}
}

func TestHistogramClampsNegativeAndOverflow(t *testing.T) {
	seg := segFull(2, 1)
	buf := []int32{5, 1 << 20} // second sample exceeds the 18-bit range
	h := Build(seg, buf, constFactors(10))
	// (5-10) clamps to 0; (1<<20 - 10) clamps to NumBins-1
	if h.Bins[0] != 1 {
		t.Fatalf("expected one sample clamped into bin 0, bins[0]=%d", h.Bins[0])
	}
	if h.Bins[NumBins-1] != 1 {
		t.Fatalf("expected one sample clamped into the top bin, got %d", h.Bins[NumBins-1])
	}
}

// TestGlobalHistogramAssociativity is spec section 8's "GlobalHistogram
// associativity" invariant: merging per-segment histograms in any order
// yields equal arrays.
func TestGlobalHistogramAssociativity(t *testing.T) {
	segA := segFull(4, 4)
	bufA := make([]int32, 16)
	for i := range bufA {
		bufA[i] = int32(i)
	}
	hA := Build(segA, bufA, zeroFactors{})

	segB := segFull(3, 3)
	bufB := make([]int32, 9)
	for i := range bufB {
		bufB[i] = int32(i * 2)
	}
	hB := Build(segB, bufB, zeroFactors{})

	segC := segFull(2, 2)
	bufC := []int32{7, 8, 9, 10}
	hC := Build(segC, bufC, zeroFactors{})

	forward := MergeGlobal(hA, hB, hC)
	reordered := MergeGlobal(hC, hA, hB)

	for i := 0; i < NumBins; i++ {
		if forward.Bins[i] != reordered.Bins[i] {
			t.Fatalf("merge not associative/commutative at bin %d: %d vs %d", i, forward.Bins[i], reordered.Bins[i])
		}
	}
	if forward.LowestOccupied != reordered.LowestOccupied || forward.HighestOccupied != reordered.HighestOccupied {
		t.Fatalf("merge occupied range differs by order: %+v vs %+v", forward, reordered)
	}
}

func TestMergeGlobalSkipsNil(t *testing.T) {
	seg := segFull(2, 2)
	h := Build(seg, []int32{1, 2, 3, 4}, zeroFactors{})
	g := MergeGlobal(h, nil)
	var total uint64
	for _, c := range g.Bins {
		total += c
	}
	if total != 4 {
		t.Fatalf("expected nil histograms to be skipped, total=%d", total)
	}
}

func TestCDFMonotonicAndTotal(t *testing.T) {
	seg := segFull(5, 5)
	buf := make([]int32, 25)
	for i := range buf {
		buf[i] = int32(i % 7)
	}
	h := Build(seg, buf, zeroFactors{})
	cdf := CDF(h)
	var prev uint32
	for i := 0; i < NumBins; i++ {
		if cdf[i] < prev {
			t.Fatalf("cdf not monotonic at bin %d", i)
		}
		prev = cdf[i]
	}
	if cdf[NumBins-1] != 25 {
		t.Fatalf("cdf total: got %d, want 25", cdf[NumBins-1])
	}
}

func TestByteMapWithinRange(t *testing.T) {
	seg := segFull(10, 10)
	buf := make([]int32, 100)
	for i := range buf {
		buf[i] = int32(i)
	}
	h := Build(seg, buf, zeroFactors{})
	cdf := CDF(h)
	bm := ByteMap(cdf, h.LowestOccupied, h.HighestOccupied)
	for i := h.LowestOccupied; i <= h.HighestOccupied; i++ {
		if bm[i] > 255 {
			t.Fatalf("byte map out of range at %d: %d", i, bm[i])
		}
	}
}

func TestByteMapEmptyRange(t *testing.T) {
	cdf := make([]uint32, NumBins)
	bm := ByteMap(cdf, 100, 50) // highest < lowest: no occupied bins
	for _, v := range bm {
		if v != 0 {
			t.Fatalf("expected all-zero byte map for an empty occupied range")
		}
	}
}
