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

// Package scale implements the Histogram / Scaling Engine (C6): 18-bit
// per-segment histograms, their merge into a GlobalHistogram, and the CDF
// driven byte-range mapping that feeds a colormap lookup (spec section
// 4.6), grounded on CachingReader.java's histogram/copyAndScaleData helpers.
package scale

import (
	"github.com/hoxca/fpimageio/internal/bias"
	"github.com/hoxca/fpimageio/internal/fits"
)

// NumBins is the camera ADC depth's fixed 18-bit histogram range.
const NumBins = 1 << 18

// Histogram is a per-segment dense 2^18-bin count, with the occupied range
// remembered so CDF construction and rendering can skip unoccupied bins.
type Histogram struct {
	Bins            [NumBins]uint32
	LowestOccupied  int
	HighestOccupied int
}

func newHistogram() *Histogram {
	return &Histogram{LowestOccupied: NumBins - 1, HighestOccupied: 0}
}

func clampBin(v int32) int {
	if v < 0 {
		return 0
	}
	if v >= NumBins {
		return NumBins - 1
	}
	return int(v)
}

// Build computes a Histogram over seg.Datasec from an int32 raw buffer and
// a correction function, per spec section 4.6: v = max(raw - factors, 0),
// clamped into the fixed bin range.
func Build(seg *fits.Segment, buf []int32, factors bias.CorrectionFactors) *Histogram {
	h := newHistogram()
	ds := seg.Datasec
	for y := ds.Y; y < ds.Y+ds.H; y++ {
		rowBase := y * seg.NAxis1
		for x := ds.X; x < ds.X+ds.W; x++ {
			v := buf[rowBase+x] - factors.At(x, y)
			if v < 0 {
				v = 0
			}
			bin := clampBin(v)
			h.Bins[bin]++
			if bin < h.LowestOccupied {
				h.LowestOccupied = bin
			}
			if bin > h.HighestOccupied {
				h.HighestOccupied = bin
			}
		}
	}
	return h
}

// GlobalHistogram is the u64[2^18] produced by summing per-segment
// histograms across every Segment of an exposure under a fixed bias
// strategy.
type GlobalHistogram struct {
	Bins            [NumBins]uint64
	LowestOccupied  int
	HighestOccupied int
}

// MergeGlobal elementwise-sums the given histograms. Commutative: merging
// in any order yields equal arrays (spec section 8, "GlobalHistogram
// associativity").
func MergeGlobal(histograms ...*Histogram) *GlobalHistogram {
	g := &GlobalHistogram{LowestOccupied: NumBins - 1, HighestOccupied: 0}
	for _, h := range histograms {
		if h == nil {
			continue
		}
		for i := h.LowestOccupied; i <= h.HighestOccupied; i++ {
			if h.Bins[i] == 0 {
				continue
			}
			g.Bins[i] += uint64(h.Bins[i])
			if i < g.LowestOccupied {
				g.LowestOccupied = i
			}
			if i > g.HighestOccupied {
				g.HighestOccupied = i
			}
		}
	}
	return g
}

// CDF computes prefix sums over a per-segment histogram.
func CDF(h *Histogram) []uint32 {
	cdf := make([]uint32, NumBins)
	var running uint32
	for i := 0; i < NumBins; i++ {
		running += h.Bins[i]
		cdf[i] = running
	}
	return cdf
}

// CDFGlobal computes prefix sums over a GlobalHistogram.
func CDFGlobal(h *GlobalHistogram) []uint64 {
	cdf := make([]uint64, NumBins)
	var running uint64
	for i := 0; i < NumBins; i++ {
		running += h.Bins[i]
		cdf[i] = running
	}
	return cdf
}

// ByteMap derives the 2^18-entry CDF->byte mapping used to index a colormap,
// per spec section 4.6's "range = 1 + cdf[highest]/256" rule. Only bins in
// [lowest,highest] are populated; callers never sample outside that range
// because tile rendering only ever looks up occupied pixel values.
func ByteMap(cdf []uint32, lowest, highest int) []uint8 {
	out := make([]uint8, NumBins)
	if highest < lowest {
		return out
	}
	r := 1 + cdf[highest]/256
	for i := lowest; i <= highest; i++ {
		out[i] = uint8(cdf[i] / r)
	}
	return out
}

// ByteMapGlobal is ByteMap's GlobalHistogram counterpart.
func ByteMapGlobal(cdf []uint64, lowest, highest int) []uint8 {
	out := make([]uint8, NumBins)
	if highest < lowest {
		return out
	}
	r := 1 + cdf[highest]/256
	for i := lowest; i <= highest; i++ {
		out[i] = uint8(cdf[i] / r)
	}
	return out
}
