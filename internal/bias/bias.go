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

// Package bias implements the Bias Correction Kernel (C5): a small set of
// pluggable strategies that turn a raw pixel buffer and its Segment into a
// per-pixel correction function, grounded on the five-entry
// biasCorrectionOptions menu in CameraImageReadParam.java (the concrete
// SerialParallel* classes it references were not part of the retrieved
// source, so their bodies follow the algebra spec section 4.5 describes:
// serial overscan is the column band outside datasec's x-range, parallel
// overscan is the row band outside datasec's y-range).
package bias

import (
	"math"

	"github.com/hoxca/fpimageio/internal/fits"
	"github.com/hoxca/fpimageio/internal/fiterr"
)

// RawBuffer is the tagged-variant pixel buffer the kernel reads from,
// mirroring internal/fits.Segment's bitpix-selected polymorphism (spec
// section 9, "polymorphic raw buffers").
type RawBuffer struct {
	Int32   []int32
	Float32 []float32
	NAxis1  int
}

func (b RawBuffer) at(x, y int) int32 {
	idx := x + y*b.NAxis1
	if b.Int32 != nil {
		return b.Int32[idx]
	}
	return int32(b.Float32[idx])
}

// CorrectionFactors is a function (x,y) -> int32 defined over a segment's
// datasec, plus the inspectable scalar the §8 scenario tests compare
// against a literal.
type CorrectionFactors interface {
	At(x, y int) int32
	Overall() int32
}

// Strategy computes CorrectionFactors from a raw buffer and its segment.
type Strategy interface {
	Name() string
	Compute(buf RawBuffer, seg *fits.Segment) CorrectionFactors
}

type scalarFactors int32

func (f scalarFactors) At(x, y int) int32 { return int32(f) }
func (f scalarFactors) Overall() int32    { return int32(f) }

type rowFactors struct {
	rows    []int32 // indexed by y
	overall int32
}

func (f rowFactors) At(x, y int) int32 { return f.rows[y] }
func (f rowFactors) Overall() int32    { return f.overall }

type columnFactors struct {
	cols    []int32 // indexed by x
	overall int32
}

func (f columnFactors) At(x, y int) int32 { return f.cols[x] }
func (f columnFactors) Overall() int32    { return f.overall }

// NoOp never corrects.
type NoOp struct{}

func (NoOp) Name() string { return "None" }
func (NoOp) Compute(RawBuffer, *fits.Segment) CorrectionFactors { return scalarFactors(0) }

// mean computes the arithmetic mean of the given pixels, rounded to the
// nearest integer (half away from zero), matching the "rounded to i32"
// wording in spec section 4.5.
func mean(sum int64, count int) int32 {
	if count == 0 {
		return 0
	}
	return int32(math.Round(float64(sum) / float64(count)))
}

// serialOverscanSum sums every pixel in row y outside datasec's x-range.
func serialOverscanSum(buf RawBuffer, seg *fits.Segment, y int) (int64, int) {
	var sum int64
	count := 0
	ds := seg.Datasec
	for x := 0; x < seg.NAxis1; x++ {
		if x >= ds.X && x < ds.X+ds.W {
			continue
		}
		sum += int64(buf.at(x, y))
		count++
	}
	return sum, count
}

// parallelOverscanSum sums every pixel in column x outside datasec's
// y-range.
func parallelOverscanSum(buf RawBuffer, seg *fits.Segment, x int) (int64, int) {
	var sum int64
	count := 0
	ds := seg.Datasec
	for y := 0; y < seg.NAxis2; y++ {
		if y >= ds.Y && y < ds.Y+ds.H {
			continue
		}
		sum += int64(buf.at(x, y))
		count++
	}
	return sum, count
}

// SimpleOverscanSubtraction computes one scalar: the mean of every pixel in
// the serial overscan band (spec section 4.5).
type SimpleOverscanSubtraction struct{}

func (SimpleOverscanSubtraction) Name() string { return "SimpleOverscanSubtraction" }

func (SimpleOverscanSubtraction) Compute(buf RawBuffer, seg *fits.Segment) CorrectionFactors {
	var sum int64
	count := 0
	for y := 0; y < seg.NAxis2; y++ {
		s, c := serialOverscanSum(buf, seg, y)
		sum += s
		count += c
	}
	return scalarFactors(mean(sum, count))
}

// SimpleOverscanSubOnly is SimpleOverscanSubtraction restricted to overscan
// rows that fall within the datasec's own row range, i.e. purely the serial
// (x-direction) component with no parallel contribution.
type SimpleOverscanSubOnly struct{}

func (SimpleOverscanSubOnly) Name() string { return "SimpleOverscanSubOnly" }

func (SimpleOverscanSubOnly) Compute(buf RawBuffer, seg *fits.Segment) CorrectionFactors {
	ds := seg.Datasec
	var sum int64
	count := 0
	for y := ds.Y; y < ds.Y+ds.H; y++ {
		s, c := serialOverscanSum(buf, seg, y)
		sum += s
		count += c
	}
	return scalarFactors(mean(sum, count))
}

// SimpleOverscanSubtraction2 computes a per-row table from each row's own
// serial overscan mean, the "row-wise serial" variant spec section 4.5
// alludes to.
type SimpleOverscanSubtraction2 struct{}

func (SimpleOverscanSubtraction2) Name() string { return "SimpleOverscanSubtraction2" }

func (SimpleOverscanSubtraction2) Compute(buf RawBuffer, seg *fits.Segment) CorrectionFactors {
	rows := make([]int32, seg.NAxis2)
	var totalSum int64
	var totalCount int
	for y := 0; y < seg.NAxis2; y++ {
		s, c := serialOverscanSum(buf, seg, y)
		rows[y] = mean(s, c)
		totalSum += s
		totalCount += c
	}
	return rowFactors{rows: rows, overall: mean(totalSum, totalCount)}
}

// SimpleOverscanCorrection computes a per-column table from each column's
// parallel overscan mean (the rows outside datasec's y-range). The serial
// overscan columns are not consulted.
type SimpleOverscanCorrection struct{}

func (SimpleOverscanCorrection) Name() string { return "SimpleOverscanCorrection" }

func (SimpleOverscanCorrection) Compute(buf RawBuffer, seg *fits.Segment) CorrectionFactors {
	cols := make([]int32, seg.NAxis1)
	var totalSum int64
	var totalCount int
	for x := 0; x < seg.NAxis1; x++ {
		s, c := parallelOverscanSum(buf, seg, x)
		cols[x] = mean(s, c)
		totalSum += s
		totalCount += c
	}
	return columnFactors{cols: cols, overall: mean(totalSum, totalCount)}
}

// Registry maps the fixed bias-correction menu names (spec section 6) to
// their Strategy.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds the registry with the five named strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy, 5)}
	for _, s := range []Strategy{
		NoOp{},
		SimpleOverscanCorrection{},
		SimpleOverscanSubtraction{},
		SimpleOverscanSubtraction2{},
		SimpleOverscanSubOnly{},
	} {
		r.strategies[s.Name()] = s
	}
	return r
}

// Get returns the named strategy, or fiterr.UnknownStrategy if name isn't
// one of the five in the menu.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, &fiterr.UnknownStrategy{Kind: "bias", Name: name}
	}
	return s, nil
}

// Names returns the fixed menu in a stable order.
func (r *Registry) Names() []string {
	return []string{"None", "SimpleOverscanCorrection", "SimpleOverscanSubtraction", "SimpleOverscanSubtraction2", "SimpleOverscanSubOnly"}
}
