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

package render

import (
	"testing"

	"github.com/hoxca/fpimageio/internal/cmap"
	"github.com/hoxca/fpimageio/internal/fits"
)

type zeroFactors struct{}

func (zeroFactors) At(x, y int) int32 { return 0 }
func (zeroFactors) Overall() int32    { return 0 }

func segFull(w, h int) *fits.Segment {
	return &fits.Segment{NAxis1: w, NAxis2: h, Datasec: fits.Rect{X: 0, Y: 0, W: w, H: h}}
}

func TestInt32TileHasSegmentExtent(t *testing.T) {
	seg := segFull(4, 3)
	buf := make([]int32, 12)
	for i := range buf {
		buf[i] = int32(i * 100)
	}
	tile := Int32(seg, buf, zeroFactors{}, nil, cmap.Default())
	b := tile.Bounds()
	if b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("tile bounds: got %v, want 4x3", b)
	}
}

func TestInt32TilePixelsOutsideDatasecAreZero(t *testing.T) {
	seg := &fits.Segment{NAxis1: 4, NAxis2: 4, Datasec: fits.Rect{X: 1, Y: 1, W: 2, H: 2}}
	buf := make([]int32, 16)
	for i := range buf {
		buf[i] = 500
	}
	tile := Int32(seg, buf, zeroFactors{}, nil, cmap.Default())
	c := tile.RGBAAt(0, 0)
	if c.R != 0 || c.G != 0 || c.B != 0 || c.A != 0 {
		t.Fatalf("pixel outside datasec: got %+v, want zero value", c)
	}
}

func TestInt32IsDeterministic(t *testing.T) {
	seg := segFull(5, 5)
	buf := make([]int32, 25)
	for i := range buf {
		buf[i] = int32(i)
	}
	a := Int32(seg, buf, zeroFactors{}, nil, cmap.Default())
	b := Int32(seg, buf, zeroFactors{}, nil, cmap.Default())
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if a.RGBAAt(x, y) != b.RGBAAt(x, y) {
				t.Fatalf("Int32 not deterministic at (%d,%d)", x, y)
			}
		}
	}
}

func TestFloat32MinMaxRescale(t *testing.T) {
	seg := segFull(3, 1)
	buf := []float32{10, 20, 30}
	tile := Float32(seg, buf, cmap.Default())
	low := tile.RGBAAt(0, 0)
	mid := tile.RGBAAt(1, 0)
	high := tile.RGBAAt(2, 0)
	if low.R != 0 {
		t.Fatalf("min value should rescale to 0, got %d", low.R)
	}
	if high.R != 255 {
		t.Fatalf("max value should rescale to 255, got %d", high.R)
	}
	if mid.R == 0 || mid.R == 255 {
		t.Fatalf("mid value should rescale strictly between 0 and 255, got %d", mid.R)
	}
}

func TestFloat32ConstantSpanIsZero(t *testing.T) {
	seg := segFull(2, 1)
	buf := []float32{7, 7}
	tile := Float32(seg, buf, cmap.Default())
	c := tile.RGBAAt(0, 0)
	if c.R != 0 {
		t.Fatalf("degenerate span should map to 0, got %d", c.R)
	}
}

func TestFloat32NaNMapsToZero(t *testing.T) {
	seg := segFull(2, 1)
	nan := float32(0)
	nan = nan / nan // NaN without importing math
	buf := []float32{nan, 10}
	tile := Float32(seg, buf, cmap.Default())
	c := tile.RGBAAt(0, 0)
	if c.R != 0 {
		t.Fatalf("NaN should map to 0, got %d", c.R)
	}
}
