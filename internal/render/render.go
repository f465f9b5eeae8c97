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

// Package render implements the Tile Renderer (C7): a pure function of a
// segment, its decoded raw buffer, bias-correction factors, and a colormap
// into an RGB raster, grounded on CachingReader.java's createBufferedImage
// (both the float32 "enhanced scaling" path and the int32 histogram/CDF
// path).
package render

import (
	"image"
	"math"

	"github.com/hoxca/fpimageio/internal/bias"
	"github.com/hoxca/fpimageio/internal/cmap"
	"github.com/hoxca/fpimageio/internal/fits"
	"github.com/hoxca/fpimageio/internal/scale"
)

// Int32 renders a RenderedTile (spec section 4.7, int32 path): build or
// reuse a histogram, derive its CDF->byte map, and write
// colormap.RGB(map[max(buf[x,y]-factors(x,y),0)]) for every pixel in
// seg.Datasec. The tile is sized to the segment's full nAxis1 x nAxis2
// extent; pixels outside datasec are left zero, per the RenderedTile data
// model.
func Int32(seg *fits.Segment, buf []int32, factors bias.CorrectionFactors, global *scale.GlobalHistogram, colormap cmap.RGBColorMap) *image.RGBA {
	var byteMap []uint8
	if global != nil {
		cdf := scale.CDFGlobal(global)
		byteMap = scale.ByteMapGlobal(cdf, global.LowestOccupied, global.HighestOccupied)
	} else {
		h := scale.Build(seg, buf, factors)
		cdf := scale.CDF(h)
		byteMap = scale.ByteMap(cdf, h.LowestOccupied, h.HighestOccupied)
	}

	tile := image.NewRGBA(image.Rect(0, 0, seg.NAxis1, seg.NAxis2))
	ds := seg.Datasec
	for y := ds.Y; y < ds.Y+ds.H; y++ {
		rowBase := y * seg.NAxis1
		for x := ds.X; x < ds.X+ds.W; x++ {
			v := buf[rowBase+x] - factors.At(x, y)
			if v < 0 {
				v = 0
			}
			bin := v
			if int(bin) >= scale.NumBins {
				bin = scale.NumBins - 1
			}
			tile.SetRGBA(x, y, colormap.RGB(byteMap[bin]))
		}
	}
	return tile
}

// Float32 renders a RenderedTile for float32 raw data using "enhanced
// scaling": a min/max rescale of the datasec's occupied range onto [0,255]
// followed by a colormap lookup.
func Float32(seg *fits.Segment, buf []float32, colormap cmap.RGBColorMap) *image.RGBA {
	ds := seg.Datasec
	min, max := float32(math.Inf(1)), float32(math.Inf(-1))
	for y := ds.Y; y < ds.Y+ds.H; y++ {
		rowBase := y * seg.NAxis1
		for x := ds.X; x < ds.X+ds.W; x++ {
			f := buf[rowBase+x]
			if math.IsNaN(float64(f)) {
				continue
			}
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
		}
	}

	tile := image.NewRGBA(image.Rect(0, 0, seg.NAxis1, seg.NAxis2))
	span := max - min
	for y := ds.Y; y < ds.Y+ds.H; y++ {
		rowBase := y * seg.NAxis1
		for x := ds.X; x < ds.X+ds.W; x++ {
			f := buf[rowBase+x]
			var b uint8
			switch {
			case math.IsNaN(float64(f)):
				b = 0
			case span <= 0:
				b = 0
			default:
				scaled := (f - min) / span * 255
				if scaled < 0 {
					scaled = 0
				} else if scaled > 255 {
					scaled = 255
				}
				b = uint8(scaled)
			}
			tile.SetRGBA(x, y, colormap.RGB(b))
		}
	}
	return tile
}
