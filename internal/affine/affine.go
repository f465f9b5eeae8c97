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

// Package affine implements the 2D WCS (world coordinate system) affine
// transform used to place a segment's local pixel raster onto the focal-plane
// coordinate system (spec section 4.2). It mirrors java.awt.geom.AffineTransform's
// constructor and translate() semantics from Segment.java, built on a 3x3
// homogeneous matrix via gonum.org/v1/gonum/mat rather than a bespoke 2x3
// struct, so composition is ordinary matrix multiplication.
package affine

import "gonum.org/v1/gonum/mat"

// Affine is a 2D affine transform represented as a 3x3 homogeneous matrix.
type Affine struct {
	m *mat.Dense
}

// New builds the affine transform matching
// new AffineTransform(pc1_1, pc2_1, pc1_2, pc2_2, crval1, crval2) in Java's
// (m00, m10, m01, m11, m02, m12) constructor order:
//
//	x' = pc1_1*x + pc1_2*y + crval1
//	y' = pc2_1*x + pc2_2*y + crval2
func New(pc1_1, pc2_1, pc1_2, pc2_2, crval1, crval2 float64) Affine {
	return Affine{m: mat.NewDense(3, 3, []float64{
		pc1_1, pc1_2, crval1,
		pc2_1, pc2_2, crval2,
		0, 0, 1,
	})}
}

// Identity returns the identity transform.
func Identity() Affine {
	return New(1, 0, 0, 1, 0, 0)
}

// Translate returns a.Translate(tx,ty), i.e. the transform obtained by first
// translating the input point by (tx,ty) and then applying a, matching the
// semantics of AffineTransform.translate (post-concatenation).
func (a Affine) Translate(tx, ty float64) Affine {
	t := mat.NewDense(3, 3, []float64{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	})
	var out mat.Dense
	out.Mul(a.m, t)
	return Affine{m: &out}
}

// Transform maps a local pixel coordinate to the focal-plane coordinate system.
func (a Affine) Transform(x, y float64) (float64, float64) {
	v := mat.NewVecDense(3, []float64{x, y, 1})
	var out mat.VecDense
	out.MulVec(a.m, v)
	return out.AtVec(0), out.AtVec(1)
}

// Rect is an axis-aligned rectangle in floating-point focal-plane coordinates.
type Rect struct {
	X, Y, W, H float64
}

// BoundingBox transforms the rectangle [0,0]-[w,h] through a and returns its
// axis-aligned bounding box, matching Segment.java's computation of the `wcs`
// field from the origin and opposite corner of datasec.
func (a Affine) BoundingBox(w, h float64) Rect {
	ox, oy := a.Transform(0, 0)
	cx, cy := a.Transform(w, h)
	x := ox
	if cx < x {
		x = cx
	}
	y := oy
	if cy < y {
		y = cy
	}
	width := cx - ox
	if width < 0 {
		width = -width
	}
	height := cy - oy
	if height < 0 {
		height = -height
	}
	return Rect{X: x, Y: y, W: width, H: height}
}

// Intersects reports whether two rectangles overlap, matching
// java.awt.geom.Rectangle2D.intersects used by Segment.intersects in
// CachingReader.java's computeSegmentsToRead.
func (r Rect) Intersects(o Rect) bool {
	if r.W <= 0 || r.H <= 0 || o.W <= 0 || o.H <= 0 {
		return false
	}
	return r.X < o.X+o.W && r.X+r.W > o.X && r.Y < o.Y+o.H && r.Y+r.H > o.Y
}

// Elements returns the six affine coefficients (a,b,c,d,e,f) in the convention
// x'=a*x+c*y+e, y'=b*x+d*y+f, i.e. AffineTransform's column-major order. The
// render controller rearranges them into golang.org/x/image/math/f64.Aff3's
// row-major [6]float64 layout (a,c,e,b,d,f) for compositing.
func (a Affine) Elements() (m00, m10, m01, m11, m02, m12 float64) {
	return a.m.At(0, 0), a.m.At(1, 0), a.m.At(0, 1), a.m.At(1, 1), a.m.At(0, 2), a.m.At(1, 2)
}
