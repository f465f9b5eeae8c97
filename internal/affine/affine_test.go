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

package affine

import "testing"

func TestIdentityTransform(t *testing.T) {
	a := Identity()
	x, y := a.Transform(3, 4)
	if x != 3 || y != 4 {
		t.Fatalf("identity transform: got (%v,%v), want (3,4)", x, y)
	}
}

func TestTranslate(t *testing.T) {
	a := New(1, 0, 0, 1, 100, 200).Translate(5, 5)
	x, y := a.Transform(0, 0)
	if x != 105 || y != 205 {
		t.Fatalf("translate: got (%v,%v), want (105,205)", x, y)
	}
}

func TestBoundingBoxNegativeScale(t *testing.T) {
	a := New(-1, 0, 0, -1, 0, 0)
	r := a.BoundingBox(10, 20)
	if r.W != 10 || r.H != 20 {
		t.Fatalf("bounding box dims: got %+v", r)
	}
	if r.X != -10 || r.Y != -20 {
		t.Fatalf("bounding box origin: got %+v", r)
	}
}

func TestRectIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 100, H: 100}
	b := Rect{X: 50, Y: 50, W: 10, H: 10}
	c := Rect{X: 200, Y: 200, W: 100, H: 100}
	if !a.Intersects(b) {
		t.Fatalf("expected overlap between %+v and %+v", a, b)
	}
	if a.Intersects(c) {
		t.Fatalf("expected no overlap between %+v and %+v", a, c)
	}
}

func TestRectIntersectsDegenerate(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 0, H: 10}
	b := Rect{X: 0, Y: 0, W: 10, H: 10}
	if a.Intersects(b) {
		t.Fatalf("zero-width rect must never intersect")
	}
}
