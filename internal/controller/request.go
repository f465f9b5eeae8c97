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

package controller

import (
	"image"

	"github.com/hoxca/fpimageio/internal/affine"
	"github.com/hoxca/fpimageio/internal/fits"
)

// ScaleMode picks between the global-histogram and per-amplifier scaling
// paths (spec section 6, "scaleMode ∈ {GLOBAL, AMPLIFIER}").
type ScaleMode int

const (
	ScaleAmplifier ScaleMode = iota
	ScaleGlobal
)

// RenderRequest is the render-parameter surface from spec section 6.
type RenderRequest struct {
	IndexDescriptor string
	SourceRect      *affine.Rect // nil means "accept all segments"
	Output          *image.RGBA
	Colormap        string
	BiasKind        string
	ShowBiasRegion  bool
	WCSLetter       byte
	ScaleMode       ScaleMode
	WCSOverride     map[string]fits.WCSOverride
}
