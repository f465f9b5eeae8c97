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

// Package cmap implements the fixed colormap menu (spec section 6):
// grey, a, b, bb, cubehelix0, cubehelix1, rainbow, standard, null. Gradients
// are built from github.com/lucasb-eyer/go-colorful, a dependency the
// teacher repo already carries for exactly this purpose even though the
// retrieved teacher files don't happen to call it directly.
package cmap

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/hoxca/fpimageio/internal/fiterr"
)

// RGBColorMap maps an 8-bit scaled sample to a display color. Implementations
// are pure and stateless: RGB(v) always returns the same color for the same
// v, matching the "CDF mapping" lookup described in spec section 4.6.
type RGBColorMap interface {
	Name() string
	RGB(v uint8) color.RGBA
}

type funcMap struct {
	name string
	fn   func(v uint8) color.RGBA
}

func (m funcMap) Name() string           { return m.name }
func (m funcMap) RGB(v uint8) color.RGBA { return m.fn(v) }

func fromColorful(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// greyColorMap is the identity grey ramp.
func greyColorMap() RGBColorMap {
	return funcMap{"grey", func(v uint8) color.RGBA {
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}}
}

// nullColorMap passes samples through ungapped as a grey ramp, producing the
// same colors as grey. The render controller looks it up like any other
// colormap; no code path treats "null" specially.
func nullColorMap() RGBColorMap {
	return funcMap{"null", func(v uint8) color.RGBA {
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}}
}

// blendStops builds a gradient colormap by blending between ordered stops
// in Lab space (go-colorful's BlendLab), perceptually smoother than RGB
// blending for multi-stop ramps like the DS9-style "a"/"b"/"bb" presets.
func blendStops(name string, stops []colorful.Color) RGBColorMap {
	n := len(stops) - 1
	return funcMap{name, func(v uint8) color.RGBA {
		t := float64(v) / 255.0
		seg := t * float64(n)
		i := int(seg)
		if i >= n {
			i = n - 1
		}
		frac := seg - float64(i)
		return fromColorful(stops[i].BlendLab(stops[i+1], frac))
	}}
}

func aColorMap() RGBColorMap {
	return blendStops("a", []colorful.Color{
		{R: 0, G: 0, B: 0},
		{R: 0, G: 0, B: 1},
		{R: 0, G: 1, B: 1},
		{R: 0, G: 1, B: 0},
		{R: 1, G: 1, B: 0},
		{R: 1, G: 0, B: 0},
		{R: 1, G: 1, B: 1},
	})
}

func bColorMap() RGBColorMap {
	return blendStops("b", []colorful.Color{
		{R: 0, G: 0, B: 0},
		{R: 0.2, G: 0, B: 0.6},
		{R: 0.9, G: 0.2, B: 0.4},
		{R: 1, G: 0.9, B: 0.3},
		{R: 1, G: 1, B: 1},
	})
}

func bbColorMap() RGBColorMap {
	return blendStops("bb", []colorful.Color{
		{R: 0, G: 0, B: 0.1},
		{R: 0.1, G: 0.3, B: 0.7},
		{R: 0.9, G: 0.9, B: 0.2},
		{R: 1, G: 1, B: 1},
	})
}

func standardColorMap() RGBColorMap {
	return blendStops("standard", []colorful.Color{
		{R: 0, G: 0, B: 0},
		{R: 0, G: 0, B: 0.6},
		{R: 1, G: 1, B: 1},
	})
}

func rainbowColorMap() RGBColorMap {
	return funcMap{"rainbow", func(v uint8) color.RGBA {
		hue := float64(v) / 255.0 * 300.0
		return fromColorful(colorful.Hsv(hue, 1, 1))
	}}
}

// cubehelix implements Dave Green's cubehelix formula: a perceptually
// monotone lightness ramp with a controllable hue rotation, used for
// cubehelix0 (forward rotation) and cubehelix1 (reverse rotation).
func cubehelix(name string, rot, hue, gamma float64) RGBColorMap {
	return funcMap{name, func(v uint8) color.RGBA {
		fraction := float64(v) / 255.0
		angle := 2 * math.Pi * (rot * fraction)
		fract := math.Pow(fraction, gamma)
		amp := hue * fract * (1 - fract) / 2
		r := fract + amp*(-0.14861*math.Cos(angle)+1.78277*math.Sin(angle))
		g := fract + amp*(-0.29227*math.Cos(angle)-0.90649*math.Sin(angle))
		b := fract + amp*(1.97294*math.Cos(angle))
		clamp := func(x float64) uint8 {
			if x < 0 {
				return 0
			}
			if x > 1 {
				return 255
			}
			return uint8(x * 255)
		}
		return color.RGBA{R: clamp(r), G: clamp(g), B: clamp(b), A: 255}
	}}
}

// Registry maps the fixed colormap menu names to their RGBColorMap.
type Registry struct {
	maps map[string]RGBColorMap
}

// NewRegistry builds the registry with the nine named colormaps.
func NewRegistry() *Registry {
	r := &Registry{maps: make(map[string]RGBColorMap, 9)}
	for _, m := range []RGBColorMap{
		greyColorMap(),
		aColorMap(),
		bColorMap(),
		bbColorMap(),
		cubehelix("cubehelix0", 1.0, 1.0, 1.0),
		cubehelix("cubehelix1", -1.0, 1.0, 1.0),
		rainbowColorMap(),
		standardColorMap(),
		nullColorMap(),
	} {
		r.maps[m.Name()] = m
	}
	return r
}

// Get returns the named colormap, or fiterr.UnknownStrategy if name isn't
// one of the nine in the menu.
func (r *Registry) Get(name string) (RGBColorMap, error) {
	m, ok := r.maps[name]
	if !ok {
		return nil, &fiterr.UnknownStrategy{Kind: "colormap", Name: name}
	}
	return m, nil
}

// Default is the colormap the render controller uses when the caller hasn't
// requested a pluggable lookup (spec section 4.9 step 5).
func Default() RGBColorMap { return greyColorMap() }
