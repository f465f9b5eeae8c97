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
	"context"
	"image"
	"sync"

	"golang.org/x/image/draw"
	imgmath "golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"

	"github.com/hoxca/fpimageio/internal/fits"
	"github.com/hoxca/fpimageio/internal/scale"
)

// Render implements the C9 entry point (spec section 4.9, steps 1-6):
// fetch the index, decode every descriptor's segments in parallel, filter
// by sourceRect, render each surviving segment's tile in parallel, and
// composite each tile onto req.Output through its own affine transform.
func (c *Core) Render(ctx context.Context, req RenderRequest) error {
	segs, err := c.resolveSegments(ctx, req)
	if err != nil {
		return err
	}
	return c.renderSegments(ctx, req, segs, nil, "")
}

// RenderWithOnTheFlyGlobalScale is Render's GlobalHistogram variant (spec
// section 4.9, "alternative entry point"): between segment resolution and
// tile rendering, it computes (or reuses, via the GlobalHistogram cache) one
// merged histogram across every surviving segment and uses it for every
// tile instead of each segment scaling itself independently.
func (c *Core) RenderWithOnTheFlyGlobalScale(ctx context.Context, req RenderRequest) error {
	segs, err := c.resolveSegments(ctx, req)
	if err != nil {
		return err
	}
	globalKey, fut := c.fetchGlobalHistogram(segs, req.BiasKind)
	global, err := fut.Await(ctx)
	if err != nil {
		return err
	}
	return c.renderSegments(ctx, req, segs, global, globalKey)
}

// resolveSegments implements steps 1-3: fetch the index, decode every
// descriptor's segments in parallel (one g.Go per descriptor, a single
// g.Wait join, per spec section 9's fan-out/fan-in guidance), then filter by
// sourceRect.
func (c *Core) resolveSegments(ctx context.Context, req RenderRequest) ([]fits.Segment, error) {
	lines, err := c.fetchIndex(req.IndexDescriptor).Await(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]fits.Segment, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, descriptor := range lines {
		i, descriptor := i, descriptor
		g.Go(func() error {
			segs, err := c.fetchSegments(descriptor, req.WCSLetter, req.WCSOverride).Await(gctx)
			if err != nil {
				return err
			}
			results[i] = segs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matched []fits.Segment
	for _, segs := range results {
		for _, seg := range segs {
			if req.SourceRect == nil || seg.Intersects(*req.SourceRect) {
				matched = append(matched, seg)
			}
		}
	}
	return matched, nil
}

// renderSegments implements steps 4-6: render every surviving segment's
// tile in parallel and composite each onto req.Output as it completes.
func (c *Core) renderSegments(ctx context.Context, req RenderRequest, segs []fits.Segment, global *scale.GlobalHistogram, globalKey string) error {
	colormapName := req.Colormap
	if colormapName == "" {
		colormapName = "grey"
	}

	var mu sync.Mutex // serializes composite calls onto the shared output raster

	g, gctx := errgroup.WithContext(ctx)
	for i := range segs {
		seg := &segs[i]
		g.Go(func() error {
			tile, err := c.fetchTile(seg, req.BiasKind, colormapName, global, globalKey).Await(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			compositeTile(req.Output, tile, seg, req.ShowBiasRegion)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// compositeTile blits one rendered tile onto dst through seg.Affine,
// cropping to datasec first unless showBiasRegion is set (spec section 4.9
// step 5). It uses golang.org/x/image/draw's affine transform rather than
// collapsing the segment's transform into the output raster's own, per
// spec section 9's "apply each Segment's affine independently" guidance.
func compositeTile(dst *image.RGBA, tile *image.RGBA, seg *fits.Segment, showBiasRegion bool) {
	src := image.Image(tile)
	if !showBiasRegion {
		ds := seg.Datasec
		src = tile.SubImage(image.Rect(ds.X, ds.Y, ds.X+ds.W, ds.Y+ds.H))
	}

	m00, m10, m01, m11, m02, m12 := seg.Affine.Elements()
	m := imgmath.Aff3{
		m00, m01, m02,
		m10, m11, m12,
	}
	draw.BiLinear.Transform(dst, m, src, src.Bounds(), draw.Over, nil)
}
