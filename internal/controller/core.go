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
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hoxca/fpimageio/internal/bias"
	"github.com/hoxca/fpimageio/internal/bytesource"
	"github.com/hoxca/fpimageio/internal/cachefab"
	"github.com/hoxca/fpimageio/internal/cmap"
	"github.com/hoxca/fpimageio/internal/decomp"
	"github.com/hoxca/fpimageio/internal/fits"
	"github.com/hoxca/fpimageio/internal/render"
	"github.com/hoxca/fpimageio/internal/scale"
)

// Core wires the Cache Fabric's six caches together and owns the registries
// and byte reader every loader ultimately bottoms out in, mirroring
// CachingReader.java's field list.
type Core struct {
	cfg Config

	bytes *bytesource.Cache
	bias  *bias.Registry
	cmaps *cmap.Registry

	indexCache   *cachefab.CountCache[string, []string]
	segmentCache *cachefab.CountCache[string, []fits.Segment]
	rawDataCache *cachefab.WeightedCache[string, bias.RawBuffer]
	biasCache    *cachefab.CountCache[string, bias.CorrectionFactors]
	tileCache    *cachefab.WeightedCache[string, *image.RGBA]
	globalCache  *cachefab.CountCache[string, *scale.GlobalHistogram]
}

// New builds a Core over the given byte-reader cache, with the six
// cache-size knobs defaulted per Config.withDefaults.
func New(cfg Config, bytesrc *bytesource.Cache) *Core {
	cfg = cfg.withDefaults()
	return &Core{
		cfg:   cfg,
		bytes: bytesrc,
		bias:  bias.NewRegistry(),
		cmaps: cmap.NewRegistry(),

		indexCache:   cachefab.NewCountCache[string, []string]("index", cfg.LinesCacheSize),
		segmentCache: cachefab.NewCountCache[string, []fits.Segment]("segment", cfg.SegmentCacheSize),
		rawDataCache: cachefab.NewWeightedCache[string, bias.RawBuffer]("rawdata", cfg.RawDataCacheSizeBytes),
		biasCache:    cachefab.NewCountCache[string, bias.CorrectionFactors]("bias", cfg.BiasCorrectionCacheSize),
		tileCache:    cachefab.NewWeightedCache[string, *image.RGBA]("tile", cfg.BufferedImageCacheSizeBytes),
		globalCache:  cachefab.NewCountCache[string, *scale.GlobalHistogram]("globalhistogram", cfg.GlobalScalingCacheSize),
	}
}

// CacheSources returns every cache's stats-snapshot accessor, for building
// a cachefab.Reporter.
func (c *Core) CacheSources() []func() cachefab.Named {
	return []func() cachefab.Named{
		c.indexCache.Named,
		c.segmentCache.Named,
		c.rawDataCache.Named,
		c.biasCache.Named,
		c.tileCache.Named,
		c.globalCache.Named,
	}
}

func segKeyStr(seg *fits.Segment) string {
	return fmt.Sprintf("%s#%d#%c", seg.File, seg.HDUNumber, seg.WCSLetter)
}

func segmentListKeyStr(descriptor string, wcsLetter byte, override map[string]fits.WCSOverride) string {
	return fmt.Sprintf("%s#%c#%p", descriptor, wcsLetter, override)
}

func biasKeyStr(segKey, biasKind string) string { return segKey + "#" + biasKind }

func tileKeyStr(segKey, biasKind, colormapName, globalKey string) string {
	return fmt.Sprintf("%s#%s#%s#%s", segKey, biasKind, colormapName, globalKey)
}

func globalKeyStr(segKeys []string, biasKind string) string {
	return strings.Join(segKeys, ",") + "#" + biasKind
}

// fetchIndex returns the Index cache's Future for indexDescriptor, loading
// it by opening the descriptor as a byte source and splitting it into
// descriptor lines (spec section 4.1/4.8).
func (c *Core) fetchIndex(descriptor string) *cachefab.Future[[]string] {
	return c.indexCache.Get(descriptor, descriptor, func() ([]string, error) {
		h, err := c.bytes.Open(descriptor)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, h.Size())
		if _, err := h.ReadAt(buf, 0); err != nil {
			return nil, err
		}
		return fits.ReadIndex(bytes.NewReader(buf))
	})
}

// fetchSegments returns the Segment cache's Future for one descriptor.
func (c *Core) fetchSegments(descriptor string, wcsLetter byte, override map[string]fits.WCSOverride) *cachefab.Future[[]fits.Segment] {
	key := segmentListKeyStr(descriptor, wcsLetter, override)
	return c.segmentCache.Get(key, key, func() ([]fits.Segment, error) {
		return fits.DecodeSegments(c.bytes.AsOpener(), descriptor, wcsLetter, override, false)
	})
}

// fetchRawData returns the RawData cache's Future for one segment.
func (c *Core) fetchRawData(seg *fits.Segment) *cachefab.Future[bias.RawBuffer] {
	key := segKeyStr(seg)
	return c.rawDataCache.Get(key, key, rawDataWeight, func() (bias.RawBuffer, error) {
		return c.loadRawData(seg)
	})
}

func rawDataWeight(b bias.RawBuffer) int64 {
	n := len(b.Int32)
	if n == 0 {
		n = len(b.Float32)
	}
	return int64(n) * 4
}

func (c *Core) loadRawData(seg *fits.Segment) (bias.RawBuffer, error) {
	raw, err := c.bytes.Read(seg.File, seg.DataOffset, seg.RawDataLen, seg.FileSize)
	if err != nil {
		return bias.RawBuffer{}, err
	}

	n := seg.NAxis1 * seg.NAxis2
	isFloat := seg.Bitpix == -32

	if !seg.IsCompressed {
		if isFloat {
			f, err := decomp.DecodeRawFloat32(raw, n)
			if err != nil {
				return bias.RawBuffer{}, err
			}
			return bias.RawBuffer{Float32: f, NAxis1: seg.NAxis1}, nil
		}
		i, err := decomp.DecodeRawInt32(raw, n)
		if err != nil {
			return bias.RawBuffer{}, err
		}
		return bias.RawBuffer{Int32: i, NAxis1: seg.NAxis1}, nil
	}

	var compression decomp.CompressionKind
	switch seg.Compression {
	case fits.CompressionRice1:
		compression = decomp.CompressionRice1
	case fits.CompressionGzip2:
		compression = decomp.CompressionGzip2
	}

	if isFloat {
		f, err := decomp.DecodeFloat32(raw, compression, seg.NAxis1, seg.NAxis2, seg.CAxis1, seg.CAxis2)
		if err != nil {
			return bias.RawBuffer{}, err
		}
		return bias.RawBuffer{Float32: f, NAxis1: seg.NAxis1}, nil
	}
	i, err := decomp.DecodeInt32(raw, compression, seg.NAxis1, seg.NAxis2, seg.CAxis1, seg.CAxis2)
	if err != nil {
		return bias.RawBuffer{}, err
	}
	return bias.RawBuffer{Int32: i, NAxis1: seg.NAxis1}, nil
}

// fetchBiasFactors returns the BiasFactors cache's Future for (segment, biasKind).
func (c *Core) fetchBiasFactors(seg *fits.Segment, biasKind string) *cachefab.Future[bias.CorrectionFactors] {
	segKey := segKeyStr(seg)
	key := biasKeyStr(segKey, biasKind)
	return c.biasCache.Get(key, key, func() (bias.CorrectionFactors, error) {
		strat, err := c.bias.Get(biasKind)
		if err != nil {
			return nil, err
		}
		buf, err := c.fetchRawData(seg).Await(context.Background())
		if err != nil {
			return nil, err
		}
		return strat.Compute(buf, seg), nil
	})
}

// fetchGlobalHistogram returns the GlobalHistogram cache's key and Future
// for (segments, biasKind), its loader fanning out a per-segment histogram
// (RawData + BiasFactors) and merging them (spec section 4.8, "GlobalHistogram
// loader"). The returned key is the handle identity fetchTile keys its own
// RenderedTile cache entries on, so tiles rendered against two distinct
// global histograms never alias even if they happen to share a segment.
func (c *Core) fetchGlobalHistogram(segs []fits.Segment, biasKind string) (string, *cachefab.Future[*scale.GlobalHistogram]) {
	keys := make([]string, len(segs))
	for i := range segs {
		keys[i] = segKeyStr(&segs[i])
	}
	key := globalKeyStr(keys, biasKind)
	return key, c.globalCache.Get(key, key, func() (*scale.GlobalHistogram, error) {
		histograms := make([]*scale.Histogram, len(segs))
		g, ctx := errgroup.WithContext(context.Background())
		for i := range segs {
			i := i
			g.Go(func() error {
				seg := &segs[i]
				buf, err := c.fetchRawData(seg).Await(ctx)
				if err != nil {
					return err
				}
				if buf.Float32 != nil {
					return nil // enhanced-scaling path has no histogram contribution
				}
				factors, err := c.fetchBiasFactors(seg, biasKind).Await(ctx)
				if err != nil {
					return err
				}
				histograms[i] = scale.Build(seg, buf.Int32, factors)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return scale.MergeGlobal(histograms...), nil
	})
}

// fetchTile returns the RenderedTile cache's Future for
// (segment, biasKind, colormap, global histogram handle). globalKey is the
// empty string when global is nil (the per-segment amplifier-scaling path).
func (c *Core) fetchTile(seg *fits.Segment, biasKind, colormapName string, global *scale.GlobalHistogram, globalKey string) *cachefab.Future[*image.RGBA] {
	segKey := segKeyStr(seg)
	key := tileKeyStr(segKey, biasKind, colormapName, globalKey)
	return c.tileCache.Get(key, key, tileWeight, func() (*image.RGBA, error) {
		colormap, err := c.cmaps.Get(colormapName)
		if err != nil {
			return nil, err
		}
		buf, err := c.fetchRawData(seg).Await(context.Background())
		if err != nil {
			return nil, err
		}
		if buf.Float32 != nil {
			return render.Float32(seg, buf.Float32, colormap), nil
		}
		factors, err := c.fetchBiasFactors(seg, biasKind).Await(context.Background())
		if err != nil {
			return nil, err
		}
		return render.Int32(seg, buf.Int32, factors, global, colormap), nil
	})
}

func tileWeight(img *image.RGBA) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
