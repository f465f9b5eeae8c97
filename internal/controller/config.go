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

// Package controller implements the Cache Fabric wiring (C8) and Render
// Controller (C9): a Core that owns the five single-flight caches plus the
// GlobalHistogram cache, and the two render entry points that walk the DAG
// described in spec section 4.8/4.9, grounded on CachingReader.java's field
// layout and createBufferedImage/readSegmentsAsync flow.
package controller

import "github.com/pbnjay/memory"

// Config holds the six process-wide cache-size knobs (spec section 6), read
// once at New and never changed afterward (spec section 9, "Global
// process-wide settings").
type Config struct {
	SegmentCacheSize            int
	RawDataCacheSizeBytes       int64
	BiasCorrectionCacheSize     int
	BufferedImageCacheSizeBytes int64
	GlobalScalingCacheSize      int
	LinesCacheSize              int
}

const (
	defaultSegmentCacheSize        = 10000
	defaultBiasCorrectionCacheSize = 10000
	defaultGlobalScalingCacheSize  = 10000
	defaultLinesCacheSize          = 10000

	defaultRawDataCacheBytes       = 1_000_000_000
	defaultBufferedImageCacheBytes = 5_000_000_000
)

// withDefaults fills in zero fields with the spec's documented defaults.
// The two byte caps default to a fraction of system memory via
// pbnjay/memory rather than the hardcoded 1GB/5GB figures when the host has
// less RAM than that to spare, generalizing the teacher's own
// memory-aware batch sizing in cmdstack.go.
func (c Config) withDefaults() Config {
	if c.SegmentCacheSize == 0 {
		c.SegmentCacheSize = defaultSegmentCacheSize
	}
	if c.BiasCorrectionCacheSize == 0 {
		c.BiasCorrectionCacheSize = defaultBiasCorrectionCacheSize
	}
	if c.GlobalScalingCacheSize == 0 {
		c.GlobalScalingCacheSize = defaultGlobalScalingCacheSize
	}
	if c.LinesCacheSize == 0 {
		c.LinesCacheSize = defaultLinesCacheSize
	}
	if c.RawDataCacheSizeBytes == 0 {
		c.RawDataCacheSizeBytes = clampToMemoryFraction(defaultRawDataCacheBytes, 8)
	}
	if c.BufferedImageCacheSizeBytes == 0 {
		c.BufferedImageCacheSizeBytes = clampToMemoryFraction(defaultBufferedImageCacheBytes, 4)
	}
	return c
}

// clampToMemoryFraction returns wantBytes unless the host has less than
// fraction's worth of total RAM to give it, in which case it scales down to
// total/fraction. memory.TotalMemory returns 0 on platforms it can't probe,
// in which case the documented default is used unmodified.
func clampToMemoryFraction(wantBytes int64, fraction int64) int64 {
	total := memory.TotalMemory()
	if total == 0 {
		return wantBytes
	}
	capBytes := int64(total) / fraction
	if capBytes < wantBytes {
		return capBytes
	}
	return wantBytes
}
