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

package cachefab

import (
	"context"
	"time"

	"github.com/hoxca/fpimageio/internal/fplog"
)

// Reporter periodically logs a snapshot of every registered cache's stats,
// the Go counterpart of CachingReader.java's scheduled stats-logging timer
// (spec section 7: hit/miss/load-time/eviction counts every interval,
// swallowing its own errors rather than taking the process down).
type Reporter struct {
	interval time.Duration
	sources  []func() Named
}

// NewReporter builds a Reporter over the given cache sources. Sources are
// plain functions so CountCache and WeightedCache (distinct generic
// instantiations) can both be registered without a shared interface.
func NewReporter(interval time.Duration, sources ...func() Named) *Reporter {
	return &Reporter{interval: interval, sources: sources}
}

// Run logs every source's snapshot on each tick until ctx is cancelled.
// Panics from a single source are not expected, but a malformed snapshot
// must never stop the loop: each tick's logging is independent of the
// last.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logOnce()
		}
	}
}

func (r *Reporter) logOnce() {
	for _, src := range r.sources {
		n := src()
		avgLoad := time.Duration(0)
		if n.LoadCount > 0 {
			avgLoad = time.Duration(n.LoadNanos / int64(n.LoadCount))
		}
		fplog.LogPrintf("cache %s: hits=%d misses=%d errors=%d evictions=%d loads=%d avgLoad=%s",
			n.Name, n.Hits, n.Misses, n.Errors, n.Evictions, n.LoadCount, avgLoad)
	}
}
