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

import "sync/atomic"

// Stats accumulates per-cache counters the Reporter snapshots every interval
// (they are cumulative and never reset),
// mirroring the hit/miss/loadTime/eviction counters Caffeine exposes via
// its own CacheStats and that CachingReader.java logs on its own timer.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Errors     uint64
	Evictions  uint64
	LoadNanos  int64
	LoadCount  uint64
}

func (s *Stats) hit()  { atomic.AddUint64(&s.Hits, 1) }
func (s *Stats) miss() { atomic.AddUint64(&s.Misses, 1) }
func (s *Stats) fail() { atomic.AddUint64(&s.Errors, 1) }
func (s *Stats) evict(n uint64) { atomic.AddUint64(&s.Evictions, n) }

func (s *Stats) recordLoad(nanos int64) {
	atomic.AddInt64(&s.LoadNanos, nanos)
	atomic.AddUint64(&s.LoadCount, 1)
}

// Snapshot is a point-in-time copy safe to format and log.
type Snapshot struct {
	Hits, Misses, Errors, Evictions, LoadCount uint64
	LoadNanos                                  int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Hits:      atomic.LoadUint64(&s.Hits),
		Misses:    atomic.LoadUint64(&s.Misses),
		Errors:    atomic.LoadUint64(&s.Errors),
		Evictions: atomic.LoadUint64(&s.Evictions),
		LoadCount: atomic.LoadUint64(&s.LoadCount),
		LoadNanos: atomic.LoadInt64(&s.LoadNanos),
	}
}

// Named pairs a cache name with its stats snapshot for the Reporter.
type Named struct {
	Name string
	Snapshot
}
