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
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CountCache is a count-capped, single-flighted, async cache, the shape of
// CachingReader.java's indexCache/segmentCache/biasCorrectionCache/
// globalScalingCache fields (each built with Caffeine's maximumSize). Keys
// must be comparable; keyStr is the single-flight join key, kept separate
// from K so callers with non-string keys can still dedupe loads cheaply.
type CountCache[K comparable, V any] struct {
	name  string
	lru   *lru.Cache[K, V]
	sf    singleflight.Group
	stats Stats
}

// NewCountCache builds a CountCache holding at most size entries, evicting
// least-recently-used on overflow.
func NewCountCache[K comparable, V any](name string, size int) *CountCache[K, V] {
	c := &CountCache[K, V]{name: name}
	l, _ := lru.NewWithEvict[K, V](size, func(K, V) { c.stats.evict(1) })
	c.lru = l
	return c
}

// Get returns a Future that resolves to the cached value, or to load()'s
// result after running it exactly once per keyStr even if Get is called
// concurrently for the same key (spec section 8, "single-flight"). Get
// itself never blocks.
func (c *CountCache[K, V]) Get(key K, keyStr string, load func() (V, error)) *Future[V] {
	if v, ok := c.lru.Get(key); ok {
		c.stats.hit()
		return completedFuture(v, nil)
	}
	c.stats.miss()

	fut := newFuture[V]()
	ch := c.sf.DoChan(keyStr, func() (interface{}, error) {
		start := time.Now()
		v, err := load()
		c.stats.recordLoad(time.Since(start).Nanoseconds())
		return v, err
	})
	go func() {
		res := <-ch
		if res.Err != nil {
			c.stats.fail()
			var zero V
			fut.complete(zero, res.Err)
			return
		}
		v := res.Val.(V)
		c.lru.Add(key, v)
		fut.complete(v, nil)
	}()
	return fut
}

// Invalidate drops key from the cache, the Go counterpart of Caffeine's
// cache.invalidate used when a file swap is detected upstream.
func (c *CountCache[K, V]) Invalidate(key K) { c.lru.Remove(key) }

// Named returns the cache's name and a stats snapshot for the Reporter.
func (c *CountCache[K, V]) Named() Named { return Named{Name: c.name, Snapshot: c.stats.Snapshot()} }
