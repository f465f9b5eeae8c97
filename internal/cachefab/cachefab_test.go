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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFutureAwaitResolves(t *testing.T) {
	f := newFuture[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.complete(42, nil)
	}()
	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestFutureAwaitContextCancelled(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestFuturePeekNotResolved(t *testing.T) {
	f := newFuture[int]()
	_, _, ok := f.Peek()
	if ok {
		t.Fatalf("expected Peek to report not-yet-resolved")
	}
	f.complete(7, nil)
	v, err, ok := f.Peek()
	if !ok || err != nil || v != 7 {
		t.Fatalf("got (%d,%v,%v), want (7,nil,true)", v, err, ok)
	}
}

func TestCompletedFuturePeek(t *testing.T) {
	f := completedFuture(5, nil)
	v, err, ok := f.Peek()
	if !ok || err != nil || v != 5 {
		t.Fatalf("got (%d,%v,%v)", v, err, ok)
	}
}

// TestCountCacheLoaderRunsOnce is spec section 8's "single-flight" invariant:
// N concurrent Get calls for the same key run load() exactly once.
func TestCountCacheLoaderRunsOnce(t *testing.T) {
	c := NewCountCache[string, int]("test", 10)
	var calls int32
	const n = 50
	var wg sync.WaitGroup
	futures := make([]*Future[int], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			futures[i] = c.Get("k", "k", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(5 * time.Millisecond)
				return 99, nil
			})
		}(i)
	}
	wg.Wait()
	for _, f := range futures {
		v, err := f.Await(context.Background())
		if err != nil {
			t.Fatalf("Await: %v", err)
		}
		if v != 99 {
			t.Fatalf("got %d, want 99", v)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("loader ran %d times, want exactly 1", got)
	}
}

func TestCountCacheHitsAfterLoad(t *testing.T) {
	c := NewCountCache[string, int]("test", 10)
	f1 := c.Get("k", "k", func() (int, error) { return 1, nil })
	if _, err := f1.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	f2 := c.Get("k", "k", func() (int, error) {
		t.Fatalf("loader must not run on a cache hit")
		return 0, nil
	})
	v, err := f2.Await(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("got (%d,%v), want (1,nil)", v, err)
	}
	snap := c.Named().Snapshot
	if snap.Hits != 1 || snap.Misses != 1 {
		t.Fatalf("stats: got %+v, want 1 hit and 1 miss", snap)
	}
}

func TestCountCacheLoadErrorPropagates(t *testing.T) {
	c := NewCountCache[string, int]("test", 10)
	wantErr := errors.New("boom")
	f := c.Get("k", "k", func() (int, error) { return 0, wantErr })
	_, err := f.Await(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

// TestCountCacheEvictsLeastRecentlyUsed exercises the hashicorp/golang-lru
// eviction wired to the cache's stats counter.
func TestCountCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCountCache[int, int]("test", 2)
	for i := 0; i < 3; i++ {
		f := c.Get(i, string(rune('a'+i)), func() (int, error) { return i, nil })
		if _, err := f.Await(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	snap := c.Named().Snapshot
	if snap.Evictions != 1 {
		t.Fatalf("evictions: got %d, want 1", snap.Evictions)
	}
	if _, ok := c.lru.Get(0); ok {
		t.Fatalf("key 0 should have been evicted")
	}
}

func TestCountCacheInvalidate(t *testing.T) {
	c := NewCountCache[string, int]("test", 10)
	f := c.Get("k", "k", func() (int, error) { return 1, nil })
	if _, err := f.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Invalidate("k")
	var calls int32
	f2 := c.Get("k", "k", func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 2, nil
	})
	v, _ := f2.Await(context.Background())
	if v != 2 || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("Invalidate did not force a reload: got %d", v)
	}
}

func weigh(v int) int64 { return int64(v) }

// TestWeightedCacheEvictionBound is spec section 8's "Cache eviction bound"
// invariant: used bytes never exceed capacity once insertion settles.
func TestWeightedCacheEvictionBound(t *testing.T) {
	c := NewWeightedCache[int, int]("test", 100)
	for i := 1; i <= 10; i++ {
		weight := 30
		f := c.Get(i, string(rune('a'+i)), func(int) int64 { return int64(weight) }, func() (int, error) { return weight, nil })
		if _, err := f.Await(context.Background()); err != nil {
			t.Fatal(err)
		}
		if c.used > c.capacity {
			t.Fatalf("used (%d) exceeded capacity (%d) after inserting key %d", c.used, c.capacity, i)
		}
	}
}

func TestWeightedCacheLoaderRunsOnce(t *testing.T) {
	c := NewWeightedCache[string, int]("test", 1000)
	var calls int32
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := c.Get("k", "k", weigh, func() (int, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(5 * time.Millisecond)
				return 10, nil
			})
			if _, err := f.Await(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("loader ran %d times, want exactly 1", got)
	}
}

func TestWeightedCacheInvalidate(t *testing.T) {
	c := NewWeightedCache[string, int]("test", 1000)
	f := c.Get("k", "k", weigh, func() (int, error) { return 10, nil })
	if _, err := f.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.used != 10 {
		t.Fatalf("used: got %d, want 10", c.used)
	}
	c.Invalidate("k")
	if c.used != 0 {
		t.Fatalf("used after invalidate: got %d, want 0", c.used)
	}
}
