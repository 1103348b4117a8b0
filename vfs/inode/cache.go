// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inode

import (
	"sync"
	"time"
)

// LoadFunc loads the inode for a key that is not yet cached. It runs with
// the cache's lock released, so it may block (on a filesystem's own I/O).
type LoadFunc func() (*Inode, error)

// EvictFunc is called, with the cache's lock released, when an idle inode
// is about to be dropped from the cache, giving the owning filesystem a
// chance to release any state it keeps on it.
type EvictFunc func(key Key)

// slot is a cache map entry. A nil inode means a load is in flight; waiters
// block on the cache's condition variable until it resolves.
type slot struct {
	in *Inode
}

// Cache is the process-wide (volume_id, inode_number) -> Inode table. It
// serializes concurrent loads of the same key behind a PENDING sentinel and
// a condition variable, and keeps inodes whose lookup count has dropped to
// zero on an MRU list instead of releasing them immediately, mirroring the
// teacher's lease/ttlcache eviction shape generalized from time-keyed
// leases to reference-counted inodes.
type Cache struct {
	mu   sync.Mutex
	cond *sync.Cond

	entries map[Key]*slot

	mruHead, mruTail *Inode
	mruLen           int

	maxMRU        int
	idleThreshold time.Duration
	onEvict       EvictFunc

	now func() time.Time
}

// NewCache returns an empty Cache. maxMRU bounds the number of idle
// (zero-lookup-count) inodes kept before the oldest is evicted immediately;
// idleThreshold is the age past which SweepIdle evicts an entry even if
// maxMRU has not been reached. now is normally clock.Clock.Now.
func NewCache(maxMRU int, idleThreshold time.Duration, onEvict EvictFunc, now func() time.Time) *Cache {
	c := &Cache{
		entries:       make(map[Key]*slot),
		maxMRU:        maxMRU,
		idleThreshold: idleThreshold,
		onEvict:       onEvict,
		now:           now,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Get returns the cached inode for key, incrementing its lookup count. If
// no entry exists, load is called (with the lock released) exactly once;
// concurrent callers for the same key block on the condition variable until
// the in-flight load resolves, the direct analog of the PENDING sentinel.
func (c *Cache) Get(key Key, load LoadFunc) (*Inode, error) {
	c.mu.Lock()
	for {
		s, ok := c.entries[key]
		if !ok {
			break
		}
		if s.in == nil {
			// A load for this key is already in flight; wait for it to
			// resolve (to a loaded inode, or to nothing if it failed) and
			// re-check.
			c.cond.Wait()
			continue
		}
		c.unlinkMRU(s.in)
		s.in.IncrementLookupCount(1)
		c.mu.Unlock()
		return s.in, nil
	}

	c.entries[key] = &slot{}
	c.mu.Unlock()

	in, err := load()

	c.mu.Lock()
	if err != nil {
		delete(c.entries, key)
		c.cond.Broadcast()
		c.mu.Unlock()
		return nil, err
	}
	c.entries[key] = &slot{in: in}
	c.cond.Broadcast()
	c.mu.Unlock()
	return in, nil
}

// Release drops n references from in. If its lookup count reaches zero, the
// inode is moved to the MRU tail rather than evicted; it stays reachable
// through Get until a sweep (or the hard cap) removes it.
func (c *Cache) Release(in *Inode, n uint64) {
	if !in.DecrementLookupCount(n) {
		return
	}

	c.mu.Lock()
	in.releasedAt = c.now()
	c.appendMRU(in)
	var evicted []Key
	for c.maxMRU > 0 && c.mruLen > c.maxMRU {
		evicted = append(evicted, c.evictOldestLocked())
	}
	c.mu.Unlock()

	for _, key := range evicted {
		if c.onEvict != nil {
			c.onEvict(key)
		}
	}
}

// SweepIdle evicts every MRU entry released at least idleThreshold before
// now, calling onEvict for each. It returns the number of entries evicted.
func (c *Cache) SweepIdle(now time.Time) int {
	c.mu.Lock()
	var evicted []Key
	for c.mruHead != nil && now.Sub(c.mruHead.releasedAt) >= c.idleThreshold {
		evicted = append(evicted, c.evictOldestLocked())
	}
	c.mu.Unlock()

	for _, key := range evicted {
		if c.onEvict != nil {
			c.onEvict(key)
		}
	}
	return len(evicted)
}

// evictOldestLocked removes the MRU head from both the MRU list and the
// entry map and returns its key. Callers must hold c.mu and must call
// onEvict themselves once the lock is released.
func (c *Cache) evictOldestLocked() Key {
	in := c.mruHead
	c.unlinkMRU(in)
	key := in.Key()
	delete(c.entries, key)
	return key
}

func (c *Cache) appendMRU(in *Inode) {
	if in.onMRUList {
		return
	}
	in.onMRUList = true
	in.mruPrev = c.mruTail
	in.mruNext = nil
	if c.mruTail != nil {
		c.mruTail.mruNext = in
	} else {
		c.mruHead = in
	}
	c.mruTail = in
	c.mruLen++
}

func (c *Cache) unlinkMRU(in *Inode) {
	if !in.onMRUList {
		return
	}
	if in.mruPrev != nil {
		in.mruPrev.mruNext = in.mruNext
	} else {
		c.mruHead = in.mruNext
	}
	if in.mruNext != nil {
		in.mruNext.mruPrev = in.mruPrev
	} else {
		c.mruTail = in.mruPrev
	}
	in.mruPrev, in.mruNext = nil, nil
	in.onMRUList = false
	c.mruLen--
}

// Len reports the number of entries currently tracked, loaded or pending.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IdleLen reports the number of inodes currently sitting on the MRU list.
func (c *Cache) IdleLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mruLen
}
