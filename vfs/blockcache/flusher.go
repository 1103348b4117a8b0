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

package blockcache

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/kavionic/padkernel/clock"
)

// FlushCount is the maximum number of dirty buffers, all from the same
// device, one flusher pass writes out at once.
const FlushCount = 4

// FlushDirtyInterval is the flusher's wake interval while any buffer is
// dirty.
const FlushDirtyInterval = 250 * time.Millisecond

// FlushIdleInterval is the flusher's wake interval while nothing is dirty.
const FlushIdleInterval = 5 * time.Second

// Flusher periodically writes dirty buffers back to their devices,
// grounded on the original kernel's DiskCacheFlusher thread: sleep 250ms
// if anything is dirty, else 5s, then call the inode-cache sweep hook
// before taking a batch of same-device dirty buffers off the MRU list.
type Flusher struct {
	cache      *Cache
	clk        clock.Clock
	limiter    *rate.Limiter
	onBeforeFlush func()
}

// NewFlusher returns a Flusher for cache. limiter throttles how often a
// flush batch may be issued (io issue rate, not bytes); a nil limiter
// disables throttling. onBeforeFlush is called once per wake, before the
// cache is scanned, mirroring the original's call to flush_inodes ahead of
// the block flush itself; it may be nil.
func NewFlusher(cache *Cache, clk clock.Clock, limiter *rate.Limiter, onBeforeFlush func()) *Flusher {
	return &Flusher{cache: cache, clk: clk, limiter: limiter, onBeforeFlush: onBeforeFlush}
}

// Run drives the flusher loop until ctx is canceled.
func (f *Flusher) Run(ctx context.Context) error {
	for {
		interval := FlushIdleInterval
		if f.cache.DirtyCount() > 0 {
			interval = FlushDirtyInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.clk.After(interval):
		}

		if f.onBeforeFlush != nil {
			f.onBeforeFlush()
		}
		f.flushPass(ctx)
	}
}

// flushPass writes out up to FlushCount dirty, not-already-flushing
// buffers drawn from a single device.
func (f *Flusher) flushPass(ctx context.Context) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return
		}
	}

	c := f.cache
	c.mu.Lock()
	if c.dirtyCount == 0 {
		c.mu.Unlock()
		return
	}

	var batch []*bufferHeader
	device := -1
	for h := c.mruHead; h != nil && len(batch) < FlushCount; h = h.mruNext {
		if !h.dirty || h.flushing {
			continue
		}
		if device == -1 {
			device = h.device
		}
		if h.device != device {
			continue
		}
		h.flushing = true
		batch = append(batch, h)
	}
	info := c.devices[device]
	c.mu.Unlock()

	if len(batch) == 0 || info == nil {
		return
	}

	for _, h := range batch {
		info.dev.WriteAt(h.buf, h.bufferNum*BufferSize)
	}

	c.mu.Lock()
	for _, h := range batch {
		h.flushing = false
		c.setDirtyLocked(h, false)
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}
