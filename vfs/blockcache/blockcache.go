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

// Package blockcache implements the kernel's fixed-size block cache: a
// static pool of 4 KiB buffers shared across every mounted block device,
// migrating between a free list and an MRU list of loaded buffers as
// get_block requests come in. Grounded on the original kernel's
// KBlockCache, generalized from its single static global pool to an
// explicit Cache value so tests (and, eventually, multiple independent
// kernel instances) don't share global state.
package blockcache

import (
	"sync"

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
)

// BufferSize is the fixed cache buffer size, 4 KiB, matching the original
// kernel's BUFFER_BLOCK_SIZE.
const BufferSize = 4096

type bufferHeader struct {
	buf []byte

	device    int
	bufferNum int64
	useCount  int
	dirty     bool
	flushing  bool

	mruPrev, mruNext *bufferHeader
	onMRU            bool
}

type bufferKey struct {
	device    int
	bufferNum int64
}

type deviceInfo struct {
	dev                fsops.BlockDevice
	blockSize           uint32
	blockToBufferShift  uint
	bufferOffsetMask    int64
}

// Cache is a fixed pool of BufferSize-byte buffers shared across every
// registered device.
type Cache struct {
	mu   sync.Mutex
	cond *sync.Cond

	headers []*bufferHeader
	free    []*bufferHeader
	byKey   map[bufferKey]*bufferHeader

	mruHead, mruTail *bufferHeader

	devices    map[int]*deviceInfo
	dirtyCount int
}

// New returns a Cache with poolSize buffers, none yet assigned to any
// device.
func New(poolSize int) *Cache {
	c := &Cache{
		headers: make([]*bufferHeader, poolSize),
		byKey:   make(map[bufferKey]*bufferHeader),
		devices: make(map[int]*deviceInfo),
	}
	c.cond = sync.NewCond(&c.mu)
	for i := range c.headers {
		h := &bufferHeader{buf: make([]byte, BufferSize)}
		c.headers[i] = h
		c.free = append(c.free, h)
	}
	return c
}

// RegisterDevice tells the cache about a block device, computing the
// blockNum-to-bufferNum shift the original kernel's SetDevice switch picks
// by block size. Unsupported block sizes fall back to a 1:1 mapping, the
// same default the original takes for its default case.
func (c *Cache) RegisterDevice(id int, dev fsops.BlockDevice, blockSize uint32) {
	info := &deviceInfo{dev: dev, blockSize: blockSize}
	switch blockSize {
	case 512:
		info.blockToBufferShift, info.bufferOffsetMask = 3, 0x07
	case 1024:
		info.blockToBufferShift, info.bufferOffsetMask = 2, 0x03
	case 2048:
		info.blockToBufferShift, info.bufferOffsetMask = 1, 0x01
	default:
		info.blockToBufferShift, info.bufferOffsetMask = 0, 0x00
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices[id] = info
}

// UnregisterDevice flushes and drops every buffer belonging to device,
// then forgets it.
func (c *Cache) UnregisterDevice(id int) error {
	if err := c.Sync(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.devices, id)
	return nil
}

// BlockDesc is a reference to a cached buffer. Callers must call Release
// exactly once when done; there is no finalizer, unlike the original
// kernel's RAII KCacheBlockDesc.
type BlockDesc struct {
	cache  *Cache
	header *bufferHeader
	offset int
	size   uint32
}

// Buffer returns the block's bytes within the cache buffer.
func (d *BlockDesc) Buffer() []byte {
	return d.header.buf[d.offset : d.offset+int(d.size)]
}

// MarkDirty flags the block's buffer as needing a flush before eviction.
func (d *BlockDesc) MarkDirty() {
	d.cache.mu.Lock()
	defer d.cache.mu.Unlock()
	d.cache.setDirtyLocked(d.header, true)
}

// Release drops this reference. Once the last reference on a buffer is
// released, it becomes eligible for eviction from the MRU list.
func (d *BlockDesc) Release() {
	d.cache.mu.Lock()
	defer d.cache.mu.Unlock()
	d.header.useCount--
	if d.header.useCount == 0 {
		d.cache.cond.Broadcast()
	}
}

// GetBlock returns the buffer holding blockNum on device, loading it from
// the device first if it is not already cached.
func (c *Cache) GetBlock(device int, blockNum int64) (*BlockDesc, error) {
	c.mu.Lock()
	info, ok := c.devices[device]
	if !ok {
		c.mu.Unlock()
		return nil, kerrors.New(kerrors.NotFound, "device %d not registered with block cache", device)
	}
	bufferNum := blockNum >> info.blockToBufferShift
	offset := int((blockNum & info.bufferOffsetMask)) * int(info.blockSize)
	key := bufferKey{device, bufferNum}

	for retry := 0; retry < 10; retry++ {
		if h, ok := c.byKey[key]; ok {
			h.useCount++
			c.mu.Unlock()
			return &BlockDesc{cache: c, header: h, offset: offset, size: info.blockSize}, nil
		}

		h := c.takeFreeOrEvictLocked()
		if h == nil {
			c.cond.Wait()
			continue
		}

		c.mu.Unlock()
		n, err := info.dev.ReadAt(h.buf, bufferNum*BufferSize)
		c.mu.Lock()
		if err != nil || n < len(h.buf) {
			c.free = append(c.free, h)
			c.cond.Broadcast()
			c.mu.Unlock()
			return nil, kerrors.Wrap(kerrors.IoError, err)
		}

		h.useCount = 1
		h.dirty = false
		h.flushing = false
		h.device = device
		h.bufferNum = bufferNum
		c.byKey[key] = h
		c.appendMRULocked(h)
		c.mu.Unlock()
		return &BlockDesc{cache: c, header: h, offset: offset, size: info.blockSize}, nil
	}
	c.mu.Unlock()
	return nil, kerrors.New(kerrors.BusBusy, "all cache blocks busy for device %d", device)
}

// takeFreeOrEvictLocked pops a header from the free list, or else steals
// the oldest unpinned, non-flushing buffer from the MRU list, flushing it
// first if dirty. Callers must hold c.mu; it returns nil if nothing is
// available right now, in which case the caller should wait on c.cond.
func (c *Cache) takeFreeOrEvictLocked() *bufferHeader {
	if n := len(c.free); n > 0 {
		h := c.free[n-1]
		c.free = c.free[:n-1]
		return h
	}

	for h := c.mruHead; h != nil; h = h.mruNext {
		if h.useCount == 0 && !h.flushing {
			c.removeMRULocked(h)
			if h.dirty {
				c.flushLocked(h)
			}
			delete(c.byKey, bufferKey{h.device, h.bufferNum})
			return h
		}
	}
	return nil
}

// MarkDirty flags the cached buffer for (device, blockNum) as dirty,
// reporting false if it is not currently cached.
func (c *Cache) MarkDirty(device int, blockNum int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.devices[device]
	if !ok {
		return false
	}
	bufferNum := blockNum >> info.blockToBufferShift
	h, ok := c.byKey[bufferKey{device, bufferNum}]
	if !ok {
		return false
	}
	c.setDirtyLocked(h, true)
	return true
}

func (c *Cache) setDirtyLocked(h *bufferHeader, dirty bool) {
	if dirty == h.dirty {
		return
	}
	h.dirty = dirty
	if dirty {
		c.dirtyCount++
	} else {
		c.dirtyCount--
	}
}

// CachedRead copies blockCount device-native blocks starting at blockNum
// into buf, routing each through the cache.
func (c *Cache) CachedRead(device int, blockNum int64, buf []byte, blockCount int) error {
	c.mu.Lock()
	info, ok := c.devices[device]
	c.mu.Unlock()
	if !ok {
		return kerrors.New(kerrors.NotFound, "device %d not registered with block cache", device)
	}
	for i := 0; i < blockCount; i++ {
		desc, err := c.GetBlock(device, blockNum+int64(i))
		if err != nil {
			return err
		}
		copy(buf[i*int(info.blockSize):], desc.Buffer())
		desc.Release()
	}
	return nil
}

// CachedWrite copies blockCount device-native blocks from buf into the
// cache, marking each dirty.
func (c *Cache) CachedWrite(device int, blockNum int64, buf []byte, blockCount int) error {
	c.mu.Lock()
	info, ok := c.devices[device]
	c.mu.Unlock()
	if !ok {
		return kerrors.New(kerrors.NotFound, "device %d not registered with block cache", device)
	}
	for i := 0; i < blockCount; i++ {
		desc, err := c.GetBlock(device, blockNum+int64(i))
		if err != nil {
			return err
		}
		copy(desc.Buffer(), buf[i*int(info.blockSize):(i+1)*int(info.blockSize)])
		desc.MarkDirty()
		desc.Release()
	}
	return nil
}

// flushLocked writes a dirty buffer back to its device. Callers must hold
// c.mu; it releases and reacquires the lock around the actual I/O, the same
// way the original kernel drops its critical section around FileIO::Write.
func (c *Cache) flushLocked(h *bufferHeader) {
	if !h.dirty {
		return
	}
	info, ok := c.devices[h.device]
	if !ok {
		return
	}
	h.flushing = true
	bufferNum := h.bufferNum
	buf := h.buf

	c.mu.Unlock()
	_, _ = info.dev.WriteAt(buf, bufferNum*BufferSize)
	c.mu.Lock()

	h.flushing = false
	c.setDirtyLocked(h, false)
	c.cond.Broadcast()
}

// Sync flushes every dirty buffer belonging to device.
func (c *Cache) Sync(device int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h := c.mruHead; h != nil; h = h.mruNext {
		if h.device == device && h.dirty {
			c.flushLocked(h)
		}
	}
	if info, ok := c.devices[device]; ok {
		return info.dev.Flush()
	}
	return nil
}

// DirtyCount reports the number of buffers currently marked dirty, the
// signal the flusher thread uses to pick its sleep interval.
func (c *Cache) DirtyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyCount
}

func (c *Cache) appendMRULocked(h *bufferHeader) {
	if h.onMRU {
		return
	}
	h.onMRU = true
	h.mruPrev = c.mruTail
	h.mruNext = nil
	if c.mruTail != nil {
		c.mruTail.mruNext = h
	} else {
		c.mruHead = h
	}
	c.mruTail = h
}

func (c *Cache) removeMRULocked(h *bufferHeader) {
	if !h.onMRU {
		return
	}
	if h.mruPrev != nil {
		h.mruPrev.mruNext = h.mruNext
	} else {
		c.mruHead = h.mruNext
	}
	if h.mruNext != nil {
		h.mruNext.mruPrev = h.mruPrev
	} else {
		c.mruTail = h.mruPrev
	}
	h.mruPrev, h.mruNext = nil, nil
	h.onMRU = false
}
