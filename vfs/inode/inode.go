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

// Package inode implements the in-memory inode object backing the VFS
// layer's inode cache: a thin wrapper around a filesystem-supplied
// fsops.FileOps that adds the lookup-count bookkeeping, MRU linkage and
// locking the cache needs, adapted from the teacher's GCS-object-backed
// fs/inode package and generalized to a volume/device-backed model.
package inode

import (
	"sync"
	"time"

	"github.com/kavionic/padkernel/vfs/fsops"
)

// Key identifies an inode uniquely across every mounted volume.
type Key struct {
	Volume fsops.VolumeID
	ID     fsops.InodeID
}

// Inode is the VFS layer's in-memory handle on a loaded inode. It is safe
// for concurrent use; Lock/Unlock satisfy sync.Locker so callers can treat
// an Inode like any other mutex-guarded resource.
type Inode struct {
	mu sync.Mutex

	key  Key
	ops  fsops.FileOps
	name string // last path component this inode was looked up under, for diagnostics

	// lookupCount tracks how many outstanding references the kernel
	// (open file descriptors, directory entries resolved but not yet
	// closed, the inode cache's own pinning during an in-flight
	// operation) holds on this inode. It is the direct analog of the
	// teacher's lookupCount: decrementing it to zero is what makes the
	// inode eligible for the cache to evict and the filesystem to
	// release.
	lookupCount uint64

	// mruPrev/mruNext link this inode into the inode cache's MRU list.
	// Only the cache touches these fields; they live here rather than in
	// a side map so eviction is an O(1) unlink instead of a cache-wide
	// scan.
	mruPrev, mruNext *Inode
	onMRUList        bool
	releasedAt       time.Time
}

// New wraps ops as the inode identified by key, with an initial lookup
// count of one (the caller that is creating/loading it holds the first
// reference, mirroring the teacher's convention for freshly looked-up
// inodes).
func New(key Key, name string, ops fsops.FileOps) *Inode {
	return &Inode{key: key, name: name, ops: ops, lookupCount: 1}
}

func (in *Inode) Key() Key             { return in.key }
func (in *Inode) Name() string         { return in.name }
func (in *Inode) Ops() fsops.FileOps   { return in.ops }
func (in *Inode) Lock()                { in.mu.Lock() }
func (in *Inode) Unlock()              { in.mu.Unlock() }

// IncrementLookupCount adds n references to the inode.
func (in *Inode) IncrementLookupCount(n uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.lookupCount += n
}

// DecrementLookupCount removes n references and reports whether the count
// reached zero, in which case the caller (the inode cache) moves the inode
// onto its idle MRU list, from which a sweep or the hard cap later evicts it.
func (in *Inode) DecrementLookupCount(n uint64) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if n > in.lookupCount {
		in.lookupCount = 0
	} else {
		in.lookupCount -= n
	}
	return in.lookupCount == 0
}

// LookupCount returns the current reference count, for diagnostics.
func (in *Inode) LookupCount() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lookupCount
}
