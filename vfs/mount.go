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

package vfs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
	"github.com/kavionic/padkernel/vfs/inode"
)

// CacheOptions configures the inode cache a VFS builds at construction.
type CacheOptions struct {
	MaxIdle       int
	IdleThreshold time.Duration
}

// VFS is the process-wide virtual filesystem: a mount table, an inode
// cache shared across every mounted volume, a path resolver and a
// file-descriptor table.
type VFS struct {
	registry *Registry
	now      func() time.Time

	mu           sync.Mutex
	volumes      map[fsops.VolumeID]*Volume
	nextVolumeID fsops.VolumeID
	mountedOver  map[inode.Key]fsops.VolumeID

	cache *inode.Cache
	fds   *FDTable
}

// New returns a VFS with no volumes mounted. Call MountRoot before any path
// resolution; every other operation assumes volume 1 exists.
func New(registry *Registry, now func() time.Time, opts CacheOptions) *VFS {
	v := &VFS{
		registry:     registry,
		now:          now,
		volumes:      make(map[fsops.VolumeID]*Volume),
		mountedOver:  make(map[inode.Key]fsops.VolumeID),
		nextVolumeID: RootVolumeID + 1,
		fds:          NewFDTable(),
	}
	v.cache = inode.NewCache(opts.MaxIdle, opts.IdleThreshold, v.evictInode, now)
	return v
}

func (v *VFS) evictInode(key inode.Key) {
	v.mu.Lock()
	vol, ok := v.volumes[key.Volume]
	v.mu.Unlock()
	if !ok {
		return
	}
	_ = vol.FS.ReleaseInode(key.ID)
}

// MountRoot mounts fsName on dev as the reserved root volume (id 1). It
// must be called exactly once, before any other Mount call or path
// resolution.
func (v *VFS) MountRoot(dev fsops.BlockDevice, fsName string, flags VolumeFlags, devicePath string) error {
	v.mu.Lock()
	if _, exists := v.volumes[RootVolumeID]; exists {
		v.mu.Unlock()
		return kerrors.New(kerrors.InvalidArgument, "root volume already mounted")
	}
	v.mu.Unlock()

	fs, err := v.registry.New(fsName)
	if err != nil {
		return err
	}
	if dev != nil && !fs.Probe(dev) {
		return kerrors.New(kerrors.InvalidPartitionTable, "device does not hold a %s volume", fsName)
	}
	root, err := fs.Mount(dev, uint32(flags))
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.volumes[RootVolumeID] = &Volume{
		ID:         RootVolumeID,
		UUID:       uuid.New(),
		Flags:      flags,
		FS:         fs,
		RootInode:  root,
		DevicePath: devicePath,
	}
	return nil
}

// Mount mounts fsName on dev, grafting its root inode onto mountDir (an
// already-resolved directory), and returns the new volume's id.
func (v *VFS) Mount(dev fsops.BlockDevice, mountDir inode.Key, fsName string, flags VolumeFlags, devicePath string) (fsops.VolumeID, error) {
	fs, err := v.registry.New(fsName)
	if err != nil {
		return 0, err
	}
	if dev != nil && !fs.Probe(dev) {
		return 0, kerrors.New(kerrors.InvalidPartitionTable, "device does not hold a %s volume", fsName)
	}
	root, err := fs.Mount(dev, uint32(flags))
	if err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.mountedOver[mountDir]; exists {
		_ = fs.Unmount()
		return 0, kerrors.New(kerrors.InvalidArgument, "mount point already has a volume mounted over it")
	}
	id := v.nextVolumeID
	v.nextVolumeID++
	v.volumes[id] = &Volume{
		ID:            id,
		UUID:          uuid.New(),
		Flags:         flags,
		FS:            fs,
		RootInode:     root,
		DevicePath:    devicePath,
		MountPoint:    mountDir,
		HasMountPoint: true,
	}
	v.mountedOver[mountDir] = id
	return id, nil
}

// Unmount unmounts the given volume after flushing it, refusing if it is
// not present or is the root volume.
func (v *VFS) Unmount(id fsops.VolumeID) error {
	if id == RootVolumeID {
		return kerrors.New(kerrors.InvalidArgument, "cannot unmount the root volume")
	}
	v.mu.Lock()
	vol, ok := v.volumes[id]
	if !ok {
		v.mu.Unlock()
		return kerrors.New(kerrors.NotFound, "volume %d is not mounted", id)
	}
	delete(v.volumes, id)
	if vol.HasMountPoint {
		delete(v.mountedOver, vol.MountPoint)
	}
	v.mu.Unlock()

	if err := vol.FS.Sync(); err != nil {
		return err
	}
	return vol.FS.Unmount()
}

// Volume returns the Volume registered under id.
func (v *VFS) Volume(id fsops.VolumeID) (*Volume, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	vol, ok := v.volumes[id]
	if !ok {
		return nil, kerrors.New(kerrors.NotFound, "volume %d is not mounted", id)
	}
	return vol, nil
}

// mountedVolumeOver reports the volume mounted over dir, if any.
func (v *VFS) mountedVolumeOver(dir inode.Key) (*Volume, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id, ok := v.mountedOver[dir]
	if !ok {
		return nil, false
	}
	return v.volumes[id], true
}

// RootKey returns the (volume, inode) of the overall filesystem root.
func (v *VFS) RootKey() (inode.Key, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	vol, ok := v.volumes[RootVolumeID]
	if !ok {
		return inode.Key{}, kerrors.New(kerrors.NotFound, "root volume not mounted")
	}
	return inode.Key{Volume: RootVolumeID, ID: vol.RootInode}, nil
}

// loadInode returns the cached inode.Inode for key, loading it through the
// owning volume's Filesystem if it is not already cached.
func (v *VFS) loadInode(key inode.Key) (*inode.Inode, error) {
	vol, err := v.Volume(key.Volume)
	if err != nil {
		return nil, err
	}
	return v.cache.Get(key, func() (*inode.Inode, error) {
		ops, err := vol.FS.LoadInode(key.ID)
		if err != nil {
			return nil, err
		}
		return inode.New(key, "", ops), nil
	})
}

// releaseInode drops one reference acquired through loadInode.
func (v *VFS) releaseInode(in *inode.Inode) {
	v.cache.Release(in, 1)
}

// SweepIdleInodes evicts cache entries idle longer than the configured
// threshold; a kernel worker thread calls this on a timer, the same way
// flush_inodes is invoked by the block cache flusher in the original
// kernel.
func (v *VFS) SweepIdleInodes() int {
	return v.cache.SweepIdle(v.now())
}
