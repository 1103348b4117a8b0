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

// Package vfs ties the filesystem and file-op vtables (vfs/fsops) and the
// inode cache (vfs/inode) together into the process-wide virtual
// filesystem: a mount table, path resolution, and a file-descriptor table.
package vfs

import (
	"github.com/google/uuid"

	"github.com/kavionic/padkernel/vfs/fsops"
	"github.com/kavionic/padkernel/vfs/inode"
)

// VolumeFlags mirrors the per-volume property bits the original kernel
// tracks (read_fsstat's flags field).
type VolumeFlags uint32

const (
	VolumeReadOnly VolumeFlags = 1 << iota
	VolumeRemovable
	VolumePersistent
	VolumeShared
	VolumeBlockBased
	VolumeCanMount
)

// RootVolumeID is the reserved volume id the root filesystem is always
// mounted at.
const RootVolumeID fsops.VolumeID = 1

// Volume identifies one mounted filesystem instance.
type Volume struct {
	ID fsops.VolumeID

	// UUID is a stable identifier for this mounted instance, independent of
	// the small sequential VolumeID the mount table hands out: a log or
	// metrics label that still names the same volume across a remount that
	// happens to reuse a freed VolumeID.
	UUID uuid.UUID

	Flags      VolumeFlags
	FS         fsops.Filesystem
	RootInode  fsops.InodeID
	DevicePath string

	// MountPoint is the (volume, inode) this volume is mounted over, the
	// directory whose "mounted-over" link now points at RootInode. The root
	// volume has no mount point.
	MountPoint    inode.Key
	HasMountPoint bool
}
