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
	"strings"

	"github.com/kavionic/padkernel/vfs/inode"
)

// Resolve walks path component by component starting from cwd (used when
// path is relative; an absolute path, one starting with "/", always starts
// from the overall filesystem root instead). crossMount controls whether
// crossing a mountpoint follows the mounted-over volume's root, the same
// switch the original kernel's path walk exposes so callers resolving a
// mountpoint itself (for unmount, say) can stop short of descending into
// it.
func (v *VFS) Resolve(cwd inode.Key, path string, crossMount bool) (inode.Key, error) {
	cur := cwd
	if strings.HasPrefix(path, "/") {
		root, err := v.RootKey()
		if err != nil {
			return inode.Key{}, err
		}
		cur = root
	}

	for _, comp := range strings.Split(path, "/") {
		if comp == "" || comp == "." {
			continue
		}
		next, err := v.step(cur, comp, crossMount)
		if err != nil {
			return inode.Key{}, err
		}
		cur = next
	}
	return cur, nil
}

// step resolves one path component from the directory identified by dir.
func (v *VFS) step(dir inode.Key, name string, crossMount bool) (inode.Key, error) {
	if name == ".." {
		vol, err := v.Volume(dir.Volume)
		if err != nil {
			return inode.Key{}, err
		}
		if dir.ID == vol.RootInode && vol.HasMountPoint {
			return vol.MountPoint, nil
		}
	}

	vol, err := v.Volume(dir.Volume)
	if err != nil {
		return inode.Key{}, err
	}
	childID, err := vol.FS.LocateInode(dir.ID, name)
	if err != nil {
		return inode.Key{}, err
	}
	child := inode.Key{Volume: dir.Volume, ID: childID}

	if crossMount {
		if mounted, ok := v.mountedVolumeOver(child); ok {
			return inode.Key{Volume: mounted.ID, ID: mounted.RootInode}, nil
		}
	}
	return child, nil
}

// Split separates path into its parent directory path and final component,
// the decomposition create/unlink/rename-style operations need (they
// resolve the parent and operate on the last component through the
// filesystem's own namespace calls instead of LocateInode).
func Split(path string) (dir, name string) {
	path = strings.TrimRight(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ".", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}
