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
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
	"github.com/kavionic/padkernel/vfs/inode"
)

// Open resolves path relative to cwd and returns a new file descriptor.
// OpenCreate creates a missing file with the given mode; it is an error to
// pass OpenCreate together with OpenDirectory.
func (v *VFS) Open(cwd inode.Key, path string, flags fsops.OpenFlags, mode uint32) (int, error) {
	if flags&fsops.OpenCreate != 0 && flags&fsops.OpenDirectory != 0 {
		return 0, kerrors.New(kerrors.InvalidArgument, "OpenCreate cannot be combined with OpenDirectory")
	}
	dirPath, name := Split(path)
	parent, err := v.Resolve(cwd, dirPath, true)
	if err != nil {
		return 0, err
	}
	vol, err := v.Volume(parent.Volume)
	if err != nil {
		return 0, err
	}

	childID, err := vol.FS.LocateInode(parent.ID, name)
	if err != nil {
		if !kerrors.Is(err, kerrors.NotFound) || flags&fsops.OpenCreate == 0 {
			return 0, err
		}
		childID, err = vol.FS.CreateFile(parent.ID, name, mode)
		if err != nil {
			return 0, err
		}
	}

	key := inode.Key{Volume: parent.Volume, ID: childID}
	if mounted, ok := v.mountedVolumeOver(key); ok {
		key = inode.Key{Volume: mounted.ID, ID: mounted.RootInode}
	}

	in, err := v.loadInode(key)
	if err != nil {
		return 0, err
	}
	cookie, err := in.Ops().Open(flags)
	if err != nil {
		v.releaseInode(in)
		return 0, err
	}
	of := &OpenFile{Key: key, In: in, Cookie: cookie, Flags: flags}
	return v.fds.alloc(of), nil
}

// Close closes fd, releasing the underlying inode.
func (v *VFS) Close(fd int) error {
	of, err := v.fds.release(fd)
	if err != nil {
		return err
	}
	closeErr := of.In.Ops().Close(of.Cookie)
	v.releaseInode(of.In)
	return closeErr
}

// Dup duplicates fd; the new descriptor shares the original's file
// position.
func (v *VFS) Dup(fd int) (int, error) { return v.fds.Dup(fd) }

// Read reads from fd at its current position, advancing it by the number
// of bytes read.
func (v *VFS) Read(fd int, buf []byte) (int, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return 0, err
	}
	n, err := of.In.Ops().Read(of.Cookie, of.Position(), buf)
	of.seek(int64(n))
	return n, err
}

// ReadAt reads from fd at an explicit offset, without touching its file
// position.
func (v *VFS) ReadAt(fd int, offset int64, buf []byte) (int, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return 0, err
	}
	return of.In.Ops().Read(of.Cookie, offset, buf)
}

// Write writes to fd at its current position, advancing it by the number
// of bytes written.
func (v *VFS) Write(fd int, buf []byte) (int, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return 0, err
	}
	n, err := of.In.Ops().Write(of.Cookie, of.Position(), buf)
	of.seek(int64(n))
	return n, err
}

// WriteAt writes to fd at an explicit offset, without touching its file
// position.
func (v *VFS) WriteAt(fd int, offset int64, buf []byte) (int, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return 0, err
	}
	return of.In.Ops().Write(of.Cookie, offset, buf)
}

// ReadV performs a scatter read at fd's current position.
func (v *VFS) ReadV(fd int, vecs []fsops.IOVec) (int64, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return 0, err
	}
	n, err := of.In.Ops().ReadV(of.Cookie, of.Position(), vecs)
	of.seek(n)
	return n, err
}

// WriteV performs a gather write at fd's current position.
func (v *VFS) WriteV(fd int, vecs []fsops.IOVec) (int64, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return 0, err
	}
	n, err := of.In.Ops().WriteV(of.Cookie, of.Position(), vecs)
	of.seek(n)
	return n, err
}

// DeviceControl forwards an ioctl-style request to fd's FileOps.
func (v *VFS) DeviceControl(fd int, op uint32, in, out []byte) (int, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return 0, err
	}
	return of.In.Ops().DeviceControl(of.Cookie, op, in, out)
}

// Stat returns fd's metadata.
func (v *VFS) Stat(fd int) (fsops.Stat, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return fsops.Stat{}, err
	}
	return of.In.Ops().ReadStat()
}

// WriteStat updates fd's metadata, masked by which.
func (v *VFS) WriteStat(fd int, stat fsops.Stat, which uint32) error {
	of, err := v.fds.Get(fd)
	if err != nil {
		return err
	}
	return of.In.Ops().WriteStat(stat, which)
}

// Sync flushes fd's data and metadata.
func (v *VFS) Sync(fd int) error {
	of, err := v.fds.Get(fd)
	if err != nil {
		return err
	}
	return of.In.Ops().Sync()
}

// OpenDir resolves path and opens it for directory iteration.
func (v *VFS) OpenDir(cwd inode.Key, path string) (int, error) {
	key, err := v.Resolve(cwd, path, true)
	if err != nil {
		return 0, err
	}
	in, err := v.loadInode(key)
	if err != nil {
		return 0, err
	}
	cookie, err := in.Ops().OpenDirectory()
	if err != nil {
		v.releaseInode(in)
		return 0, err
	}
	of := &OpenFile{Key: key, In: in, Cookie: cookie, Flags: fsops.OpenDirectory}
	return v.fds.alloc(of), nil
}

// ReadDir returns the next directory entry for fd, kerrors.NotFound at the
// end of the directory.
func (v *VFS) ReadDir(fd int) (fsops.DirEntry, error) {
	of, err := v.fds.Get(fd)
	if err != nil {
		return fsops.DirEntry{}, err
	}
	return of.In.Ops().ReadDirectory(of.Cookie)
}

// RewindDir resets fd's directory iteration to the first entry.
func (v *VFS) RewindDir(fd int) error {
	of, err := v.fds.Get(fd)
	if err != nil {
		return err
	}
	return of.In.Ops().RewindDirectory(of.Cookie)
}

// CloseDir closes a descriptor opened with OpenDir.
func (v *VFS) CloseDir(fd int) error {
	of, err := v.fds.release(fd)
	if err != nil {
		return err
	}
	closeErr := of.In.Ops().CloseDirectory(of.Cookie)
	v.releaseInode(of.In)
	return closeErr
}

// Mkdir creates a directory at path relative to cwd.
func (v *VFS) Mkdir(cwd inode.Key, path string, mode uint32) error {
	dirPath, name := Split(path)
	parent, err := v.Resolve(cwd, dirPath, true)
	if err != nil {
		return err
	}
	vol, err := v.Volume(parent.Volume)
	if err != nil {
		return err
	}
	_, err = vol.FS.CreateDirectory(parent.ID, name, mode)
	return err
}

// Symlink creates a symlink at path relative to cwd, pointing at target.
func (v *VFS) Symlink(cwd inode.Key, path, target string, mode uint32) error {
	dirPath, name := Split(path)
	parent, err := v.Resolve(cwd, dirPath, true)
	if err != nil {
		return err
	}
	vol, err := v.Volume(parent.Volume)
	if err != nil {
		return err
	}
	_, err = vol.FS.CreateSymlink(parent.ID, name, target, mode)
	return err
}

// Unlink removes the file at path relative to cwd.
func (v *VFS) Unlink(cwd inode.Key, path string) error {
	dirPath, name := Split(path)
	parent, err := v.Resolve(cwd, dirPath, true)
	if err != nil {
		return err
	}
	vol, err := v.Volume(parent.Volume)
	if err != nil {
		return err
	}
	return vol.FS.Unlink(parent.ID, name)
}

// Rmdir removes the empty directory at path relative to cwd.
func (v *VFS) Rmdir(cwd inode.Key, path string) error {
	dirPath, name := Split(path)
	parent, err := v.Resolve(cwd, dirPath, true)
	if err != nil {
		return err
	}
	vol, err := v.Volume(parent.Volume)
	if err != nil {
		return err
	}
	return vol.FS.RemoveDirectory(parent.ID, name)
}

// Rename moves oldPath to newPath, both relative to cwd. Renaming across
// volumes is rejected: the original kernel's rename() never crosses a
// mount boundary either.
func (v *VFS) Rename(cwd inode.Key, oldPath, newPath string) error {
	oldDirPath, oldName := Split(oldPath)
	newDirPath, newName := Split(newPath)

	oldParent, err := v.Resolve(cwd, oldDirPath, true)
	if err != nil {
		return err
	}
	newParent, err := v.Resolve(cwd, newDirPath, true)
	if err != nil {
		return err
	}
	if oldParent.Volume != newParent.Volume {
		return kerrors.New(kerrors.CrossDevice, "rename cannot cross a mount boundary")
	}
	vol, err := v.Volume(oldParent.Volume)
	if err != nil {
		return err
	}
	return vol.FS.Rename(oldParent.ID, oldName, newParent.ID, newName)
}
