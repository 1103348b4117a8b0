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

// Package fsops defines the vtable-style interfaces every concrete
// filesystem implementation plugs into the VFS layer through: Filesystem
// for volume-wide operations (mount, sync, inode load/release, namespace
// mutation) and FileOps for operations on an already-resolved inode or open
// file. Adapted from the teacher's fuseutil vtable shape, generalized from
// the Linux FUSE wire protocol to PadOS's native syscall surface.
package fsops

import (
	"io"
	"time"

	"github.com/kavionic/padkernel/kerrors"
)

// InodeID identifies an inode within one volume. Each Filesystem assigns
// its own IDs; the VFS layer always addresses an inode by (VolumeID,
// InodeID) pair.
type InodeID uint64

// VolumeID identifies a mounted volume within the kernel's mount table.
type VolumeID int32

// FSStat reports filesystem-wide space and inode accounting, the PadOS
// analog of statvfs.
type FSStat struct {
	BlockSize   uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	TotalInodes uint64
	FreeInodes  uint64
}

// Stat reports per-inode metadata, the PadOS analog of struct stat.
type Stat struct {
	InodeID  InodeID
	Mode     uint32
	UID, GID uint32
	Size     int64
	BlockNum int64
	ATime    time.Time
	MTime    time.Time
	CTime    time.Time
	NLink    uint32
}

// DirEntry is one entry produced by ReadDirectory.
type DirEntry struct {
	InodeID InodeID
	Name    string
}

// BlockDevice abstracts the raw block device a Filesystem mounts on top
// of, exposing the geometry the partition decoder (vfs/partition) and
// block cache (vfs/blockcache) need. Device control opcodes beyond
// geometry are out of scope; this interface carries exactly the one piece
// of device_control functionality (GET_DEVICE_GEOMETRY) the VFS layer
// itself depends on.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt

	// BlockSize returns the device's native block size in bytes.
	BlockSize() uint32
	// BlockCount returns the total number of addressable blocks.
	BlockCount() uint64
	// Flush commits any device-level write cache to stable storage.
	Flush() error
}

// Filesystem is implemented once per filesystem type (rootfs, and in a
// full build, FAT/BinFS) and handles volume-wide operations.
type Filesystem interface {
	// Probe reports whether dev holds a volume this Filesystem
	// recognizes, without mounting it.
	Probe(dev BlockDevice) bool
	// Mount mounts dev and returns the InodeID of the volume's root
	// directory. The VFS layer calls it on a fresh instance built by the
	// Registry for each mount.
	Mount(dev BlockDevice, flags uint32) (root InodeID, err error)
	// Unmount releases any per-volume state. Sync is called first by the
	// VFS layer; Unmount must not assume dirty data remains.
	Unmount() error
	// Sync flushes any filesystem metadata not yet written through to
	// dev.
	Sync() error
	// ReadFSStat reports volume-wide space and inode accounting.
	ReadFSStat() (FSStat, error)

	// LocateInode resolves name within the directory identified by dir,
	// returning kerrors.NotFound if no such entry exists.
	LocateInode(dir InodeID, name string) (InodeID, error)
	// LoadInode reads an inode's on-disk representation into memory,
	// returning an opaque FileOps bound to it for subsequent operations.
	LoadInode(id InodeID) (FileOps, error)
	// ReleaseInode is called once an inode's last in-memory reference is
	// dropped, letting the filesystem free any cached state (and, for a
	// deleted inode with no remaining links, its on-disk storage).
	ReleaseInode(id InodeID) error

	CreateFile(dir InodeID, name string, mode uint32) (InodeID, error)
	CreateDirectory(dir InodeID, name string, mode uint32) (InodeID, error)
	CreateSymlink(dir InodeID, name string, target string, mode uint32) (InodeID, error)
	Rename(oldDir InodeID, oldName string, newDir InodeID, newName string) error
	Unlink(dir InodeID, name string) error
	RemoveDirectory(dir InodeID, name string) error
}

// OpenFlags mirrors the POSIX-style open(2) flag bits the VFS layer
// understands.
type OpenFlags uint32

const (
	OpenRead OpenFlags = 1 << iota
	OpenWrite
	OpenCreate
	OpenTruncate
	OpenAppend
	OpenDirectory
)

// IOVec is one scatter/gather buffer for ReadV/WriteV.
type IOVec struct {
	Buf []byte
}

// FileOps is the vtable bound to one loaded inode: operations that need an
// open file description (read/write/seek-adjacent state) as well as ones
// that only need the inode (stat, access check) are both routed through
// it, since PadOS, unlike POSIX, does not separate struct file from struct
// inode at this layer.
type FileOps interface {
	// Open is called once per open() on this inode; cookie is an
	// opaque per-open-file-description value returned to the caller and
	// passed back into every subsequent call.
	Open(flags OpenFlags) (cookie any, err error)
	Close(cookie any) error

	Read(cookie any, offset int64, buf []byte) (int, error)
	Write(cookie any, offset int64, buf []byte) (int, error)
	ReadV(cookie any, offset int64, vecs []IOVec) (int64, error)
	WriteV(cookie any, offset int64, vecs []IOVec) (int64, error)

	ReadLink(buf []byte) (int, error)

	OpenDirectory() (cookie any, err error)
	CloseDirectory(cookie any) error
	ReadDirectory(cookie any) (DirEntry, error)
	RewindDirectory(cookie any) error

	DeviceControl(cookie any, op uint32, in []byte, out []byte) (int, error)

	CheckAccess(mode uint32) error
	ReadStat() (Stat, error)
	WriteStat(stat Stat, mask uint32) error
	Sync() error

	AddListener(l ChangeListener) (cancel func())
}

// ChangeEvent describes one mutation reported to a file's listeners
// (content write, metadata change, deletion).
type ChangeEvent struct {
	Kind string
	Stat Stat
}

// ChangeListener is notified of ChangeEvents on a file it is registered on
// through FileOps.AddListener.
type ChangeListener interface {
	OnChange(ev ChangeEvent)
}

// ErrNotSupported is returned by FileOps methods a given filesystem
// legitimately does not implement (e.g. ReadLink on a non-symlink).
var ErrNotSupported = kerrors.New(kerrors.NotImplemented, "operation not supported by this filesystem")
