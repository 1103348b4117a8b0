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

// Package rootfs implements the kernel's root and device-namespace
// filesystem: a purely in-memory tree of directories, files and symlinks
// used to host /dev and /bin-style entries that never touch a block
// device. Adapted from the teacher's explicit_dir.go (a directory whose
// children are enumerated explicitly rather than discovered from a
// backing store).
package rootfs

import (
	"sort"
	"sync"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
)

type kind int

const (
	kindDir kind = iota
	kindFile
	kindSymlink
)

type node struct {
	id       fsops.InodeID
	k        kind
	mode     uint32
	data     []byte
	children map[string]fsops.InodeID
	target   string // symlink only
}

// FS is an in-memory Filesystem implementation with no backing
// fsops.BlockDevice.
type FS struct {
	clock clock.Clock

	mu     sync.Mutex
	nodes  map[fsops.InodeID]*node
	nextID fsops.InodeID
	rootID fsops.InodeID
}

// New returns an FS with a single empty root directory.
func New(clk clock.Clock) *FS {
	fs := &FS{clock: clk, nodes: make(map[fsops.InodeID]*node), nextID: 1}
	fs.rootID = fs.nextID
	fs.nextID++
	fs.nodes[fs.rootID] = &node{id: fs.rootID, k: kindDir, mode: 0o755, children: make(map[string]fsops.InodeID)}
	return fs
}

// Probe never claims a block device: rootfs is always synthesized, never
// discovered on storage.
func (fs *FS) Probe(fsops.BlockDevice) bool { return false }

// Mount ignores dev and flags and returns the in-memory root.
func (fs *FS) Mount(fsops.BlockDevice, uint32) (fsops.InodeID, error) {
	return fs.rootID, nil
}

func (fs *FS) Unmount() error { return nil }
func (fs *FS) Sync() error    { return nil }

func (fs *FS) ReadFSStat() (fsops.FSStat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fsops.FSStat{
		BlockSize:   512,
		TotalBlocks: 0,
		FreeBlocks:  0,
		TotalInodes: uint64(len(fs.nodes)),
		FreeInodes:  0,
	}, nil
}

func (fs *FS) LocateInode(dir fsops.InodeID, name string) (fsops.InodeID, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.nodes[dir]
	if !ok || d.k != kindDir {
		return 0, kerrors.New(kerrors.NotFound, "directory %d not found", dir)
	}
	id, ok := d.children[name]
	if !ok {
		return 0, kerrors.New(kerrors.NotFound, "%q not found", name)
	}
	return id, nil
}

func (fs *FS) LoadInode(id fsops.InodeID) (fsops.FileOps, error) {
	fs.mu.Lock()
	_, ok := fs.nodes[id]
	fs.mu.Unlock()
	if !ok {
		return nil, kerrors.New(kerrors.NotFound, "inode %d not found", id)
	}
	return &fileOps{fs: fs, id: id}, nil
}

func (fs *FS) ReleaseInode(fsops.InodeID) error { return nil }

func (fs *FS) create(dir fsops.InodeID, name string, n *node) (fsops.InodeID, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.nodes[dir]
	if !ok || d.k != kindDir {
		return 0, kerrors.New(kerrors.NotFound, "directory %d not found", dir)
	}
	if _, exists := d.children[name]; exists {
		return 0, kerrors.New(kerrors.InvalidArgument, "%q already exists", name)
	}
	n.id = fs.nextID
	fs.nextID++
	fs.nodes[n.id] = n
	d.children[name] = n.id
	return n.id, nil
}

func (fs *FS) CreateFile(dir fsops.InodeID, name string, mode uint32) (fsops.InodeID, error) {
	return fs.create(dir, name, &node{k: kindFile, mode: mode})
}

func (fs *FS) CreateDirectory(dir fsops.InodeID, name string, mode uint32) (fsops.InodeID, error) {
	return fs.create(dir, name, &node{k: kindDir, mode: mode, children: make(map[string]fsops.InodeID)})
}

func (fs *FS) CreateSymlink(dir fsops.InodeID, name, target string, mode uint32) (fsops.InodeID, error) {
	return fs.create(dir, name, &node{k: kindSymlink, mode: mode, target: target})
}

func (fs *FS) Rename(oldDir fsops.InodeID, oldName string, newDir fsops.InodeID, newName string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	od, ok := fs.nodes[oldDir]
	if !ok || od.k != kindDir {
		return kerrors.New(kerrors.NotFound, "directory %d not found", oldDir)
	}
	id, ok := od.children[oldName]
	if !ok {
		return kerrors.New(kerrors.NotFound, "%q not found", oldName)
	}
	nd, ok := fs.nodes[newDir]
	if !ok || nd.k != kindDir {
		return kerrors.New(kerrors.NotFound, "directory %d not found", newDir)
	}
	delete(od.children, oldName)
	nd.children[newName] = id
	return nil
}

func (fs *FS) Unlink(dir fsops.InodeID, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.nodes[dir]
	if !ok || d.k != kindDir {
		return kerrors.New(kerrors.NotFound, "directory %d not found", dir)
	}
	id, ok := d.children[name]
	if !ok {
		return kerrors.New(kerrors.NotFound, "%q not found", name)
	}
	if fs.nodes[id].k == kindDir {
		return kerrors.New(kerrors.InvalidArgument, "%q is a directory", name)
	}
	delete(d.children, name)
	delete(fs.nodes, id)
	return nil
}

func (fs *FS) RemoveDirectory(dir fsops.InodeID, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.nodes[dir]
	if !ok || d.k != kindDir {
		return kerrors.New(kerrors.NotFound, "directory %d not found", dir)
	}
	id, ok := d.children[name]
	if !ok {
		return kerrors.New(kerrors.NotFound, "%q not found", name)
	}
	target := fs.nodes[id]
	if target.k != kindDir {
		return kerrors.New(kerrors.InvalidArgument, "%q is not a directory", name)
	}
	if len(target.children) > 0 {
		return kerrors.New(kerrors.InvalidArgument, "%q is not empty", name)
	}
	delete(d.children, name)
	delete(fs.nodes, id)
	return nil
}

type dirCursor struct {
	names []string
	idx   int
}

type fileOps struct {
	fs *FS
	id fsops.InodeID
}

func (f *fileOps) node() (*node, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	n, ok := f.fs.nodes[f.id]
	if !ok {
		return nil, kerrors.New(kerrors.NotFound, "inode %d not found", f.id)
	}
	return n, nil
}

func (f *fileOps) Open(fsops.OpenFlags) (any, error) { return nil, nil }
func (f *fileOps) Close(any) error                   { return nil }

func (f *fileOps) Read(_ any, offset int64, buf []byte) (int, error) {
	n, err := f.node()
	if err != nil {
		return 0, err
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if offset >= int64(len(n.data)) {
		return 0, nil
	}
	return copy(buf, n.data[offset:]), nil
}

func (f *fileOps) Write(_ any, offset int64, buf []byte) (int, error) {
	n, err := f.node()
	if err != nil {
		return 0, err
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:end], buf)
	return len(buf), nil
}

func (f *fileOps) ReadV(cookie any, offset int64, vecs []fsops.IOVec) (int64, error) {
	var total int64
	for _, v := range vecs {
		n, err := f.Read(cookie, offset+total, v.Buf)
		total += int64(n)
		if err != nil || n < len(v.Buf) {
			return total, err
		}
	}
	return total, nil
}

func (f *fileOps) WriteV(cookie any, offset int64, vecs []fsops.IOVec) (int64, error) {
	var total int64
	for _, v := range vecs {
		n, err := f.Write(cookie, offset+total, v.Buf)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (f *fileOps) ReadLink(buf []byte) (int, error) {
	n, err := f.node()
	if err != nil {
		return 0, err
	}
	if n.k != kindSymlink {
		return 0, kerrors.New(kerrors.InvalidArgument, "inode %d is not a symlink", f.id)
	}
	return copy(buf, n.target), nil
}

func (f *fileOps) OpenDirectory() (any, error) {
	n, err := f.node()
	if err != nil {
		return nil, err
	}
	if n.k != kindDir {
		return nil, kerrors.New(kerrors.InvalidArgument, "inode %d is not a directory", f.id)
	}
	f.fs.mu.Lock()
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	f.fs.mu.Unlock()
	sort.Strings(names)
	return &dirCursor{names: names}, nil
}

func (f *fileOps) CloseDirectory(any) error { return nil }

func (f *fileOps) ReadDirectory(cookie any) (fsops.DirEntry, error) {
	cur := cookie.(*dirCursor)
	if cur.idx >= len(cur.names) {
		return fsops.DirEntry{}, kerrors.New(kerrors.NotFound, "end of directory")
	}
	name := cur.names[cur.idx]
	cur.idx++

	n, err := f.node()
	if err != nil {
		return fsops.DirEntry{}, err
	}
	f.fs.mu.Lock()
	id := n.children[name]
	f.fs.mu.Unlock()
	return fsops.DirEntry{InodeID: id, Name: name}, nil
}

func (f *fileOps) RewindDirectory(cookie any) error {
	cookie.(*dirCursor).idx = 0
	return nil
}

func (f *fileOps) DeviceControl(any, uint32, []byte, []byte) (int, error) {
	return 0, fsops.ErrNotSupported
}

func (f *fileOps) CheckAccess(uint32) error { return nil }

func (f *fileOps) ReadStat() (fsops.Stat, error) {
	n, err := f.node()
	if err != nil {
		return fsops.Stat{}, err
	}
	f.fs.mu.Lock()
	size := int64(len(n.data))
	mode := n.mode
	f.fs.mu.Unlock()
	now := f.fs.clock.Now()
	return fsops.Stat{InodeID: f.id, Mode: mode, Size: size, NLink: 1, ATime: now, MTime: now, CTime: now}, nil
}

func (f *fileOps) WriteStat(stat fsops.Stat, mask uint32) error {
	n, err := f.node()
	if err != nil {
		return err
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if mask != 0 {
		n.mode = stat.Mode
	}
	return nil
}

func (f *fileOps) Sync() error { return nil }

func (f *fileOps) AddListener(fsops.ChangeListener) func() {
	return func() {}
}
