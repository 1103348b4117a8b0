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

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
	"github.com/kavionic/padkernel/vfs/inode"
)

// OpenFile is one open file description: a resolved inode, the FileOps
// cookie Open returned, and the current file position for the
// position-implicit Read/Write calls.
type OpenFile struct {
	Key    inode.Key
	In     *inode.Inode
	Cookie any
	Flags  fsops.OpenFlags

	mu  sync.Mutex
	pos int64
}

func (f *OpenFile) Position() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *OpenFile) seek(n int64) {
	f.mu.Lock()
	f.pos += n
	f.mu.Unlock()
}

// FDTable is a process-wide table of open file descriptors.
type FDTable struct {
	mu      sync.Mutex
	files   map[int]*OpenFile
	nextFD  int
}

// NewFDTable returns an empty FDTable. Descriptor 0 is never handed out,
// matching the convention that an fd of 0 signals "invalid" in callers that
// use it as a sentinel alongside error returns.
func NewFDTable() *FDTable {
	return &FDTable{files: make(map[int]*OpenFile), nextFD: 1}
}

func (t *FDTable) alloc(of *OpenFile) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.nextFD
	t.nextFD++
	t.files[fd] = of
	return fd
}

// Get returns the OpenFile registered under fd.
func (t *FDTable) Get(fd int) (*OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	of, ok := t.files[fd]
	if !ok {
		return nil, kerrors.New(kerrors.InvalidArgument, "bad file descriptor %d", fd)
	}
	return of, nil
}

// Dup duplicates fd, returning a new descriptor backed by the same
// OpenFile (shared position, matching POSIX dup semantics).
func (t *FDTable) Dup(fd int) (int, error) {
	of, err := t.Get(fd)
	if err != nil {
		return 0, err
	}
	return t.alloc(of), nil
}

func (t *FDTable) release(fd int) (*OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	of, ok := t.files[fd]
	if !ok {
		return nil, kerrors.New(kerrors.InvalidArgument, "bad file descriptor %d", fd)
	}
	delete(t.files, fd)
	return of, nil
}

// Len reports the number of open descriptors, for diagnostics.
func (t *FDTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files)
}
