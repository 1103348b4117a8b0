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

package rootfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
)

func newTestFS() *FS {
	return New(clock.NewSimulatedClock(time.Unix(0, 0)))
}

func TestMount_ReturnsRoot(t *testing.T) {
	fs := newTestFS()
	root, err := fs.Mount(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, fs.rootID, root)
}

func TestCreateFileAndReadWrite(t *testing.T) {
	fs := newTestFS()
	root, _ := fs.Mount(nil, 0)

	id, err := fs.CreateFile(root, "hello.txt", 0o644)
	require.NoError(t, err)

	ops, err := fs.LoadInode(id)
	require.NoError(t, err)

	n, err := ops.Write(nil, 0, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	buf := make([]byte, 32)
	n, err = ops.Read(nil, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))

	stat, err := ops.ReadStat()
	require.NoError(t, err)
	assert.EqualValues(t, 11, stat.Size)
}

func TestCreateDirectoryAndLookup(t *testing.T) {
	fs := newTestFS()
	root, _ := fs.Mount(nil, 0)

	dirID, err := fs.CreateDirectory(root, "dev", 0o755)
	require.NoError(t, err)

	_, err = fs.CreateFile(dirID, "null", 0o666)
	require.NoError(t, err)

	found, err := fs.LocateInode(root, "dev")
	require.NoError(t, err)
	assert.Equal(t, dirID, found)

	_, err = fs.LocateInode(root, "missing")
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
}

func TestReadDirectoryEnumeratesChildrenSorted(t *testing.T) {
	fs := newTestFS()
	root, _ := fs.Mount(nil, 0)

	_, err := fs.CreateFile(root, "b", 0o644)
	require.NoError(t, err)
	_, err = fs.CreateFile(root, "a", 0o644)
	require.NoError(t, err)

	ops, err := fs.LoadInode(root)
	require.NoError(t, err)
	cookie, err := ops.OpenDirectory()
	require.NoError(t, err)

	var names []string
	for {
		ent, err := ops.ReadDirectory(cookie)
		if err != nil {
			break
		}
		names = append(names, ent.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestUnlinkRemovesEntry(t *testing.T) {
	fs := newTestFS()
	root, _ := fs.Mount(nil, 0)

	id, err := fs.CreateFile(root, "gone", 0o644)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(root, "gone"))
	_, err = fs.LocateInode(root, "gone")
	assert.True(t, kerrors.Is(err, kerrors.NotFound))

	_, err = fs.LoadInode(id)
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
}

func TestRemoveDirectory_RejectsNonEmpty(t *testing.T) {
	fs := newTestFS()
	root, _ := fs.Mount(nil, 0)

	dirID, err := fs.CreateDirectory(root, "d", 0o755)
	require.NoError(t, err)
	_, err = fs.CreateFile(dirID, "f", 0o644)
	require.NoError(t, err)

	err = fs.RemoveDirectory(root, "d")
	assert.True(t, kerrors.Is(err, kerrors.InvalidArgument))
}

func TestCreateSymlinkAndReadLink(t *testing.T) {
	fs := newTestFS()
	root, _ := fs.Mount(nil, 0)

	id, err := fs.CreateSymlink(root, "link", "/bin/target", 0o777)
	require.NoError(t, err)

	ops, err := fs.LoadInode(id)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := ops.ReadLink(buf)
	require.NoError(t, err)
	assert.Equal(t, "/bin/target", string(buf[:n]))
}

func TestRename(t *testing.T) {
	fs := newTestFS()
	root, _ := fs.Mount(nil, 0)

	id, err := fs.CreateFile(root, "old", 0o644)
	require.NoError(t, err)

	dstDir, err := fs.CreateDirectory(root, "dst", 0o755)
	require.NoError(t, err)

	require.NoError(t, fs.Rename(root, "old", dstDir, "new"))

	found, err := fs.LocateInode(dstDir, "new")
	require.NoError(t, err)
	assert.Equal(t, id, found)

	_, err = fs.LocateInode(root, "old")
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
}

func TestProbe_NeverClaimsDevice(t *testing.T) {
	fs := newTestFS()
	assert.False(t, fs.Probe(nil))
}

var _ fsops.Filesystem = (*FS)(nil)
