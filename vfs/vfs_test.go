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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
	"github.com/kavionic/padkernel/vfs/rootfs"
)

func newTestVFS(t *testing.T) (*VFS, *clock.SimulatedClock) {
	sc := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := NewRegistry()
	reg.Register("rootfs", func() fsops.Filesystem { return rootfs.New(sc) })

	v := New(reg, sc.Now, CacheOptions{MaxIdle: 8, IdleThreshold: time.Minute})
	require.NoError(t, v.MountRoot(nil, "rootfs", 0, ""))
	return v, sc
}

func TestMountRoot_RejectsDoubleMount(t *testing.T) {
	v, _ := newTestVFS(t)
	err := v.MountRoot(nil, "rootfs", 0, "")
	assert.Error(t, err)
}

func TestOpenCreateWriteReadRoundTrip(t *testing.T) {
	v, _ := newTestVFS(t)
	root, err := v.RootKey()
	require.NoError(t, err)

	fd, err := v.Open(root, "/hello.txt", fsops.OpenWrite|fsops.OpenCreate, 0o644)
	require.NoError(t, err)

	n, err := v.Write(fd, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, v.Close(fd))

	fd2, err := v.Open(root, "/hello.txt", fsops.OpenRead, 0)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err = v.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	require.NoError(t, v.Close(fd2))
}

func TestMkdirAndOpenDirLists(t *testing.T) {
	v, _ := newTestVFS(t)
	root, err := v.RootKey()
	require.NoError(t, err)

	require.NoError(t, v.Mkdir(root, "/dev", 0o755))
	fd, err := v.Open(root, "/dev/null", fsops.OpenWrite|fsops.OpenCreate, 0o666)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))

	dfd, err := v.OpenDir(root, "/dev")
	require.NoError(t, err)
	var names []string
	for {
		ent, err := v.ReadDir(dfd)
		if err != nil {
			break
		}
		names = append(names, ent.Name)
	}
	require.NoError(t, v.CloseDir(dfd))
	assert.Equal(t, []string{"null"}, names)
}

func TestUnlinkAndRmdir(t *testing.T) {
	v, _ := newTestVFS(t)
	root, err := v.RootKey()
	require.NoError(t, err)

	require.NoError(t, v.Mkdir(root, "/tmp", 0o755))
	fd, err := v.Open(root, "/tmp/f", fsops.OpenWrite|fsops.OpenCreate, 0o644)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))

	require.NoError(t, v.Unlink(root, "/tmp/f"))
	require.NoError(t, v.Rmdir(root, "/tmp"))

	_, err = v.Resolve(root, "/tmp", true)
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
}

func TestRename(t *testing.T) {
	v, _ := newTestVFS(t)
	root, err := v.RootKey()
	require.NoError(t, err)

	fd, err := v.Open(root, "/a", fsops.OpenWrite|fsops.OpenCreate, 0o644)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))

	require.NoError(t, v.Rename(root, "/a", "/b"))
	_, err = v.Resolve(root, "/a", true)
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
	_, err = v.Resolve(root, "/b", true)
	assert.NoError(t, err)
}

func TestMountAndCrossMountResolution(t *testing.T) {
	v, sc := newTestVFS(t)
	root, err := v.RootKey()
	require.NoError(t, err)

	require.NoError(t, v.Mkdir(root, "/mnt", 0o755))
	mntDir, err := v.Resolve(root, "/mnt", true)
	require.NoError(t, err)

	v.registry.Register("rootfs2", func() fsops.Filesystem { return rootfs.New(sc) })

	volID, err := v.Mount(nil, mntDir, "rootfs2", 0, "")
	require.NoError(t, err)
	assert.NotEqual(t, RootVolumeID, volID)

	fd, err := v.Open(root, "/mnt/child", fsops.OpenWrite|fsops.OpenCreate, 0o644)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))

	vol, err := v.Volume(volID)
	require.NoError(t, err)
	childID, err := vol.FS.LocateInode(vol.RootInode, "child")
	require.NoError(t, err)
	assert.NotZero(t, childID)
}

func TestReleaseIdlesThroughCache(t *testing.T) {
	v, sc := newTestVFS(t)
	root, err := v.RootKey()
	require.NoError(t, err)

	fd, err := v.Open(root, "/f", fsops.OpenWrite|fsops.OpenCreate, 0o644)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))

	assert.Equal(t, 1, v.cache.IdleLen())
	sc.AdvanceTime(2 * time.Minute)
	n := v.SweepIdleInodes()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, v.cache.Len())
}
