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

package inode

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetLoadsOnceAndCaches(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(8, time.Minute, nil, func() time.Time { return now })

	key := Key{Volume: 1, ID: 1}
	var loads int
	load := func() (*Inode, error) {
		loads++
		return New(key, "a", fakeOps{}), nil
	}

	in1, err := c.Get(key, load)
	require.NoError(t, err)
	in2, err := c.Get(key, load)
	require.NoError(t, err)

	assert.Same(t, in1, in2)
	assert.Equal(t, 1, loads)
	assert.EqualValues(t, 2, in1.LookupCount())
}

func TestCache_GetSerializesConcurrentLoad(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(8, time.Minute, nil, func() time.Time { return now })
	key := Key{Volume: 1, ID: 1}

	started := make(chan struct{})
	release := make(chan struct{})
	var loads int
	var mu sync.Mutex
	load := func() (*Inode, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		close(started)
		<-release
		return New(key, "a", fakeOps{}), nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	results := make([]*Inode, 2)
	go func() {
		defer wg.Done()
		in, _ := c.Get(key, load)
		results[0] = in
	}()
	<-started
	go func() {
		defer wg.Done()
		in, err := c.Get(key, func() (*Inode, error) {
			t.Fatal("second caller must not invoke load")
			return nil, nil
		})
		require.NoError(t, err)
		results[1] = in
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, loads)
	assert.Same(t, results[0], results[1])
}

func TestCache_ReleaseToZeroMovesToMRU(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(8, time.Minute, nil, func() time.Time { return now })
	key := Key{Volume: 1, ID: 1}
	in, err := c.Get(key, func() (*Inode, error) { return New(key, "a", fakeOps{}), nil })
	require.NoError(t, err)

	c.Release(in, 1)
	assert.Equal(t, 1, c.IdleLen())
	assert.Equal(t, 1, c.Len())

	in2, err := c.Get(key, func() (*Inode, error) {
		t.Fatal("entry is still cached, must not reload")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Same(t, in, in2)
	assert.Equal(t, 0, c.IdleLen())
}

func TestCache_HardCapEvictsOldest(t *testing.T) {
	now := time.Unix(0, 0)
	var evicted []Key
	c := NewCache(1, time.Hour, func(k Key) { evicted = append(evicted, k) }, func() time.Time { return now })

	k1 := Key{Volume: 1, ID: 1}
	k2 := Key{Volume: 1, ID: 2}
	in1, _ := c.Get(k1, func() (*Inode, error) { return New(k1, "a", fakeOps{}), nil })
	in2, _ := c.Get(k2, func() (*Inode, error) { return New(k2, "b", fakeOps{}), nil })

	c.Release(in1, 1)
	now = now.Add(time.Second)
	c.Release(in2, 1)

	require.Len(t, evicted, 1)
	assert.Equal(t, k1, evicted[0])
	assert.Equal(t, 1, c.Len())
}

func TestCache_SweepIdleEvictsExpiredOnly(t *testing.T) {
	now := time.Unix(0, 0)
	var evicted []Key
	c := NewCache(8, 30*time.Second, func(k Key) { evicted = append(evicted, k) }, func() time.Time { return now })

	k1 := Key{Volume: 1, ID: 1}
	k2 := Key{Volume: 1, ID: 2}
	in1, _ := c.Get(k1, func() (*Inode, error) { return New(k1, "a", fakeOps{}), nil })
	in2, _ := c.Get(k2, func() (*Inode, error) { return New(k2, "b", fakeOps{}), nil })
	c.Release(in1, 1)

	now = now.Add(20 * time.Second)
	c.Release(in2, 1)

	now = now.Add(15 * time.Second)
	n := c.SweepIdle(now)
	assert.Equal(t, 1, n)
	assert.Equal(t, []Key{k1}, evicted)
	assert.Equal(t, 1, c.Len())
}

func TestCache_LoadErrorIsNotCached(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(8, time.Minute, nil, func() time.Time { return now })
	key := Key{Volume: 1, ID: 1}
	boom := errors.New("boom")

	_, err := c.Get(key, func() (*Inode, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}
