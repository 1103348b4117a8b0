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

package ksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/sched"
)

func TestObjectWaitGroup_ReturnsImmediatelyWhenAlreadyReady(t *testing.T) {
	s, _ := newTestScheduler()
	sem, err := NewSemaphore(s, "sem", 1, 1)
	require.NoError(t, err)
	wg := NewObjectWaitGroup(s, "wg")
	require.NoError(t, wg.AddObject(sem))

	var flags []bool
	var waitErr error
	s.Spawn("waiter", 0, func(th *sched.Thread) {
		flags, waitErr = wg.Wait(th, nil, nil)
	})
	for s.Step() {
	}

	require.NoError(t, waitErr)
	require.Len(t, flags, 1)
	assert.True(t, flags[0])
}

func TestObjectWaitGroup_WakesOnMemberBecomingReady(t *testing.T) {
	s, _ := newTestScheduler()
	sem1, err := NewSemaphore(s, "sem1", 1, 0)
	require.NoError(t, err)
	sem2, err := NewSemaphore(s, "sem2", 1, 0)
	require.NoError(t, err)
	wg := NewObjectWaitGroup(s, "wg")
	require.NoError(t, wg.AddObject(sem1))
	require.NoError(t, wg.AddObject(sem2))

	var flags []bool
	var waitErr error
	s.Spawn("waiter", 0, func(th *sched.Thread) {
		flags, waitErr = wg.Wait(th, nil, nil)
	})

	s.Step()
	assert.Nil(t, flags, "no member is ready yet, the waiter must still be parked")

	require.NoError(t, sem2.Release(1))
	for s.Step() {
	}

	require.NoError(t, waitErr)
	require.Len(t, flags, 2)
	assert.False(t, flags[0])
	assert.True(t, flags[1])
}

func TestObjectWaitGroup_DeadlineTimesOut(t *testing.T) {
	s, sc := newTestScheduler()
	sem, err := NewSemaphore(s, "sem", 1, 0)
	require.NoError(t, err)
	wg := NewObjectWaitGroup(s, "wg")
	require.NoError(t, wg.AddObject(sem))

	var waitErr error
	s.Spawn("waiter", 0, func(th *sched.Thread) {
		deadline := sc.Now().Add(time.Second)
		_, waitErr = wg.Wait(th, &deadline, nil)
	})

	s.Step()
	sc.AdvanceTime(time.Second)
	require.True(t, s.Step())

	require.Error(t, waitErr)
	assert.True(t, kerrors.Is(waitErr, kerrors.TimedOut))
}

func TestObjectWaitGroup_RemoveObject(t *testing.T) {
	s, _ := newTestScheduler()
	sem, err := NewSemaphore(s, "sem", 1, 1)
	require.NoError(t, err)
	wg := NewObjectWaitGroup(s, "wg")
	require.NoError(t, wg.AddObject(sem))
	require.NoError(t, wg.RemoveObject(sem))

	err = wg.RemoveObject(sem)
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
	assert.Empty(t, wg.Members())
}

func TestObjectWaitGroup_AddDuplicateRejected(t *testing.T) {
	s, _ := newTestScheduler()
	sem, err := NewSemaphore(s, "sem", 1, 1)
	require.NoError(t, err)
	wg := NewObjectWaitGroup(s, "wg")
	require.NoError(t, wg.AddObject(sem))

	err = wg.AddObject(sem)
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.InvalidArgument))
}
