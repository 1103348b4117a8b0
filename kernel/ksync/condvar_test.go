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

func TestConditionVariable_SignalWakesOneWaiter(t *testing.T) {
	s, _ := newTestScheduler()
	m := NewMutex(s, "m", RecurseAllowed)
	cv := NewConditionVariable(s, "cv")

	ready := false
	var waitErr error
	s.Spawn("waiter", 0, func(th *sched.Thread) {
		require.NoError(t, m.Lock(th))
		for !ready {
			waitErr = cv.Wait(th, m, nil)
			if waitErr != nil {
				break
			}
		}
		require.NoError(t, m.Unlock(th))
	})

	s.Step() // waiter locks m, finds !ready, parks in Wait (which unlocks m)
	assert.False(t, m.IsLocked(), "Wait must release the mutex while parked")

	s.Spawn("signaler", 0, func(th *sched.Thread) {
		require.NoError(t, m.Lock(th))
		ready = true
		cv.Signal()
		require.NoError(t, m.Unlock(th))
	})

	for s.Step() {
	}
	require.NoError(t, waitErr)
	assert.False(t, m.IsLocked())
}

func TestConditionVariable_WaitDeadlineTimesOut(t *testing.T) {
	s, sc := newTestScheduler()
	m := NewMutex(s, "m", RecurseAllowed)
	cv := NewConditionVariable(s, "cv")

	var waitErr error
	s.Spawn("waiter", 0, func(th *sched.Thread) {
		require.NoError(t, m.Lock(th))
		deadline := sc.Now().Add(time.Second)
		waitErr = cv.Wait(th, m, &deadline)
	})

	s.Step()
	sc.AdvanceTime(time.Second)
	require.True(t, s.Step())

	require.Error(t, waitErr)
	assert.True(t, kerrors.Is(waitErr, kerrors.TimedOut))
	assert.True(t, m.IsLocked(), "Wait must reacquire the mutex even after a timeout")
}

func TestConditionVariable_Broadcast(t *testing.T) {
	s, _ := newTestScheduler()
	m := NewMutex(s, "m", RecurseAllowed)
	cv := NewConditionVariable(s, "cv")
	var done int

	for i := 0; i < 3; i++ {
		s.Spawn("waiter", 0, func(th *sched.Thread) {
			require.NoError(t, m.Lock(th))
			require.NoError(t, cv.Wait(th, m, nil))
			done++
			require.NoError(t, m.Unlock(th))
		})
	}
	for i := 0; i < 3; i++ {
		s.Step()
	}
	assert.Equal(t, 3, cv.WaiterCount())

	s.Spawn("broadcaster", 0, func(th *sched.Thread) {
		require.NoError(t, m.Lock(th))
		cv.Broadcast()
		require.NoError(t, m.Unlock(th))
	})

	for s.Step() {
	}
	assert.Equal(t, 3, done)
}

func TestConditionVariable_WakeLimitsWokenCount(t *testing.T) {
	s, _ := newTestScheduler()
	m := NewMutex(s, "m", RecurseAllowed)
	cv := NewConditionVariable(s, "cv")
	var done int

	for i := 0; i < 3; i++ {
		s.Spawn("waiter", 0, func(th *sched.Thread) {
			require.NoError(t, m.Lock(th))
			require.NoError(t, cv.Wait(th, m, nil))
			done++
			require.NoError(t, m.Unlock(th))
		})
	}
	for i := 0; i < 3; i++ {
		s.Step()
	}
	require.Equal(t, 3, cv.WaiterCount())

	s.Spawn("waker", 0, func(th *sched.Thread) {
		require.NoError(t, m.Lock(th))
		woken := cv.Wake(2)
		assert.Equal(t, 2, woken)
		require.NoError(t, m.Unlock(th))
	})

	for s.Step() {
	}
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, cv.WaiterCount())
}
