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

package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/wait"
)

func newTestScheduler() (*Scheduler, *clock.SimulatedClock) {
	sc := clock.NewSimulatedClock(time.Unix(0, 0))
	s := NewScheduler(sc, handle.NewTable())
	return s, sc
}

func TestSpawn_RejectsOutOfRangePriority(t *testing.T) {
	s, _ := newTestScheduler()
	_, err := s.Spawn("bad", MaxPriority+1, func(*Thread) {})
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.InvalidArgument))
}

func TestDispatch_HighestPriorityRunsFirst(t *testing.T) {
	s, _ := newTestScheduler()
	var order []string

	s.Spawn("low", 0, func(t *Thread) {
		order = append(order, "low")
	})
	s.Spawn("high", 10, func(t *Thread) {
		order = append(order, "high")
	})

	for s.Step() {
	}
	assert.Equal(t, []string{"high", "low"}, order)
}

func TestYield_RequeuesAtBackOfBand(t *testing.T) {
	s, _ := newTestScheduler()
	var order []string

	s.Spawn("a", 0, func(t *Thread) {
		order = append(order, "a1")
		s.Yield(t)
		order = append(order, "a2")
	})
	s.Spawn("b", 0, func(t *Thread) {
		order = append(order, "b1")
	})

	for s.Step() {
	}
	assert.Equal(t, []string{"a1", "b1", "a2"}, order)
}

func TestSleep_ResumesAfterDeadline(t *testing.T) {
	s, sc := newTestScheduler()
	var woke bool

	s.Spawn("sleeper", 0, func(t *Thread) {
		err := s.Sleep(t, 5*time.Second)
		woke = err == nil
	})

	s.Step() // runs until it parks in Sleep
	assert.False(t, s.Step(), "nothing else should be ready while the sleeper waits")

	sc.AdvanceTime(5 * time.Second)
	assert.True(t, s.Step(), "sleeper should be ready once its deadline has passed")
	assert.True(t, woke)
}

func TestBlock_WakeOneResumesWaiter(t *testing.T) {
	s, _ := newTestScheduler()
	list := wait.NewList()
	var waitErr error
	started := make(chan struct{})

	s.Spawn("waiter", 0, func(t *Thread) {
		close(started)
		waitErr = s.Block(t, list, nil)
	})

	s.Step()
	assert.Equal(t, 1, list.Len())

	assert.True(t, s.WakeOne(list))
	s.Step()
	require.NoError(t, waitErr)
	assert.Equal(t, 0, list.Len())
}

func TestBlock_DeadlineExpires(t *testing.T) {
	s, sc := newTestScheduler()
	list := wait.NewList()
	var waitErr error

	s.Spawn("waiter", 0, func(t *Thread) {
		deadline := sc.Now().Add(time.Second)
		waitErr = s.Block(t, list, &deadline)
	})

	s.Step()
	sc.AdvanceTime(time.Second)
	require.True(t, s.Step())

	require.Error(t, waitErr)
	assert.True(t, kerrors.Is(waitErr, kerrors.TimedOut))
}

func TestBlock_DestroyWaitersMarksDeleted(t *testing.T) {
	s, _ := newTestScheduler()
	list := wait.NewList()
	var waitErr error

	s.Spawn("waiter", 0, func(t *Thread) {
		waitErr = s.Block(t, list, nil)
	})
	s.Step()

	assert.Equal(t, 1, s.DestroyWaiters(list))
	s.Step()
	require.Error(t, waitErr)
	assert.True(t, kerrors.Is(waitErr, kerrors.InvalidArgument))
}

func TestInterrupt_WakesSleepingThread(t *testing.T) {
	s, _ := newTestScheduler()
	var waitErr error
	var th *Thread

	th, _ = s.Spawn("sleeper", 0, func(t *Thread) {
		waitErr = s.Sleep(t, time.Hour)
	})
	s.Step()

	th.Interrupt()
	s.Step()
	require.Error(t, waitErr)
	assert.True(t, kerrors.Is(waitErr, kerrors.Interrupted))
}

func TestRun_StopsWhenContextCanceled(t *testing.T) {
	s, _ := newTestScheduler()
	s.SpawnIdle()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ReturnsWhenNothingRunnable(t *testing.T) {
	s, _ := newTestScheduler()
	s.Spawn("solo", 0, func(t *Thread) {})

	err := s.Run(context.Background())
	require.NoError(t, err)
}
