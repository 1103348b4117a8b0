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
	"time"

	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/sched"
	"github.com/kavionic/padkernel/kernel/wait"
)

// ConditionVariable lets a thread atomically release an associated Mutex
// and park, then reacquire the mutex before returning, matching the
// original kernel's condition variable contract. It has no irq_wait*
// counterpart: this kernel's IRQ dispatcher runs handlers synchronously as
// plain bool-returning callbacks rather than as schedulable threads, so
// there is no ISR-side thread to park on the wait list.
type ConditionVariable struct {
	handle.Base

	sched   *sched.Scheduler
	waiters *wait.List
}

// NewConditionVariable returns an unsignaled ConditionVariable.
func NewConditionVariable(s *sched.Scheduler, name string) *ConditionVariable {
	return &ConditionVariable{
		Base:    handle.NewBase(handle.TypeConditionVariable, name),
		sched:   s,
		waiters: wait.NewList(),
	}
}

// Wait atomically unlocks m and parks t on the condition variable, then
// reacquires m before returning, whether it returns because of Signal/
// Broadcast, an interrupt, or (when deadline is non-nil) a timeout. If the
// reacquire itself fails, Wait returns without m held: it returns the
// reacquire error when the wait succeeded, and the wait's own error
// otherwise.
func (cv *ConditionVariable) Wait(t *sched.Thread, m *Mutex, deadline *time.Time) error {
	// The release and the park must be atomic with respect to a
	// concurrent Signal/Broadcast: since this whole model runs one
	// thread at a time, appending to the wait list happens-before
	// Unlock returns control to any other thread, so there is no window
	// for a wakeup to be lost between releasing the mutex and joining
	// the wait queue.
	if err := m.Unlock(t); err != nil {
		return err
	}

	waitErr := cv.sched.Block(t, cv.waiters, deadline)

	if err := m.Lock(t); err != nil {
		if waitErr == nil {
			return err
		}
	}
	return waitErr
}

// Signal wakes at most one waiting thread.
func (cv *ConditionVariable) Signal() {
	cv.sched.WakeOne(cv.waiters)
}

// Broadcast wakes every waiting thread.
func (cv *ConditionVariable) Broadcast() {
	cv.sched.WakeAll(cv.waiters)
}

// Wake wakes up to n waiting threads in FIFO order of the wait list, or
// every waiting thread when n is 0. It reports how many were actually
// woken.
func (cv *ConditionVariable) Wake(n int) int {
	if n == 0 {
		return cv.sched.WakeAll(cv.waiters)
	}
	woken := 0
	for ; woken < n; woken++ {
		if !cv.sched.WakeOne(cv.waiters) {
			break
		}
	}
	return woken
}

// WaiterCount reports how many threads are currently parked on the
// condition variable, for diagnostics and tests.
func (cv *ConditionVariable) WaiterCount() int {
	return cv.waiters.Len()
}

// WaitList implements Waitable.
func (cv *ConditionVariable) WaitList() *wait.List { return cv.waiters }

// Poll implements Waitable. A condition variable has no persistent ready
// state of its own — it is purely edge-triggered by Signal/Broadcast — so
// it is never found ready by an initial, non-blocking poll.
func (cv *ConditionVariable) Poll() bool { return false }
