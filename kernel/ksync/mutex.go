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

// Package ksync implements the kernel's synchronization primitives: the
// recursive/shared Mutex, the counting Semaphore, the Condition Variable
// and the Object Wait Group, all built on kernel/sched's Block/Wake
// primitives so their blocking semantics share the scheduler's single
// active thread model.
package ksync

import (
	"sync"
	"time"

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/sched"
	"github.com/kavionic/padkernel/kernel/wait"
)

// RecurseMode selects what happens when a thread that already holds a
// Mutex exclusively calls Lock again.
type RecurseMode int

const (
	// RecurseAllowed lets the owner re-enter, incrementing a recursion
	// counter that Unlock must match.
	RecurseAllowed RecurseMode = iota
	// RecurseRaiseError returns kerrors.DeadlockWouldOccur instead of
	// re-entering.
	RecurseRaiseError
	// RecursePanic panics, for mutexes that must never be re-entered and
	// whose callers are trusted kernel code rather than syscall callers.
	RecursePanic
)

// Mutex is a recursive, writer-preferring shared/exclusive lock, directly
// modeled on the original kernel's KMutex: Lock/TryLock/LockTimeout/
// LockDeadline/Unlock for exclusive access, and LockShared/TryLockShared/
// UnlockShared for the reader side. It implements no priority inheritance:
// a low-priority holder keeps its own priority while higher-priority
// threads wait for it.
type Mutex struct {
	handle.Base

	sched *sched.Scheduler
	mode  RecurseMode

	mu sync.Mutex // protects the fields below only, never held across a Block

	owner        *sched.Thread
	recurseCount int

	sharedCount   int
	writerWaiters *wait.List
	readerWaiters *wait.List
}

// NewMutex returns an unlocked Mutex using s to park and wake blocked
// threads.
func NewMutex(s *sched.Scheduler, name string, mode RecurseMode) *Mutex {
	return &Mutex{
		Base:          handle.NewBase(handle.TypeMutex, name),
		sched:         s,
		mode:          mode,
		writerWaiters: wait.NewList(),
		readerWaiters: wait.NewList(),
	}
}

// Lock acquires the mutex exclusively, blocking t until it is free of both
// the exclusive owner and any shared readers.
func (m *Mutex) Lock(t *sched.Thread) error {
	return m.LockDeadline(t, nil)
}

// LockTimeout is LockDeadline with a relative timeout measured from now,
// the same now-plus-timeout shape as MessagePort.ReceiveTimeout: callers
// pass the scheduler's own clock reading rather than time.Now so the
// deadline advances with the clock.Clock actually driving blocking, which
// under a clock.SimulatedClock is not wall-clock time.
func (m *Mutex) LockTimeout(t *sched.Thread, now time.Time, timeout time.Duration) error {
	deadline := now.Add(timeout)
	return m.LockDeadline(t, &deadline)
}

// LockDeadline acquires the mutex exclusively, returning kerrors.TimedOut if
// deadline (when non-nil) elapses first.
func (m *Mutex) LockDeadline(t *sched.Thread, deadline *time.Time) error {
	for {
		m.mu.Lock()
		if m.owner == t {
			switch m.mode {
			case RecurseAllowed:
				m.recurseCount++
				m.mu.Unlock()
				return nil
			case RecurseRaiseError:
				m.mu.Unlock()
				return kerrors.New(kerrors.DeadlockWouldOccur, "thread %q already holds mutex %q", t.Name(), m.Name())
			default:
				m.mu.Unlock()
				panic("ksync: recursive Lock on a RecursePanic mutex")
			}
		}
		if m.owner == nil && m.sharedCount == 0 {
			m.owner = t
			m.recurseCount = 1
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		if err := m.sched.Block(t, m.writerWaiters, deadline); err != nil {
			return err
		}
		// Woken: the releasing call set m.owner = t and m.recurseCount = 1
		// directly before waking this thread, so ownership is already in
		// place. Returning here (rather than looping back to the owner
		// check above) avoids mistaking that hand-off for a recursive
		// re-entry.
		return nil
	}
}

// TryLock acquires the mutex exclusively without blocking, returning false
// if it is currently held.
func (m *Mutex) TryLock(t *sched.Thread) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == t {
		if m.mode == RecurseAllowed {
			m.recurseCount++
			return true
		}
		return false
	}
	if m.owner == nil && m.sharedCount == 0 {
		m.owner = t
		m.recurseCount = 1
		return true
	}
	return false
}

// Unlock releases one level of exclusive ownership. It returns
// kerrors.NotOwner if t does not hold the mutex.
func (m *Mutex) Unlock(t *sched.Thread) error {
	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		return kerrors.New(kerrors.NotOwner, "thread %q does not own mutex %q", t.Name(), m.Name())
	}
	m.recurseCount--
	if m.recurseCount > 0 {
		m.mu.Unlock()
		return nil
	}
	m.owner = nil

	// Writer preference: hand off directly to the next queued writer if
	// any, otherwise release every queued reader at once.
	m.mu.Unlock()
	if next := m.sched.WakeFront(m.writerWaiters); next != nil {
		m.mu.Lock()
		m.owner = next
		m.recurseCount = 1
		m.mu.Unlock()
		return nil
	}
	m.sched.WakeAll(m.readerWaiters)
	return nil
}

// LockShared acquires the mutex for shared (reader) access. It blocks while
// a writer holds the mutex or is queued, implementing writer preference so
// a steady stream of readers cannot starve a waiting writer.
func (m *Mutex) LockShared(t *sched.Thread) error {
	for {
		m.mu.Lock()
		if m.owner == nil && m.writerWaiters.Len() == 0 {
			m.sharedCount++
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		if err := m.sched.Block(t, m.readerWaiters, nil); err != nil {
			return err
		}
		m.mu.Lock()
		m.sharedCount++
		m.mu.Unlock()
		return nil
	}
}

// TryLockShared acquires shared access without blocking.
func (m *Mutex) TryLockShared() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == nil && m.writerWaiters.Len() == 0 {
		m.sharedCount++
		return true
	}
	return false
}

// UnlockShared releases one shared (reader) acquisition.
func (m *Mutex) UnlockShared() error {
	m.mu.Lock()
	if m.sharedCount == 0 {
		m.mu.Unlock()
		return kerrors.New(kerrors.NotOwner, "mutex %q has no shared holders", m.Name())
	}
	m.sharedCount--
	last := m.sharedCount == 0
	m.mu.Unlock()

	if last {
		if next := m.sched.WakeFront(m.writerWaiters); next != nil {
			m.mu.Lock()
			m.owner = next
			m.recurseCount = 1
			m.mu.Unlock()
		}
	}
	return nil
}

// IsLocked reports whether the mutex is currently held, exclusively or
// shared, matching the original kernel's debugger introspection hook.
func (m *Mutex) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner != nil || m.sharedCount > 0
}

// HoldingThread returns the thread currently holding the mutex exclusively,
// or nil if it is free or held only in shared mode.
func (m *Mutex) HoldingThread() *sched.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// WaitList implements Waitable, exposing the exclusive-waiter queue.
func (m *Mutex) WaitList() *wait.List { return m.writerWaiters }

// Poll implements Waitable: a mutex is ready when it is currently free.
func (m *Mutex) Poll() bool { return !m.IsLocked() }

// Guard locks m exclusively and returns a function that unlocks it,
// standing in for the original kernel's KMutexGuard RAII type since Go has
// no destructors: `unlock, err := mu.Guard(t)`, then `defer unlock()` once
// err is nil.
func (m *Mutex) Guard(t *sched.Thread) (func(), error) {
	if err := m.Lock(t); err != nil {
		return func() {}, err
	}
	return func() { _ = m.Unlock(t) }, nil
}
