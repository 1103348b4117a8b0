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
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/sched"
	"github.com/kavionic/padkernel/kernel/wait"
)

// Semaphore is a counting semaphore with a fixed maximum count, used for
// resource pools sized at creation time (the original kernel's
// KSemaphore). Permit accounting is delegated to
// golang.org/x/sync/semaphore.Weighted via its non-blocking TryAcquire/
// Release so this type only has to own the blocked-thread queue; a waiting
// thread parks through kernel/sched.Block rather than the library's own
// (goroutine-blocking) Acquire, since only kernel/sched may suspend a
// thread's turn.
type Semaphore struct {
	handle.Base

	sched *sched.Scheduler
	inner *semaphore.Weighted
	max   int64

	mu      sync.Mutex
	count   int64
	waiters *wait.List
}

// NewSemaphore returns a Semaphore with the given maximum count and
// initialCount permits immediately available to Acquire.
func NewSemaphore(s *sched.Scheduler, name string, maxCount, initialCount int64) (*Semaphore, error) {
	if maxCount <= 0 || initialCount < 0 || initialCount > maxCount {
		return nil, kerrors.New(kerrors.InvalidArgument, "invalid semaphore bounds max=%d initial=%d", maxCount, initialCount)
	}
	sem := &Semaphore{
		Base:    handle.NewBase(handle.TypeSemaphore, name),
		sched:   s,
		inner:   semaphore.NewWeighted(maxCount),
		max:     maxCount,
		waiters: wait.NewList(),
	}
	sem.count = initialCount
	// semaphore.Weighted tracks *remaining capacity*; permits already
	// unavailable at construction time (max-initial of them) are consumed
	// up front so TryAcquire only ever succeeds for the initialCount that
	// are actually meant to be available.
	if already := maxCount - initialCount; already > 0 {
		_ = sem.inner.Acquire(context.Background(), already)
	}
	return sem, nil
}

// Acquire takes one permit, blocking t until one is available or deadline
// (if non-nil) elapses.
func (sem *Semaphore) Acquire(t *sched.Thread, deadline *time.Time) error {
	for {
		if sem.inner.TryAcquire(1) {
			sem.mu.Lock()
			sem.count--
			sem.mu.Unlock()
			return nil
		}
		if err := sem.sched.Block(t, sem.waiters, deadline); err != nil {
			return err
		}
		// Woken threads still must win TryAcquire themselves: Release
		// only wakes a candidate, it does not transfer a permit, so a
		// thread that lost a race to another acquirer loops back and
		// waits again rather than returning a phantom success.
	}
}

// TryAcquire takes one permit without blocking.
func (sem *Semaphore) TryAcquire() bool {
	if !sem.inner.TryAcquire(1) {
		return false
	}
	sem.mu.Lock()
	sem.count--
	sem.mu.Unlock()
	return true
}

// Release returns n permits, waking up to n blocked waiters. It reports
// kerrors.Overflow if doing so would exceed the semaphore's maximum count,
// leaving the semaphore unchanged.
func (sem *Semaphore) Release(n int64) error {
	if n <= 0 {
		return kerrors.New(kerrors.InvalidArgument, "semaphore %q released non-positive count %d", sem.Name(), n)
	}
	sem.mu.Lock()
	if sem.count+n > sem.max {
		sem.mu.Unlock()
		return kerrors.New(kerrors.Overflow, "semaphore %q released past its maximum", sem.Name())
	}
	sem.count += n
	sem.mu.Unlock()

	sem.inner.Release(n)
	for i := int64(0); i < n; i++ {
		if !sem.sched.WakeOne(sem.waiters) {
			break
		}
	}
	return nil
}

// Count returns the number of permits currently available to Acquire.
func (sem *Semaphore) Count() int64 {
	sem.mu.Lock()
	defer sem.mu.Unlock()
	return sem.count
}

// Max returns the semaphore's maximum count.
func (sem *Semaphore) Max() int64 { return sem.max }

// WaitList implements Waitable.
func (sem *Semaphore) WaitList() *wait.List { return sem.waiters }

// Poll implements Waitable: a semaphore is ready whenever it has an
// available permit.
func (sem *Semaphore) Poll() bool { return sem.Count() > 0 }
