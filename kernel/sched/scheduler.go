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
	"sync"
	"sync/atomic"
	"time"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/wait"
)

// Scheduler is the process-wide priority scheduler: 32 ready queues banded
// by priority, a resume-time-ordered sleep list, and the single-threaded
// dispatch loop described in doc.go.
type Scheduler struct {
	clk     clock.Clock
	handles *handle.Table

	mu      sync.Mutex
	ready   [NumPriorityBands][]*Thread
	current *Thread

	sleepList *wait.SleepList
	ticks     uint64

	idle *Thread
}

// NewScheduler returns a Scheduler with an empty ready set, backed by clk
// for deadlines and handles for thread handle allocation.
func NewScheduler(clk clock.Clock, handles *handle.Table) *Scheduler {
	return &Scheduler{
		clk:       clk,
		handles:   handles,
		sleepList: wait.NewSleepList(),
	}
}

// SpawnIdle installs the scheduler's idle thread, run whenever no other
// thread is ready. A Scheduler is usable without one (Run then returns nil
// once both the ready set and the sleep list drain), which test harnesses
// use to observe a finite simulation terminate.
func (s *Scheduler) SpawnIdle() *Thread {
	t, _ := s.Spawn("idle", MinPriority, func(t *Thread) {
		for {
			s.Yield(t)
		}
	})
	s.idle = t
	return t
}

// Spawn creates a new thread at priority, registers it in the handle table
// and places it on the ready queue. entry runs on its own goroutine once the
// scheduler grants it a turn; it must eventually return (or loop forever,
// as the idle thread does) and should use Yield/Sleep/Block to cooperate
// with the scheduler rather than looping without calling back into it.
func (s *Scheduler) Spawn(name string, priority int, entry func(t *Thread)) (*Thread, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, kerrors.New(kerrors.InvalidArgument, "priority %d out of range [%d,%d]", priority, MinPriority, MaxPriority)
	}
	t := newThread(s, name, priority, entry)
	if s.handles != nil {
		s.handles.Alloc(t)
	}

	go func() {
		<-t.turn
		t.entry(t)
		s.finish(t)
	}()

	s.enqueueReady(t)
	return t, nil
}

func (s *Scheduler) finish(t *Thread) {
	t.mu.Lock()
	t.state = StateZombie
	t.mu.Unlock()
	t.paused <- struct{}{}
}

func (s *Scheduler) enqueueReady(t *Thread) {
	t.mu.Lock()
	t.state = StateReady
	band := int(t.priority) - MinPriority
	t.mu.Unlock()

	s.mu.Lock()
	s.ready[band] = append(s.ready[band], t)
	s.mu.Unlock()
}

func (s *Scheduler) popHighestReady() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	for b := NumPriorityBands - 1; b >= 0; b-- {
		if len(s.ready[b]) > 0 {
			t := s.ready[b][0]
			s.ready[b] = s.ready[b][1:]
			return t
		}
	}
	return nil
}

func (s *Scheduler) expireSleepers() {
	now := s.clk.Now()
	for _, e := range s.sleepList.PopExpired(now) {
		t := e.Payload.(*Thread)
		t.mu.Lock()
		current := t.sleepEntry == e
		if current {
			t.sleepEntry = nil
		}
		t.mu.Unlock()
		if current {
			e.Fired = true
			s.enqueueReady(t)
		}
	}
}

// Current returns the thread presently holding the CPU, or nil if called
// outside a dispatch turn (e.g. from the Run loop itself between turns).
func (s *Scheduler) Current() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Ticks returns the number of dispatch iterations in which Step handed the
// CPU to a thread. Sleep-list deadlines do not use it; they are measured on
// the scheduler's clock.
func (s *Scheduler) Ticks() uint64 {
	return atomic.LoadUint64(&s.ticks)
}

// Step runs one dispatch iteration: it expires due sleepers, picks the
// highest-priority ready thread (if any) and hands it the CPU until it
// yields, blocks, sleeps or exits. It reports ran=false if no thread was
// ready to run.
func (s *Scheduler) Step() (ran bool) {
	s.expireSleepers()

	next := s.popHighestReady()
	if next == nil {
		return false
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	next.mu.Lock()
	next.state = StateRunning
	next.mu.Unlock()

	start := s.clk.Now()
	next.turn <- struct{}{}
	<-next.paused
	elapsed := s.clk.Now().Sub(start)

	next.mu.Lock()
	next.cpuTime += elapsed
	next.mu.Unlock()

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	atomic.AddUint64(&s.ticks, 1)
	return true
}

// Run drives the dispatch loop until ctx is canceled, or until there is
// nothing ready and nothing sleeping (a finite simulation with no idle
// thread has run to completion). While idle it parks on the earliest sleep
// deadline via the scheduler's clock rather than busy-polling.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.Step() {
			continue
		}

		deadline, ok := s.sleepList.NextDeadline()
		if !ok {
			return nil
		}
		d := deadline.Sub(s.clk.Now())
		if d < 0 {
			d = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clk.After(d):
		}
	}
}

// Yield voluntarily gives up the remainder of the calling thread's turn,
// re-queuing it at the back of its priority band.
func (s *Scheduler) Yield(t *Thread) {
	s.enqueueReady(t)
	t.paused <- struct{}{}
	<-t.turn
}

func (s *Scheduler) checkInterrupted(t *Thread) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.interrupted {
		t.interrupted = false
		return kerrors.New(kerrors.Interrupted, "thread %q was interrupted", t.Name())
	}
	return nil
}

// Sleep parks t until d has elapsed on the scheduler's clock, or until it
// is interrupted. A non-positive d yields once without sleeping.
func (s *Scheduler) Sleep(t *Thread, d time.Duration) error {
	if d <= 0 {
		s.Yield(t)
		return s.checkInterrupted(t)
	}

	entry := &wait.SleepEntry{ResumeTime: s.clk.Now().Add(d), Payload: t}
	t.mu.Lock()
	t.state = StateSleeping
	t.sleepEntry = entry
	t.mu.Unlock()
	s.sleepList.Insert(entry)

	t.paused <- struct{}{}
	<-t.turn

	return s.checkInterrupted(t)
}

// Block parks t on list until another thread wakes it via WakeOne/WakeAll/
// WakeNode, the list's owner is destroyed (DestroyWaiters), t is
// interrupted, or deadline (if non-nil) elapses.
func (s *Scheduler) Block(t *Thread, list *wait.List, deadline *time.Time) error {
	node := wait.NewNode(t)

	var entry *wait.SleepEntry
	if deadline != nil {
		entry = &wait.SleepEntry{ResumeTime: *deadline, Payload: t}
	}

	t.mu.Lock()
	t.state = StateBlocked
	t.waitNode = node
	t.waitList = list
	t.sleepEntry = entry
	t.mu.Unlock()

	list.Append(node)
	if entry != nil {
		s.sleepList.Insert(entry)
	}

	t.paused <- struct{}{}
	<-t.turn

	t.mu.Lock()
	t.waitNode = nil
	t.waitList = nil
	t.sleepEntry = nil
	t.mu.Unlock()

	timedOut := false
	if entry != nil {
		if list.Remove(node) {
			timedOut = true
		}
		s.sleepList.Remove(entry)
	}
	if timedOut {
		return kerrors.New(kerrors.TimedOut, "wait deadline expired")
	}
	if node.TargetDeleted {
		return kerrors.New(kerrors.InvalidArgument, "wait target was destroyed")
	}
	return s.checkInterrupted(t)
}

// Park blocks t until another call makes it ready again via enqueueReady
// (directly, or by waking a wait.Node whose Payload is t), without
// registering t on any wait.List of its own. kernel/ksync.ObjectWaitGroup
// uses this: it appends its own node to every member's list by hand and
// only needs the scheduler to suspend the thread's turn, not to manage a
// list membership on its behalf.
func (s *Scheduler) Park(t *Thread, deadline *time.Time) error {
	var entry *wait.SleepEntry
	if deadline != nil {
		entry = &wait.SleepEntry{ResumeTime: *deadline, Payload: t}
	}

	t.mu.Lock()
	t.state = StateBlocked
	t.sleepEntry = entry
	t.mu.Unlock()
	if entry != nil {
		s.sleepList.Insert(entry)
	}

	t.paused <- struct{}{}
	<-t.turn

	t.mu.Lock()
	t.sleepEntry = nil
	t.mu.Unlock()

	if entry != nil {
		s.sleepList.Remove(entry)
		if entry.Fired {
			return kerrors.New(kerrors.TimedOut, "wait deadline expired")
		}
	}
	return s.checkInterrupted(t)
}

// WakeOne wakes the first thread queued on list, moving it back to its
// ready band, and reports whether a thread was woken.
func (s *Scheduler) WakeOne(list *wait.List) bool {
	n := list.PopFront()
	if n == nil {
		return false
	}
	s.readyFromNode(n)
	return true
}

// WakeAll wakes every thread queued on list, in queue order, and reports
// how many were woken.
func (s *Scheduler) WakeAll(list *wait.List) int {
	count := 0
	for s.WakeOne(list) {
		count++
	}
	return count
}

// WakeFront pops the first waiter queued on list, makes it ready, and
// returns its Thread, or nil if list was empty. Callers that must transfer
// some resource (mutex ownership, a semaphore permit) directly to the woken
// thread before it runs again use this instead of WakeOne so they have the
// Thread in hand at the moment of hand-off.
func (s *Scheduler) WakeFront(list *wait.List) *Thread {
	n := list.PopFront()
	if n == nil {
		return nil
	}
	s.readyFromNode(n)
	return n.Payload.(*Thread)
}

// WakeNode wakes the specific node n if it is still queued on list,
// reporting whether it was (a concurrent timeout or wake may have already
// removed it).
func (s *Scheduler) WakeNode(list *wait.List, n *wait.Node) bool {
	if !list.Remove(n) {
		return false
	}
	s.readyFromNode(n)
	return true
}

// DestroyWaiters wakes every thread queued on list with TargetDeleted set,
// for use when the object the list belongs to is being torn down with
// waiters still present. It returns the number of threads woken.
func (s *Scheduler) DestroyWaiters(list *wait.List) int {
	count := 0
	for {
		n := list.PopFront()
		if n == nil {
			return count
		}
		n.TargetDeleted = true
		s.readyFromNode(n)
		count++
	}
}

func (s *Scheduler) readyFromNode(n *wait.Node) {
	t := n.Payload.(*Thread)
	t.mu.Lock()
	if t.sleepEntry != nil {
		s.sleepList.Remove(t.sleepEntry)
		t.sleepEntry = nil
	}
	t.mu.Unlock()
	s.enqueueReady(t)
}

func (s *Scheduler) interrupt(t *Thread) {
	t.mu.Lock()
	t.interrupted = true
	state := t.state
	entry := t.sleepEntry
	node := t.waitNode
	list := t.waitList
	t.mu.Unlock()

	if state != StateSleeping && state != StateBlocked {
		return
	}
	if entry != nil {
		s.sleepList.Remove(entry)
	}
	if node != nil && list != nil {
		list.Remove(node)
	}
	s.enqueueReady(t)
}

// SetPriority changes t's scheduling priority. If t is presently ready the
// new priority takes effect the next time it is queued; a thread already
// sitting in its old band is not moved mid-queue.
func (s *Scheduler) SetPriority(t *Thread, priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return kerrors.New(kerrors.InvalidArgument, "priority %d out of range [%d,%d]", priority, MinPriority, MaxPriority)
	}
	t.mu.Lock()
	t.priority = int32(priority)
	t.mu.Unlock()
	return nil
}

// ReadyLen reports how many threads are queued in the ready band for the
// given absolute priority (MinPriority..MaxPriority, not a zero-based band
// index), for diagnostics and tests. An out-of-range priority reports 0.
func (s *Scheduler) ReadyLen(priority int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := priority - MinPriority
	if b < 0 || b >= NumPriorityBands {
		return 0
	}
	return len(s.ready[b])
}
