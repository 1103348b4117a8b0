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
	"sync"
	"time"

	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/wait"
)

// Priority bounds, matching the original kernel's 32 priority bands.
const (
	MinPriority      = -16
	MaxPriority      = 15
	NumPriorityBands = MaxPriority - MinPriority + 1
)

// State is a thread's current scheduling state.
type State int

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateSleeping
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateSleeping:
		return "Sleeping"
	case StateZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// Thread is the kernel's thread control block. It is a handle.Object so it
// can be named and looked up through the handle table like any other
// waitable kernel object.
type Thread struct {
	handle.Base

	sched *Scheduler

	priority int32 // guarded by mu

	entry func(t *Thread)

	turn   chan struct{}
	paused chan struct{}

	mu          sync.Mutex
	state       State
	cpuTime     time.Duration
	sleepEntry  *wait.SleepEntry
	waitNode    *wait.Node
	waitList    *wait.List
	interrupted bool
	exitErr     error
}

func newThread(s *Scheduler, name string, priority int, entry func(t *Thread)) *Thread {
	return &Thread{
		Base:     handle.NewBase(handle.TypeThread, name),
		sched:    s,
		priority: int32(priority),
		entry:    entry,
		turn:     make(chan struct{}),
		paused:   make(chan struct{}),
		state:    StateReady,
	}
}

// Priority returns the thread's current scheduling priority.
func (t *Thread) Priority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.priority)
}

// State returns the thread's current scheduling state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CPUTime returns the accumulated wall-clock time this thread has spent
// running, as measured by the scheduler's dispatch loop.
func (t *Thread) CPUTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cpuTime
}

// Interrupt sets the thread's interrupted flag. If the thread is parked in
// Sleep or Block it is made ready at once and that call returns an
// Interrupted error. Otherwise the flag stays set: a later Sleep or Block
// parks as usual and returns Interrupted when it resumes, unless it timed
// out or its wait target was destroyed.
func (t *Thread) Interrupt() {
	t.sched.interrupt(t)
}

// Scheduler returns the Scheduler this thread was spawned on.
func (t *Thread) Scheduler() *Scheduler { return t.sched }
