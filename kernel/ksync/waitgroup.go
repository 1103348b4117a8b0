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
	"sync"
	"time"

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/sched"
	"github.com/kavionic/padkernel/kernel/wait"
)

// Waitable is implemented by every object an ObjectWaitGroup can multiplex
// over: it must expose the wait.List a thread parks on to be woken when the
// object becomes ready, plus a way to test readiness without blocking.
type Waitable interface {
	handle.Object
	// WaitList returns the list a waiter joins to be notified when the
	// object's readiness might have changed.
	WaitList() *wait.List
	// Poll reports whether the object is presently ready (a semaphore
	// with available permits, a message port with a queued message, and
	// so on).
	Poll() bool
}

type member struct {
	obj  Waitable
	node *wait.Node
}

// ObjectWaitGroup multiplexes a wait across a heterogeneous set of
// Waitables, waking the calling thread as soon as any member becomes
// ready, directly modeled on the original kernel's KObjectWaitGroup.
type ObjectWaitGroup struct {
	handle.Base

	sched *sched.Scheduler

	mu      sync.Mutex
	members []*member
}

// NewObjectWaitGroup returns an empty ObjectWaitGroup.
func NewObjectWaitGroup(s *sched.Scheduler, name string) *ObjectWaitGroup {
	return &ObjectWaitGroup{
		Base:  handle.NewBase(handle.TypeObjectWaitGroup, name),
		sched: s,
	}
}

// AddObject adds obj to the group's membership, returning
// kerrors.InvalidArgument if it is already a member.
func (g *ObjectWaitGroup) AddObject(obj Waitable) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m.obj == obj {
			return kerrors.New(kerrors.InvalidArgument, "object %q is already a member of wait group %q", obj.Name(), g.Name())
		}
	}
	g.members = append(g.members, &member{obj: obj})
	return nil
}

// AppendObjects adds every object in objs, skipping (without error) any
// already present.
func (g *ObjectWaitGroup) AppendObjects(objs []Waitable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, obj := range objs {
		found := false
		for _, m := range g.members {
			if m.obj == obj {
				found = true
				break
			}
		}
		if !found {
			g.members = append(g.members, &member{obj: obj})
		}
	}
}

// SetObjects replaces the group's entire membership with objs.
func (g *ObjectWaitGroup) SetObjects(objs []Waitable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = g.members[:0]
	for _, obj := range objs {
		g.members = append(g.members, &member{obj: obj})
	}
}

// RemoveObject removes obj from the group, reporting kerrors.NotFound if it
// was not a member.
func (g *ObjectWaitGroup) RemoveObject(obj Waitable) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m.obj == obj {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return nil
		}
	}
	return kerrors.New(kerrors.NotFound, "object %q is not a member of wait group %q", obj.Name(), g.Name())
}

// Clear removes every member.
func (g *ObjectWaitGroup) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = nil
}

// Wait blocks t until at least one member object is ready, returning the
// subset of members that were ready at the moment t woke. If
// readyFlagsBuffer is non-nil it is reused (cleared and resized as needed)
// instead of allocating, for callers polling in a tight loop.
func (g *ObjectWaitGroup) Wait(t *sched.Thread, deadline *time.Time, readyFlagsBuffer []bool) ([]bool, error) {
	for {
		g.mu.Lock()
		flags := readyFlagsBuffer
		if cap(flags) < len(g.members) {
			flags = make([]bool, len(g.members))
		} else {
			flags = flags[:len(g.members)]
			for i := range flags {
				flags[i] = false
			}
		}
		anyReady := false
		for i, m := range g.members {
			if m.obj.Poll() {
				flags[i] = true
				anyReady = true
			}
		}
		if anyReady {
			g.mu.Unlock()
			return flags, nil
		}

		// Join every member's wait list with one node per member; the
		// first list to wake us wins, and we must detach from all the
		// others before returning so the group leaves no dangling
		// registration behind, mirroring the original's per-member
		// wait-node attach/detach-all-on-wake shape. The thread itself
		// parks via Park rather than Block, since it is the member
		// nodes below — not a single list owned by the wait group —
		// that carry the wake-up.
		mine := make([]*member, len(g.members))
		copy(mine, g.members)
		g.mu.Unlock()

		nodes := make([]*wait.Node, len(mine))
		for i, m := range mine {
			n := wait.NewNode(t)
			nodes[i] = n
			m.obj.WaitList().Append(n)
		}

		err := g.sched.Park(t, deadline)

		for i, m := range mine {
			m.obj.WaitList().Remove(nodes[i])
		}
		if err != nil {
			return nil, err
		}
		// Loop back around and re-poll: the thread that woke us may
		// have lost a race to another waiter for the same resource.
	}
}

// Members returns a snapshot of the group's current membership, for
// diagnostics and tests.
func (g *ObjectWaitGroup) Members() []Waitable {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Waitable, len(g.members))
	for i, m := range g.members {
		out[i] = m.obj
	}
	return out
}
