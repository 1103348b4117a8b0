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

package wait

import (
	"sort"
	"sync"
	"time"
)

// SleepEntry is a single thread parked on the process-wide sleep list,
// ordered by the monotonic instant it should be resumed at.
type SleepEntry struct {
	ResumeTime time.Time
	Payload    any

	// Fired is set by the scheduler's tick handler when this entry is
	// popped because its deadline passed, as opposed to being removed
	// early by an explicit wake. Callers that park a thread without also
	// registering it on a wait.List (kernel/sched.Park) use this to tell
	// a timeout apart from a manual wake after the fact.
	Fired bool

	index int // position in the backing slice, so Remove finds e without a search
}

// SleepList holds every thread currently sleeping or waiting with a
// deadline, kept sorted by ResumeTime so the scheduler's tick handler can
// pop all entries due by "now" in one scan, mirroring the teacher's
// SimulatedClock pending-request scan-and-fire loop generalized from
// "requests waiting on a fake wall clock" to "threads waiting on the
// scheduler's clock".
type SleepList struct {
	mu      sync.Mutex
	entries []*SleepEntry
}

// NewSleepList returns an empty sleep list.
func NewSleepList() *SleepList { return &SleepList{} }

// Insert adds e to the list, maintaining sort order by ResumeTime.
func (s *SleepList) Insert(e *SleepEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].ResumeTime.After(e.ResumeTime)
	})
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
	for j := i; j < len(s.entries); j++ {
		s.entries[j].index = j
	}
}

// Remove removes e from the list if still present, for a thread that wakes
// for a reason other than its sleep deadline (a signaled semaphore, a
// destroyed wait target). Returns false if e already fired and was popped.
func (s *SleepList) Remove(e *SleepEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := e.index
	if i < 0 || i >= len(s.entries) || s.entries[i] != e {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	for j := i; j < len(s.entries); j++ {
		s.entries[j].index = j
	}
	e.index = -1
	return true
}

// PopExpired removes and returns every entry whose ResumeTime is at or
// before now, in ResumeTime order.
func (s *SleepList) PopExpired(now time.Time) []*SleepEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := 0
	for i < len(s.entries) && !s.entries[i].ResumeTime.After(now) {
		i++
	}
	if i == 0 {
		return nil
	}
	expired := s.entries[:i]
	s.entries = s.entries[i:]
	for j, e := range s.entries {
		e.index = j
	}
	for _, e := range expired {
		e.index = -1
	}
	return expired
}

// NextDeadline reports the ResumeTime of the earliest sleeping entry, and
// false if the list is empty. The scheduler uses this to size its next
// timer tick instead of polling at a fixed rate.
func (s *SleepList) NextDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return time.Time{}, false
	}
	return s.entries[0].ResumeTime, true
}

// Len reports the number of sleeping entries.
func (s *SleepList) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
