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

// Package clock provides the kernel's notion of wall-clock and deadline
// time, kept behind an interface so the scheduler's sleep list, the IRQ
// dispatcher's runtime accounting and the block cache's flush cadence can
// all be driven by a SimulatedClock in tests instead of the real wall
// clock.
package clock

import "time"

// Clock abstracts time so kernel code never calls time.Now or time.After
// directly.
type Clock interface {
	// Now returns the clock's current time.
	Now() time.Time
	// After returns a channel that receives the time once d has elapsed
	// according to this clock.
	After(d time.Duration) <-chan time.Time
}

var (
	_ Clock = RealClock{}
	_ Clock = (*FakeClock)(nil)
	_ Clock = (*SimulatedClock)(nil)
)
