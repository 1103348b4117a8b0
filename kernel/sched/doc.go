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

// Package sched implements the priority-banded, single-core kernel
// scheduler: thread control blocks, 32 priority-band ready queues, the
// dispatch loop, the timer tick, the idle thread and the sleep/wake paths
// used by every blocking primitive in kernel/ksync and kernel/msgport.
//
// # Modeling preemption on top of goroutines
//
// The original kernel preempts a running thread from an arbitrary
// instruction boundary on every timer tick. Go gives user code no portable
// way to forcibly suspend another goroutine's stack at an arbitrary point;
// the runtime's own async preemption exists for GC and scheduling fairness,
// not for a guest scheduler to exploit. Reimplementing true instruction-level
// preemption was one of the spec's open questions, and this package resolves
// it with a cooperative-handoff model rather than one:
//
//   - Each kernel thread is backed by exactly one goroutine. A Scheduler
//     hands that goroutine a "turn" by sending on a private channel; the
//     goroutine runs kernel code until it calls a yield point (Yield, Sleep,
//     or a blocking wait registered through Scheduler.Block) and hands the
//     turn back by sending on a second private channel. At any instant at
//     most one thread's goroutine is actually executing kernel code, which
//     reproduces the single-core interleaving semantics the spec's
//     invariants depend on (mutex ownership, condition variable atomicity,
//     ready-queue ordering) exactly.
//   - Every kernel primitive a thread can call while holding no hand-rolled
//     locks of its own — Sleep, mutex Lock, semaphore Acquire, condition
//     variable Wait, object wait group Wait, message port Send/Receive — is
//     a yield point. Kernel service routines are I/O- and
//     synchronization-bound by construction, so in practice every loop a
//     real preemptive scheduler would interrupt already contains a yield
//     point here.
//   - The one behavior this model cannot reproduce is forcibly preempting a
//     tight CPU-bound loop that never calls a kernel primitive. Such a
//     thread runs to completion (or until it yields voluntarily) before the
//     scheduler regains control. This divergence is intentional and
//     documented rather than hidden: it affects only pathological busy-loop
//     workloads, not the scheduling, synchronization or VFS contracts this
//     repository exists to exercise.
package sched
