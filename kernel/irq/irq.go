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

// Package irq implements the kernel's interrupt dispatcher: a per-vector
// list of handlers invoked in registration order until one reports that it
// handled the interrupt, plus runtime accounting and a rate-limited budget
// guard against a misbehaving peripheral flooding a vector.
package irq

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
)

// HandlerFunc services one interrupt on a vector. It returns true if it
// recognized and handled the condition that caused the interrupt; the
// dispatcher stops walking the handler list on the first true.
type HandlerFunc func() bool

// Stats accumulates runtime accounting for a single registered handler.
type Stats struct {
	Calls        uint64
	Handled      uint64
	TotalRuntime time.Duration
	MaxRuntime   time.Duration
}

type registration struct {
	name  string
	fn    HandlerFunc
	stats Stats
}

type vector struct {
	mu    sync.Mutex
	regs  []*registration
	limit *rate.Limiter
}

// Dispatcher owns every interrupt vector's handler chain.
type Dispatcher struct {
	clock clock.Clock

	mu      sync.Mutex
	vectors map[int]*vector

	// budgetRate and budgetBurst configure the per-vector rate.Limiter
	// created on first registration, guarding against a vector that fires
	// far faster than any handler could plausibly need to run (a storm,
	// or a handler that fails to clear the peripheral's interrupt flag).
	budgetRate  rate.Limit
	budgetBurst int

	overruns uint64
}

// NewDispatcher returns a Dispatcher whose per-vector budget guard allows up
// to budgetBurst interrupts instantly and budgetRate interrupts per second
// sustained thereafter.
func NewDispatcher(clk clock.Clock, budgetRate rate.Limit, budgetBurst int) *Dispatcher {
	return &Dispatcher{
		clock:       clk,
		vectors:     make(map[int]*vector),
		budgetRate:  budgetRate,
		budgetBurst: budgetBurst,
	}
}

func (d *Dispatcher) vectorFor(n int) *vector {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vectors[n]
	if !ok {
		v = &vector{limit: rate.NewLimiter(d.budgetRate, d.budgetBurst)}
		d.vectors[n] = v
	}
	return v
}

// Register appends fn to vector n's handler chain under name (used in
// diagnostics) and returns an unregister function.
func (d *Dispatcher) Register(n int, name string, fn HandlerFunc) (unregister func()) {
	v := d.vectorFor(n)
	reg := &registration{name: name, fn: fn}

	v.mu.Lock()
	v.regs = append(v.regs, reg)
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, r := range v.regs {
			if r == reg {
				v.regs = append(v.regs[:i], v.regs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch runs vector n's handler chain in registration order, stopping at
// the first handler that reports it handled the interrupt. It returns
// kerrors.NotFound if no handler is registered on the vector, and
// kerrors.BusBusy if the vector's rate budget is exhausted, in which case no
// handler runs at all.
func (d *Dispatcher) Dispatch(n int) (bool, error) {
	v := d.vectorFor(n)

	if !v.limit.Allow() {
		d.mu.Lock()
		d.overruns++
		d.mu.Unlock()
		return false, kerrors.New(kerrors.BusBusy, "irq vector %d exceeded its rate budget", n)
	}

	v.mu.Lock()
	regs := append([]*registration(nil), v.regs...)
	v.mu.Unlock()

	if len(regs) == 0 {
		return false, kerrors.New(kerrors.NotFound, "no handler registered on irq vector %d", n)
	}

	for _, r := range regs {
		start := d.clock.Now()
		handled := r.fn()
		elapsed := d.clock.Now().Sub(start)

		v.mu.Lock()
		r.stats.Calls++
		r.stats.TotalRuntime += elapsed
		if elapsed > r.stats.MaxRuntime {
			r.stats.MaxRuntime = elapsed
		}
		if handled {
			r.stats.Handled++
		}
		v.mu.Unlock()

		if handled {
			return true, nil
		}
	}
	return false, nil
}

// Overruns reports how many dispatches were rejected by a vector's rate
// budget since the dispatcher was created.
func (d *Dispatcher) Overruns() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overruns
}

// HandlerStats returns a copy of the accumulated Stats for every handler
// currently registered on vector n, in registration order.
func (d *Dispatcher) HandlerStats(n int) []Stats {
	v := d.vectorFor(n)
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Stats, len(v.regs))
	for i, r := range v.regs {
		out[i] = r.stats
	}
	return out
}
