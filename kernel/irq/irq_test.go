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

package irq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
)

func TestDispatch_StopsAtFirstHandler(t *testing.T) {
	d := NewDispatcher(clock.RealClock{}, rate.Inf, 0)

	var calledA, calledB bool
	d.Register(5, "a", func() bool {
		calledA = true
		return true
	})
	d.Register(5, "b", func() bool {
		calledB = true
		return true
	})

	handled, err := d.Dispatch(5)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, calledA)
	assert.False(t, calledB, "second handler must not run once the first claims the interrupt")
}

func TestDispatch_FallsThroughUnhandled(t *testing.T) {
	d := NewDispatcher(clock.RealClock{}, rate.Inf, 0)

	d.Register(5, "a", func() bool { return false })
	d.Register(5, "b", func() bool { return true })

	handled, err := d.Dispatch(5)
	require.NoError(t, err)
	assert.True(t, handled)
}

func TestDispatch_NoHandler(t *testing.T) {
	d := NewDispatcher(clock.RealClock{}, rate.Inf, 0)
	_, err := d.Dispatch(42)
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
}

func TestDispatch_UnregisterRemovesHandler(t *testing.T) {
	d := NewDispatcher(clock.RealClock{}, rate.Inf, 0)
	unregister := d.Register(1, "only", func() bool { return true })
	unregister()

	_, err := d.Dispatch(1)
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.NotFound))
}

func TestDispatch_BudgetGuard(t *testing.T) {
	d := NewDispatcher(clock.RealClock{}, rate.Limit(1), 1)
	d.Register(3, "flaky", func() bool { return true })

	handled, err := d.Dispatch(3)
	require.NoError(t, err)
	assert.True(t, handled)

	_, err = d.Dispatch(3)
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.BusBusy))
	assert.EqualValues(t, 1, d.Overruns())
}

func TestDispatch_RuntimeAccounting(t *testing.T) {
	sc := clock.NewSimulatedClock(time.Unix(0, 0))
	d := NewDispatcher(sc, rate.Inf, 0)
	d.Register(7, "slow", func() bool {
		sc.AdvanceTime(10 * time.Millisecond)
		return true
	})

	_, err := d.Dispatch(7)
	require.NoError(t, err)

	stats := d.HandlerStats(7)
	require.Len(t, stats, 1)
	assert.EqualValues(t, 1, stats[0].Calls)
	assert.EqualValues(t, 1, stats[0].Handled)
	assert.Equal(t, 10*time.Millisecond, stats[0].TotalRuntime)
}
