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

package msgport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/sched"
)

func newTestScheduler() (*sched.Scheduler, *clock.SimulatedClock) {
	sc := clock.NewSimulatedClock(time.Unix(0, 0))
	return sched.NewScheduler(sc, handle.NewTable()), sc
}

func TestMessagePort_RejectsNonPositiveCapacity(t *testing.T) {
	s, _ := newTestScheduler()
	_, err := NewMessagePort(s, "p", 0)
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.InvalidArgument))
}

func TestMessagePort_SendReceiveRoundTrip(t *testing.T) {
	s, _ := newTestScheduler()
	p, err := NewMessagePort(s, "p", 4)
	require.NoError(t, err)

	var received *Message
	var recvErr error
	s.Spawn("receiver", 0, func(th *sched.Thread) {
		received, recvErr = p.Receive(th, nil)
	})
	s.Step()
	assert.Nil(t, received, "receiver should park, the port is empty")

	s.Spawn("sender", 0, func(th *sched.Thread) {
		require.NoError(t, p.Send(th, 7, 42, []byte("hello"), nil))
	})
	for s.Step() {
	}

	require.NoError(t, recvErr)
	require.NotNil(t, received)
	assert.EqualValues(t, 7, received.TargetHandler)
	assert.EqualValues(t, 42, received.Code)
	assert.Equal(t, "hello", string(received.Data))
	p.Release(received)
}

func TestMessagePort_SendBlocksWhenFull(t *testing.T) {
	s, _ := newTestScheduler()
	p, err := NewMessagePort(s, "p", 1)
	require.NoError(t, err)

	require.NoError(t, p.Send(nil, 1, 1, []byte("a"), nil))
	assert.Equal(t, 1, p.Len())

	var sent bool
	s.Spawn("sender2", 0, func(th *sched.Thread) {
		require.NoError(t, p.Send(th, 1, 2, []byte("b"), nil))
		sent = true
	})
	s.Step()
	assert.False(t, sent, "port is full, sender2 must block")

	msg, err := p.Receive(nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, msg.Code)

	s.Step()
	assert.True(t, sent)
}

func TestMessagePort_ReceiveDeadlineTimesOut(t *testing.T) {
	s, sc := newTestScheduler()
	p, err := NewMessagePort(s, "p", 1)
	require.NoError(t, err)

	var recvErr error
	s.Spawn("receiver", 0, func(th *sched.Thread) {
		_, recvErr = p.ReceiveTimeout(th, sc.Now(), time.Second)
	})
	s.Step()
	sc.AdvanceTime(time.Second)
	require.True(t, s.Step())

	require.Error(t, recvErr)
	assert.True(t, kerrors.Is(recvErr, kerrors.TimedOut))
}

func TestMessagePort_LongMessageNotPooled(t *testing.T) {
	s, _ := newTestScheduler()
	p, err := NewMessagePort(s, "p", 1)
	require.NoError(t, err)

	payload := make([]byte, ShortMessageMaxSize+1)
	require.NoError(t, p.Send(nil, 1, 1, payload, nil))
	msg, err := p.Receive(nil, nil)
	require.NoError(t, err)
	assert.Len(t, msg.Data, ShortMessageMaxSize+1)
	p.Release(msg) // no-op for a non-pooled message
}
