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

// Package msgport implements the kernel's inter-thread message port: a
// bounded FIFO of small messages with a sender-blocks-when-full,
// receiver-blocks-when-empty contract, and a sync.Pool-backed free list for
// the common case of short (<=64 byte) message payloads.
package msgport

import (
	"sync"
	"time"

	"github.com/kavionic/padkernel/common"
	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/sched"
	"github.com/kavionic/padkernel/kernel/wait"
)

// ShortMessageMaxSize is the payload size at or below which Send recycles buffers
// through a sync.Pool instead of allocating, mirroring the original
// kernel's short-message optimization for its common case (small, fixed
// layout IPC messages).
const ShortMessageMaxSize = 64

// Message is one entry in a port's queue.
type Message struct {
	TargetHandler int
	Code          int32
	Data          []byte

	pooled bool
}

// MessagePort is a bounded FIFO of Messages. Handle.
type MessagePort struct {
	handle.Base

	sched    *sched.Scheduler
	capacity int

	mu           sync.Mutex
	queue        common.Queue[*Message]
	sendWaiters  *wait.List
	recvWaiters  *wait.List
	shortBufPool sync.Pool
}

// NewMessagePort returns an empty MessagePort that holds up to capacity
// queued messages.
func NewMessagePort(s *sched.Scheduler, name string, capacity int) (*MessagePort, error) {
	if capacity <= 0 {
		return nil, kerrors.New(kerrors.InvalidArgument, "message port capacity must be positive, got %d", capacity)
	}
	p := &MessagePort{
		Base:        handle.NewBase(handle.TypeMessagePort, name),
		sched:       s,
		capacity:    capacity,
		queue:       common.NewLinkedListQueue[*Message](),
		sendWaiters: wait.NewList(),
		recvWaiters: wait.NewList(),
	}
	p.shortBufPool.New = func() any {
		buf := make([]byte, ShortMessageMaxSize)
		return &buf
	}
	return p, nil
}

// Send enqueues a message tagged with targetHandler and code, blocking t
// while the port is full, until deadline (if non-nil) elapses.
func (p *MessagePort) Send(t *sched.Thread, targetHandler int, code int32, data []byte, deadline *time.Time) error {
	for {
		p.mu.Lock()
		if p.queue.Len() < p.capacity {
			msg := p.newMessage(targetHandler, code, data)
			p.queue.Push(msg)
			p.mu.Unlock()
			p.sched.WakeOne(p.recvWaiters)
			return nil
		}
		p.mu.Unlock()

		if err := p.sched.Block(t, p.sendWaiters, deadline); err != nil {
			return err
		}
	}
}

func (p *MessagePort) newMessage(targetHandler int, code int32, data []byte) *Message {
	msg := &Message{TargetHandler: targetHandler, Code: code}
	if len(data) <= ShortMessageMaxSize {
		bufPtr := p.shortBufPool.Get().(*[]byte)
		buf := (*bufPtr)[:len(data)]
		copy(buf, data)
		msg.Data = buf
		msg.pooled = true
	} else {
		msg.Data = append([]byte(nil), data...)
	}
	return msg
}

// Release returns a short message's backing buffer to the pool. Callers
// that received a message via Receive should call this once they are done
// reading its Data, the same way the original kernel frees its short
// message slab entries back to the free list.
func (p *MessagePort) Release(msg *Message) {
	if msg == nil || !msg.pooled {
		return
	}
	buf := msg.Data[:ShortMessageMaxSize]
	p.shortBufPool.Put(&buf)
	msg.Data = nil
	msg.pooled = false
}

// Receive dequeues the next message, blocking t while the port is empty,
// until deadline (if non-nil) elapses. The returned Message carries the
// target handler the sender addressed along with its code and payload.
func (p *MessagePort) Receive(t *sched.Thread, deadline *time.Time) (*Message, error) {
	for {
		p.mu.Lock()
		if !p.queue.IsEmpty() {
			msg := p.queue.Pop()
			p.mu.Unlock()
			p.sched.WakeOne(p.sendWaiters)
			return msg, nil
		}
		p.mu.Unlock()

		if err := p.sched.Block(t, p.recvWaiters, deadline); err != nil {
			return nil, err
		}
	}
}

// ReceiveTimeout is Receive with a relative timeout measured from now.
func (p *MessagePort) ReceiveTimeout(t *sched.Thread, now time.Time, timeout time.Duration) (*Message, error) {
	deadline := now.Add(timeout)
	return p.Receive(t, &deadline)
}

// Len reports the number of messages currently queued.
func (p *MessagePort) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Capacity returns the port's maximum queue depth.
func (p *MessagePort) Capacity() int { return p.capacity }

// WaitList implements ksync.Waitable, exposing the receive-side wait queue:
// an ObjectWaitGroup considers a port ready when it has a message queued.
func (p *MessagePort) WaitList() *wait.List { return p.recvWaiters }

// Poll implements ksync.Waitable.
func (p *MessagePort) Poll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.queue.IsEmpty()
}
