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

// Package handle implements the process-wide handle table and the
// named-object base type shared by every waitable kernel object (threads,
// semaphores, mutexes, condition variables, object wait groups and message
// ports).
package handle

import (
	"fmt"
	"sync/atomic"
)

// ObjectType identifies the concrete kind of a named kernel object. It lets
// Get/Free callers demand a specific type without a full type assertion.
type ObjectType int

const (
	TypeGeneric ObjectType = iota
	TypeThread
	TypeSemaphore
	TypeMutex
	TypeConditionVariable
	TypeObjectWaitGroup
	TypeMessagePort
)

func (t ObjectType) String() string {
	switch t {
	case TypeGeneric:
		return "Generic"
	case TypeThread:
		return "Thread"
	case TypeSemaphore:
		return "Semaphore"
	case TypeMutex:
		return "Mutex"
	case TypeConditionVariable:
		return "ConditionVariable"
	case TypeObjectWaitGroup:
		return "ObjectWaitGroup"
	case TypeMessagePort:
		return "MessagePort"
	default:
		return fmt.Sprintf("ObjectType(%d)", int(t))
	}
}

// Object is implemented by every value that can live in a Table. The table
// only ever stores values behind this interface; callers recover the
// concrete type with GetTyped.
type Object interface {
	// Handle returns the handle currently bound to this object, or 0 if
	// it has not been inserted into a Table yet.
	Handle() int
	// Type returns the object's ObjectType, used for type-checked lookups.
	Type() ObjectType
	// Name returns the object's debug name, which need not be unique.
	Name() string

	setHandle(int)
}

// Base is embedded by every concrete named object. It supplies the Handle
// table bookkeeping (handle value, type tag, debug name and a reference
// count) so individual object types need only embed it and implement their
// own behavior.
type Base struct {
	handle   int32
	kind     ObjectType
	name     string
	refCount int32
}

// NewBase constructs a Base with an initial reference count of one, matching
// the convention that the creator of an object holds the first reference.
func NewBase(kind ObjectType, name string) Base {
	return Base{kind: kind, name: name, refCount: 1}
}

func (b *Base) Handle() int       { return int(atomic.LoadInt32(&b.handle)) }
func (b *Base) setHandle(h int)   { atomic.StoreInt32(&b.handle, int32(h)) }
func (b *Base) Type() ObjectType  { return b.kind }
func (b *Base) Name() string      { return b.name }
func (b *Base) String() string    { return fmt.Sprintf("%s(%q, handle=%d)", b.kind, b.name, b.Handle()) }

// AddRef increments the object's reference count. It is called whenever a
// new handle, or a new in-kernel pointer that must outlive the handle, is
// taken on the object.
func (b *Base) AddRef() int32 {
	return atomic.AddInt32(&b.refCount, 1)
}

// Release decrements the object's reference count and reports whether it
// reached zero, in which case the caller (normally Table.Free) must run the
// object's teardown logic exactly once.
func (b *Base) Release() bool {
	return atomic.AddInt32(&b.refCount, -1) == 0
}

// RefCount returns the current reference count, for diagnostics only.
func (b *Base) RefCount() int32 {
	return atomic.LoadInt32(&b.refCount)
}
