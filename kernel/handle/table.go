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

package handle

import (
	"sync"

	"github.com/kavionic/padkernel/kerrors"
)

// Table is the process-wide map from small integer handles to named kernel
// objects. Handle 0 is never issued, so a zero value reliably means "no
// handle".
type Table struct {
	mu     sync.Mutex
	byID   map[int]Object
	nextID int
}

// NewTable returns an empty handle table.
func NewTable() *Table {
	return &Table{byID: make(map[int]Object), nextID: 1}
}

// Alloc inserts obj into the table and binds it to a freshly allocated
// handle, which is returned. obj must not already be bound to a handle in
// this or any other table. Unlike the original kernel, this does not bump
// obj's reference count on insertion: the table's map entry keeps obj alive
// for Go's garbage collector on its own, so there is no count for Alloc (or
// Get, below) to own. Duplicate still calls AddRef, since it hands out a
// second, independently-freeable handle to the same object.
func (t *Table) Alloc(obj Object) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		id := t.nextID
		t.nextID++
		if t.nextID <= 0 {
			t.nextID = 1
		}
		if _, exists := t.byID[id]; exists {
			continue
		}
		t.byID[id] = obj
		obj.setHandle(id)
		return id
	}
}

// Get looks up handle and returns the stored Object, without regard to its
// concrete type. It does not add a reference; see Alloc's note on why the
// table does not need to.
func (t *Table) Get(h int) (Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	obj, ok := t.byID[h]
	if !ok {
		return nil, kerrors.New(kerrors.NotFound, "handle %d not found", h)
	}
	return obj, nil
}

// GetTyped looks up handle and type-asserts the stored Object to T,
// returning NotFound if the handle is unknown and InvalidArgument if the
// object exists but is not a T.
func GetTyped[T Object](t *Table, h int) (T, error) {
	var zero T
	obj, err := t.Get(h)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, kerrors.New(kerrors.InvalidArgument, "handle %d is not a %T", h, zero)
	}
	return typed, nil
}

// Free removes handle from the table and releases the table's reference on
// the underlying object. It returns the object's teardown responsibility to
// the caller: when the returned bool is true, the caller must run the
// object's own cleanup since the reference count reached zero.
func (t *Table) Free(h int) (Object, bool, error) {
	t.mu.Lock()
	obj, ok := t.byID[h]
	if !ok {
		t.mu.Unlock()
		return nil, false, kerrors.New(kerrors.NotFound, "handle %d not found", h)
	}
	delete(t.byID, h)
	t.mu.Unlock()

	return obj, obj.(interface{ Release() bool }).Release(), nil
}

// FreeTyped behaves like Free but additionally verifies that the object
// bound to handle has the given ObjectType, returning InvalidArgument
// otherwise and leaving the handle in place.
func (t *Table) FreeTyped(h int, want ObjectType) (Object, bool, error) {
	t.mu.Lock()
	obj, ok := t.byID[h]
	if !ok {
		t.mu.Unlock()
		return nil, false, kerrors.New(kerrors.NotFound, "handle %d not found", h)
	}
	if obj.Type() != want {
		t.mu.Unlock()
		return nil, false, kerrors.New(kerrors.InvalidArgument, "handle %d is a %s, not a %s", h, obj.Type(), want)
	}
	delete(t.byID, h)
	t.mu.Unlock()

	return obj, obj.(interface{ Release() bool }).Release(), nil
}

// Duplicate allocates a new handle pointing at the same object as h, adding
// a reference. The two handles are independent: closing one does not affect
// the other.
func (t *Table) Duplicate(h int) (int, error) {
	t.mu.Lock()
	obj, ok := t.byID[h]
	if !ok {
		t.mu.Unlock()
		return 0, kerrors.New(kerrors.NotFound, "handle %d not found", h)
	}
	obj.(interface{ AddRef() int32 }).AddRef()
	t.mu.Unlock()

	// The duplicate is a distinct table entry but must not overwrite the
	// handle field of obj (two handles, one object, obj.Handle() keeps
	// returning whichever handle was bound last is acceptable for
	// diagnostics only; callers address objects by handle, not by
	// obj.Handle()).
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		id := t.nextID
		t.nextID++
		if t.nextID <= 0 {
			t.nextID = 1
		}
		if _, exists := t.byID[id]; exists {
			continue
		}
		t.byID[id] = obj
		return id, nil
	}
}

// Len reports the number of live handles, for diagnostics and tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
