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

import "github.com/kavionic/padkernel/kerrors"

// ForwardToHandle looks up handle as a T and invokes fn with it, retrying
// the whole lookup-and-call sequence whenever fn reports RestartSyscall.
// This mirrors the original kernel's syscall restart convention: an
// operation that raced with a concurrent handle deletion reports
// RestartSyscall instead of silently operating on a stale object, and the
// syscall trampoline retries from scratch.
func ForwardToHandle[T Object](t *Table, h int, fn func(T) error) error {
	for {
		obj, err := GetTyped[T](t, h)
		if err != nil {
			return err
		}
		err = fn(obj)
		if kerrors.Is(err, kerrors.RestartSyscall) {
			continue
		}
		return err
	}
}

// ForwardToHandleValue is the value-returning counterpart of
// ForwardToHandle, for syscalls that produce a result alongside their
// error.
func ForwardToHandleValue[T Object, R any](t *Table, h int, fn func(T) (R, error)) (R, error) {
	for {
		var zero R
		obj, err := GetTyped[T](t, h)
		if err != nil {
			return zero, err
		}
		res, err := fn(obj)
		if kerrors.Is(err, kerrors.RestartSyscall) {
			continue
		}
		return res, err
	}
}
