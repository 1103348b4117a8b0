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

package vfs

import (
	"sync"

	"github.com/kavionic/padkernel/kerrors"
	"github.com/kavionic/padkernel/vfs/fsops"
)

// FactoryFunc constructs a fresh fsops.Filesystem instance for one mount,
// the way the original kernel's filesystem registry hands back a new
// KFilesystem subclass instance per mount() call.
type FactoryFunc func() fsops.Filesystem

// Registry maps filesystem driver names (ext2, fatfs, rootfs, ...) to the
// factory that builds them, the thing mount(device, mountpoint, fs_name,
// flags, args) looks a name up in.
type Registry struct {
	mu       sync.Mutex
	builders map[string]FactoryFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]FactoryFunc)}
}

// Register installs factory under name, replacing any prior registration.
func (r *Registry) Register(name string, factory FactoryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = factory
}

// New builds a fresh Filesystem instance for name.
func (r *Registry) New(name string) (fsops.Filesystem, error) {
	r.mu.Lock()
	factory, ok := r.builders[name]
	r.mu.Unlock()
	if !ok {
		return nil, kerrors.New(kerrors.NotFound, "no filesystem driver registered as %q", name)
	}
	return factory(), nil
}

// Names returns every registered driver name, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	return names
}
