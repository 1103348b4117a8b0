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
	"gopkg.in/yaml.v3"

	"github.com/kavionic/padkernel/kerrors"
)

// MountArgs is the filesystem-specific argument bag a mount call carries
// through to Filesystem.Mount, the Go analog of the original kernel's
// opaque mount(2) args pointer, decoded up front instead of left to each
// driver to parse by hand.
type MountArgs map[string]any

// ParseMountArgs decodes a YAML-encoded mount argument document, the format
// a mount table loaded from a boot config file uses to describe
// filesystem-specific options (e.g. FAT's cluster size hint).
func ParseMountArgs(data []byte) (MountArgs, error) {
	if len(data) == 0 {
		return MountArgs{}, nil
	}
	var args MountArgs
	if err := yaml.Unmarshal(data, &args); err != nil {
		return nil, kerrors.New(kerrors.InvalidArgument, "decoding mount args: %v", err)
	}
	return args, nil
}
