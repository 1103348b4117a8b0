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

package cfg

import "fmt"

func isValidSeverity(s string) bool {
	switch s {
	case "trace", "debug", "info", "warning", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(f string) bool {
	return f == "text" || f == "json"
}

// ValidateConfig returns a non-nil error if config holds a value no kernel
// subsystem can actually act on.
func ValidateConfig(config *Config) error {
	if !isValidSeverity(config.Log.Severity) {
		return fmt.Errorf("log.severity %q is not one of trace, debug, info, warning, error", config.Log.Severity)
	}
	if !isValidLogFormat(config.Log.Format) {
		return fmt.Errorf("log.format %q is not text or json", config.Log.Format)
	}
	if config.MsgPort.DefaultCapacity <= 0 {
		return fmt.Errorf("msg-port.default-capacity must be positive, got %d", config.MsgPort.DefaultCapacity)
	}
	if config.VFS.InodeCacheCap <= 0 {
		return fmt.Errorf("vfs.inode-cache-cap must be positive, got %d", config.VFS.InodeCacheCap)
	}
	if config.VFS.BlockCacheBuffers <= 0 {
		return fmt.Errorf("vfs.block-cache-buffers must be positive, got %d", config.VFS.BlockCacheBuffers)
	}
	return nil
}
