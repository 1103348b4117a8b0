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

import "time"

// GetDefaultLogConfig returns the config used before any flags or config
// file have been parsed, e.g. for log statements emitted during flag setup
// itself.
func GetDefaultLogConfig() LogConfig {
	return LogConfig{
		Severity: "info",
		Format:   "text",
	}
}

// InodeIdleThreshold converts VFSConfig.InodeIdleSeconds to a duration for
// the inode cache constructor.
func (c VFSConfig) InodeIdleThreshold() time.Duration {
	return time.Duration(c.InodeIdleSeconds) * time.Second
}

// TickDuration converts SchedulerConfig.TickInterval to a duration for the
// scheduler's tick timer.
func (c SchedulerConfig) TickDuration() time.Duration {
	return time.Duration(c.TickInterval) * time.Microsecond
}
