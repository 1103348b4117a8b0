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

// Package cfg is the closed set of tunables for a PadOS kernel instance,
// bound to pflag/viper the same way the teacher's gcsfuse cfg package binds
// mount flags, so the same flag can come from the command line, a YAML
// config file, or an environment variable.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration value for a kernel instance.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sync      SyncConfig      `yaml:"sync"`
	MsgPort   MsgPortConfig   `yaml:"msg-port"`
	VFS       VFSConfig       `yaml:"vfs"`
	Log       LogConfig       `yaml:"log"`
}

// SchedulerConfig tunes the priority scheduler.
type SchedulerConfig struct {
	// TickInterval is the configured quantum-expiry tick period, in
	// microseconds. No kernel code reads it; kernel/sched has no tick timer.
	TickInterval uint `yaml:"tick-interval-us"`
}

// SyncConfig tunes the synchronization primitives in kernel/ksync.
type SyncConfig struct {
	// PanicOnDeadlock is the config switch for panicking, instead of
	// returning kerrors.DeadlockWouldOccur, when a non-recursive Mutex is
	// locked again by its owner. No kernel code reads it: each Mutex takes
	// that behaviour from the RecurseMode given to NewMutex.
	PanicOnDeadlock bool `yaml:"panic-on-deadlock"`

	// LogMutex is the config switch for a debug message when a mutex is
	// held longer than MutexHeldWarningMs. No kernel code reads it;
	// kernel/ksync logs no hold times.
	LogMutex bool `yaml:"log-mutex"`

	// MutexHeldWarningMs is the hold-time threshold for LogMutex. No kernel
	// code reads it.
	MutexHeldWarningMs uint `yaml:"mutex-held-warning-ms"`
}

// MsgPortConfig tunes kernel/msgport.
type MsgPortConfig struct {
	// DefaultCapacity is the configured default message-port queue depth.
	// ValidateConfig checks it, but no kernel code reads it:
	// NewMessagePort always takes an explicit capacity.
	DefaultCapacity int `yaml:"default-capacity"`
}

// VFSConfig tunes the VFS layer: inode cache, block cache.
type VFSConfig struct {
	// InodeCacheCap is the hard cap on idle (lookup-count-zero) inodes
	// the process-wide inode cache keeps on its MRU list before evicting
	// the oldest.
	InodeCacheCap int `yaml:"inode-cache-cap"`

	// InodeIdleSeconds is how long an idle inode sits on the MRU list
	// before a sweep evicts it outright.
	InodeIdleSeconds uint `yaml:"inode-idle-seconds"`

	// BlockCacheBuffers is the configured number of BufferSize buffers for
	// the block cache pool. ValidateConfig checks it, but cmd/boot.go
	// creates no block cache, so nothing else reads it.
	BlockCacheBuffers int `yaml:"block-cache-buffers"`
}

// LogConfig tunes internal/klog.
type LogConfig struct {
	Severity string `yaml:"severity"`
	Format   string `yaml:"format"`
	File     string `yaml:"file"`
}

// BindFlags registers every tunable onto flagSet and binds it into viper
// under the same dotted key its yaml tag uses, so config-file and flag
// values unmarshal into the same Config field.
func BindFlags(flagSet *pflag.FlagSet) error {
	bind := func(key string) error {
		return viper.BindPFlag(key, flagSet.Lookup(key))
	}

	flagSet.Uint("scheduler.tick-interval-us", 1000, "Scheduler quantum-expiry tick period, in microseconds.")
	if err := bind("scheduler.tick-interval-us"); err != nil {
		return err
	}

	flagSet.Bool("sync.panic-on-deadlock", false, "Abort the process on self-deadlock instead of returning an error.")
	if err := bind("sync.panic-on-deadlock"); err != nil {
		return err
	}

	flagSet.Bool("sync.log-mutex", false, "Print a debug message when a mutex is held too long.")
	if err := bind("sync.log-mutex"); err != nil {
		return err
	}

	flagSet.Uint("sync.mutex-held-warning-ms", 100, "Mutex hold time, in milliseconds, that triggers a log-mutex warning.")
	if err := bind("sync.mutex-held-warning-ms"); err != nil {
		return err
	}

	flagSet.Int("msg-port.default-capacity", 16, "Default message port queue depth.")
	if err := bind("msg-port.default-capacity"); err != nil {
		return err
	}

	flagSet.Int("vfs.inode-cache-cap", 128, "Maximum idle inodes kept cached before eviction.")
	if err := bind("vfs.inode-cache-cap"); err != nil {
		return err
	}

	flagSet.Uint("vfs.inode-idle-seconds", 60, "Idle time, in seconds, before a cached inode is swept.")
	if err := bind("vfs.inode-idle-seconds"); err != nil {
		return err
	}

	flagSet.Int("vfs.block-cache-buffers", 32, "Number of fixed-size buffers in the block cache pool.")
	if err := bind("vfs.block-cache-buffers"); err != nil {
		return err
	}

	flagSet.String("log.severity", "info", "Minimum log severity: trace, debug, info, warning, error.")
	if err := bind("log.severity"); err != nil {
		return err
	}

	flagSet.String("log.format", "text", "Log output format: text or json.")
	if err := bind("log.format"); err != nil {
		return err
	}

	flagSet.String("log.file", "", "Path to a rotating log file. Empty disables file logging.")
	if err := bind("log.file"); err != nil {
		return err
	}

	return nil
}
