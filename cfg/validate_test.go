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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		MsgPort: MsgPortConfig{DefaultCapacity: 16},
		VFS: VFSConfig{
			InodeCacheCap:     128,
			BlockCacheBuffers: 32,
		},
		Log: GetDefaultLogConfig(),
	}
}

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid default", mutate: func(c *Config) {}, wantErr: false},
		{name: "bad severity", mutate: func(c *Config) { c.Log.Severity = "verbose" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
		{name: "zero port capacity", mutate: func(c *Config) { c.MsgPort.DefaultCapacity = 0 }, wantErr: true},
		{name: "negative inode cap", mutate: func(c *Config) { c.VFS.InodeCacheCap = -1 }, wantErr: true},
		{name: "zero block buffers", mutate: func(c *Config) { c.VFS.BlockCacheBuffers = 0 }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := ValidateConfig(c)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
