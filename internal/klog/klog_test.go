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

package klog

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func redirectToBuffer(format, severity string) *bytes.Buffer {
	var buf bytes.Buffer
	defaultFactory.format = format
	defaultFactory.level.Set(parseSeverity(severity))
	defaultLogger = slog.New(defaultFactory.createHandler(&buf))
	return &buf
}

func TestTextFormat_SeverityFiltering(t *testing.T) {
	buf := redirectToBuffer("text", "warning")

	Infof("hidden")
	assert.Empty(t, buf.String())

	Warningf("shown")
	assert.Regexp(t, regexp.MustCompile(`severity=WARNING msg=shown`), buf.String())
}

func TestJSONFormat_IncludesSeverityAndMessage(t *testing.T) {
	buf := redirectToBuffer("json", "trace")

	Tracef("hello %d", 1)
	assert.Regexp(t, regexp.MustCompile(`"severity":"TRACE"`), buf.String())
	assert.Regexp(t, regexp.MustCompile(`"msg":"hello 1"`), buf.String())
}

func TestErrorf_AlwaysPassesAtErrorLevel(t *testing.T) {
	buf := redirectToBuffer("text", "error")

	Debugf("hidden")
	Errorf("boom")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "boom")
}
