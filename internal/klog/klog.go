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

// Package klog is the kernel's structured logger: an slog wrapper with a
// Trace severity below Debug, a text or json handler, and an optional
// rotating file sink, so a diagnostic trail survives a panic in the
// scheduler or VFS even when the process that wrote it is gone.
package klog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kavionic/padkernel/cfg"
)

// Severity levels. Debug/Info/Warning/Error line up with slog's own level
// values; Trace sits four below Debug, the same spacing slog uses between
// its own levels.
const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
)

var severityNames = map[slog.Level]string{
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

func severityName(l slog.Level) string {
	if s, ok := severityNames[l]; ok {
		return s
	}
	return l.String()
}

type loggerFactory struct {
	format string
	level  *slog.LevelVar
}

func (f *loggerFactory) createHandler(w io.Writer) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			lvl, _ := a.Value.Any().(slog.Level)
			a.Key = "severity"
			a.Value = slog.StringValue(severityName(lvl))
		case slog.TimeKey:
			if f.format == "json" {
				t, _ := a.Value.Any().(time.Time)
				a.Key = "timestamp"
				a.Value = slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				)
			} else {
				t, _ := a.Value.Any().(time.Time)
				a.Value = slog.StringValue(t.Format("2006/01/02 15:04:05.000000"))
			}
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: f.level, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseSeverity(s string) slog.Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	defaultFactory = &loggerFactory{format: "text", level: &slog.LevelVar{}}
	defaultLogger  = slog.New(defaultFactory.createHandler(os.Stderr))
)

// Init reconfigures the package logger per conf, opening a rotating file
// sink at conf.File in addition to stderr when conf.File is non-empty.
func Init(conf cfg.LogConfig) {
	defaultFactory.format = conf.Format
	defaultFactory.level.Set(parseSeverity(conf.Severity))

	var w io.Writer = os.Stderr
	if conf.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    64,
			MaxBackups: 5,
			Compress:   true,
		})
	}
	defaultLogger = slog.New(defaultFactory.createHandler(w))
}

func log(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func Tracef(format string, args ...any)   { log(LevelTrace, format, args...) }
func Debugf(format string, args ...any)   { log(LevelDebug, format, args...) }
func Infof(format string, args ...any)    { log(LevelInfo, format, args...) }
func Warningf(format string, args ...any) { log(LevelWarning, format, args...) }
func Errorf(format string, args ...any)   { log(LevelError, format, args...) }
