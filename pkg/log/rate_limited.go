// Copyright 2022 The gVisor Authors.
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

package log

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type rateLimitedLogger struct {
	logger Logger
	limit  *rate.Limiter

	// suppressed counts messages dropped since the last one that was
	// allowed through.
	suppressed atomic.Int64
}

func (rl *rateLimitedLogger) allow() (string, []any, bool) {
	if !rl.limit.Allow() {
		rl.suppressed.Add(1)
		return "", nil, false
	}
	if n := rl.suppressed.Swap(0); n > 0 {
		return " (%d similar messages suppressed)", []any{n}, true
	}
	return "", nil, true
}

func (rl *rateLimitedLogger) Debugf(format string, v ...any) {
	if suffix, sv, ok := rl.allow(); ok {
		rl.logger.Debugf(format+suffix, append(v, sv...)...)
	}
}

func (rl *rateLimitedLogger) Infof(format string, v ...any) {
	if suffix, sv, ok := rl.allow(); ok {
		rl.logger.Infof(format+suffix, append(v, sv...)...)
	}
}

func (rl *rateLimitedLogger) Warningf(format string, v ...any) {
	if suffix, sv, ok := rl.allow(); ok {
		rl.logger.Warningf(format+suffix, append(v, sv...)...)
	}
}

func (rl *rateLimitedLogger) IsLogging(level Level) bool {
	return rl.logger.IsLogging(level)
}

// globalLogger forwards to whichever logger is global at the time of the
// call, so that rate limiters created at init time follow SetTarget.
type globalLogger struct{}

func (globalLogger) Debugf(format string, v ...any) {
	Log().DebugfAtDepth(2, format, v...)
}

func (globalLogger) Infof(format string, v ...any) {
	Log().InfofAtDepth(2, format, v...)
}

func (globalLogger) Warningf(format string, v ...any) {
	Log().WarningfAtDepth(2, format, v...)
}

func (globalLogger) IsLogging(level Level) bool {
	return Log().IsLogging(level)
}

// BasicRateLimitedLogger returns a Logger that logs to the global logger no
// more than once per the provided duration.
func BasicRateLimitedLogger(every time.Duration) Logger {
	return RateLimitedLogger(globalLogger{}, every)
}

// RateLimitedLogger returns a Logger that logs to the provided logger no more
// than once per the provided duration. The number of messages dropped in
// between is appended to the next message that gets through.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return &rateLimitedLogger{
		logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}
