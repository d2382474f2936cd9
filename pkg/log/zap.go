// Copyright 2026 The gVisor Authors.
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
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapEmitter hands log messages to a zap logger, for embedders that already
// route their logs through zap.
type ZapEmitter struct {
	Logger *zap.Logger
}

// NewZapEmitter returns a ZapEmitter that writes console encoded messages
// to w.
func NewZapEmitter(w io.Writer) ZapEmitter {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), zapcore.DebugLevel)
	return ZapEmitter{Logger: zap.New(core, zap.AddCaller())}
}

// zapLevel maps l to the zap level of the same severity.
func zapLevel(l Level) zapcore.Level {
	switch l {
	case Warning:
		return zapcore.WarnLevel
	case Info:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Emit implements Emitter.Emit. The timestamp is attached as a field since
// zap stamps entries itself.
func (z ZapEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	l := z.Logger.WithOptions(zap.AddCallerSkip(depth + 1))
	if ce := l.Check(zapLevel(level), fmt.Sprintf(format, v...)); ce != nil {
		ce.Write(zap.Time("emitted", timestamp))
	}
}

// Sync flushes buffered messages.
func (z ZapEmitter) Sync() error {
	return z.Logger.Sync()
}
