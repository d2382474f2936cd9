// Copyright 2018 The gVisor Authors.
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
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"time"
)

// MarshalText implements encoding.TextMarshaler. Levels are written by name
// in configuration files and JSON logs.
func (l Level) MarshalText() ([]byte, error) {
	switch l {
	case Warning:
		return []byte("warning"), nil
	case Info:
		return []byte("info"), nil
	case Debug:
		return []byte("debug"), nil
	default:
		return nil, fmt.Errorf("unknown level %d", uint32(l))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts the names
// understood by ParseLevel and the numeric values of the levels.
func (l *Level) UnmarshalText(b []byte) error {
	if n, err := strconv.ParseUint(string(b), 10, 32); err == nil {
		if Level(n) > Debug {
			return fmt.Errorf("unknown log level %d", n)
		}
		*l = Level(n)
		return nil
	}
	lv, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = lv
	return nil
}

// jsonLog is one line of JSONEmitter output.
type jsonLog struct {
	Msg    string    `json:"msg"`
	Level  Level     `json:"level"`
	Time   time.Time `json:"time"`
	Caller string    `json:"caller,omitempty"`
}

// JSONEmitter logs messages in json format.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	j := jsonLog{
		Msg:   fmt.Sprintf(format, v...),
		Level: level,
		Time:  timestamp,
	}
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		j.Caller = callerName(file, line)
	}
	b, err := json.Marshal(j)
	if err != nil {
		// Only an unknown level gets here.
		b = fmt.Appendf(nil, `{"msg":%q,"level":%d}`, j.Msg, uint32(level))
	}
	e.Writer.Write(append(b, '\n'))
}
