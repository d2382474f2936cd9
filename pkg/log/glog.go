// Copyright 2018 Google LLC
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
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog.
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// pid is the space-padded process ID written into every header. glog pads
// it to 7 columns.
var pid = fmt.Sprintf("%7d", os.Getpid())

// levelChars maps levels to the first character of a header.
var levelChars = [...]byte{
	Warning: 'W',
	Info:    'I',
	Debug:   'D',
}

// callerName formats a call site as "file:line", keeping only the base name
// of the file.
func callerName(file string, line int) string {
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		file = file[slash+1:]
	}
	return file + ":" + strconv.Itoa(line)
}

// Emit emits the message, google-style.
//
// Log lines have this form:
//
//	Lmmdd hh:mm:ss.uuuuuu threadid file:line] msg...
//
// where L is a single character representing the log level (eg 'I' for
// INFO), threadid is the space-padded process ID and file:line names the
// logging call site.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	// Headers fit in the local array, so most messages do not allocate here.
	var local [128]byte
	b := local[:0]

	if int(level) < len(levelChars) {
		b = append(b, levelChars[level])
	} else {
		b = append(b, '?')
	}
	b = timestamp.AppendFormat(b, "0102 15:04:05.000000")
	b = append(b, ' ')
	b = append(b, pid...)
	b = append(b, ' ')
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		b = append(b, callerName(file, line)...)
	} else {
		b = append(b, "???:0"...)
	}
	b = append(b, "] "...)

	// User-provided format string, copied.
	b = append(b, format...)
	b = append(b, '\n')

	// Pass to the underlying routine.
	g.Emitter.Emit(depth+1, level, timestamp, string(b), args...)
}
