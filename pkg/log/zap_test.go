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
	"bytes"
	"strings"
	"testing"
)

func TestZapEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Debug, Emitter: NewZapEmitter(&buf)}
	l.Warningf("cdev %s failed", "chrdev-tests")
	l.Debugf("debug %d", 1)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, wanted 2: %q", len(lines), lines)
	}
	for i, want := range [][]string{
		{"WARN", "zap_test.go:", "cdev chrdev-tests failed"},
		{"DEBUG", "debug 1"},
	} {
		for _, w := range want {
			if !strings.Contains(lines[i], w) {
				t.Errorf("line %q does not contain %q", lines[i], w)
			}
		}
	}
}
