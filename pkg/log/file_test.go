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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPatternOpts(t *testing.T) {
	start := time.Unix(0, 1234)
	for _, tc := range []struct {
		pattern string
		opts    PatternOpts
		want    string
	}{
		{"/tmp/%COMMAND%.log", PatternOpts{Command: "read"}, "/tmp/read.log"},
		{"/tmp/%COMMAND%.log", PatternOpts{}, "/tmp/none.log"},
		{"%TIMESTAMP%-%HOST%", PatternOpts{Start: start, Host: "5.15.0"}, "1234-5.15.0"},
		{"plain", PatternOpts{Command: "read"}, "plain"},
	} {
		if got := tc.opts.Build(tc.pattern); got != tc.want {
			t.Errorf("Build(%q) = %q, wanted %q", tc.pattern, got, tc.want)
		}
	}
}

func TestOpenFile(t *testing.T) {
	if f, err := OpenFile("", os.O_WRONLY, PatternOpts{}); f != nil || err != nil {
		t.Errorf("OpenFile(\"\") = (%v, %v), wanted (nil, nil)", f, err)
	}

	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "logs", "%COMMAND%.txt"), os.O_WRONLY|os.O_CREATE, PatternOpts{Command: "mount"})
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()
	if want := filepath.Join(dir, "logs", "mount.txt"); f.Name() != want {
		t.Errorf("got file %q, wanted %q", f.Name(), want)
	}
}
