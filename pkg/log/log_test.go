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
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"\n*** Dropped 2 log messages ***\n",
		"line 2\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("Writer lines mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "warning", want: Warning},
		{in: "Info", want: Info},
		{in: "debug", want: Debug},
		{in: "trace", want: Warning, wantErr: true},
	} {
		got, err := ParseLevel(tc.in)
		if got != tc.want || (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) = (%v, %v), wanted (%v, err=%t)", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warning %d", 3)
	if want := []string{"info 2", "warning 3"}; !cmp.Equal(want, tw.lines) {
		t.Errorf("got lines %q, wanted %q", tw.lines, want)
	}

	l.SetLevel(Debug)
	l.Debugf("debug %d", 4)
	if got, want := tw.lines[len(tw.lines)-1], "debug 4"; got != want {
		t.Errorf("got last line %q, wanted %q", got, want)
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: GoogleEmitter{&Writer{Next: tw}}}
	l.Infof("hello %s", "kmod")

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, wanted 1: %q", len(tw.lines), tw.lines)
	}
	re := regexp.MustCompile(`^I\d{4} \d{2}:\d{2}:\d{2}\.\d{6} +\d+ log_test\.go:\d+\] hello kmod\n$`)
	if !re.MatchString(tw.lines[0]) {
		t.Errorf("line %q does not match %v", tw.lines[0], re)
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: JSONEmitter{&Writer{Next: tw}}}
	l.Warningf("bad %s", "address")

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, wanted 1: %q", len(tw.lines), tw.lines)
	}
	for _, want := range []string{`"msg":"bad address"`, `"level":"warning"`, `"caller":"log_test.go:`} {
		if !strings.Contains(tw.lines[0], want) {
			t.Errorf("line %q does not contain %s", tw.lines[0], want)
		}
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLogger(l, time.Hour)

	for i := 0; i < 5; i++ {
		rl.Warningf("message %d", i)
	}
	if want := []string{"message 0"}; !cmp.Equal(want, tw.lines) {
		t.Errorf("got lines %q, wanted %q", tw.lines, want)
	}
	if !rl.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false, wanted true")
	}
}

func TestFatalf(t *testing.T) {
	tw := &testWriter{}
	prevLog := Log()
	SetTarget(&Writer{Next: tw})
	prevExit := Exit
	exited := 0
	Exit = func() { exited++ }
	defer func() {
		Exit = prevExit
		log.Store(prevLog)
	}()

	Fatalf("out of memory: %d bytes", 8)
	if exited != 1 {
		t.Errorf("Exit called %d times, wanted 1", exited)
	}
	if want := []string{"FATAL: out of memory: 8 bytes"}; !cmp.Equal(want, tw.lines) {
		t.Errorf("got lines %q, wanted %q", tw.lines, want)
	}
}
