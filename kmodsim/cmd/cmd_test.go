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
package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"

	_ "gvisor.dev/kmod/modules/chrdevtest"
	_ "gvisor.dev/kmod/modules/jsonsysctl"
	_ "gvisor.dev/kmod/modules/sysctltest"
	_ "gvisor.dev/kmod/modules/testfs"
)

func newSession(t *testing.T, conf *config.Config) *Session {
	t.Helper()
	s, err := NewSession(conf)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func TestNewSessionUnknownModule(t *testing.T) {
	conf := config.Default()
	conf.Modules = []string{"chrdev-tests", "no-such-extension"}
	if _, err := NewSession(conf); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Fatalf("NewSession = %v, wanted ENOENT", err)
	}
	// The extension loaded before the failure was unloaded again.
	conf.Modules = conf.Modules[:1]
	newSession(t, conf)
}

func TestParseDev(t *testing.T) {
	conf := config.Default()
	conf.Modules = []string{"chrdev-tests", "json"}
	s := newSession(t, conf)

	var chrdevMajor, jsonMajor uint32
	for _, d := range s.Host.Devices() {
		switch d.Name {
		case "chrdev-tests":
			chrdevMajor = d.Major
		case "json":
			jsonMajor = d.Major
		}
	}
	for _, tc := range []struct {
		arg string
		want host.DevT
	}{
		{"chrdev-tests:2", host.MKDEV(chrdevMajor, 2)},
		{"json:0", host.MKDEV(jsonMajor, 0)},
		{"10:7", host.MKDEV(10, 7)},
	} {
		got, err := s.ParseDev(tc.arg)
		if err != nil || got != tc.want {
			t.Errorf("ParseDev(%q) = (%v, %v), wanted %v", tc.arg, got, err, tc.want)
		}
	}
	for _, arg := range []string{"chrdev-tests", "nope:0", "1:x", "1:2097152"} {
		if _, err := s.ParseDev(arg); err == nil {
			t.Errorf("ParseDev(%q) succeeded, wanted error", arg)
		}
	}
}

func TestHelpers(t *testing.T) {
	conf := config.Default()
	conf.Modules = []string{"chrdev-tests"}
	s := newSession(t, conf)
	cycle, _ := s.ParseDev("chrdev-tests:0")
	counter, _ := s.ParseDev("chrdev-tests:2")

	if got, err := readDev(s, cycle, 4, -1, 3); err != nil || string(got) != "123456789123" {
		t.Errorf("readDev = (%q, %v), wanted 123456789123", got, err)
	}
	if got, err := readDev(s, cycle, 4, 7, 1); err != nil || string(got) != "8912" {
		t.Errorf("readDev at 7 = (%q, %v), wanted 8912", got, err)
	}
	if n, err := writeDev(s, counter, []byte("abc"), []byte("defgh")); err != nil || n != 8 {
		t.Errorf("writeDev = (%d, %v), wanted 8", n, err)
	}
	if _, err := seekDev(s, counter, 0, host.SEEK_SET); !linuxerr.Equals(linuxerr.ESPIPE, err) {
		t.Errorf("seekDev of the counter = %v, wanted ESPIPE", err)
	}
	if _, err := parseWhence("middle"); err == nil {
		t.Errorf("parseWhence(middle) succeeded")
	}
}

func TestREPL(t *testing.T) {
	conf := config.Default()
	conf.Modules = []string{"chrdev-tests"}
	s := newSession(t, conf)

	script := `# comments and blank lines are skipped

open chrdev-tests:0
read 3 5
read 3 5
pread 3 4 7
open chrdev-tests:2
write 4 hello
read 4 8
seek 4 0
open chrdev-tests:1
seek 5 10 end
close 9
bogus
load sysctl-tests
sysctl rust/sysctl-tests/a 1
unload sysctl-tests
lsmod
quit
read 3 1
`
	var out, transcript bytes.Buffer
	r := newREPL(s, &out)
	if err := r.run(strings.NewReader(script), "", &transcript); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	r.closeAll()

	want := []string{
		"fd 3",
		`"12345"`,
		`"67891"`,
		`"8912"`,
		"fd 4",
		"5",
		`"5"`,
		"error: illegal seek",
		"fd 5",
		"1234",
		"error: fd 9 is not open",
		`error: unknown command "bogus", try help`,
		"rust/sysctl-tests/a = 1",
		"chrdev-tests",
	}
	got := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if n := strings.Count(transcript.String(), "\n"); n != 17 {
		t.Errorf("transcript has %d lines, wanted 17:\n%s", n, transcript.String())
	}
	if strings.Contains(transcript.String(), "#") {
		t.Errorf("transcript contains comments:\n%s", transcript.String())
	}
}

func TestREPLMount(t *testing.T) {
	conf := config.Default()
	conf.Modules = []string{"testfs"}
	s := newSession(t, conf)

	var out bytes.Buffer
	r := newREPL(s, &out)
	if err := r.run(strings.NewReader("mount testfs /dev/loop0\nmount testfs\n"), "", nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := "testfs mounted: magic 0xdeadc0de, root inode 1, mode 040755\n" +
		"testfs unmounted\n" +
		"error: mounting testfs: no such file or directory\n"
	if got := out.String(); got != want {
		t.Errorf("got output %q, wanted %q", got, want)
	}
}

func TestGetRandomNonblock(t *testing.T) {
	conf := config.Default()
	conf.Unseeded = true
	s := newSession(t, conf)

	buf := make([]byte, 16)
	if err := getRandom(context.Background(), s, buf, true, 50*time.Millisecond); !linuxerr.Equals(linuxerr.EAGAIN, err) {
		t.Fatalf("getRandom on an unseeded host = %v, wanted EAGAIN", err)
	}
	timer := time.AfterFunc(20*time.Millisecond, s.Host.Seed)
	defer timer.Stop()
	if err := getRandom(context.Background(), s, buf, true, 10*time.Second); err != nil {
		t.Fatalf("getRandom failed after seeding: %v", err)
	}
}

func TestGetRandomOldHost(t *testing.T) {
	conf := config.Default()
	conf.HostVersion = "4.14"
	s := newSession(t, conf)

	buf := make([]byte, 16)
	if err := getRandom(context.Background(), s, buf, true, time.Second); !linuxerr.Equals(linuxerr.ENOSYS, err) {
		t.Errorf("getRandom on 4.14 = %v, wanted ENOSYS", err)
	}
	if err := getRandom(context.Background(), s, buf, false, time.Second); err != nil {
		t.Errorf("blocking getRandom on 4.14 failed: %v", err)
	}
}
