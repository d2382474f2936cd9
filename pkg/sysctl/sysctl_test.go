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

package sysctl

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/handle"
	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/usermem"
)

func newHost(t *testing.T) *hostsim.Host {
	h := hostsim.New(hostsim.Options{})
	t.Cleanup(h.Install())
	return h
}

func TestBool(t *testing.T) {
	h := newHost(t)
	a, err := Register(h, "rust/sysctl-tests", "a", &BoolStorage{}, 0o666)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer a.Close()

	for _, tc := range []struct {
		write   string
		want    string
		wantErr error
	}{
		{want: "0\n"},
		{write: "1", want: "1\n"},
		{write: "0\n", want: "0\n"},
		{write: "  1\t", want: "1\n"},
		{write: "2", want: "1\n", wantErr: linuxerr.EINVAL},
		{write: "true", want: "1\n", wantErr: linuxerr.EINVAL},
	} {
		if tc.write != "" {
			err := h.WriteSysctl("rust/sysctl-tests/a", []byte(tc.write))
			if tc.wantErr == nil && err != nil || tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("WriteSysctl(%q) = %v, wanted %v", tc.write, err, tc.wantErr)
			}
		}
		got, err := h.ReadSysctl("rust/sysctl-tests/a")
		if err != nil || got != tc.want {
			t.Errorf("after writing %q, ReadSysctl() = (%q, %v), wanted (%q, nil)", tc.write, got, err, tc.want)
		}
	}
	if !a.Get().Load() {
		t.Errorf("Get().Load() = false, wanted true")
	}
}

func TestSharedStorage(t *testing.T) {
	h := newHost(t)
	var shared BoolStorage
	s, err := Register(h, "rust/sysctl-get-tests", "a", &shared, 0o666)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := h.WriteSysctl("rust/sysctl-get-tests/a", []byte("1")); err != nil {
		t.Fatalf("WriteSysctl failed: %v", err)
	}
	s.Close()
	if !shared.Load() || !s.Get().Load() {
		t.Errorf("got shared %t, Get %t; wanted true, true", shared.Load(), s.Get().Load())
	}
}

func TestHandlerPosition(t *testing.T) {
	h := newHost(t)
	s, err := Register(h, "kmod", "flag", &BoolStorage{}, 0o644)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer s.Close()

	var pos int64
	data, err := h.SysctlCall(&s.table[0], false, nil, 16, &pos)
	if err != nil || string(data) != "0\n" || pos != 2 {
		t.Errorf("first read = (%q, %v) at pos %d, wanted (%q, nil) at 2", data, err, pos, "0\n")
	}
	data, err = h.SysctlCall(&s.table[0], false, nil, 16, &pos)
	if err != nil || len(data) != 0 || pos != 2 {
		t.Errorf("second read = (%q, %v) at pos %d, wanted (\"\", nil) at 2", data, err, pos)
	}

	pos = 5
	if _, err := h.SysctlCall(&s.table[0], true, []byte("1\n"), 2, &pos); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if pos != 7 || !s.Get().Load() {
		t.Errorf("write left pos %d, value %t; wanted 7, true", pos, s.Get().Load())
	}
}

func TestShortBuffer(t *testing.T) {
	h := newHost(t)
	s, err := Register(h, "kmod", "flag", &BoolStorage{}, 0o644)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer s.Close()

	var pos int64
	if _, err := h.SysctlCall(&s.table[0], false, nil, 1, &pos); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("read into a 1 byte buffer = %v, wanted EFAULT", err)
	}
}

func TestMode(t *testing.T) {
	h := newHost(t)
	s, err := Register(h, "kmod", "ro", &BoolStorage{}, 0o444)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer s.Close()
	if err := h.WriteSysctl("kmod/ro", []byte("1")); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("write of a read-only entry = %v, wanted EACCES", err)
	}
}

func TestRegisterErrors(t *testing.T) {
	h := newHost(t)
	for _, tc := range []struct {
		dir, name string
		mode      Mode
	}{
		{dir: "kmod", name: "a/b", mode: 0o644},
		{dir: "kmod", name: "", mode: 0o644},
		{dir: "", name: "a", mode: 0o644},
		{dir: "kmod", name: "a", mode: 0o4644},
	} {
		if _, err := Register(h, tc.dir, tc.name, &BoolStorage{}, tc.mode); !linuxerr.Equals(linuxerr.EINVAL, err) {
			t.Errorf("Register(%q, %q, %v) = %v, wanted EINVAL", tc.dir, tc.name, tc.mode, err)
		}
	}

	s, err := Register(h, "kmod", "a", &BoolStorage{}, 0o644)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := Register(h, "kmod", "a", &BoolStorage{}, 0o644); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Errorf("duplicate Register = %v, wanted ENOMEM", err)
	}
	s.Close()
	s.Close()

	if got := h.Count(hostsim.OpUnregisterSysctlTable); got != 1 {
		t.Errorf("unregister_sysctl_table called %d times, wanted 1", got)
	}
	if got := handle.Live(); got != 0 {
		t.Errorf("handle.Live() = %d, wanted 0", got)
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}

// recorder stores every write and reads back the last one.
type recorder struct {
	writes []string
}

func (r *recorder) StoreValue(data []byte) (int, error) {
	r.writes = append(r.writes, string(data))
	return len(data), nil
}

func (r *recorder) ReadValue(w *usermem.Writer) (int, error) {
	if len(r.writes) == 0 {
		return 0, nil
	}
	last := r.writes[len(r.writes)-1]
	return len(last), w.Write([]byte(last))
}

func TestCustomStorage(t *testing.T) {
	h := newHost(t)
	s, err := Register(h, "kmod/deep/dir", "rec", &recorder{}, 0o600)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer s.Close()

	for _, w := range []string{"first", "second value"} {
		if err := h.WriteSysctl(s.Path(), []byte(w)); err != nil {
			t.Fatalf("WriteSysctl(%q) failed: %v", w, err)
		}
	}
	got, err := h.ReadSysctl("kmod/deep/dir/rec")
	if err != nil || got != "second value" {
		t.Errorf("ReadSysctl() = (%q, %v), wanted (%q, nil)", got, err, "second value")
	}
	if diff := cmp.Diff([]string{"first", "second value"}, s.Get().writes); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}
