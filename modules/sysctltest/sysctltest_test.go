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

package sysctltest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/hostsim"
)

func TestReadWrite(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	defer h.Install()()
	l, err := Load(h)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got, err := h.ReadSysctl(Dir + "/a"); err != nil || got != "0\n" {
		t.Errorf("default value = (%q, %v), wanted (%q, nil)", got, err, "0\n")
	}
	for _, w := range []string{"1", "  1\t"} {
		if err := h.WriteSysctl(Dir+"/a", []byte(w)); err != nil {
			t.Fatalf("WriteSysctl(%q) failed: %v", w, err)
		}
		if got, err := h.ReadSysctl(Dir + "/a"); err != nil || got != "1\n" {
			t.Errorf("after writing %q, value = (%q, %v), wanted (%q, nil)", w, got, err, "1\n")
		}
	}
	if l.Module().B.Get().Load() {
		t.Errorf("writes to a changed b")
	}

	l.Unload()
	if _, err := h.ReadSysctl(Dir + "/a"); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("ReadSysctl after unload = %v, wanted ENOENT", err)
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}

func TestSecondEntryFails(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	defer h.Install()()
	h.FailAt(hostsim.OpRegisterSysctl, 2, linuxerr.ENOMEM.Status())
	if _, err := Load(h); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Fatalf("Load = %v, wanted ENOMEM", err)
	}
	want := []hostsim.Call{
		{Op: hostsim.OpRegisterSysctl, Arg: Dir},
		{Op: hostsim.OpRegisterSysctl, Arg: Dir},
	}
	if diff := cmp.Diff(want, h.Calls(hostsim.OpRegisterSysctl)); diff != "" {
		t.Errorf("register calls mismatch (-want +got):\n%s", diff)
	}
	if got := h.Sysctls(); len(got) != 0 {
		t.Errorf("Sysctls() = %q, wanted none", got)
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}
