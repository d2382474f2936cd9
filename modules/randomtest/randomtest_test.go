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
package randomtest

import (
	"testing"

	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/hostsim"
)

func TestEntropyRead(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	defer h.Install()()
	l, err := Load(h)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer l.Unload()

	keys := make(map[[16]byte]struct{})
	for range 1024 {
		b, err := h.ReadSysctlN(Path, 16)
		if err != nil {
			t.Fatalf("ReadSysctlN failed: %v", err)
		}
		if len(b) != 16 {
			t.Fatalf("got %d bytes, wanted 16", len(b))
		}
		keys[[16]byte(b)] = struct{}{}
	}
	if len(keys) != 1024 {
		t.Errorf("got %d distinct keys, wanted 1024", len(keys))
	}
}

func TestEntropyWrite(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	defer h.Install()()
	l, err := Load(h)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer l.Unload()

	if err := h.WriteSysctl(Path, []byte("1234567890")); err != nil {
		t.Fatalf("WriteSysctl failed: %v", err)
	}
	if got := h.EntropyAdded(); got != 10 {
		t.Errorf("EntropyAdded() = %d, wanted 10", got)
	}
}

func TestUnseeded(t *testing.T) {
	h := hostsim.New(hostsim.Options{Unseeded: true})
	defer h.Install()()
	l, err := Load(h)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer l.Unload()

	h.FailAt(hostsim.OpWaitForRandomBytes, 1, linuxerr.EINTR.Status())
	if _, err := h.ReadSysctlN(Path, 16); !linuxerr.Equals(linuxerr.EINTR, err) {
		t.Errorf("interrupted read = %v, wanted EINTR", err)
	}
	if b, err := h.ReadSysctlN(Path, 16); err != nil || len(b) != 16 {
		t.Errorf("read = (%d bytes, %v), wanted (16, nil)", len(b), err)
	}
}
