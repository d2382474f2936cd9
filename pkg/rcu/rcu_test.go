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

package rcu

import (
	"testing"

	"gvisor.dev/kmod/pkg/hostsim"
)

func TestBalanced(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	outer := ReadLock(h)
	inner := ReadLock(h)
	if got := h.Readers(); got != 2 {
		t.Errorf("Readers() = %d with two nested guards, wanted 2", got)
	}
	inner.Unlock()
	if !outer.Held() || inner.Held() {
		t.Errorf("got held outer=%t inner=%t, wanted true, false", outer.Held(), inner.Held())
	}
	outer.Unlock()

	if got, want := h.Count(hostsim.OpRCUReadLock), 2; got != want {
		t.Errorf("rcu_read_lock called %d times, wanted %d", got, want)
	}
	if got, want := h.Count(hostsim.OpRCUReadUnlock), 2; got != want {
		t.Errorf("rcu_read_unlock called %d times, wanted %d", got, want)
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}

func TestDoubleUnlock(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	g := ReadLock(h)
	g.Unlock()
	defer func() {
		if recover() == nil {
			t.Errorf("second Unlock did not panic")
		}
		if got := h.Count(hostsim.OpRCUReadUnlock); got != 1 {
			t.Errorf("rcu_read_unlock called %d times, wanted 1", got)
		}
	}()
	g.Unlock()
}

func TestAssertHeld(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	g := ReadLock(h)
	g.AssertHeld()
	g.Unlock()
	defer func() {
		if recover() == nil {
			t.Errorf("AssertHeld of a released guard did not panic")
		}
	}()
	g.AssertHeld()
}
