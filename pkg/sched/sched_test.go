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

package sched

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/rcu"
)

type proc struct {
	Tgid int32
	Comm string
}

func TestEachProcess(t *testing.T) {
	h := hostsim.New(hostsim.Options{Tasks: []hostsim.TaskSpec{
		{Tgid: 1, Comm: "init"},
		{Tgid: 42, Comm: "kmodsim"},
	}})

	g := rcu.ReadLock(h)
	var got []proc
	for p := range EachProcess(h, g) {
		got = append(got, proc{p.Tgid(), p.Comm()})
	}
	g.Unlock()

	want := []proc{{0, "swapper/0"}, {1, "init"}, {42, "kmodsim"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("processes mismatch (-want +got):\n%s", diff)
	}
	if got := h.Problems(); len(got) != 0 {
		t.Errorf("host reported problems: %q", got)
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}

func TestEachProcessBreak(t *testing.T) {
	h := hostsim.New(hostsim.Options{Tasks: []hostsim.TaskSpec{{Tgid: 1, Comm: "init"}}})
	g := rcu.ReadLock(h)
	defer g.Unlock()
	n := 0
	for range EachProcess(h, g) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("visited %d processes, wanted 1", n)
	}
	if got := h.Count(hostsim.OpRCUReadLock); got != 1 {
		t.Errorf("rcu_read_lock called %d times, wanted 1", got)
	}
}

func TestTaskAfterUnlock(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	g := rcu.ReadLock(h)
	var last *Task
	for p := range EachProcess(h, g) {
		last = p
	}
	g.Unlock()

	defer func() {
		if recover() == nil {
			t.Errorf("Tgid of a task after its guard was released did not panic")
		}
	}()
	last.Tgid()
}
