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

// Package sched walks the host's process table.
package sched

import (
	"bytes"
	"iter"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/rcu"
)

// Task is a borrowed view of a host process. It is only valid while the
// ReadGuard it was obtained under is held; any use after that panics.
type Task struct {
	h   host.Tasks
	g   *rcu.ReadGuard
	ref host.TaskRef
}

// Tgid returns the thread group ID, what userspace calls the process ID.
func (t *Task) Tgid() int32 {
	t.g.AssertHeld()
	return t.h.TaskTgid(t.ref)
}

// Comm returns the command name of the process. It is read under the
// task's lock and cut at the first NUL.
func (t *Task) Comm() string {
	t.g.AssertHeld()
	t.h.TaskLock(t.ref)
	comm := t.h.TaskComm(t.ref)
	t.h.TaskUnlock(t.ref)
	if i := bytes.IndexByte(comm[:], 0); i >= 0 {
		return string(comm[:i])
	}
	return string(comm[:])
}

// EachProcess yields every process of the host, starting with the init
// task, until the walk returns to init or reaches the end of the list. The
// walk and every yielded Task are bound to g:
//
//	g := rcu.ReadLock(h)
//	defer g.Unlock()
//	for p := range sched.EachProcess(h, g) {
//		log.Infof("%8d %s", p.Tgid(), p.Comm())
//	}
func EachProcess(h host.Tasks, g *rcu.ReadGuard) iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		g.AssertHeld()
		init := h.InitTask()
		for p := init; p != 0; {
			if !yield(&Task{h: h, g: g, ref: p}) {
				return
			}
			g.AssertHeld()
			if p = h.NextTask(p); p == init {
				return
			}
		}
	}
}
