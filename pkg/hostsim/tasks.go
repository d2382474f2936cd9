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

package hostsim

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/sync"
)

// taskBase is the address of the init task.
const taskBase host.Addr = 0xffffffff82a00000

// poisonComm replaces the command name of freed tasks.
var poisonComm = [host.TASK_COMM_LEN]byte{0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0x6b, 0xa5}

type task struct {
	tgid  int32
	comm  [host.TASK_COMM_LEN]byte
	next  host.TaskRef
	prev  host.TaskRef
	freed bool

	// lock is the task lock, taken by TaskLock.
	lock sync.Mutex
}

// taskTable is the circular process list, starting at the init task.
type taskTable struct {
	tasks map[host.TaskRef]*task
	next  host.TaskRef
}

func (t *taskTable) init(specs []TaskSpec) {
	t.tasks = make(map[host.TaskRef]*task)
	t.next = taskBase
	t.spawnLocked(0, "swapper/0")
	for _, s := range specs {
		t.spawnLocked(s.Tgid, s.Comm)
	}
}

// spawnLocked appends a task at the tail of the list, right before init.
func (t *taskTable) spawnLocked(tgid int32, comm string) host.TaskRef {
	ref := t.next
	t.next += 0x2000
	nt := &task{tgid: tgid}
	copy(nt.comm[:host.TASK_COMM_LEN-1], comm)
	if len(t.tasks) == 0 {
		nt.next, nt.prev = ref, ref
	} else {
		init := t.tasks[taskBase]
		tail := t.tasks[init.prev]
		nt.next, nt.prev = taskBase, init.prev
		tail.next = ref
		init.prev = ref
	}
	t.tasks[ref] = nt
	return ref
}

// RCUReadLock implements host.RCU.RCUReadLock.
func (h *Host) RCUReadLock() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpRCUReadLock, "")
	h.readers++
}

// RCUReadUnlock implements host.RCU.RCUReadUnlock.
func (h *Host) RCUReadUnlock() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpRCUReadUnlock, "")
	if h.readers == 0 {
		h.problemLocked("rcu_read_unlock without matching rcu_read_lock")
		return
	}
	h.readers--
	if h.readers == 0 {
		h.readersCond.Broadcast()
	}
}

// Readers returns the number of open read-side critical sections.
func (h *Host) Readers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readers
}

// Synchronize waits until no read-side critical section is open, like
// synchronize_rcu. Calling it from inside one deadlocks.
func (h *Host) Synchronize() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.synchronizeLocked()
}

func (h *Host) synchronizeLocked() {
	for h.readers > 0 {
		h.readersCond.Wait()
	}
}

// Spawn starts a process and returns its task.
func (h *Host) Spawn(tgid int32, comm string) host.TaskRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks.spawnLocked(tgid, comm)
}

// Exit unlinks the first process with the given tgid from the process list
// and frees it after a grace period, so that walkers that already reached
// it can finish. It returns false if there is no such process.
func (h *Host) Exit(tgid int32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ref host.TaskRef
	for r := h.tasks.tasks[taskBase].next; r != taskBase; r = h.tasks.tasks[r].next {
		if h.tasks.tasks[r].tgid == tgid {
			ref = r
			break
		}
	}
	if ref == 0 {
		return false
	}
	t := h.tasks.tasks[ref]
	h.tasks.tasks[t.prev].next = t.next
	h.tasks.tasks[t.next].prev = t.prev

	h.synchronizeLocked()
	t.freed = true
	t.tgid = -1
	t.comm = poisonComm
	return true
}

// taskLocked returns the live task ref.
func (h *Host) taskLocked(op string, ref host.TaskRef) *task {
	t, ok := h.tasks.tasks[ref]
	if !ok {
		h.problemLocked("%s of unknown task %#x", op, ref)
		return nil
	}
	if t.freed {
		h.problemLocked("%s of freed task %#x", op, ref)
	}
	return t
}

// InitTask implements host.Tasks.InitTask.
func (h *Host) InitTask() host.TaskRef {
	return taskBase
}

// NextTask implements host.Tasks.NextTask.
func (h *Host) NextTask(ref host.TaskRef) host.TaskRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readers == 0 {
		h.problemLocked("next_task outside of an RCU read-side critical section")
	}
	t := h.taskLocked("next_task", ref)
	if t == nil {
		return 0
	}
	return t.next
}

// TaskTgid implements host.Tasks.TaskTgid.
func (h *Host) TaskTgid(ref host.TaskRef) int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.taskLocked("task_tgid", ref)
	if t == nil {
		return -1
	}
	return t.tgid
}

// TaskComm implements host.Tasks.TaskComm.
func (h *Host) TaskComm(ref host.TaskRef) [host.TASK_COMM_LEN]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.taskLocked("task_comm", ref)
	if t == nil {
		return poisonComm
	}
	return t.comm
}

// TaskLock implements host.Tasks.TaskLock.
func (h *Host) TaskLock(ref host.TaskRef) {
	h.mu.Lock()
	t := h.taskLocked("task_lock", ref)
	h.mu.Unlock()
	if t != nil {
		t.lock.Lock()
	}
}

// TaskUnlock implements host.Tasks.TaskUnlock.
func (h *Host) TaskUnlock(ref host.TaskRef) {
	h.mu.Lock()
	t := h.taskLocked("task_unlock", ref)
	h.mu.Unlock()
	if t != nil {
		t.lock.Unlock()
	}
}
