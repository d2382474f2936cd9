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

// Package hostsim is an in-memory host. It implements host.Host well enough
// to load extensions, drive their callbacks the way the host's own users
// would (open/read/write/seek of device files, mounts, sysctl reads and
// writes) and check afterwards that everything they registered was
// released.
//
// Every entry point is counted and logged, and can be made to fail with
// FailAt.
package hostsim

import (
	"fmt"
	"slices"
	"strings"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/alloc"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/sync"
)

// Op names a host entry point.
type Op string

// Host entry points.
const (
	OpAccessOK               Op = "access_ok"
	OpCopyFromUser           Op = "copy_from_user"
	OpCopyToUser             Op = "copy_to_user"
	OpKrealloc               Op = "krealloc"
	OpKfree                  Op = "kfree"
	OpRCUReadLock            Op = "rcu_read_lock"
	OpRCUReadUnlock          Op = "rcu_read_unlock"
	OpAllocChrdevRegion      Op = "alloc_chrdev_region"
	OpUnregisterChrdevRegion Op = "unregister_chrdev_region"
	OpCdevAdd                Op = "cdev_add"
	OpCdevDel                Op = "cdev_del"
	OpRegisterFilesystem     Op = "register_filesystem"
	OpUnregisterFilesystem   Op = "unregister_filesystem"
	OpMountNodev             Op = "mount_nodev"
	OpKillLitterSuper        Op = "kill_litter_super"
	OpNewInode               Op = "new_inode"
	OpDMakeRoot              Op = "d_make_root"
	OpRegisterSysctl         Op = "register_sysctl"
	OpUnregisterSysctlTable  Op = "unregister_sysctl_table"
	OpWaitForRandomBytes     Op = "wait_for_random_bytes"
	OpGetRandomBytes         Op = "get_random_bytes"
	OpAddDeviceRandomness    Op = "add_device_randomness"
)

// Call is one recorded call of a host entry point.
type Call struct {
	Op  Op
	Arg string
}

func (c Call) String() string {
	if c.Arg == "" {
		return string(c.Op)
	}
	return fmt.Sprintf("%s(%s)", c.Op, c.Arg)
}

// TaskSpec describes a process present when the host starts.
type TaskSpec struct {
	Tgid int32
	Comm string
}

// Options configures a Host.
type Options struct {
	// Version is the host release reported to extensions. The zero value
	// selects DefaultVersion.
	Version host.Version

	// AllocBudget limits the bytes that can be live in the kernel heap at
	// once. Zero means no limit.
	AllocBudget uint64

	// Tasks are started after the init task, in order.
	Tasks []TaskSpec

	// Unseeded starts the host with an uninitialized random pool. The pool
	// is seeded by the first WaitForRandomBytes.
	Unseeded bool

	// RandomSeed seeds the random pool, for reproducible output.
	RandomSeed uint64
}

// DefaultVersion is the host release used when Options.Version is zero.
var DefaultVersion = host.Version{Major: 5, Minor: 15}

type failure struct {
	countdown int
	status    host.Status
}

// Host is a simulated host. It is safe for concurrent use; no lock is held
// while an extension callback runs.
type Host struct {
	version host.Version

	// mu protects everything below, and the state of the files memory.go,
	// heap.go, chrdev.go, fs.go, sysctl.go and tasks.go add to Host.
	mu       sync.Mutex
	calls    []Call
	counts   map[Op]int
	failures map[Op]*failure
	problems []string

	mem    addressSpace
	heap   heap
	chrdev chrdevTable
	files  fileTable
	fs     fsTable
	sysctl sysctlTree
	tasks  taskTable
	random randomPool

	// readers is the number of open RCU read-side critical sections.
	// readersCond is signalled when it drops to zero.
	readers     int
	readersCond *sync.Cond
}

var _ host.Host = (*Host)(nil)

// New returns a Host configured by opts.
func New(opts Options) *Host {
	h := &Host{
		version:  opts.Version,
		counts:   make(map[Op]int),
		failures: make(map[Op]*failure),
	}
	if h.version == (host.Version{}) {
		h.version = DefaultVersion
	}
	h.readersCond = sync.NewCond(&h.mu)
	h.mem.init()
	h.heap.init(opts.AllocBudget)
	h.chrdev.init()
	h.files.init()
	h.fs.init()
	h.sysctl.init()
	h.tasks.init(opts.Tasks)
	h.random.init(opts.RandomSeed, !opts.Unseeded)
	return h
}

// Version implements host.Versioned.Version.
func (h *Host) Version() host.Version {
	return h.version
}

// Install binds h as the process host and installs an allocator backed by
// it. The returned function restores the previous host and allocator.
func (h *Host) Install() (restore func()) {
	prevHost := host.Bind(h)
	prevAlloc := alloc.Uninstall()
	alloc.Install(alloc.New(h))
	return func() {
		alloc.Uninstall()
		if prevAlloc != nil {
			alloc.Install(prevAlloc)
		}
		host.Bind(prevHost)
	}
}

// FailAt makes the n-th next call of op fail with status, which must be
// negative. Entry points that return an address or pointer fail by
// returning zero or nil instead. Entry points that cannot fail ignore it.
func (h *Host) FailAt(op Op, n int, status host.Status) {
	if n < 1 || status >= 0 {
		panic(fmt.Sprintf("hostsim: invalid failure %d for call %d of %s", status, n, op))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[op] = &failure{countdown: n, status: status}
}

// recordLocked records a call of op and returns the injected failure, or
// zero.
//
// Preconditions: h.mu is locked.
func (h *Host) recordLocked(op Op, arg string) host.Status {
	h.calls = append(h.calls, Call{Op: op, Arg: arg})
	h.counts[op]++
	f, ok := h.failures[op]
	if !ok {
		return 0
	}
	if f.countdown--; f.countdown > 0 {
		return 0
	}
	delete(h.failures, op)
	log.Debugf("hostsim: injecting status %d into %s(%s)", f.status, op, arg)
	return f.status
}

func (h *Host) record(op Op, arg string) host.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recordLocked(op, arg)
}

// problemLocked records misuse of the host by an extension.
//
// Preconditions: h.mu is locked.
func (h *Host) problemLocked(format string, v ...any) {
	p := fmt.Sprintf(format, v...)
	log.Warningf("hostsim: %s", p)
	h.problems = append(h.problems, p)
}

// Count returns the number of calls of op so far.
func (h *Host) Count(op Op) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[op]
}

// Calls returns the calls made so far, in order, restricted to ops if any
// are given.
func (h *Host) Calls(ops ...Op) []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(ops) == 0 {
		return slices.Clone(h.calls)
	}
	var calls []Call
	for _, c := range h.calls {
		if slices.Contains(ops, c.Op) {
			calls = append(calls, c)
		}
	}
	return calls
}

// ResetCalls forgets the recorded calls and counts.
func (h *Host) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
	clear(h.counts)
}

// Problems returns the misuses of the host detected so far: frees of
// memory that is not allocated, unregistration of unknown handles, walks
// of the process table outside of RCU read-side sections and the like.
func (h *Host) Problems() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.problems)
}

// CheckReleased returns an error describing every host resource that is
// still held, and every problem detected, or nil if there are none. It is
// used after unloading extensions.
func (h *Host) CheckReleased() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var leaks []string
	leaks = append(leaks, h.problems...)
	if n := len(h.heap.allocs); n > 0 {
		leaks = append(leaks, fmt.Sprintf("%d heap allocations (%d bytes) live", n, h.heap.inUse))
	}
	for _, r := range h.chrdev.regions {
		leaks = append(leaks, fmt.Sprintf("chrdev region %v+%d %q registered", r.dev, r.count, r.name))
	}
	for _, c := range h.chrdev.cdevs {
		leaks = append(leaks, fmt.Sprintf("cdev %v added", c.dev))
	}
	for _, fs := range h.fs.types {
		leaks = append(leaks, fmt.Sprintf("filesystem %q registered", fs.Name))
	}
	for _, path := range h.sysctl.pathsLocked() {
		leaks = append(leaks, fmt.Sprintf("sysctl %q registered", path))
	}
	if n := len(h.files.open); n > 0 {
		leaks = append(leaks, fmt.Sprintf("%d files open", n))
	}
	if n := len(h.fs.mounts); n > 0 {
		leaks = append(leaks, fmt.Sprintf("%d filesystems mounted", n))
	}
	if h.readers != 0 {
		leaks = append(leaks, fmt.Sprintf("%d RCU readers active", h.readers))
	}
	if len(leaks) == 0 {
		return nil
	}
	return fmt.Errorf("host resources not released:\n\t%s", strings.Join(leaks, "\n\t"))
}
