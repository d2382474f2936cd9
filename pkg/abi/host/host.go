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

// Package host describes the ABI of the host subsystem that extensions are
// loaded into: the layout of its callback tables, its constants, and the
// entry points it exports.
//
// Nothing in this package is safe to use directly from extension code. The
// typed packages (fileops, chrdev, filesystem, sysctl, usermem, rcu, ...)
// are the sanctioned way of talking to the host.
package host

import (
	"sync/atomic"
)

// Status is the host's numeric return convention: zero is success and a
// negative value is a negated errno.
type Status = int32

// Memory is the set of boundary memory primitives.
type Memory interface {
	// AccessOK reports whether [addr, addr+length) is a legitimately
	// addressable range from the current context. It checks the range only,
	// not whether the range is currently mapped.
	AccessOK(addr Addr, length uint64) bool

	// CopyFromUser copies len(dst) bytes from boundary memory at src into
	// dst. It returns the number of bytes that could not be copied.
	//
	// Preconditions: len(dst) <= math.MaxUint32.
	CopyFromUser(dst []byte, src Addr) uint64

	// CopyToUser copies len(src) bytes from src into boundary memory at dst.
	// It returns the number of bytes that could not be copied.
	//
	// Preconditions: len(src) <= math.MaxUint32.
	CopyToUser(dst Addr, src []byte) uint64
}

// Allocator is the host's single allocation primitive pair.
type Allocator interface {
	// Krealloc resizes the allocation at p to size bytes, or allocates a
	// fresh block when p is zero. It returns zero on exhaustion.
	Krealloc(p Addr, size uint64, flags GFP) Addr

	// Kfree releases an allocation returned by Krealloc.
	Kfree(p Addr)
}

// RCU brackets read-side critical sections.
type RCU interface {
	RCUReadLock()
	RCUReadUnlock()
}

// Tasks exposes the host's process table. The table is RCU protected:
// NextTask may only be called inside a read-side critical section.
type Tasks interface {
	InitTask() TaskRef
	NextTask(t TaskRef) TaskRef
	TaskTgid(t TaskRef) int32
	TaskComm(t TaskRef) [TASK_COMM_LEN]byte
	TaskLock(t TaskRef)
	TaskUnlock(t TaskRef)
}

// Versioned reports the version of the running host.
type Versioned interface {
	Version() Version
}

// CharDevices is the character device registration surface.
type CharDevices interface {
	Versioned

	// AllocChrdevRegion allocates count device numbers starting at
	// firstMinor under a dynamically chosen major.
	AllocChrdevRegion(firstMinor, count uint32, name string) (DevT, Status)

	// UnregisterChrdevRegion releases a region from AllocChrdevRegion.
	UnregisterChrdevRegion(dev DevT, count uint32)

	// CdevAdd makes ops reachable through device number dev. The returned
	// handle is passed to CdevDel.
	CdevAdd(dev DevT, ops *FileOperations, owner string) (Addr, Status)

	// CdevDel removes a cdev added by CdevAdd.
	CdevDel(cdev Addr)
}

// Filesystems is the filesystem type registration surface.
type Filesystems interface {
	Versioned

	RegisterFilesystem(fs *FileSystemType) Status
	UnregisterFilesystem(fs *FileSystemType) Status

	// MountNodev allocates an anonymous super block and calls fill on it.
	MountNodev(fs *FileSystemType, flags int32, data []byte, fill FillSuperFunc) (*SuperBlock, Status)

	// KillLitterSuper tears down a super block created by MountNodev.
	KillLitterSuper(sb *SuperBlock)

	// NewInode allocates an inode belonging to sb.
	NewInode(sb *SuperBlock) (*Inode, Status)

	// DMakeRoot installs inode as the root of its super block.
	DMakeRoot(inode *Inode) Status
}

// Sysctls is the dynamic configuration registration surface.
type Sysctls interface {
	// RegisterSysctl registers table under path. It returns a table header,
	// or zero on failure.
	RegisterSysctl(path string, table []CtlTable) Addr

	// UnregisterSysctlTable releases a header from RegisterSysctl.
	UnregisterSysctlTable(header Addr)
}

// Random is the host CSPRNG.
type Random interface {
	Versioned

	WaitForRandomBytes() Status
	GetRandomBytes(dst []byte)
	RngIsInitialized() bool
	AddDeviceRandomness(data []byte)
}

// Host is the full set of entry points exported by the host.
type Host interface {
	Memory
	Allocator
	RCU
	Tasks
	CharDevices
	Filesystems
	Sysctls
	Random
}

// bound is the host the running extension is linked against.
var bound atomic.Pointer[Host]

// Bind links the process against h. Callback trampolines, which receive only
// the raw arguments of their slot, reach the host through the bound value.
// It returns the previously bound host, if any.
func Bind(h Host) Host {
	var prev *Host
	if h == nil {
		prev = bound.Swap(nil)
	} else {
		prev = bound.Swap(&h)
	}
	if prev == nil {
		return nil
	}
	return *prev
}

// Bound returns the bound host. It panics if no host was bound, since no
// callback can run before the extension was loaded into a host.
func Bound() Host {
	h := bound.Load()
	if h == nil {
		panic("host: no host bound")
	}
	return *h
}
