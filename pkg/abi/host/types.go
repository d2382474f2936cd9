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

package host

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Addr is an address on the host side of the boundary. It is never
// dereferenced by extension code.
type Addr uint64

// AddLength adds the given length to start and returns the result. ok is true
// iff adding the length did not overflow the range of Addr.
func (a Addr) AddLength(length uint64) (end Addr, ok bool) {
	end = a + Addr(length)
	ok = end >= a
	return
}

// TaskRef identifies an entry of the host's process table.
type TaskRef = Addr

// GFP is an allocation class flag.
type GFP uint32

// GFP_KERNEL is the allocation class used for all extension allocations.
const GFP_KERNEL GFP = 0xcc0

// TASK_COMM_LEN is the size of a task's command name, including its NUL.
const TASK_COMM_LEN = 16

// Seek whence values.
const (
	SEEK_SET = int32(unix.SEEK_SET)
	SEEK_CUR = int32(unix.SEEK_CUR)
	SEEK_END = int32(unix.SEEK_END)
)

// O_NONBLOCK is the file status flag for non-blocking I/O.
const O_NONBLOCK = uint32(unix.O_NONBLOCK)

// Filesystem type flags.
const (
	FS_REQUIRES_DEV       = 1
	FS_BINARY_MOUNTDATA   = 2
	FS_HAS_SUBTYPE        = 4
	FS_USERNS_MOUNT       = 8
	FS_RENAME_DOES_D_MOVE = 32768
)

// S_IFDIR is the directory file type bit.
const S_IFDIR = uint32(unix.S_IFDIR)

// MINORBITS is the number of bits of a DevT holding the minor number.
const MINORBITS = 20

// DevT is a packed device number.
type DevT uint32

// MKDEV packs a major and minor number.
func MKDEV(major, minor uint32) DevT {
	return DevT(major<<MINORBITS | minor&(1<<MINORBITS-1))
}

// Major returns the major number of d.
func (d DevT) Major() uint32 {
	return uint32(d) >> MINORBITS
}

// Minor returns the minor number of d.
func (d DevT) Minor() uint32 {
	return uint32(d) & (1<<MINORBITS - 1)
}

// String implements fmt.Stringer.
func (d DevT) String() string {
	return fmt.Sprintf("%d:%d", d.Major(), d.Minor())
}

// Version is a host release.
type Version struct {
	Major int
	Minor int
	Patch int
}

// AtLeast returns true if v is the same as or newer than major.minor.
func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses a "major.minor[.patch]" release string.
func ParseVersion(s string) (Version, error) {
	var v Version
	n, err := fmt.Sscanf(s, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch)
	if n >= 2 {
		return v, nil
	}
	return Version{}, fmt.Errorf("invalid host version %q: %v", s, err)
}
