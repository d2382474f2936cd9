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
)

// Inode is the host's inode record.
type Inode struct {
	Ino  uint64
	Mode uint32
	Rdev DevT
	SB   *SuperBlock
}

// File is the host's open file record. It is owned by the host; extensions
// only see it for the duration of a callback.
type File struct {
	// PrivateData is the opaque per-handle state pointer. It is zero until
	// an open callback stores a value and after the release callback clears
	// it.
	PrivateData Addr

	// Pos is the file position.
	Pos int64

	// Flags are the file status flags (O_*).
	Flags uint32

	// Ops is the callback table the file was opened through.
	Ops *FileOperations
}

// FileOperations is the callback table for files. A nil slot means the
// operation is not supported; the host turns calls to it into its own
// error without calling into the extension.
//
// Some slots only exist in certain host releases. Validate reports tables
// that populate a slot the running host does not have.
type FileOperations struct {
	// Owner names the extension the table belongs to.
	Owner string

	Llseek  func(f *File, offset int64, whence int32) int64
	Read    func(f *File, buf Addr, count uint64, pos *int64) int64
	Write   func(f *File, buf Addr, count uint64, pos *int64) int64
	Open    func(inode *Inode, f *File) Status
	Release func(inode *Inode, f *File) Status
	Flush   func(f *File) Status
	Fsync   func(f *File, start, end int64, datasync int32) Status
	Poll    func(f *File) uint32

	UnlockedIoctl func(f *File, cmd uint32, arg uint64) int64
	CompatIoctl   func(f *File, cmd uint32, arg uint64) int64

	// AioFsync was removed in 4.9.
	AioFsync func(f *File, datasync int32) Status

	// CopyFileRange exists from 4.5.
	CopyFileRange func(in *File, posIn int64, out *File, posOut int64, count uint64, flags uint32) int64

	// IterateShared exists from 4.7.
	IterateShared func(f *File) Status

	// Fadvise exists from 4.19.
	Fadvise func(f *File, offset, length int64, advice int32) Status

	// RemapFileRange exists from 4.20.
	RemapFileRange func(in *File, posIn int64, out *File, posOut int64, length int64, flags uint32) int64

	// Iopoll exists from 5.1.
	Iopoll func(f *File, spin bool) Status
}

// versionedSlot describes a slot that is only present in a range of host
// releases, [since, until). A zero bound is open.
type versionedSlot struct {
	name  string
	since Version
	until Version
	set   func(*FileOperations) bool
}

var versionedSlots = []versionedSlot{
	{"aio_fsync", Version{}, Version{Major: 4, Minor: 9}, func(f *FileOperations) bool { return f.AioFsync != nil }},
	{"copy_file_range", Version{Major: 4, Minor: 5}, Version{}, func(f *FileOperations) bool { return f.CopyFileRange != nil }},
	{"iterate_shared", Version{Major: 4, Minor: 7}, Version{}, func(f *FileOperations) bool { return f.IterateShared != nil }},
	{"fadvise", Version{Major: 4, Minor: 19}, Version{}, func(f *FileOperations) bool { return f.Fadvise != nil }},
	{"remap_file_range", Version{Major: 4, Minor: 20}, Version{}, func(f *FileOperations) bool { return f.RemapFileRange != nil }},
	{"iopoll", Version{Major: 5, Minor: 1}, Version{}, func(f *FileOperations) bool { return f.Iopoll != nil }},
}

// Validate returns an error if ops populates a slot that does not exist in
// host release v.
func (ops *FileOperations) Validate(v Version) error {
	for _, s := range versionedSlots {
		if !s.set(ops) {
			continue
		}
		if s.since != (Version{}) && !v.AtLeast(s.since.Major, s.since.Minor) {
			return fmt.Errorf("slot %s requires host %d.%d, running %v", s.name, s.since.Major, s.since.Minor, v)
		}
		if s.until != (Version{}) && v.AtLeast(s.until.Major, s.until.Minor) {
			return fmt.Errorf("slot %s was removed in host %d.%d, running %v", s.name, s.until.Major, s.until.Minor, v)
		}
	}
	return nil
}
