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

// Package fileops turns a Go type into a host file operations table.
//
// A file type is a struct whose pointer implements Opener. It may also
// implement any of Reader, Writer, Seeker and Releaser; Build fills exactly
// the host slots for the capabilities the type has and leaves the others
// nil, which the host reports as unsupported:
//
//	type cycleFile struct{}
//
//	func (*cycleFile) Open(*fileops.File) error { return nil }
//
//	func (*cycleFile) Read(f *fileops.File, w *usermem.Writer, off uint64) error {
//		...
//	}
//
//	vt := fileops.Build[cycleFile]()
//
// One value of the type exists per open host file. The host may call into
// it from several goroutines at once; any mutable state needs its own
// synchronization.
package fileops

import (
	"fmt"
	"math"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/usermem"
)

// Opener is the constraint every file type satisfies: *T with an Open
// method. Open initializes a zero T for a newly opened host file.
type Opener[T any] interface {
	*T
	Open(f *File) error
}

// Reader is implemented by file types that support read.
type Reader interface {
	// Read writes file contents starting at offset off to w. The number of
	// bytes written to w is reported to the host.
	Read(f *File, w *usermem.Writer, off uint64) error
}

// Writer is implemented by file types that support write.
type Writer interface {
	// Write consumes data from r, to be stored at offset off. The number
	// of bytes consumed from r is reported to the host.
	Write(f *File, r *usermem.Reader, off uint64) error
}

// Seeker is implemented by file types that support llseek.
type Seeker interface {
	// Seek returns the new file position. The host position is updated to
	// it on success.
	Seek(f *File, from SeekFrom) (uint64, error)
}

// Releaser is implemented by file types that need to run code when their
// host file is released. Release is called exactly once, after which the
// value is no longer reachable from the host.
type Releaser interface {
	Release()
}

// FileFlags are file status flags.
type FileFlags uint32

// NONBLOCK is set for files opened with O_NONBLOCK.
const NONBLOCK = FileFlags(host.O_NONBLOCK)

// Has returns true if all of want are set.
func (f FileFlags) Has(want FileFlags) bool {
	return f&want == want
}

// File is a view of the host file a callback was invoked for. It is only
// valid for the duration of the callback.
type File struct {
	f *host.File
}

// Pos returns the file position.
func (f *File) Pos() uint64 {
	return uint64(f.f.Pos)
}

// Flags returns the file status flags known to kmod.
func (f *File) Flags() FileFlags {
	return FileFlags(f.f.Flags) & NONBLOCK
}

// Whence selects what a SeekFrom is relative to.
type Whence int

// Whence values.
const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// SeekFrom is a seek request.
type SeekFrom struct {
	Whence Whence

	// Pos is the absolute target of a SeekStart request.
	Pos uint64

	// Offset is the relative target of SeekCurrent and SeekEnd requests.
	Offset int64
}

// Start seeks to pos.
func Start(pos uint64) SeekFrom {
	return SeekFrom{Whence: SeekStart, Pos: pos}
}

// Current seeks relative to the current position.
func Current(offset int64) SeekFrom {
	return SeekFrom{Whence: SeekCurrent, Offset: offset}
}

// End seeks relative to the end of the file.
func End(offset int64) SeekFrom {
	return SeekFrom{Whence: SeekEnd, Offset: offset}
}

// fromRaw converts the arguments of the host's llseek slot. A negative
// absolute offset is rejected since unsigned offsets are not supported.
func fromRaw(offset int64, whence int32) (SeekFrom, error) {
	switch whence {
	case host.SEEK_SET:
		if offset < 0 {
			return SeekFrom{}, linuxerr.EINVAL
		}
		return Start(uint64(offset)), nil
	case host.SEEK_CUR:
		return Current(offset), nil
	case host.SEEK_END:
		return End(offset), nil
	default:
		return SeekFrom{}, linuxerr.EINVAL
	}
}

// Raw converts s into the arguments of the host's llseek slot. Absolute
// positions above math.MaxInt64 are not representable and return EINVAL.
func (s SeekFrom) Raw() (offset int64, whence int32, err error) {
	switch s.Whence {
	case SeekStart:
		if s.Pos > math.MaxInt64 {
			return 0, 0, linuxerr.EINVAL
		}
		return int64(s.Pos), host.SEEK_SET, nil
	case SeekCurrent:
		return s.Offset, host.SEEK_CUR, nil
	case SeekEnd:
		return s.Offset, host.SEEK_END, nil
	default:
		return 0, 0, linuxerr.EINVAL
	}
}

// String implements fmt.Stringer.
func (s SeekFrom) String() string {
	switch s.Whence {
	case SeekStart:
		return fmt.Sprintf("Start(%d)", s.Pos)
	case SeekCurrent:
		return fmt.Sprintf("Current(%d)", s.Offset)
	case SeekEnd:
		return fmt.Sprintf("End(%d)", s.Offset)
	default:
		return fmt.Sprintf("SeekFrom(%d)", s.Whence)
	}
}
