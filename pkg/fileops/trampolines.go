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

package fileops

import (
	"math"
	"time"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/alloc"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/handle"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/usermem"
)

// warn reports problems found while servicing host callbacks. Callbacks
// are driven by the host's users, so it is rate limited.
var warn = log.BasicRateLimitedLogger(time.Second)

// status converts err to the host's return convention.
func status(op string, err error) int64 {
	s, ok := linuxerr.ToStatus(err)
	if !ok {
		warn.Warningf("fileops: %s returned untranslatable error %q, reporting EIO", op, err)
	}
	return s
}

// lookup recovers the value owned by f.
func lookup[T any, PT Opener[T]](op string, f *host.File) (PT, bool) {
	v, ok := handle.Get[PT](f.PrivateData)
	if !ok {
		warn.Warningf("fileops: %s on %T for file without live private data %#x", op, v, f.PrivateData)
	}
	return v, ok
}

// abandon releases a value that never became reachable from the host.
func abandon[T any, PT Opener[T]](v PT) {
	if r, ok := any(v).(Releaser); ok {
		r.Release()
	}
}

func openTrampoline[T any, PT Opener[T]](_ *host.Inode, f *host.File) host.Status {
	v := PT(new(T))
	if err := v.Open(&File{f: f}); err != nil {
		// Open may have set up state before failing.
		abandon[T](v)
		return host.Status(status("open", err))
	}
	cookie := handle.Put(alloc.Default(), v)
	if cookie == 0 {
		abandon[T](v)
		return linuxerr.ENOMEM.Status()
	}
	f.PrivateData = cookie
	return 0
}

func releaseTrampoline[T any, PT Opener[T]](_ *host.Inode, f *host.File) host.Status {
	cookie := f.PrivateData
	f.PrivateData = 0
	v, err := handle.Take[PT](cookie)
	if err != nil {
		warn.Warningf("fileops: release of %T with private data %#x: %v", v, cookie, err)
		return host.Status(status("release", err))
	}
	if r, ok := any(v).(Releaser); ok {
		r.Release()
	}
	return 0
}

// offsetFromRaw validates the host position of a read or write. Unsigned
// offsets are not supported, so the position must be in [0, 2^63).
func offsetFromRaw(pos *int64) (uint64, error) {
	if *pos < 0 {
		return 0, linuxerr.EINVAL
	}
	return uint64(*pos), nil
}

// advance adds n to *pos, failing with EINVAL if that overflows.
func advance(pos *int64, n uint64) (int64, error) {
	if n > math.MaxInt64 || *pos > math.MaxInt64-int64(n) {
		return 0, linuxerr.EINVAL
	}
	*pos += int64(n)
	return int64(n), nil
}

func readTrampoline[T any, PT Opener[T]](f *host.File, buf host.Addr, count uint64, pos *int64) int64 {
	v, ok := lookup[T, PT]("read", f)
	if !ok {
		return int64(linuxerr.EBADF.Status())
	}
	off, err := offsetFromRaw(pos)
	if err != nil {
		return status("read", err)
	}
	s, err := usermem.NewSlice(host.Bound(), buf, count)
	if err != nil {
		return status("read", err)
	}
	w := s.Writer()
	if err := any(v).(Reader).Read(&File{f: f}, w, off); err != nil {
		return status("read", err)
	}
	n, err := advance(pos, count-w.Len())
	if err != nil {
		return status("read", err)
	}
	return n
}

func writeTrampoline[T any, PT Opener[T]](f *host.File, buf host.Addr, count uint64, pos *int64) int64 {
	v, ok := lookup[T, PT]("write", f)
	if !ok {
		return int64(linuxerr.EBADF.Status())
	}
	off, err := offsetFromRaw(pos)
	if err != nil {
		return status("write", err)
	}
	s, err := usermem.NewSlice(host.Bound(), buf, count)
	if err != nil {
		return status("write", err)
	}
	r := s.Reader()
	if err := any(v).(Writer).Write(&File{f: f}, r, off); err != nil {
		return status("write", err)
	}
	n, err := advance(pos, count-r.Len())
	if err != nil {
		return status("write", err)
	}
	return n
}

func llseekTrampoline[T any, PT Opener[T]](f *host.File, offset int64, whence int32) int64 {
	v, ok := lookup[T, PT]("llseek", f)
	if !ok {
		return int64(linuxerr.EBADF.Status())
	}
	from, err := fromRaw(offset, whence)
	if err != nil {
		return status("llseek", err)
	}
	newPos, err := any(v).(Seeker).Seek(&File{f: f}, from)
	if err != nil {
		return status("llseek", err)
	}
	if newPos > math.MaxInt64 {
		return status("llseek", linuxerr.EINVAL)
	}
	f.Pos = int64(newPos)
	return int64(newPos)
}
