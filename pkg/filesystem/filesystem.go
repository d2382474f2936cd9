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

// Package filesystem registers filesystem types with the host.
//
// A filesystem type implements FileSystem. Every mount creates a host
// super block and calls FillSuper on it, which typically installs the
// filesystem's private info, its super block operations and a root
// directory:
//
//	func (testfs) FillSuper(sb *filesystem.SuperBlock[info], data []byte, silent bool) error {
//		sb.ReplaceFSInfo(&info{})
//		sb.SetOps(filesystem.BuildSuperOperations[info, superOps]())
//		sb.SetMagic(0xdeadc0de)
//		return sb.MakeRootDir(1)
//	}
//
// The super block owns the private info. It is dropped by ReplaceFSInfo
// with nil, or when the super block is killed.
package filesystem

import (
	"strings"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/sync"
)

// Flags are filesystem type flags.
type Flags int32

// Filesystem type flags.
const (
	RequiresDev     Flags = host.FS_REQUIRES_DEV
	BinaryMountData Flags = host.FS_BINARY_MOUNTDATA
	HasSubtype      Flags = host.FS_HAS_SUBTYPE
	UsernsMount     Flags = host.FS_USERNS_MOUNT
	RenameDoesDMove Flags = host.FS_RENAME_DOES_D_MOVE

	allFlags = RequiresDev | BinaryMountData | HasSubtype | UsernsMount | RenameDoesDMove
)

// FileSystem is a filesystem type whose super blocks carry private info of
// type I.
type FileSystem[I any] interface {
	// Name is the type name passed to mount(2).
	Name() string

	// Flags returns the type flags.
	Flags() Flags

	// FillSuper initializes a new super block. silent is set for mounts
	// that asked not to log errors. If FillSuper fails, the super block is
	// killed and its private info dropped.
	FillSuper(sb *SuperBlock[I], data []byte, silent bool) error
}

// Registration is a registered filesystem type.
type Registration struct {
	h    host.Filesystems
	fs   *host.FileSystemType
	once sync.Once
}

// Register makes fs available for mounting.
func Register[I any](h host.Filesystems, fs FileSystem[I]) (*Registration, error) {
	name := fs.Name()
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return nil, linuxerr.EINVAL
	}
	if fs.Flags()&^allFlags != 0 {
		return nil, linuxerr.EINVAL
	}

	r := &Registration{
		h: h,
		fs: &host.FileSystemType{
			Name:    name,
			FsFlags: int32(fs.Flags()),
			Owner:   name,
		},
	}
	fill := func(sb *host.SuperBlock, data []byte, silent int32) host.Status {
		return fillSuper(h, fs, sb, data, silent != 0)
	}
	r.fs.Mount = func(fst *host.FileSystemType, flags int32, _ string, data []byte) (*host.SuperBlock, host.Status) {
		return h.MountNodev(fst, flags, data, fill)
	}
	r.fs.KillSB = func(sb *host.SuperBlock) {
		killSB[I](h, sb)
	}

	if s := h.RegisterFilesystem(r.fs); s != 0 {
		return nil, linuxerr.FromStatus(int64(s))
	}
	log.Debugf("filesystem %q: registered", name)
	return r, nil
}

// Name returns the type name.
func (r *Registration) Name() string {
	return r.fs.Name
}

// Close unregisters the filesystem type. Only the first call has an
// effect. A type the host refuses to unregister would keep calling into
// the extension after it is gone, so that failure is fatal.
func (r *Registration) Close() {
	r.once.Do(func() {
		if s := r.h.UnregisterFilesystem(r.fs); s != 0 {
			log.Fatalf("filesystem %q: unregister failed: %v", r.fs.Name, linuxerr.FromStatus(int64(s)))
			return
		}
		log.Debugf("filesystem %q: unregistered", r.fs.Name)
	})
}

func fillSuper[I any](h host.Filesystems, fs FileSystem[I], sb *host.SuperBlock, data []byte, silent bool) host.Status {
	err := fs.FillSuper(&SuperBlock[I]{h: h, sb: sb}, data, silent)
	if err == nil {
		return 0
	}
	s, ok := linuxerr.ToStatus(err)
	if !ok {
		log.Warningf("filesystem %q: fill_super returned untranslatable error %q, reporting EIO", fs.Name(), err)
	}
	return host.Status(s)
}

// killSB tears down sb and drops private info that is still attached.
func killSB[I any](h host.Filesystems, sb *host.SuperBlock) {
	h.KillLitterSuper(sb)
	s := &SuperBlock[I]{h: h, sb: sb}
	if old := s.ReplaceFSInfo(nil); old != nil {
		log.Debugf("filesystem %q: dropped private info of killed super block", sb.Type.Name)
	}
}
