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

package filesystem

import (
	"reflect"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/alloc"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/handle"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/sync"
)

// SuperBlock is a view of a host super block with private info of type I.
// It is only valid for the duration of the callback it was passed to.
type SuperBlock[I any] struct {
	h  host.Filesystems
	sb *host.SuperBlock
}

// FSInfo returns the private info, or false if none is attached. The info
// stays owned by the super block.
func (s *SuperBlock[I]) FSInfo() (*I, bool) {
	if s.sb.FSInfo == 0 {
		return nil, false
	}
	return handle.Get[*I](s.sb.FSInfo)
}

// ReplaceFSInfo attaches info, which may be nil, and returns the
// previously attached info. The super block owns info from now on.
func (s *SuperBlock[I]) ReplaceFSInfo(info *I) *I {
	var old *I
	if s.sb.FSInfo != 0 {
		v, err := handle.Take[*I](s.sb.FSInfo)
		if err != nil {
			log.Warningf("filesystem: super block private info %#x: %v", s.sb.FSInfo, err)
		}
		old = v
		s.sb.FSInfo = 0
	}
	if info != nil {
		s.sb.FSInfo = handle.Put(alloc.Default(), info)
	}
	return old
}

// SetMagic sets the magic number reported by statfs(2).
func (s *SuperBlock[I]) SetMagic(magic uint64) {
	s.sb.Magic = magic
}

// Magic returns the magic number.
func (s *SuperBlock[I]) Magic() uint64 {
	return s.sb.Magic
}

// SetOps installs super block operations.
func (s *SuperBlock[I]) SetOps(ops *SuperOperationsTable[I]) {
	s.sb.Ops = &ops.ops
}

// MakeRootDir creates the root directory inode, numbered ino, and makes
// it the root of the super block. It fails with ENOMEM if the host could
// not allocate it.
func (s *SuperBlock[I]) MakeRootDir(ino uint64) error {
	inode, st := s.h.NewInode(s.sb)
	if st != 0 {
		return linuxerr.FromStatus(int64(st))
	}
	inode.Ino = ino
	inode.Mode = host.S_IFDIR | 0o755
	if st := s.h.DMakeRoot(inode); st != 0 {
		return linuxerr.ENOMEM
	}
	return nil
}

// SuperOperations are the optional operations of a super block with
// private info of type I. Implementations are typically empty structs;
// methods are called on the zero value.
type SuperOperations[I any] interface {
	// PutSuper is called when the super block is torn down. It should drop
	// the private info.
	PutSuper(sb *SuperBlock[I])
}

// SuperOperationsTable is the host table of a SuperOperations type.
type SuperOperationsTable[I any] struct {
	ops host.SuperOperations
}

// superTables caches tables by SuperOperations type.
var superTables sync.Map

// BuildSuperOperations returns the table of S. It is built on first use
// and shared afterwards.
func BuildSuperOperations[I any, S SuperOperations[I]]() *SuperOperationsTable[I] {
	typ := reflect.TypeFor[S]()
	if t, ok := superTables.Load(typ); ok {
		return t.(*SuperOperationsTable[I])
	}
	t := &SuperOperationsTable[I]{}
	t.ops.PutSuper = func(sb *host.SuperBlock) {
		var ops S
		ops.PutSuper(&SuperBlock[I]{h: host.Bound(), sb: sb})
	}
	actual, _ := superTables.LoadOrStore(typ, t)
	return actual.(*SuperOperationsTable[I])
}
