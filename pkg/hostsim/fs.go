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
	"fmt"
	"slices"
	"strings"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
)

// MS_SILENT is the mount flag asking filesystems not to log fill errors.
const MS_SILENT = 0x8000

type mount struct {
	sb      *host.SuperBlock
	devName string
}

// fsTable holds registered filesystem types and mounts.
type fsTable struct {
	// types is in registration order.
	types   []*host.FileSystemType
	mounts  map[int]*mount
	nextID  int
	nextIno uint64
}

func (t *fsTable) init() {
	t.mounts = make(map[int]*mount)
	t.nextID = 1
	t.nextIno = 1
}

func (t *fsTable) lookup(name string) *host.FileSystemType {
	for _, fs := range t.types {
		if fs.Name == name {
			return fs
		}
	}
	return nil
}

// RegisterFilesystem implements host.Filesystems.RegisterFilesystem.
func (h *Host) RegisterFilesystem(fs *host.FileSystemType) host.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpRegisterFilesystem, fs.Name); s != 0 {
		return s
	}
	if fs.Name == "" || strings.ContainsRune(fs.Name, '.') {
		return linuxerr.EINVAL.Status()
	}
	if h.fs.lookup(fs.Name) != nil {
		return linuxerr.EBUSY.Status()
	}
	h.fs.types = append(h.fs.types, fs)
	return 0
}

// UnregisterFilesystem implements host.Filesystems.UnregisterFilesystem.
func (h *Host) UnregisterFilesystem(fs *host.FileSystemType) host.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpUnregisterFilesystem, fs.Name); s != 0 {
		return s
	}
	i := slices.Index(h.fs.types, fs)
	if i < 0 {
		h.problemLocked("unregister of unknown filesystem %q", fs.Name)
		return linuxerr.EINVAL.Status()
	}
	for _, m := range h.fs.mounts {
		if m.sb.Type == fs {
			h.problemLocked("unregister of mounted filesystem %q", fs.Name)
		}
	}
	h.fs.types = slices.Delete(h.fs.types, i, i+1)
	return 0
}

// MountNodev implements host.Filesystems.MountNodev. If fill fails, the
// half built super block is torn down through the type's KillSB.
func (h *Host) MountNodev(fs *host.FileSystemType, flags int32, data []byte, fill host.FillSuperFunc) (*host.SuperBlock, host.Status) {
	if s := h.record(OpMountNodev, fs.Name); s != 0 {
		return nil, s
	}
	sb := &host.SuperBlock{Type: fs, Flags: flags}
	var silent int32
	if flags&MS_SILENT != 0 {
		silent = 1
	}
	if s := fill(sb, data, silent); s != 0 {
		if fs.KillSB != nil {
			fs.KillSB(sb)
		}
		return nil, s
	}
	return sb, 0
}

// KillLitterSuper implements host.Filesystems.KillLitterSuper. PutSuper is
// only called for super blocks that got a root.
func (h *Host) KillLitterSuper(sb *host.SuperBlock) {
	h.record(OpKillLitterSuper, sb.Type.Name)
	if sb.Root == nil {
		return
	}
	if sb.Ops != nil && sb.Ops.PutSuper != nil {
		sb.Ops.PutSuper(sb)
	}
	sb.Root = nil
}

// NewInode implements host.Filesystems.NewInode.
func (h *Host) NewInode(sb *host.SuperBlock) (*host.Inode, host.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpNewInode, sb.Type.Name); s != 0 {
		return nil, s
	}
	ino := h.fs.nextIno
	h.fs.nextIno++
	return &host.Inode{Ino: ino, SB: sb}, 0
}

// DMakeRoot implements host.Filesystems.DMakeRoot.
func (h *Host) DMakeRoot(inode *host.Inode) host.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if inode == nil {
		h.recordLocked(OpDMakeRoot, "")
		return linuxerr.ENOMEM.Status()
	}
	if s := h.recordLocked(OpDMakeRoot, fmt.Sprintf("%d", inode.Ino)); s != 0 {
		return s
	}
	inode.SB.Root = inode
	return 0
}

// Filesystem is a registered filesystem type, as listed in
// /proc/filesystems.
type Filesystem struct {
	Name  string
	Nodev bool
}

// Filesystems returns the registered filesystem types in registration
// order.
func (h *Host) Filesystems() []Filesystem {
	h.mu.Lock()
	defer h.mu.Unlock()
	var fss []Filesystem
	for _, fs := range h.fs.types {
		fss = append(fss, Filesystem{Name: fs.Name, Nodev: fs.FsFlags&host.FS_REQUIRES_DEV == 0})
	}
	return fss
}

// ProcFilesystems renders Filesystems like /proc/filesystems does.
func (h *Host) ProcFilesystems() string {
	var b strings.Builder
	for _, fs := range h.Filesystems() {
		if fs.Nodev {
			b.WriteString("nodev")
		}
		fmt.Fprintf(&b, "\t%s\n", fs.Name)
	}
	return b.String()
}

// Mount mounts a filesystem of type fstype, like mount(2), and returns a
// mount ID for Unmount. The root of the new super block must be a
// directory.
func (h *Host) Mount(fstype, devName string, flags int32, data []byte) (int, error) {
	h.mu.Lock()
	fs := h.fs.lookup(fstype)
	h.mu.Unlock()
	if fs == nil {
		return 0, linuxerr.ENODEV
	}
	if fs.FsFlags&host.FS_REQUIRES_DEV != 0 && devName == "" {
		return 0, linuxerr.ENOENT
	}
	if fs.Mount == nil {
		return 0, linuxerr.ENOSYS
	}
	sb, s := fs.Mount(fs, flags, devName, data)
	if s != 0 {
		return 0, linuxerr.FromStatus(int64(s))
	}
	if sb == nil {
		return 0, linuxerr.EIO
	}
	if sb.Root == nil || sb.Root.Mode&host.S_IFDIR == 0 {
		if fs.KillSB != nil {
			fs.KillSB(sb)
		}
		return 0, linuxerr.ENOTDIR
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.fs.nextID
	h.fs.nextID++
	h.fs.mounts[id] = &mount{sb: sb, devName: devName}
	return id, nil
}

// SuperBlock returns the super block of mount id.
func (h *Host) SuperBlock(id int) *host.SuperBlock {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.fs.mounts[id]
	if !ok {
		return nil
	}
	return m.sb
}

// Unmount tears down mount id, like umount(2).
func (h *Host) Unmount(id int) error {
	h.mu.Lock()
	m, ok := h.fs.mounts[id]
	delete(h.fs.mounts, id)
	h.mu.Unlock()
	if !ok {
		return linuxerr.EINVAL
	}
	if kill := m.sb.Type.KillSB; kill != nil {
		kill(m.sb)
	}
	return nil
}
