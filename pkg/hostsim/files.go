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
	"math"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
)

type openFile struct {
	file  *host.File
	inode *host.Inode
}

// fileTable holds the files opened through Open.
type fileTable struct {
	open   map[int]*openFile
	nextFD int
}

func (t *fileTable) init() {
	t.open = make(map[int]*openFile)
	t.nextFD = 3
}

func (h *Host) lookupFD(fd int) (*openFile, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	of, ok := h.files.open[fd]
	if !ok {
		return nil, linuxerr.EBADF
	}
	return of, nil
}

// Open opens the character device dev with the given status flags, like
// open(2) of a device node, and returns a file descriptor.
func (h *Host) Open(dev host.DevT, flags uint32) (int, error) {
	h.mu.Lock()
	c, ok := h.chrdev.cdevs[dev]
	h.mu.Unlock()
	if !ok {
		return -1, linuxerr.ENXIO
	}

	of := &openFile{
		file:  &host.File{Flags: flags, Ops: c.ops},
		inode: &host.Inode{Ino: uint64(dev), Mode: 0o20600, Rdev: dev},
	}
	if c.ops.Open != nil {
		if s := c.ops.Open(of.inode, of.file); s != 0 {
			return -1, linuxerr.FromStatus(int64(s))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	fd := h.files.nextFD
	h.files.nextFD++
	h.files.open[fd] = of
	return fd, nil
}

// File returns the host file behind fd, for tests that need to inspect or
// corrupt its state.
func (h *Host) File(fd int) *host.File {
	of, err := h.lookupFD(fd)
	if err != nil {
		return nil
	}
	return of.file
}

// Close releases fd, like the last close(2) of a file.
func (h *Host) Close(fd int) error {
	h.mu.Lock()
	of, ok := h.files.open[fd]
	delete(h.files.open, fd)
	h.mu.Unlock()
	if !ok {
		return linuxerr.EBADF
	}
	if of.file.Ops.Release != nil {
		if s := of.file.Ops.Release(of.inode, of.file); s != 0 {
			return linuxerr.FromStatus(int64(s))
		}
	}
	return nil
}

// Read reads up to n bytes at the file position of fd, like read(2).
func (h *Host) Read(fd int, n uint64) ([]byte, error) {
	of, err := h.lookupFD(fd)
	if err != nil {
		return nil, err
	}
	return h.read(of, n, &of.file.Pos)
}

// Pread reads up to n bytes at offset off of fd, like pread(2). The file
// position is not used.
func (h *Host) Pread(fd int, n uint64, off int64) ([]byte, error) {
	of, err := h.lookupFD(fd)
	if err != nil {
		return nil, err
	}
	return h.read(of, n, &off)
}

func (h *Host) read(of *openFile, n uint64, pos *int64) ([]byte, error) {
	if of.file.Ops.Read == nil {
		return nil, linuxerr.EINVAL
	}
	// Counts past what a single mapping can hold are refused up front.
	if n > math.MaxInt32 {
		return nil, linuxerr.EINVAL
	}
	buf := h.MapSize(nil, int(n))
	defer h.Unmap(buf)
	r := of.file.Ops.Read(of.file, buf, n, pos)
	if r < 0 {
		return nil, linuxerr.FromStatus(r)
	}
	data, _ := h.Peek(buf, int(r))
	return data, nil
}

// ReadAt calls the read slot of fd directly with a caller supplied buffer
// and count, for tests of bad addresses and oversized counts. It returns
// the raw result.
func (h *Host) ReadAt(fd int, buf host.Addr, count uint64, pos *int64) (int64, error) {
	of, err := h.lookupFD(fd)
	if err != nil {
		return 0, err
	}
	if of.file.Ops.Read == nil {
		return 0, linuxerr.EINVAL
	}
	return of.file.Ops.Read(of.file, buf, count, pos), nil
}

// Write writes data at the file position of fd, like write(2), and
// returns the number of bytes written.
func (h *Host) Write(fd int, data []byte) (int, error) {
	of, err := h.lookupFD(fd)
	if err != nil {
		return 0, err
	}
	return h.write(of, data, &of.file.Pos)
}

// Pwrite writes data at offset off of fd, like pwrite(2).
func (h *Host) Pwrite(fd int, data []byte, off int64) (int, error) {
	of, err := h.lookupFD(fd)
	if err != nil {
		return 0, err
	}
	return h.write(of, data, &off)
}

func (h *Host) write(of *openFile, data []byte, pos *int64) (int, error) {
	if of.file.Ops.Write == nil {
		return 0, linuxerr.EINVAL
	}
	buf := h.Map(data)
	defer h.Unmap(buf)
	r := of.file.Ops.Write(of.file, buf, uint64(len(data)), pos)
	if r < 0 {
		return 0, linuxerr.FromStatus(r)
	}
	return int(r), nil
}

// Seek repositions fd, like lseek(2). Files without an llseek slot are
// not seekable.
func (h *Host) Seek(fd int, offset int64, whence int32) (int64, error) {
	of, err := h.lookupFD(fd)
	if err != nil {
		return 0, err
	}
	if of.file.Ops.Llseek == nil {
		return 0, linuxerr.ESPIPE
	}
	r := of.file.Ops.Llseek(of.file, offset, whence)
	if r < 0 {
		return 0, linuxerr.FromStatus(r)
	}
	return r, nil
}
