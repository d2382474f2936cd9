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
	"github.com/google/btree"

	"gvisor.dev/kmod/pkg/abi/host"
)

// User address space layout.
const (
	// UserBase is the lowest address Map hands out.
	UserBase host.Addr = 0x10000

	// UserLimit is the end of the user address range. AccessOK fails for
	// any range reaching past it.
	UserLimit host.Addr = 0x7ffffffff000

	pageSize = 0x1000
)

// mapping is a mapped range of user memory.
type mapping struct {
	start host.Addr
	data  []byte
}

func (m mapping) end() host.Addr {
	return m.start + host.Addr(len(m.data))
}

// addressSpace is the user address space. Mappings are indexed by start
// address and never overlap.
type addressSpace struct {
	mappings *btree.BTreeG[mapping]

	// next is where the next mapping is placed. A guard page is left
	// between mappings.
	next host.Addr
}

func (as *addressSpace) init() {
	as.mappings = btree.NewG[mapping](8, func(a, b mapping) bool { return a.start < b.start })
	as.next = UserBase
}

// find returns the mapping containing addr.
func (as *addressSpace) find(addr host.Addr) (mapping, bool) {
	var found mapping
	ok := false
	as.mappings.DescendLessOrEqual(mapping{start: addr}, func(m mapping) bool {
		found, ok = m, addr < m.end()
		return false
	})
	return found, ok
}

// walk calls fn for each mapped chunk of [addr, addr+n), in order, until
// the first unmapped byte. It returns the number of bytes visited.
func (as *addressSpace) walk(addr host.Addr, n int, fn func(chunk []byte, done int)) int {
	done := 0
	for done < n {
		m, ok := as.find(addr + host.Addr(done))
		if !ok {
			break
		}
		off := int(addr + host.Addr(done) - m.start)
		k := min(n-done, len(m.data)-off)
		fn(m.data[off:off+k], done)
		done += k
	}
	return done
}

// AccessOK implements host.Memory.AccessOK. Like the real primitive it
// only checks that the range lies below UserLimit; whether it is mapped is
// only discovered by the copy primitives.
func (h *Host) AccessOK(addr host.Addr, length uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpAccessOK, "")
	end, ok := addr.AddLength(length)
	return ok && end <= UserLimit
}

// CopyFromUser implements host.Memory.CopyFromUser. Bytes that could not
// be copied are zeroed in dst.
func (h *Host) CopyFromUser(dst []byte, src host.Addr) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpCopyFromUser, ""); s != 0 {
		clear(dst)
		return uint64(len(dst))
	}
	done := h.mem.walk(src, len(dst), func(chunk []byte, done int) {
		copy(dst[done:], chunk)
	})
	clear(dst[done:])
	return uint64(len(dst) - done)
}

// CopyToUser implements host.Memory.CopyToUser.
func (h *Host) CopyToUser(dst host.Addr, src []byte) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpCopyToUser, ""); s != 0 {
		return uint64(len(src))
	}
	done := h.mem.walk(dst, len(src), func(chunk []byte, done int) {
		copy(chunk, src[done:])
	})
	return uint64(len(src) - done)
}

// Map maps a new user memory region initialized with data and returns its
// address.
func (h *Host) Map(data []byte) host.Addr {
	return h.MapSize(data, len(data))
}

// MapSize maps a new region of size bytes, initialized with data.
func (h *Host) MapSize(data []byte, size int) host.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := mapping{start: h.mem.next, data: make([]byte, size)}
	copy(m.data, data)
	h.mem.mappings.ReplaceOrInsert(m)
	pages := (host.Addr(size) + pageSize - 1) / pageSize
	h.mem.next += (pages + 1) * pageSize
	return m.start
}

// Unmap removes the mapping starting at addr. Later copies touching it
// fault.
func (h *Host) Unmap(addr host.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.mem.mappings.Delete(mapping{start: addr}); !ok {
		h.problemLocked("unmap of unmapped address %#x", addr)
	}
}

// Peek returns a copy of n bytes of user memory at addr. ok is false if
// any of it is unmapped.
func (h *Host) Peek(addr host.Addr, n int) (data []byte, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data = make([]byte, n)
	done := h.mem.walk(addr, n, func(chunk []byte, done int) {
		copy(data[done:], chunk)
	})
	return data, done == n
}
