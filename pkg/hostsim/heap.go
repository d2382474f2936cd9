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

	"gvisor.dev/kmod/pkg/abi/host"
)

// kernelBase is the start of the simulated kernel heap. Heap addresses
// never pass AccessOK.
const kernelBase host.Addr = 0xffff888000000000

// heap is the kernel heap behind Krealloc and Kfree.
type heap struct {
	// budget is the maximum of inUse; zero is unlimited.
	budget uint64
	inUse  uint64
	allocs map[host.Addr]uint64
	next   host.Addr
}

func (hp *heap) init(budget uint64) {
	hp.budget = budget
	hp.allocs = make(map[host.Addr]uint64)
	hp.next = kernelBase
}

func (hp *heap) fits(size uint64) bool {
	return hp.budget == 0 || hp.inUse+size <= hp.budget
}

func (hp *heap) alloc(size uint64) host.Addr {
	p := hp.next
	hp.next += host.Addr((size + 15) &^ 15)
	if size == 0 {
		hp.next += 16
	}
	hp.allocs[p] = size
	hp.inUse += size
	return p
}

func (hp *heap) free(p host.Addr) bool {
	size, ok := hp.allocs[p]
	if !ok {
		return false
	}
	delete(hp.allocs, p)
	hp.inUse -= size
	return true
}

// Krealloc implements host.Allocator.Krealloc. Reallocation always moves
// the block.
func (h *Host) Krealloc(p host.Addr, size uint64, flags host.GFP) host.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpKrealloc, fmt.Sprintf("%#x, %d, %#x", p, size, flags)); s != 0 {
		return 0
	}
	old, ok := h.heap.allocs[p]
	if p != 0 && !ok {
		h.problemLocked("krealloc of unallocated address %#x", p)
		return 0
	}
	if !h.heap.fits(size - min(size, old)) {
		return 0
	}
	np := h.heap.alloc(size)
	if p != 0 {
		h.heap.free(p)
	}
	return np
}

// Kfree implements host.Allocator.Kfree.
func (h *Host) Kfree(p host.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpKfree, fmt.Sprintf("%#x", p))
	if p == 0 {
		return
	}
	if !h.heap.free(p) {
		h.problemLocked("kfree of unallocated address %#x", p)
	}
}

// HeapInUse returns the number of live heap allocations and their total
// size.
func (h *Host) HeapInUse() (allocs int, bytes uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.heap.allocs), h.heap.inUse
}
