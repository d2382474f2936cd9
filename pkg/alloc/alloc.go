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

// Package alloc routes the extension's host memory requests to the host's
// single resize-or-allocate primitive.
//
// The host exposes no general free store. Everything an extension hands to
// the host by address (per-handle cookies, super block info) is allocated
// here, with the GFP_KERNEL class. Running out of host memory is fatal: an
// extension cannot safely continue with a half-built host object.
package alloc

import (
	"fmt"
	"sync/atomic"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/log"
)

// OnExhausted is called when the host fails an allocation. The default logs
// and terminates the process without unwinding; tests replace it.
var OnExhausted = func(size uint64) {
	log.Fatalf("host allocation of %d bytes failed", size)
}

// Allocator allocates host memory.
type Allocator struct {
	h host.Allocator

	// live counts allocations not yet freed.
	live atomic.Int64
}

// New returns an Allocator backed by h.
func New(h host.Allocator) *Allocator {
	return &Allocator{h: h}
}

// Alloc returns a fresh host allocation of size bytes.
//
// If the host is exhausted, OnExhausted is called. Alloc only returns zero
// if OnExhausted returns.
func (a *Allocator) Alloc(size uint64) host.Addr {
	p := a.h.Krealloc(0, size, host.GFP_KERNEL)
	if p == 0 {
		OnExhausted(size)
		return 0
	}
	a.live.Add(1)
	return p
}

// Realloc resizes the allocation at p. A zero p allocates. Exhaustion is
// handled as in Alloc; the old allocation is left intact in that case.
func (a *Allocator) Realloc(p host.Addr, size uint64) host.Addr {
	np := a.h.Krealloc(p, size, host.GFP_KERNEL)
	if np == 0 {
		OnExhausted(size)
		return 0
	}
	if p == 0 {
		a.live.Add(1)
	}
	return np
}

// Dealloc frees an allocation returned by Alloc or Realloc. Freeing zero is
// a no-op.
func (a *Allocator) Dealloc(p host.Addr) {
	if p == 0 {
		return
	}
	a.h.Kfree(p)
	a.live.Add(-1)
}

// Live returns the number of allocations made through a that were not
// freed yet.
func (a *Allocator) Live() int64 {
	return a.live.Load()
}

// installed is the process-wide allocator.
var installed atomic.Pointer[Allocator]

// Install makes a the process-wide allocator. The allocator lives for the
// whole process: installing a second, different allocator panics.
// Reinstalling the same allocator is a no-op.
func Install(a *Allocator) {
	if installed.CompareAndSwap(nil, a) {
		return
	}
	if prev := installed.Load(); prev != a {
		panic(fmt.Sprintf("alloc: allocator %p already installed, cannot install %p", prev, a))
	}
}

// Default returns the process-wide allocator. It panics if none is
// installed.
func Default() *Allocator {
	a := installed.Load()
	if a == nil {
		panic("alloc: no allocator installed")
	}
	return a
}

// Uninstall removes the process-wide allocator and returns it. It is only
// used by hosts tearing down a simulated process.
func Uninstall() *Allocator {
	return installed.Swap(nil)
}
