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

// Package rcu brackets read-side critical sections of the host's RCU
// protected structures.
//
// While a ReadGuard is held, objects reachable through RCU protected
// pointers are not freed. Code running under a guard must not block or
// sleep, and must never wait for a grace period itself: a writer waiting
// for readers to finish would stall, and waiting from inside a read-side
// section deadlocks. This is a calling contract; nothing checks it.
//
// Guards nest.
package rcu

import (
	"sync/atomic"

	"gvisor.dev/kmod/pkg/abi/host"
)

// ReadGuard is a held read-side critical section.
type ReadGuard struct {
	h host.RCU

	// held is cleared by Unlock.
	held atomic.Bool
}

// ReadLock enters a read-side critical section. The returned guard must be
// released with Unlock, typically deferred:
//
//	g := rcu.ReadLock(h)
//	defer g.Unlock()
func ReadLock(h host.RCU) *ReadGuard {
	h.RCUReadLock()
	g := &ReadGuard{h: h}
	g.held.Store(true)
	return g
}

// Unlock leaves the critical section.
//
// Precondition: Unlock was not called before.
func (g *ReadGuard) Unlock() {
	if !g.held.CompareAndSwap(true, false) {
		panic("rcu: unlock of unlocked ReadGuard")
	}
	g.h.RCUReadUnlock()
}

// Held returns true until Unlock is called.
func (g *ReadGuard) Held() bool {
	return g.held.Load()
}

// AssertHeld panics if g was released. Views of RCU protected objects call
// it before every access.
func (g *ReadGuard) AssertHeld() {
	if !g.Held() {
		panic("rcu: protected object used after its ReadGuard was released")
	}
}
