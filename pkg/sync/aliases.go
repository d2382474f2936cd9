// Copyright 2020 The gVisor Authors.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file or at
// https://developers.google.com/open-source/licenses/bsd.

// Package sync provides the synchronization primitives used throughout
// kmod. All packages import this one instead of the standard library's so
// that lock types can be swapped for instrumented variants in one place.
package sync

import (
	"sync"
)

// Aliases of standard library types.
type (
	// Mutex is an alias of sync.Mutex.
	Mutex = sync.Mutex

	// RWMutex is an alias of sync.RWMutex.
	RWMutex = sync.RWMutex

	// Cond is an alias of sync.Cond.
	Cond = sync.Cond

	// Once is an alias of sync.Once.
	Once = sync.Once

	// Map is an alias of sync.Map. The vtable caches key it by type.
	Map = sync.Map
)

// NewCond is a wrapper around sync.NewCond. The host simulator waits on
// conditions guarded by its own mutex.
func NewCond(l *Mutex) *Cond {
	return sync.NewCond(l)
}
