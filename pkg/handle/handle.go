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

// Package handle hands ownership of Go values to the host.
//
// The host stores per-object state as an opaque address. Go values never
// cross the boundary themselves: Put allocates a host cookie and records
// the value under it, and the cookie is what the host stores. The callback
// that receives the cookie back recovers the value with Get (borrow) or Take
// (ownership returns to Go, the cookie is freed). The type parameter of
// Get and Take is fixed by the callback table the cookie was stored through,
// so no runtime type tag travels with the cookie.
package handle

import (
	"fmt"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/alloc"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/sync"
)

// cookieSize is the size of the host allocation backing a cookie.
const cookieSize = 8

type entry struct {
	value any
	alloc *alloc.Allocator
}

var (
	// mu protects live.
	mu sync.Mutex

	// live maps cookies handed to the host to the values they own.
	live = make(map[host.Addr]entry)
)

// Put transfers ownership of v to the host and returns the cookie to store
// in host state. It returns zero if the allocation failed.
func Put[T any](a *alloc.Allocator, v T) host.Addr {
	cookie := a.Alloc(cookieSize)
	if cookie == 0 {
		return 0
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := live[cookie]; ok {
		panic(fmt.Sprintf("handle: host returned live cookie %#x", cookie))
	}
	live[cookie] = entry{value: v, alloc: a}
	return cookie
}

// Get borrows the value owned by cookie. It returns false if cookie is not
// live or does not own a T.
func Get[T any](cookie host.Addr) (T, bool) {
	mu.Lock()
	e, ok := live[cookie]
	mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Take returns ownership of the value owned by cookie to the caller and
// frees the cookie. Taking a cookie that is not live, including one taken
// before, returns EBADF; so does taking it as the wrong type, in which case
// the cookie stays live.
func Take[T any](cookie host.Addr) (T, error) {
	var zero T
	mu.Lock()
	e, ok := live[cookie]
	if !ok {
		mu.Unlock()
		return zero, linuxerr.EBADF
	}
	v, ok := e.value.(T)
	if !ok {
		mu.Unlock()
		log.Warningf("handle: cookie %#x owns %T, not %T", cookie, e.value, zero)
		return zero, linuxerr.EBADF
	}
	delete(live, cookie)
	mu.Unlock()

	e.alloc.Dealloc(cookie)
	return v, nil
}

// Live returns the number of cookies currently owned by the host.
func Live() int {
	mu.Lock()
	defer mu.Unlock()
	return len(live)
}
