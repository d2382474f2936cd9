// Copyright 2021 The gVisor Authors.
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

package linuxerr

import (
	goerrors "errors"

	"golang.org/x/sys/unix"
	"gvisor.dev/kmod/pkg/errors"
	"gvisor.dev/kmod/pkg/sync"
)

var (
	// ErrWouldBlock is an internal error used to indicate that an operation
	// cannot be satisfied immediately, and should be retried at a later
	// time.
	ErrWouldBlock = errors.New(unix.EWOULDBLOCK, "request would block")

	// ErrInterrupted is returned if a request is interrupted before it can
	// complete.
	ErrInterrupted = errors.New(unix.EINTR, "request was interrupted")
)

var errorMap = map[error]*errors.Error{
	ErrWouldBlock:  EWOULDBLOCK,
	ErrInterrupted: EINTR,
}

var (
	unwrappersMu sync.RWMutex

	// errorUnwrappers is an array of unwrap functions to extract typed
	// errors.
	errorUnwrappers []func(error) (*errors.Error, bool)
)

// AddErrorUnwrapper registers an unwrap method that can extract a concrete error
// from a typed, but not initialized, error.
func AddErrorUnwrapper(unwrap func(e error) (*errors.Error, bool)) {
	unwrappersMu.Lock()
	defer unwrappersMu.Unlock()
	errorUnwrappers = append(errorUnwrappers, unwrap)
}

// TranslateError translates errors to errnos, it will return false if
// the error was not registered.
func TranslateError(from error) (*errors.Error, bool) {
	for sentinel, err := range errorMap {
		if goerrors.Is(from, sentinel) {
			return err, true
		}
	}
	// Try to unwrap the error if we couldn't match an error
	// exactly.  This might mean that a package has its own
	// error type.
	unwrappersMu.RLock()
	defer unwrappersMu.RUnlock()
	for _, unwrap := range errorUnwrappers {
		if err, ok := unwrap(from); ok {
			return err, true
		}
	}
	return nil, false
}
