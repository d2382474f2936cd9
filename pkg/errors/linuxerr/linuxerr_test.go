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
package linuxerr

import (
	goerrors "errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
	"gvisor.dev/kmod/pkg/errors"
)

func TestToStatus(t *testing.T) {
	type opaque struct{ error }
	for _, tc := range []struct {
		name   string
		err    error
		want   int64
		wantOK bool
	}{
		{"nil", nil, 0, true},
		{"sentinel", EFAULT, -int64(unix.EFAULT), true},
		{"wrapped", fmt.Errorf("reading: %w", EINVAL), -int64(unix.EINVAL), true},
		{"errno", unix.ENOSPC, -int64(unix.ENOSPC), true},
		{"would block", ErrWouldBlock, -int64(unix.EAGAIN), true},
		{"unknown", goerrors.New("boom"), -int64(unix.EIO), false},
		{"opaque", opaque{goerrors.New("boom")}, -int64(unix.EIO), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ToStatus(tc.err)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("ToStatus(%v) = (%d, %t), wanted (%d, %t)", tc.err, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestFromStatus(t *testing.T) {
	if err := FromStatus(0); err != nil {
		t.Errorf("FromStatus(0) = %v, wanted nil", err)
	}
	if err := FromStatus(12); err != nil {
		t.Errorf("FromStatus(12) = %v, wanted nil", err)
	}
	if err := FromStatus(-int64(unix.EBUSY)); err != EBUSY {
		t.Errorf("FromStatus(-EBUSY) = %v, wanted EBUSY", err)
	}
	// Errnos without a sentinel keep their number.
	err := FromStatus(-int64(unix.EXDEV))
	var e *errors.Error
	if !goerrors.As(err, &e) || e.Errno() != unix.EXDEV {
		t.Errorf("FromStatus(-EXDEV) = %v, wanted an error carrying EXDEV", err)
	}
	if got, _ := ToStatus(err); got != -int64(unix.EXDEV) {
		t.Errorf("ToStatus(FromStatus(-EXDEV)) = %d, wanted %d", got, -int64(unix.EXDEV))
	}
}

func TestEquals(t *testing.T) {
	if !Equals(ENOENT, fmt.Errorf("lookup: %w", ENOENT)) {
		t.Errorf("Equals(ENOENT, wrapped ENOENT) = false")
	}
	if !Equals(ENOENT, unix.ENOENT) {
		t.Errorf("Equals(ENOENT, unix.ENOENT) = false")
	}
	if Equals(ENOENT, EEXIST) {
		t.Errorf("Equals(ENOENT, EEXIST) = true")
	}
	if Equals(ENOENT, nil) {
		t.Errorf("Equals(ENOENT, nil) = true")
	}
	if !Equals(EWOULDBLOCK, EAGAIN) {
		t.Errorf("Equals(EWOULDBLOCK, EAGAIN) = false")
	}
}

func TestAddErrorUnwrapper(t *testing.T) {
	type quotaError struct{ error }
	AddErrorUnwrapper(func(err error) (*errors.Error, bool) {
		var q quotaError
		if goerrors.As(err, &q) {
			return ENOSPC, true
		}
		return nil, false
	})
	if got, ok := ToStatus(quotaError{goerrors.New("quota")}); !ok || got != -int64(unix.ENOSPC) {
		t.Errorf("ToStatus(quotaError) = (%d, %t), wanted (%d, true)", got, ok, -int64(unix.ENOSPC))
	}
}
