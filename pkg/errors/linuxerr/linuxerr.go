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

// Package linuxerr contains host error codes exported as error interface
// pointers. This allows for fast comparison and return operations comperable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"golang.org/x/sys/unix"
	"gvisor.dev/kmod/pkg/errors"
)

// The following errors are semantically identical to Errno of type
// unix.Errno. However, since the types are distinct (these are
// *errors.Error), they are not directly comperable. The Errno method returns
// an Errno number such that the error can be compared to unix.Errno (e.g.
// EPERM.Errno() == unix.EPERM is true). Converting unix.Errno and host
// status codes to the errors should be done via the lookup methods provided.
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(unix.EPERM, "operation not permitted")
	ENOENT                = errors.New(unix.ENOENT, "no such file or directory")
	ESRCH                 = errors.New(unix.ESRCH, "no such process")
	EINTR                 = errors.New(unix.EINTR, "interrupted system call")
	EIO                   = errors.New(unix.EIO, "I/O error")
	ENXIO                 = errors.New(unix.ENXIO, "no such device or address")
	EBADF                 = errors.New(unix.EBADF, "bad file number")
	EAGAIN                = errors.New(unix.EAGAIN, "try again")
	ENOMEM                = errors.New(unix.ENOMEM, "out of memory")
	EACCES                = errors.New(unix.EACCES, "permission denied")
	EFAULT                = errors.New(unix.EFAULT, "bad address")
	EBUSY                 = errors.New(unix.EBUSY, "device or resource busy")
	EEXIST                = errors.New(unix.EEXIST, "file exists")
	ENODEV                = errors.New(unix.ENODEV, "no such device")
	ENOTDIR               = errors.New(unix.ENOTDIR, "not a directory")
	EINVAL                = errors.New(unix.EINVAL, "invalid argument")
	ENOTTY                = errors.New(unix.ENOTTY, "not a typewriter")
	EFBIG                 = errors.New(unix.EFBIG, "file too large")
	ENOSPC                = errors.New(unix.ENOSPC, "no space left on device")
	ESPIPE                = errors.New(unix.ESPIPE, "illegal seek")
	EROFS                 = errors.New(unix.EROFS, "read-only file system")
	EPIPE                 = errors.New(unix.EPIPE, "broken pipe")
	ERANGE                = errors.New(unix.ERANGE, "math result not representable")
	ENAMETOOLONG          = errors.New(unix.ENAMETOOLONG, "file name too long")
	ENOSYS                = errors.New(unix.ENOSYS, "invalid system call number")
	EOVERFLOW             = errors.New(unix.EOVERFLOW, "value too large for defined data type")
	EOPNOTSUPP            = errors.New(unix.EOPNOTSUPP, "operation not supported on transport endpoint")

	// Errors equivalent to other errors.
	EWOULDBLOCK = EAGAIN
	ENOTSUP     = EOPNOTSUPP
)

// errorTable holds errors by errno for translation of host status codes.
var errorTable = map[unix.Errno]*errors.Error{
	unix.EPERM:        EPERM,
	unix.ENOENT:       ENOENT,
	unix.ESRCH:        ESRCH,
	unix.EINTR:        EINTR,
	unix.EIO:          EIO,
	unix.ENXIO:        ENXIO,
	unix.EBADF:        EBADF,
	unix.EAGAIN:       EAGAIN,
	unix.ENOMEM:       ENOMEM,
	unix.EACCES:       EACCES,
	unix.EFAULT:       EFAULT,
	unix.EBUSY:        EBUSY,
	unix.EEXIST:       EEXIST,
	unix.ENODEV:       ENODEV,
	unix.ENOTDIR:      ENOTDIR,
	unix.EINVAL:       EINVAL,
	unix.ENOTTY:       ENOTTY,
	unix.EFBIG:        EFBIG,
	unix.ENOSPC:       ENOSPC,
	unix.ESPIPE:       ESPIPE,
	unix.EROFS:        EROFS,
	unix.EPIPE:        EPIPE,
	unix.ERANGE:       ERANGE,
	unix.ENAMETOOLONG: ENAMETOOLONG,
	unix.ENOSYS:       ENOSYS,
	unix.EOVERFLOW:    EOVERFLOW,
	unix.EOPNOTSUPP:   EOPNOTSUPP,
}

// ErrorFromUnix returns a linuxerr from a unix.Errno. Errnos without a
// sentinel are wrapped in a fresh *errors.Error carrying the same number.
func ErrorFromUnix(err unix.Errno) error {
	if err == unix.Errno(0) {
		return nil
	}
	if e, ok := errorTable[err]; ok {
		return e
	}
	return errors.New(err, err.Error())
}

// FromStatus converts a host status code to an error. Zero and positive
// values are not errors.
func FromStatus(status int64) error {
	if status >= 0 {
		return nil
	}
	return ErrorFromUnix(unix.Errno(-status))
}

// ToError converts a linuxerr to an error type.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts a linuxerr to a unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	var unixErr unix.Errno
	if e != noError {
		unixErr = e.Errno()
	}
	return unixErr
}

// ToStatus converts err to the host's status convention: zero for nil and a
// negated errno otherwise. Errors that carry no errno and were not
// registered with AddErrorUnwrapper are reported as EIO; the second return
// value is false in that case so callers can log them.
func ToStatus(err error) (int64, bool) {
	if err == nil {
		return 0, true
	}
	var e *errors.Error
	if goerrors.As(err, &e) {
		return int64(e.Status()), true
	}
	var errno unix.Errno
	if goerrors.As(err, &errno) {
		return -int64(errno), true
	}
	if e, ok := TranslateError(err); ok {
		return int64(e.Status()), true
	}
	return int64(EIO.Status()), false
}

// Equals compars a linuxerr to a given error.
func Equals(e *errors.Error, err error) bool {
	var unixErr unix.Errno
	if e != noError {
		unixErr = e.Errno()
	}
	if err == nil {
		err = noError
	}
	if e == err || unixErr == err {
		return true
	}
	var other *errors.Error
	if goerrors.As(err, &other) && other != nil && e != noError {
		return other.Errno() == e.Errno()
	}
	return false
}
