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

// Package sysctl exposes values as host dynamic configuration entries.
//
// An entry is backed by a Storage, which parses writes and renders reads:
//
//	var enabled sysctl.BoolStorage
//	s, err := sysctl.Register(h, "rust/example", "enabled", &enabled, 0o644)
//	...
//	defer s.Close()
//
// Reads are served in one piece: a read at a nonzero position returns no
// data. Writes hand the whole written buffer to StoreValue.
package sysctl

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/alloc"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/handle"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/sync"
	"gvisor.dev/kmod/pkg/usermem"
)

// Storage backs a sysctl entry. The host may call it from several
// goroutines at once.
type Storage interface {
	// StoreValue parses a write of data. It returns the number of bytes
	// processed, which is reported to the writer even if it also returns
	// an error.
	StoreValue(data []byte) (int, error)

	// ReadValue renders the value into w. It returns the number of bytes
	// to report to the reader.
	ReadValue(w *usermem.Writer) (int, error)
}

// BoolStorage is a boolean entry. It reads as "0\n" or "1\n" and accepts
// writes of "0" or "1", with surrounding whitespace.
type BoolStorage struct {
	v atomic.Bool
}

// Load returns the value.
func (b *BoolStorage) Load() bool {
	return b.v.Load()
}

// Store sets the value.
func (b *BoolStorage) Store(v bool) {
	b.v.Store(v)
}

// StoreValue implements Storage.StoreValue.
func (b *BoolStorage) StoreValue(data []byte) (int, error) {
	switch string(bytes.TrimSpace(data)) {
	case "0":
		b.v.Store(false)
	case "1":
		b.v.Store(true)
	default:
		return len(data), linuxerr.EINVAL
	}
	return len(data), nil
}

// ReadValue implements Storage.ReadValue.
func (b *BoolStorage) ReadValue(w *usermem.Writer) (int, error) {
	value := []byte("0\n")
	if b.v.Load() {
		value = []byte("1\n")
	}
	return len(value), w.Write(value)
}

// Mode is the permission mode of an entry.
type Mode uint32

// String implements fmt.Stringer.
func (m Mode) String() string {
	return fmt.Sprintf("%#o", uint32(m))
}

// Sysctl is a registered entry backed by a Storage of type S.
type Sysctl[S Storage] struct {
	h       host.Sysctls
	path    string
	storage S
	table   []host.CtlTable
	header  host.Addr
	once    sync.Once
}

// Register creates the entry dir/name. dir is a slash separated
// directory below the sysctl root, created as needed; name must not
// contain '/'. It fails with ENOMEM if the host rejects the entry, for
// example because it already exists.
func Register[S Storage](h host.Sysctls, dir, name string, storage S, mode Mode) (*Sysctl[S], error) {
	if name == "" || strings.ContainsAny(name, "/\x00") || dir == "" || strings.ContainsRune(dir, 0) {
		return nil, linuxerr.EINVAL
	}
	if mode&^0o777 != 0 {
		return nil, linuxerr.EINVAL
	}

	cookie := handle.Put(alloc.Default(), storage)
	if cookie == 0 {
		return nil, linuxerr.ENOMEM
	}
	s := &Sysctl[S]{
		h:       h,
		path:    dir + "/" + name,
		storage: storage,
		table: []host.CtlTable{{
			Procname:    name,
			Data:        cookie,
			Mode:        uint32(mode),
			ProcHandler: procHandler[S],
		}},
	}
	s.header = h.RegisterSysctl(dir, s.table)
	if s.header == 0 {
		if _, err := handle.Take[S](cookie); err != nil {
			log.Warningf("sysctl %q: dropping storage: %v", s.path, err)
		}
		return nil, linuxerr.ENOMEM
	}
	log.Debugf("sysctl %q: registered with mode %v", s.path, mode)
	return s, nil
}

// Get returns the storage.
func (s *Sysctl[S]) Get() S {
	return s.storage
}

// Path returns the full path of the entry.
func (s *Sysctl[S]) Path() string {
	return s.path
}

// Close removes the entry. Only the first call has an effect.
func (s *Sysctl[S]) Close() {
	s.once.Do(func() {
		s.h.UnregisterSysctlTable(s.header)
		if _, err := handle.Take[S](s.table[0].Data); err != nil {
			log.Warningf("sysctl %q: dropping storage: %v", s.path, err)
		}
		s.table[0].Data = 0
		log.Debugf("sysctl %q: unregistered", s.path)
	})
}

// warn reports storage errors that have no errno.
var warn = log.BasicRateLimitedLogger(time.Second)

func procHandler[S Storage](table *host.CtlTable, write int32, buf host.Addr, lenp *uint64, ppos *int64) host.Status {
	if *ppos != 0 && write == 0 {
		*lenp = 0
		return 0
	}
	storage, ok := handle.Get[S](table.Data)
	if !ok {
		warn.Warningf("sysctl %q: no live storage at %#x", table.Procname, table.Data)
		return linuxerr.EBADF.Status()
	}
	slice, err := usermem.NewSlice(host.Bound(), buf, *lenp)
	if err != nil {
		return status(table, err)
	}

	var n int
	if write != 0 {
		var data []byte
		if data, err = slice.ReadAll(); err != nil {
			return status(table, err)
		}
		n, err = storage.StoreValue(data)
	} else {
		n, err = storage.ReadValue(slice.Writer())
	}
	*lenp = uint64(n)
	*ppos += int64(n)
	return status(table, err)
}

func status(table *host.CtlTable, err error) host.Status {
	s, ok := linuxerr.ToStatus(err)
	if !ok {
		warn.Warningf("sysctl %q: untranslatable error %q, reporting EIO", table.Procname, err)
	}
	return host.Status(s)
}
