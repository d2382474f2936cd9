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

// Package usermem is the only sanctioned way of moving bytes across the
// boundary between the host and an extension.
//
// A Slice describes a region of boundary memory whose address range has been
// checked with host.Memory.AccessOK. It is consumed exactly once, by turning
// it into either a Reader or a Writer. Both only move forward: every byte of
// the region is fetched from (or stored to) boundary memory at most once, so
// a caller that validates data it read can never observe a different value
// on a second fetch.
package usermem

import (
	"fmt"
	"math"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
)

// MaxOpLength is the largest transfer a single Read or Write performs. It is
// the width of the count argument of the host copy primitives.
const MaxOpLength = math.MaxUint32

// Slice is a validated, not yet consumed region of boundary memory.
type Slice struct {
	mem    host.Memory
	addr   host.Addr
	length uint64

	// consumed is set once the slice was turned into a Reader or Writer.
	consumed bool
}

// NewSlice validates [addr, addr+length) with mem and returns a Slice over
// it. It returns EFAULT if the range is not addressable, and EINVAL if length
// is not representable as a signed offset.
func NewSlice(mem host.Memory, addr host.Addr, length uint64) (*Slice, error) {
	if length > math.MaxInt64 {
		return nil, linuxerr.EINVAL
	}
	if !mem.AccessOK(addr, length) {
		return nil, linuxerr.EFAULT
	}
	return &Slice{
		mem:    mem,
		addr:   addr,
		length: length,
	}, nil
}

// Len returns the length of the region.
func (s *Slice) Len() uint64 {
	return s.length
}

func (s *Slice) consume() {
	if s.consumed {
		panic(fmt.Sprintf("usermem: slice %#x+%d consumed twice", s.addr, s.length))
	}
	s.consumed = true
}

// Reader consumes s and returns a Reader over its region.
//
// Precondition: s was not consumed before.
func (s *Slice) Reader() *Reader {
	s.consume()
	return &Reader{mem: s.mem, addr: s.addr, remaining: s.length}
}

// Writer consumes s and returns a Writer over its region.
//
// Precondition: s was not consumed before.
func (s *Slice) Writer() *Writer {
	s.consume()
	return &Writer{mem: s.mem, addr: s.addr, remaining: s.length}
}

// ReadAll consumes s and returns the contents of its region.
func (s *Slice) ReadAll() ([]byte, error) {
	return s.Reader().ReadAll()
}

// WriteAll consumes s and writes data to the start of its region. It returns
// EFAULT if data does not fit.
func (s *Slice) WriteAll(data []byte) error {
	return s.Writer().Write(data)
}

// Reader reads boundary memory front to back.
type Reader struct {
	mem       host.Memory
	addr      host.Addr
	remaining uint64
}

// Len returns the number of bytes not read yet.
func (r *Reader) Len() uint64 {
	return r.remaining
}

// IsEmpty returns true if all bytes were read.
func (r *Reader) IsEmpty() bool {
	return r.remaining == 0
}

// Read fills dst from boundary memory and advances past the bytes read.
//
// If dst is longer than Len or MaxOpLength, or the host fails to copy every
// byte, Read returns EFAULT and the reader does not advance. The contents of
// dst are unspecified on error.
func (r *Reader) Read(dst []byte) error {
	n := uint64(len(dst))
	if n > r.remaining || n > MaxOpLength {
		return linuxerr.EFAULT
	}
	if n == 0 {
		return nil
	}
	if left := r.mem.CopyFromUser(dst, r.addr); left != 0 {
		return linuxerr.EFAULT
	}
	r.addr += host.Addr(n)
	r.remaining -= n
	return nil
}

// ReadAll reads every remaining byte. On error the bytes read by earlier,
// successful chunks stay consumed.
func (r *Reader) ReadAll() ([]byte, error) {
	data := make([]byte, 0, min(r.remaining, MaxOpLength))
	for !r.IsEmpty() {
		n := min(r.remaining, MaxOpLength)
		start := len(data)
		data = append(data, make([]byte, n)...)
		if err := r.Read(data[start:]); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Writer writes boundary memory front to back.
type Writer struct {
	mem       host.Memory
	addr      host.Addr
	remaining uint64
}

// Len returns the number of bytes that can still be written.
func (w *Writer) Len() uint64 {
	return w.remaining
}

// IsEmpty returns true if no more bytes can be written.
func (w *Writer) IsEmpty() bool {
	return w.remaining == 0
}

// Write copies src to boundary memory and advances past the bytes written.
//
// If src is longer than Len or MaxOpLength, or the host fails to copy every
// byte, Write returns EFAULT and the writer does not advance. Boundary memory
// may have been partially written in the latter case.
func (w *Writer) Write(src []byte) error {
	n := uint64(len(src))
	if n > w.remaining || n > MaxOpLength {
		return linuxerr.EFAULT
	}
	if n == 0 {
		return nil
	}
	if left := w.mem.CopyToUser(w.addr, src); left != 0 {
		return linuxerr.EFAULT
	}
	w.addr += host.Addr(n)
	w.remaining -= n
	return nil
}
