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

// Package chrdevtest is an extension with three character devices that
// exercise every file operation:
//
//   - minor 0 reads "123456789" repeated, starting at the read offset.
//   - minor 1 only seeks, always to position 1234.
//   - minor 2 counts the bytes written to it and reads back the count.
package chrdevtest

import (
	"strconv"
	"sync/atomic"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/chrdev"
	"gvisor.dev/kmod/pkg/fileops"
	"gvisor.dev/kmod/pkg/module"
	"gvisor.dev/kmod/pkg/usermem"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "chrdev-tests",
	Author:      "The gVisor Authors",
	Description: "A module for testing character devices",
	License:     "GPL",
}

// Minors of the devices.
const (
	CycleMinor = iota
	SeekMinor
	WriteMinor
)

// SeekPosition is where every seek of the seek device ends up.
const SeekPosition = 1234

// cycle is the content of the cycle device, repeated forever.
const cycle = "123456789"

// cycleChunk bounds the bytes the cycle device renders at once.
const cycleChunk = 4096

type cycleFile struct{}

// Open implements fileops.Opener.Open.
func (*cycleFile) Open(*fileops.File) error { return nil }

// Read implements fileops.Reader.Read.
func (*cycleFile) Read(_ *fileops.File, w *usermem.Writer, off uint64) error {
	start := int(off % uint64(len(cycle)))
	buf := make([]byte, min(w.Len(), cycleChunk))
	for !w.IsEmpty() {
		chunk := buf[:min(w.Len(), uint64(len(buf)))]
		for i := range chunk {
			chunk[i] = cycle[(start+i)%len(cycle)]
		}
		if err := w.Write(chunk); err != nil {
			return err
		}
		start = (start + len(chunk)) % len(cycle)
	}
	return nil
}

type seekFile struct{}

// Open implements fileops.Opener.Open.
func (*seekFile) Open(*fileops.File) error { return nil }

// Seek implements fileops.Seeker.Seek.
func (*seekFile) Seek(*fileops.File, fileops.SeekFrom) (uint64, error) {
	return SeekPosition, nil
}

type writeFile struct {
	written atomic.Uint64
}

// Open implements fileops.Opener.Open.
func (*writeFile) Open(*fileops.File) error { return nil }

// Read implements fileops.Reader.Read. It reads the count regardless of
// the offset.
func (f *writeFile) Read(_ *fileops.File, w *usermem.Writer, _ uint64) error {
	return w.Write(strconv.AppendUint(nil, f.written.Load(), 10))
}

// Write implements fileops.Writer.Write.
func (f *writeFile) Write(_ *fileops.File, r *usermem.Reader, _ uint64) error {
	data, err := r.ReadAll()
	if err != nil {
		return err
	}
	f.written.Add(uint64(len(data)))
	return nil
}

// Module is the loaded extension.
type Module struct {
	reg *chrdev.Registration
}

// New registers the devices with h.
func New(h host.Host) (*Module, error) {
	b, err := chrdev.NewBuilder(Info.Name, chrdev.Range{First: 0, Count: 3})
	if err != nil {
		return nil, err
	}
	reg, err := b.RegisterDevice(fileops.Build[cycleFile]()).
		RegisterDevice(fileops.Build[seekFile]()).
		RegisterDevice(fileops.Build[writeFile]()).
		Build(h)
	if err != nil {
		return nil, err
	}
	return &Module{reg: reg}, nil
}

// Dev returns the device number of minor.
func (m *Module) Dev(minor uint32) host.DevT {
	return m.reg.Dev() + host.DevT(minor)
}

// Close implements module.Closer.Close.
func (m *Module) Close() {
	m.reg.Close()
}

// Load loads the extension into h.
func Load(h host.Host) (*module.Loaded[*Module], error) {
	return module.Load(h, Info, New)
}

func init() {
	module.Register(module.Descriptor{Info: Info, Load: func(h host.Host) (module.Extension, error) {
		l, err := Load(h)
		if err != nil {
			return nil, err
		}
		return l, nil
	}})
}
