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
// Package randomtest is an extension that exposes the host's random number
// generator as a sysctl. Reads return fresh random bytes and writes are
// mixed into the pool.
package randomtest

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/module"
	"gvisor.dev/kmod/pkg/random"
	"gvisor.dev/kmod/pkg/sysctl"
	"gvisor.dev/kmod/pkg/usermem"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "random-tests",
	Author:      "The gVisor Authors",
	Description: "A module for testing the CSPRNG",
	License:     "GPL",
}

// Path is the path of the entry.
const Path = "rust/random-tests/entropy"

// EntropySource is a sysctl.Storage over the generator of h.
type EntropySource struct {
	h host.Random
}

// StoreValue implements sysctl.Storage.StoreValue.
func (e *EntropySource) StoreValue(data []byte) (int, error) {
	random.AddRandomness(e.h, data)
	return len(data), nil
}

// ReadValue implements sysctl.Storage.ReadValue.
func (e *EntropySource) ReadValue(w *usermem.Writer) (int, error) {
	buf := make([]byte, w.Len())
	if err := random.GetRandom(e.h, buf); err != nil {
		return 0, err
	}
	return len(buf), w.Write(buf)
}

// Module is the loaded extension.
type Module struct {
	entropy *sysctl.Sysctl[*EntropySource]
}

// New registers the entry with h.
func New(h host.Host) (*Module, error) {
	s, err := sysctl.Register(h, "rust/random-tests", "entropy", &EntropySource{h: h}, 0o666)
	if err != nil {
		return nil, err
	}
	return &Module{entropy: s}, nil
}

// Close implements module.Closer.Close.
func (m *Module) Close() {
	m.entropy.Close()
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
