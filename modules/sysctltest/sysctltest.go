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

// Package sysctltest is an extension with two boolean sysctls,
// rust/sysctl-tests/a and rust/sysctl-tests/b.
package sysctltest

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/cleanup"
	"gvisor.dev/kmod/pkg/module"
	"gvisor.dev/kmod/pkg/sysctl"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "sysctl-tests",
	Author:      "The gVisor Authors",
	Description: "A module for testing sysctls",
	License:     "GPL",
}

// Dir is the sysctl directory of the entries.
const Dir = "rust/sysctl-tests"

// Module is the loaded extension.
type Module struct {
	A *sysctl.Sysctl[*sysctl.BoolStorage]
	B *sysctl.Sysctl[*sysctl.BoolStorage]

	release func()
}

// New registers the entries with h.
func New(h host.Host) (*Module, error) {
	m := &Module{}
	a, err := sysctl.Register(h, Dir, "a", &sysctl.BoolStorage{}, 0o666)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(a.Close)
	defer cu.Clean()

	b, err := sysctl.Register(h, Dir, "b", &sysctl.BoolStorage{}, 0o666)
	if err != nil {
		return nil, err
	}
	cu.Add(b.Close)

	m.A, m.B = a, b
	m.release = cu.Release()
	return m, nil
}

// Close implements module.Closer.Close.
func (m *Module) Close() {
	m.release()
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
