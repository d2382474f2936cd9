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

// Package sysctlget is an extension whose sysctl is backed by a package
// level value. On unload it logs the value both directly and through the
// sysctl.
package sysctlget

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/module"
	"gvisor.dev/kmod/pkg/sysctl"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "sysctl-get-tests",
	Author:      "The gVisor Authors",
	Description: "A module for testing sysctls",
	License:     "GPL",
}

// Path is the path of the entry.
const Path = "rust/sysctl-get-tests/a"

// aVal backs the entry. It outlives every load of the extension.
var aVal sysctl.BoolStorage

// Module is the loaded extension.
type Module struct {
	a *sysctl.Sysctl[*sysctl.BoolStorage]
}

// New registers the entry with h.
func New(h host.Host) (*Module, error) {
	a, err := sysctl.Register(h, "rust/sysctl-get-tests", "a", &aVal, 0o666)
	if err != nil {
		return nil, err
	}
	return &Module{a: a}, nil
}

// Close implements module.Closer.Close.
func (m *Module) Close() {
	log.Infof("A_VAL: %t", aVal.Load())
	log.Infof("SYSCTL_A: %t", m.a.Get().Load())
	m.a.Close()
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
