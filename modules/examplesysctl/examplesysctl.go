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
// Package examplesysctl is an extension that offers a sysctl.
package examplesysctl

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/module"
	"gvisor.dev/kmod/pkg/sysctl"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "example-sysctl",
	Author:      "The gVisor Authors",
	Description: "An extension that offers a sysctl",
	License:     "GPL",
}

// Path is the path of the entry.
const Path = "rust/example/a"

// Module is the loaded extension.
type Module struct {
	a *sysctl.Sysctl[*sysctl.BoolStorage]
}

// New registers the entry with h.
func New(h host.Host) (*Module, error) {
	a, err := sysctl.Register(h, "rust/example", "a", &sysctl.BoolStorage{}, 0o644)
	if err != nil {
		return nil, err
	}
	return &Module{a: a}, nil
}

// Close implements module.Closer.Close.
func (m *Module) Close() {
	log.Infof("Current sysctl value: %t", m.a.Get().Load())
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
