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

// Package chrdevregion is an extension that allocates a character device
// region without attaching any device to it.
package chrdevregion

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/chrdev"
	"gvisor.dev/kmod/pkg/module"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "chrdev-region-allocation-tests",
	Author:      "The gVisor Authors",
	Description: "A module for testing character device region allocation",
	License:     "GPL",
}

// Module is the loaded extension.
type Module struct {
	reg    *chrdev.Registration
	region *chrdev.DeviceNumberRegion
}

// New allocates two regions: one through a Builder with no devices, and
// a bare region of a single minor.
func New(h host.Host) (*Module, error) {
	b, err := chrdev.NewBuilder(Info.Name, chrdev.Range{First: 0, Count: 1})
	if err != nil {
		return nil, err
	}
	reg, err := b.Build(h)
	if err != nil {
		return nil, err
	}
	region, err := chrdev.AllocateRegion(h, 1, 0, "chrdev-tests-region")
	if err != nil {
		reg.Close()
		return nil, err
	}
	return &Module{reg: reg, region: region}, nil
}

// Major returns the major number of the builder's region.
func (m *Module) Major() uint32 {
	return m.reg.Major()
}

// Close implements module.Closer.Close.
func (m *Module) Close() {
	m.region.Close()
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
