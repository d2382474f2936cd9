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
// Package modinfotest is an empty extension whose metadata is inspected by
// tests.
package modinfotest

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/module"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "modinfo-tests",
	Author:      "Fish in a Barrel Contributors",
	Description: "Empty module for testing modinfo",
	License:     "GPL",
}

// Module is the loaded extension.
type Module struct{}

// New does nothing.
func New(host.Host) (*Module, error) {
	return &Module{}, nil
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
