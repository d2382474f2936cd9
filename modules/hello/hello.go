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
// Package hello is an extremely simple extension.
package hello

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/module"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "hello-world",
	Author:      "The gVisor Authors",
	Description: "An extremely simple extension",
	License:     "GPL",
}

// Module is the loaded extension.
type Module struct{}

// New greets.
func New(host.Host) (*Module, error) {
	log.Infof("Hello kernel module!")
	return &Module{}, nil
}

// Close implements module.Closer.Close.
func (*Module) Close() {
	log.Infof("Goodbye kernel module!")
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
