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
// Package foreachprocess is an extension that logs every process of the
// host when loaded.
package foreachprocess

import (
	"unicode/utf8"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/module"
	"gvisor.dev/kmod/pkg/rcu"
	"gvisor.dev/kmod/pkg/sched"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "for-each-process-tests",
	Author:      "The gVisor Authors",
	Description: "A module for testing EachProcess",
	License:     "GPL",
}

// Module is the loaded extension.
type Module struct{}

// New logs the processes of h.
func New(h host.Host) (*Module, error) {
	g := rcu.ReadLock(h)
	defer g.Unlock()
	for p := range sched.EachProcess(h, g) {
		comm := p.Comm()
		if !utf8.ValidString(comm) {
			comm = "[invalid UTF-8]"
		}
		log.Infof("for-each-process: %8d %s", p.Tgid(), comm)
	}
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
