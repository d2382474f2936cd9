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

// Package jsonsysctl is an extension with three boolean sysctls and a
// character device that reports their values as a JSON object.
package jsonsysctl

import (
	"encoding/json"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/chrdev"
	"gvisor.dev/kmod/pkg/cleanup"
	"gvisor.dev/kmod/pkg/fileops"
	"gvisor.dev/kmod/pkg/module"
	"gvisor.dev/kmod/pkg/sysctl"
	"gvisor.dev/kmod/pkg/usermem"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "json",
	Author:      "The gVisor Authors",
	Description: "Use JSON serialization in an extension",
	License:     "GPL",
}

// Dir is the sysctl directory of the entries.
const Dir = "json-sysctl"

var a, b, c sysctl.BoolStorage

// Output is the content of the device.
type Output struct {
	A bool `json:"a"`
	B bool `json:"b"`
	C bool `json:"c"`
}

type jsonFile struct{}

// Open implements fileops.Opener.Open.
func (*jsonFile) Open(*fileops.File) error { return nil }

// Read implements fileops.Reader.Read.
func (*jsonFile) Read(_ *fileops.File, w *usermem.Writer, off uint64) error {
	s, err := json.Marshal(Output{A: a.Load(), B: b.Load(), C: c.Load()})
	if err != nil {
		return err
	}
	s = append(s, '\n')
	start := min(off, uint64(len(s)))
	end := min(start+w.Len(), uint64(len(s)))
	return w.Write(s[start:end])
}

// Module is the loaded extension.
type Module struct {
	dev     host.DevT
	release func()
}

// New registers the entries and the device with h.
func New(h host.Host) (*Module, error) {
	bld, err := chrdev.NewBuilder(Info.Name, chrdev.Range{First: 0, Count: 1})
	if err != nil {
		return nil, err
	}
	reg, err := bld.RegisterDevice(fileops.Build[jsonFile]()).Build(h)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(reg.Close)
	defer cu.Clean()

	for _, e := range []struct {
		name    string
		storage *sysctl.BoolStorage
	}{
		{"a", &a},
		{"b", &b},
		{"c", &c},
	} {
		s, err := sysctl.Register(h, Dir, e.name, e.storage, 0o666)
		if err != nil {
			return nil, err
		}
		cu.Add(s.Close)
	}
	return &Module{dev: reg.Dev(), release: cu.Release()}, nil
}

// Dev returns the device number of the device.
func (m *Module) Dev() host.DevT {
	return m.dev
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
