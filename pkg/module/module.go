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

// Package module manages the lifecycle of extensions.
//
// An extension is a value of some type M built by an init function from
// the host it is loaded into. Load runs init; Unload releases whatever M
// registered, by calling its Close method if it has one. Extensions that
// want to be loadable by name register a Descriptor from an init function:
//
//	var Info = module.Info{Name: "hello", Author: "...", Description: "...", License: "GPL"}
//
//	func init() {
//		module.Register(module.Descriptor{Info: Info, Load: func(h host.Host) (module.Extension, error) {
//			return module.Load(h, Info, newHello)
//		}})
//	}
package module

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/sync"
)

// Info describes an extension, as shown by modinfo.
type Info struct {
	Name        string
	Author      string
	Description string
	License     string
}

// validName matches extension names.
var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,55}$`)

// freeLicenses are the licenses that do not taint the host.
var freeLicenses = []string{
	"GPL",
	"GPL v2",
	"GPL and additional rights",
	"Dual BSD/GPL",
	"Dual MIT/GPL",
	"Dual MPL/GPL",
}

// Validate checks that i names the extension and its license.
func (i Info) Validate() error {
	if !validName.MatchString(i.Name) {
		return fmt.Errorf("invalid extension name %q: %w", i.Name, linuxerr.EINVAL)
	}
	if i.License == "" {
		return fmt.Errorf("extension %q has no license: %w", i.Name, linuxerr.EINVAL)
	}
	return nil
}

// Proprietary returns true if the license taints the host.
func (i Info) Proprietary() bool {
	return !slices.Contains(freeLicenses, i.License)
}

// Taint returns the taint flags of the extension, as in
// /sys/module/<name>/taint.
func (i Info) Taint() string {
	if i.Proprietary() {
		return "P"
	}
	return ""
}

// Modinfo renders i like modinfo(8).
func (i Info) Modinfo() string {
	var b strings.Builder
	for _, kv := range [][2]string{
		{"name", i.Name},
		{"author", i.Author},
		{"description", i.Description},
		{"license", i.License},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "%-12s %s\n", kv[0]+":", kv[1])
		}
	}
	return b.String()
}

// Field returns one modinfo field by key, like modinfo -F.
func (i Info) Field(key string) (string, bool) {
	switch key {
	case "name":
		return i.Name, true
	case "author":
		return i.Author, true
	case "description":
		return i.Description, true
	case "license":
		return i.License, true
	default:
		return "", false
	}
}

// Closer is implemented by extensions that hold host resources.
type Closer interface {
	Close()
}

// Extension is a loaded extension of any type.
type Extension interface {
	Info() Info
	Unload()
}

// Loaded is a loaded extension of type M.
type Loaded[M any] struct {
	info Info
	m    M
	once sync.Once
}

var _ Extension = (*Loaded[struct{}])(nil)

// Load validates info and runs init against h. If init fails, everything it
// registered must already have been released; the error is returned as is.
func Load[M any](h host.Host, info Info, init func(h host.Host) (M, error)) (*Loaded[M], error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if info.Proprietary() {
		log.Warningf("%s: module license %q taints host", info.Name, info.License)
	}
	m, err := init(h)
	if err != nil {
		log.Infof("%s: init failed: %v", info.Name, err)
		return nil, err
	}
	log.Infof("%s: loaded", info.Name)
	return &Loaded[M]{info: info, m: m}, nil
}

// Info returns the extension's description.
func (l *Loaded[M]) Info() Info {
	return l.info
}

// Module returns the extension value.
func (l *Loaded[M]) Module() M {
	return l.m
}

// Unload releases the extension. Only the first call has an effect.
func (l *Loaded[M]) Unload() {
	l.once.Do(func() {
		if c, ok := any(l.m).(Closer); ok {
			c.Close()
		}
		log.Infof("%s: unloaded", l.info.Name)
	})
}
