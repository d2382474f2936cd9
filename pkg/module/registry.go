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

package module

import (
	"fmt"
	"maps"
	"slices"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/sync"
)

// Descriptor describes a loadable extension.
type Descriptor struct {
	Info Info

	// Load loads an instance of the extension into h.
	Load func(h host.Host) (Extension, error)
}

var (
	// registryMu protects registry.
	registryMu sync.RWMutex
	registry   = make(map[string]Descriptor)
)

// Register makes d loadable by name. It panics if the name is taken or the
// info is invalid; it is meant to be called from init functions.
func Register(d Descriptor) {
	if err := d.Info.Validate(); err != nil {
		panic(fmt.Sprintf("module: %v", err))
	}
	if d.Load == nil {
		panic(fmt.Sprintf("module: %s has no Load function", d.Info.Name))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[d.Info.Name]; ok {
		panic(fmt.Sprintf("module: %s registered twice", d.Info.Name))
	}
	registry[d.Info.Name] = d
}

// Lookup returns the descriptor of the extension called name.
func Lookup(name string) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// Names returns the names of all registered extensions, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// Set is a set of extensions loaded into one host, like the host's module
// list. It is not safe for concurrent use.
type Set struct {
	h      host.Host
	loaded []Extension
}

// NewSet returns an empty Set for h.
func NewSet(h host.Host) *Set {
	return &Set{h: h}
}

// Load loads the registered extension called name. Each extension can be
// loaded once per Set.
func (s *Set) Load(name string) (Extension, error) {
	d, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown extension %q: %w", name, linuxerr.ENOENT)
	}
	if s.Get(name) != nil {
		return nil, fmt.Errorf("extension %q already loaded: %w", name, linuxerr.EEXIST)
	}
	e, err := d.Load(s.h)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", name, err)
	}
	s.loaded = append(s.loaded, e)
	return e, nil
}

// Get returns the loaded extension called name, or nil.
func (s *Set) Get(name string) Extension {
	for _, e := range s.loaded {
		if e.Info().Name == name {
			return e
		}
	}
	return nil
}

// Loaded returns the loaded extensions in load order.
func (s *Set) Loaded() []Extension {
	return slices.Clone(s.loaded)
}

// Unload unloads the extension called name.
func (s *Set) Unload(name string) error {
	i := slices.IndexFunc(s.loaded, func(e Extension) bool { return e.Info().Name == name })
	if i < 0 {
		return fmt.Errorf("extension %q not loaded: %w", name, linuxerr.ENOENT)
	}
	s.loaded[i].Unload()
	s.loaded = slices.Delete(s.loaded, i, i+1)
	return nil
}

// UnloadAll unloads every extension, most recently loaded first.
func (s *Set) UnloadAll() {
	for i := len(s.loaded) - 1; i >= 0; i-- {
		s.loaded[i].Unload()
	}
	s.loaded = nil
}
