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

// Package chrdev registers character devices with the host.
//
// A Builder collects file types, one per minor number, and Build registers
// them under a freshly allocated device number region:
//
//	b, err := chrdev.NewBuilder("sample_chrdev", chrdev.Range{First: 0, Count: 2})
//	...
//	reg, err := b.RegisterDevice(fileops.Build[cycleFile]()).
//		RegisterDevice(fileops.Build[counterFile]()).
//		Build(h)
//	...
//	defer reg.Close()
//
// Build either registers everything or nothing: if a device fails to
// register, the devices registered before it are removed in reverse order
// and the region is released before Build returns.
package chrdev

import (
	"fmt"
	"runtime"
	"strings"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/cleanup"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/fileops"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/sync"
)

// maxNameLen is the longest region name accepted. /proc/devices truncates
// longer names.
const maxNameLen = 63

// Range is a range of minor numbers.
type Range struct {
	First uint32
	Count uint32
}

// Contains returns true if minor is in r.
func (r Range) Contains(minor uint32) bool {
	return minor >= r.First && minor-r.First < r.Count
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.First, uint64(r.First)+uint64(r.Count))
}

func validName(name string) error {
	if name == "" || len(name) > maxNameLen || strings.ContainsAny(name, "/\x00") {
		return linuxerr.EINVAL
	}
	return nil
}

// Builder collects the devices of a region before registration.
type Builder struct {
	name    string
	minors  Range
	devices []*fileops.Vtable
}

// NewBuilder returns a Builder for a region called name spanning minors.
// The name is shown in /proc/devices; it must be non-empty, shorter than
// 64 bytes and must not contain '/' or NUL. minors must not be empty.
func NewBuilder(name string, minors Range) (*Builder, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if minors.Count == 0 || uint64(minors.First)+uint64(minors.Count) > 1<<host.MINORBITS {
		return nil, linuxerr.EINVAL
	}
	return &Builder{name: name, minors: minors}, nil
}

// RegisterDevice adds a device with the operations of v. Devices get
// consecutive minors starting at the region's first minor, in the order
// they are added.
func (b *Builder) RegisterDevice(v *fileops.Vtable) *Builder {
	b.devices = append(b.devices, v)
	return b
}

// Devices returns the number of devices added so far.
func (b *Builder) Devices() int {
	return len(b.devices)
}

// Build allocates the region and registers every device. It fails with
// EINVAL without touching the host if more devices were added than the
// region has minors.
func (b *Builder) Build(h host.CharDevices) (*Registration, error) {
	if uint64(len(b.devices)) > uint64(b.minors.Count) {
		return nil, linuxerr.EINVAL
	}
	// Tables from fileops.Build fill no version-gated slot; this catches
	// tables extended by hand for a newer host.
	for _, v := range b.devices {
		if err := v.Ops().Validate(h.Version()); err != nil {
			log.Warningf("chrdev %q: %v", b.name, err)
			return nil, linuxerr.EINVAL
		}
	}

	region, err := AllocateRegion(h, b.minors.Count, b.minors.First, b.name)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(region.Close)
	defer cu.Clean()

	cdevs := make([]host.Addr, 0, len(b.devices))
	for i, v := range b.devices {
		dev := region.Dev() + host.DevT(i)
		cdev, s := h.CdevAdd(dev, v.Ops(), b.name)
		if s != 0 {
			err := linuxerr.FromStatus(int64(s))
			log.Debugf("chrdev %q: adding device %v failed: %v, rolling back %d devices", b.name, dev, err, i)
			return nil, err
		}
		cu.Add(func() { h.CdevDel(cdev) })
		cdevs = append(cdevs, cdev)
	}

	r := &Registration{
		name:   b.name,
		dev:    region.Dev(),
		count:  len(cdevs),
		minors: b.minors.Count,
		td:     &teardown{fn: cu.Release()},
	}
	name := b.name
	runtime.AddCleanup(r, func(td *teardown) {
		if td.run() {
			log.Warningf("chrdev %q: registration leaked, unregistered by garbage collector", name)
		}
	}, r.td)
	log.Debugf("chrdev %q: registered %d devices at %v", b.name, len(cdevs), region.Dev())
	return r, nil
}

// teardown runs its function at most once.
type teardown struct {
	once sync.Once
	fn   func()
}

// run calls fn if it did not run before, and returns true if it did so.
func (t *teardown) run() bool {
	ran := false
	t.once.Do(func() {
		t.fn()
		ran = true
	})
	return ran
}

// Registration is a registered set of character devices. Close removes
// them; a Registration that becomes unreachable without being closed is
// removed when it is garbage collected.
type Registration struct {
	name   string
	dev    host.DevT
	count  int
	minors uint32
	td     *teardown
}

// Close removes every device, in reverse order of registration, and then
// releases the region. Only the first call has an effect.
func (r *Registration) Close() {
	if r.td.run() {
		log.Debugf("chrdev %q: unregistered", r.name)
	}
}

// Name returns the region name.
func (r *Registration) Name() string {
	return r.name
}

// Dev returns the device number of the first device.
func (r *Registration) Dev() host.DevT {
	return r.dev
}

// Major returns the major number of the region.
func (r *Registration) Major() uint32 {
	return r.dev.Major()
}

// Count returns the number of registered devices.
func (r *Registration) Count() int {
	return r.count
}

// Minors returns the minor numbers of the region.
func (r *Registration) Minors() Range {
	return Range{First: r.dev.Minor(), Count: r.minors}
}
