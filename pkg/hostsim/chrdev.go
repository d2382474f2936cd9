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

package hostsim

import (
	"fmt"
	"slices"
	"strings"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
)

// Dynamic majors are handed out from the top of this range down.
const (
	dynamicMajorHigh = 254
	dynamicMajorLow  = 234
)

// cdevBase is the start of the addresses used as cdev handles.
const cdevBase host.Addr = 0xffffc90000000000

type region struct {
	dev   host.DevT
	count uint32
	name  string
}

type cdev struct {
	handle host.Addr
	dev    host.DevT
	ops    *host.FileOperations
	owner  string
}

// chrdevTable holds registered device number regions and cdevs.
type chrdevTable struct {
	// regions is in registration order.
	regions []region
	cdevs   map[host.DevT]*cdev
	handles map[host.Addr]*cdev
	next    host.Addr
}

func (t *chrdevTable) init() {
	t.cdevs = make(map[host.DevT]*cdev)
	t.handles = make(map[host.Addr]*cdev)
	t.next = cdevBase
}

func (t *chrdevTable) majorInUse(major uint32) bool {
	return slices.ContainsFunc(t.regions, func(r region) bool { return r.dev.Major() == major })
}

// AllocChrdevRegion implements host.CharDevices.AllocChrdevRegion.
func (h *Host) AllocChrdevRegion(firstMinor, count uint32, name string) (host.DevT, host.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpAllocChrdevRegion, fmt.Sprintf("%d, %d, %q", firstMinor, count, name)); s != 0 {
		return 0, s
	}
	if count == 0 || uint64(firstMinor)+uint64(count) > 1<<host.MINORBITS {
		return 0, linuxerr.EINVAL.Status()
	}
	for major := uint32(dynamicMajorHigh); major >= dynamicMajorLow; major-- {
		if h.chrdev.majorInUse(major) {
			continue
		}
		dev := host.MKDEV(major, firstMinor)
		h.chrdev.regions = append(h.chrdev.regions, region{dev: dev, count: count, name: name})
		return dev, 0
	}
	return 0, linuxerr.EBUSY.Status()
}

// UnregisterChrdevRegion implements host.CharDevices.UnregisterChrdevRegion.
func (h *Host) UnregisterChrdevRegion(dev host.DevT, count uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpUnregisterChrdevRegion, fmt.Sprintf("%v, %d", dev, count))
	i := slices.IndexFunc(h.chrdev.regions, func(r region) bool { return r.dev == dev && r.count == count })
	if i < 0 {
		h.problemLocked("unregister of unknown chrdev region %v+%d", dev, count)
		return
	}
	h.chrdev.regions = slices.Delete(h.chrdev.regions, i, i+1)
}

// CdevAdd implements host.CharDevices.CdevAdd.
func (h *Host) CdevAdd(dev host.DevT, ops *host.FileOperations, owner string) (host.Addr, host.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpCdevAdd, dev.String()); s != 0 {
		return 0, s
	}
	if ops == nil {
		return 0, linuxerr.EINVAL.Status()
	}
	if err := ops.Validate(h.version); err != nil {
		h.problemLocked("cdev %v: %v", dev, err)
		return 0, linuxerr.EINVAL.Status()
	}
	if _, ok := h.chrdev.cdevs[dev]; ok {
		return 0, linuxerr.EBUSY.Status()
	}
	c := &cdev{handle: h.chrdev.next, dev: dev, ops: ops, owner: owner}
	h.chrdev.next += 0x100
	h.chrdev.cdevs[dev] = c
	h.chrdev.handles[c.handle] = c
	return c.handle, 0
}

// CdevDel implements host.CharDevices.CdevDel.
func (h *Host) CdevDel(handle host.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.chrdev.handles[handle]
	if !ok {
		h.recordLocked(OpCdevDel, fmt.Sprintf("%#x", handle))
		h.problemLocked("cdev_del of unknown cdev %#x", handle)
		return
	}
	h.recordLocked(OpCdevDel, c.dev.String())
	delete(h.chrdev.handles, handle)
	delete(h.chrdev.cdevs, c.dev)
}

// Device is a registered device number region, as listed in
// /proc/devices.
type Device struct {
	Major uint32
	Name  string
}

// Devices returns the registered character device regions, ordered by
// major.
func (h *Host) Devices() []Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	var devs []Device
	for _, r := range h.chrdev.regions {
		devs = append(devs, Device{Major: r.dev.Major(), Name: r.name})
	}
	slices.SortStableFunc(devs, func(a, b Device) int { return int(a.Major) - int(b.Major) })
	return devs
}

// ProcDevices renders Devices like /proc/devices does.
func (h *Host) ProcDevices() string {
	var b strings.Builder
	b.WriteString("Character devices:\n")
	for _, d := range h.Devices() {
		fmt.Fprintf(&b, "%3d %s\n", d.Major, d.Name)
	}
	return b.String()
}

// Cdevs returns the device numbers with a cdev, in ascending order.
func (h *Host) Cdevs() []host.DevT {
	h.mu.Lock()
	defer h.mu.Unlock()
	var devs []host.DevT
	for dev := range h.chrdev.cdevs {
		devs = append(devs, dev)
	}
	slices.Sort(devs)
	return devs
}
