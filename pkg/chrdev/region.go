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

package chrdev

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/sync"
)

// DeviceNumberRegion is an allocated range of device numbers with no
// devices attached. Extensions that only need numbers, or that attach
// devices themselves, use it directly; Builder uses it for its region.
type DeviceNumberRegion struct {
	h     host.CharDevices
	dev   host.DevT
	count uint32
	once  sync.Once
}

// AllocateRegion allocates count minors starting at firstMinor under a
// dynamically chosen major.
func AllocateRegion(h host.CharDevices, count, firstMinor uint32, name string) (*DeviceNumberRegion, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, linuxerr.EINVAL
	}
	dev, s := h.AllocChrdevRegion(firstMinor, count, name)
	if s != 0 {
		return nil, linuxerr.FromStatus(int64(s))
	}
	return &DeviceNumberRegion{h: h, dev: dev, count: count}, nil
}

// Dev returns the first device number of the region.
func (r *DeviceNumberRegion) Dev() host.DevT {
	return r.dev
}

// Count returns the number of minors in the region.
func (r *DeviceNumberRegion) Count() uint32 {
	return r.count
}

// Close releases the region. Only the first call has an effect.
func (r *DeviceNumberRegion) Close() {
	r.once.Do(func() {
		r.h.UnregisterChrdevRegion(r.dev, r.count)
	})
}
