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

// Package random provides access to the host's cryptographically secure
// random number generator.
package random

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
)

// GetRandom fills dst with random bytes. It waits until the generator has
// been seeded.
func GetRandom(h host.Random, dst []byte) error {
	if s := h.WaitForRandomBytes(); s != 0 {
		return linuxerr.FromStatus(int64(s))
	}
	h.GetRandomBytes(dst)
	return nil
}

// GetRandomNonblock fills dst with random bytes if the generator has been
// seeded, and fails with EAGAIN otherwise. Hosts older than 4.19 can not
// report whether the generator is seeded; it fails with ENOSYS there.
func GetRandomNonblock(h host.Random, dst []byte) error {
	if !h.Version().AtLeast(4, 19) {
		return linuxerr.ENOSYS
	}
	if !h.RngIsInitialized() {
		return linuxerr.EAGAIN
	}
	return GetRandom(h, dst)
}

// AddRandomness mixes data into the generator's pool. It is not credited
// as entropy.
func AddRandomness(h host.Random, data []byte) {
	h.AddDeviceRandomness(data)
}
