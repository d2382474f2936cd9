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
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"gvisor.dev/kmod/pkg/abi/host"
)

// randomPool is the host CSPRNG. Its output is reproducible for a given
// seed and sequence of added randomness.
type randomPool struct {
	seed   [32]byte
	rng    *rand.ChaCha8
	seeded bool

	// added counts bytes mixed in by AddDeviceRandomness.
	added uint64
}

func (p *randomPool) init(seed uint64, seeded bool) {
	binary.LittleEndian.PutUint64(p.seed[:], seed)
	p.rng = rand.NewChaCha8(p.seed)
	p.seeded = seeded
}

// mix folds data into the seed and rekeys the generator.
func (p *randomPool) mix(data []byte) {
	for i, b := range data {
		p.seed[i%len(p.seed)] ^= b
	}
	var next [32]byte
	p.rng.Read(next[:])
	for i := range next {
		p.seed[i] ^= next[i]
	}
	p.rng = rand.NewChaCha8(p.seed)
	p.added += uint64(len(data))
}

// WaitForRandomBytes implements host.Random.WaitForRandomBytes. The pool is
// seeded by the time it returns successfully.
func (h *Host) WaitForRandomBytes() host.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st := h.recordLocked(OpWaitForRandomBytes, ""); st < 0 {
		return st
	}
	h.random.seeded = true
	return 0
}

// GetRandomBytes implements host.Random.GetRandomBytes.
func (h *Host) GetRandomBytes(dst []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpGetRandomBytes, fmt.Sprintf("%d", len(dst)))
	h.random.rng.Read(dst)
}

// RngIsInitialized implements host.Random.RngIsInitialized.
func (h *Host) RngIsInitialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.random.seeded
}

// AddDeviceRandomness implements host.Random.AddDeviceRandomness.
func (h *Host) AddDeviceRandomness(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpAddDeviceRandomness, fmt.Sprintf("%d", len(data)))
	h.random.mix(data)
}

// Seed marks the random pool as initialized, as if the host had gathered
// enough entropy.
func (h *Host) Seed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.random.seeded = true
}

// EntropyAdded returns the number of bytes mixed into the random pool by
// AddDeviceRandomness.
func (h *Host) EntropyAdded() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.random.added
}
