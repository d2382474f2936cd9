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

package sysctlget

import (
	"bytes"
	"strings"
	"testing"

	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/log"
)

func TestGet(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Log()
	log.SetTarget(log.GoogleEmitter{Emitter: &log.Writer{Next: &buf}})
	defer log.SetTarget(prev.Emitter)

	h := hostsim.New(hostsim.Options{})
	defer h.Install()()
	l, err := Load(h)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.WriteSysctl(Path, []byte("1")); err != nil {
		t.Fatalf("WriteSysctl failed: %v", err)
	}
	l.Unload()

	for _, want := range []string{"A_VAL: true", "SYSCTL_A: true"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log %q does not contain %q", buf.String(), want)
		}
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}
