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
package printktest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/log"
)

func TestPrintk(t *testing.T) {
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
	l.Unload()

	// Strip the glog prefix up to "] ".
	var got []string
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		if i := strings.Index(line, "] "); i >= 0 {
			line = line[i+2:]
		}
		if !strings.HasPrefix(line, Info.Name+":") {
			got = append(got, line)
		}
	}
	want := []string{"Single element printk", "", "printk with 2 parameters!"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("log lines mismatch (-want +got):\n%s", diff)
	}
}
