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
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/log"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefaultIsCopy(t *testing.T) {
	c := Default()
	c.Tasks[0].Comm = "changed"
	c.Modules = append(c.Modules, "hello-world")
	if d := Default(); d.Tasks[0].Comm != "init" || len(d.Modules) != 0 {
		t.Errorf("changing a default config leaked into defaults: %+v", d)
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	want := &Config{
		HostVersion: "4.19.3",
		AllocBudget: 4096,
		Tasks:       []Task{{Tgid: 100, Comm: "areyouthere"}},
		Modules:     []string{"chrdev-tests", "json"},
		LogFormat:   "json",
		LogLevel:    log.Debug,
	}
	for _, tc := range []struct {
		name    string
		content string
	}{
		{
			name: "kmodsim.toml",
			content: `host-version = "4.19.3"
alloc-budget = 4096
modules = ["chrdev-tests", "json"]
log-format = "json"
log-level = "debug"

[[tasks]]
tgid = 100
comm = "areyouthere"
`,
		},
		{
			name: "kmodsim.yaml",
			content: `host-version: "4.19.3"
alloc-budget: 4096
modules: [chrdev-tests, json]
log-format: json
log-level: debug
tasks:
  - tgid: 100
    comm: areyouthere
`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(writeFile(t, tc.name, tc.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
			if v := got.Version(); v != (host.Version{Major: 4, Minor: 19, Patch: 3}) {
				t.Errorf("Version() = %v, wanted 4.19.3", v)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		want    string
	}{
		{"a.toml", `colour = "blue"`, "unknown keys"},
		{"a.yaml", "colour: blue\n", "colour"},
		{"a.json", `{}`, "unknown configuration format"},
		{"a.toml", `host-version = "five"`, "invalid host version"},
		{"a.toml", `host-version = "5.15-rc1"`, "invalid host version"},
		{"a.toml", `host-version = "3.10"`, "older than"},
		{"a.toml", `log-format = "xml"`, "invalid log format"},
		{"a.toml", `log-level = "trace"`, "unknown log level"},
		{"a.toml", "[[tasks]]\ntgid = 1\n[[tasks]]\ntgid = 1\n", "duplicate tgid"},
		{"a.toml", "[[tasks]]\ntgid = 0\n", "reserved"},
	} {
		_, err := Load(writeFile(t, tc.name, tc.content))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("Load(%s %q) = %v, wanted error containing %q", tc.name, tc.content, err, tc.want)
		}
	}
}

func TestHostOptions(t *testing.T) {
	c := Default()
	c.HostVersion = "4.14"
	c.Unseeded = true
	want := hostsim.Options{
		Version:  host.Version{Major: 4, Minor: 14},
		Unseeded: true,
		Tasks:    []hostsim.TaskSpec{{Tgid: 1, Comm: "init"}, {Tgid: 2, Comm: "kthreadd"}},
	}
	if diff := cmp.Diff(want, c.HostOptions()); diff != "" {
		t.Errorf("HostOptions() mismatch (-want +got):\n%s", diff)
	}
}
