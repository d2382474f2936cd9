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
// Package config holds the configuration of kmodsim: the simulated host
// the commands run against and the extensions loaded into it.
//
// A configuration file is TOML or YAML, selected by its extension:
//
//	host-version = "5.15"
//	modules = ["chrdev-tests", "json"]
//
//	[[tasks]]
//	tgid = 1
//	comm = "init"
//
// Flags given on the command line override the file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/log"
)

// MinHostVersion is the oldest host release kmodsim can simulate.
const MinHostVersion = "4.4"

// Task is a process started on the host after init.
type Task struct {
	Tgid int32  `toml:"tgid" yaml:"tgid"`
	Comm string `toml:"comm" yaml:"comm"`
}

// Config is the kmodsim configuration.
type Config struct {
	// HostVersion is the simulated host release, "major.minor[.patch]".
	HostVersion string `toml:"host-version" yaml:"host-version"`

	// AllocBudget limits the live bytes in the host heap. Zero means no
	// limit.
	AllocBudget uint64 `toml:"alloc-budget" yaml:"alloc-budget"`

	// Unseeded starts the host with an uninitialized random pool.
	Unseeded bool `toml:"unseeded" yaml:"unseeded"`

	// RandomSeed seeds the host's random pool.
	RandomSeed uint64 `toml:"random-seed" yaml:"random-seed"`

	// Tasks are started after the init task.
	Tasks []Task `toml:"tasks" yaml:"tasks"`

	// Modules are loaded, in order, before a command runs.
	Modules []string `toml:"modules" yaml:"modules"`

	// LogFormat is one of "text", "json" or "zap".
	LogFormat string `toml:"log-format" yaml:"log-format"`

	// LogLevel is one of "warning", "info" or "debug".
	LogLevel log.Level `toml:"log-level" yaml:"log-level"`

	// DebugLog is the path logs are written to, in addition to stderr. It
	// may contain %COMMAND% and %TIMESTAMP%.
	DebugLog string `toml:"debug-log" yaml:"debug-log"`
}

var defaults = Config{
	HostVersion: "5.15",
	Tasks: []Task{
		{Tgid: 1, Comm: "init"},
		{Tgid: 2, Comm: "kthreadd"},
	},
	LogFormat: "text",
	LogLevel:  log.Info,
}

// Default returns a fresh copy of the default configuration.
func Default() *Config {
	return deepcopy.Copy(&defaults).(*Config)
}

// Load reads the configuration file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Decoders merge array elements into existing ones, so the default
	// tasks are only restored if the file does not list any.
	c := Default()
	c.Tasks = nil
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing %q: unknown keys %v", path, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unknown configuration format %q, must be .toml, .yaml or .yml", ext)
	}
	if c.Tasks == nil {
		c.Tasks = Default().Tasks
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return c, nil
}

// Validate checks c for consistency.
func (c *Config) Validate() error {
	v := "v" + c.HostVersion
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return fmt.Errorf("invalid host version %q", c.HostVersion)
	}
	if semver.Compare(v, "v"+MinHostVersion) < 0 {
		return fmt.Errorf("host version %s is older than %s", c.HostVersion, MinHostVersion)
	}
	if !slices.Contains([]string{"text", "json", "zap"}, c.LogFormat) {
		return fmt.Errorf("invalid log format %q, must be 'text', 'json' or 'zap'", c.LogFormat)
	}
	if c.LogLevel > log.Debug {
		return fmt.Errorf("invalid log level %d", c.LogLevel)
	}
	seen := make(map[int32]bool)
	for _, t := range c.Tasks {
		if t.Tgid <= 0 {
			return fmt.Errorf("task %q: tgid %d is reserved", t.Comm, t.Tgid)
		}
		if seen[t.Tgid] {
			return fmt.Errorf("task %q: duplicate tgid %d", t.Comm, t.Tgid)
		}
		seen[t.Tgid] = true
	}
	return nil
}

// Version returns the parsed host version. c must be valid.
func (c *Config) Version() host.Version {
	v, err := host.ParseVersion(strings.TrimPrefix(semver.Canonical("v"+c.HostVersion), "v"))
	if err != nil {
		panic(fmt.Sprintf("unvalidated host version: %v", err))
	}
	return v
}

// HostOptions returns the options of the simulated host.
func (c *Config) HostOptions() hostsim.Options {
	opts := hostsim.Options{
		Version:     c.Version(),
		AllocBudget: c.AllocBudget,
		Unseeded:    c.Unseeded,
		RandomSeed:  c.RandomSeed,
	}
	for _, t := range c.Tasks {
		opts.Tasks = append(opts.Tasks, hostsim.TaskSpec{Tgid: t.Tgid, Comm: t.Comm})
	}
	return opts
}

// Log logs the configuration.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("\tHostVersion: %s", c.HostVersion)
	log.Infof("\tAllocBudget: %d", c.AllocBudget)
	log.Infof("\tUnseeded: %t", c.Unseeded)
	log.Infof("\tTasks: %d", len(c.Tasks))
	log.Infof("\tModules: %s", strings.Join(c.Modules, ","))
	log.Infof("\tLogFormat: %s", c.LogFormat)
	log.Infof("\tLogLevel: %v", c.LogLevel)
	log.Infof("\tDebugLog: %s", c.DebugLog)
}
