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
// Package cmd holds implementations of the kmodsim commands.
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/module"
)

// Fatalf logs the error and exits with status 128. It is used for errors
// that occur before or after a session, when there is nothing to clean up.
func Fatalf(format string, args ...any) {
	log.Warningf(format, args...)
	fmt.Fprintf(os.Stderr, "kmodsim: "+format+"\n", args...)
	os.Exit(128)
}

// StringFlags can be used with string flags that appear multiple times.
type StringFlags []string

// String implements flag.Value.
func (s *StringFlags) String() string {
	return strings.Join(*s, ",")
}

// Get implements flag.Getter.
func (s *StringFlags) Get() any {
	return s
}

// Set implements flag.Value.
func (s *StringFlags) Set(v string) error {
	if v == "" {
		return fmt.Errorf("empty value")
	}
	*s = append(*s, v)
	return nil
}

// Session is a simulated host with the configured extensions loaded. Only
// one session can exist at a time, since the host is bound process wide.
type Session struct {
	Host *hostsim.Host
	Set  *module.Set

	restore func()
}

// NewSession starts a host configured by conf and loads conf.Modules into
// it.
func NewSession(conf *config.Config) (*Session, error) {
	h := hostsim.New(conf.HostOptions())
	s := &Session{
		Host:    h,
		Set:     module.NewSet(h),
		restore: h.Install(),
	}
	for _, name := range conf.Modules {
		if _, err := s.Set.Load(name); err != nil {
			if cerr := s.Close(); cerr != nil {
				log.Warningf("closing session: %v", cerr)
			}
			return nil, err
		}
	}
	return s, nil
}

// Close unloads every extension and unbinds the host. It returns an error
// if the extensions left host resources behind.
func (s *Session) Close() error {
	defer s.restore()
	s.Set.UnloadAll()
	return s.Host.CheckReleased()
}

// ParseDev parses a device as "major:minor", where major is a number or
// the name of a registered region.
func (s *Session) ParseDev(arg string) (host.DevT, error) {
	majorStr, minorStr, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, fmt.Errorf("invalid device %q, must be major:minor", arg)
	}
	minor, err := strconv.ParseUint(minorStr, 10, 20)
	if err != nil {
		return 0, fmt.Errorf("invalid minor in %q: %v", arg, err)
	}
	if major, err := strconv.ParseUint(majorStr, 10, 12); err == nil {
		return host.MKDEV(uint32(major), uint32(minor)), nil
	}
	for _, d := range s.Host.Devices() {
		if d.Name == majorStr {
			return host.MKDEV(d.Major, uint32(minor)), nil
		}
	}
	return 0, fmt.Errorf("no device region named %q", majorStr)
}

// withSession runs fn in a new session and reports leaks found when it
// ends.
func withSession(conf *config.Config, fn func(s *Session) error) error {
	s, err := NewSession(conf)
	if err != nil {
		return err
	}
	ferr := fn(s)
	if err := s.Close(); err != nil {
		if ferr == nil {
			ferr = fmt.Errorf("extensions leaked host resources: %w", err)
		} else {
			log.Warningf("extensions leaked host resources: %v", err)
		}
	}
	return ferr
}
