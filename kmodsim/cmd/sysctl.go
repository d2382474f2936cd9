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
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/config"
)

// Sysctl implements subcommands.Command for the "sysctl" command.
type Sysctl struct {
	write bool
}

// Name implements subcommands.Command.Name.
func (*Sysctl) Name() string {
	return "sysctl"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Sysctl) Synopsis() string {
	return "read or write the sysctls registered by the loaded extensions"
}

// Usage implements subcommands.Command.Usage.
func (*Sysctl) Usage() string {
	return `sysctl [<path>...] - prints the given sysctls, or all of them.
sysctl -w <path>=<value>... - writes the sysctls, then prints them.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (sc *Sysctl) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&sc.write, "w", false, "write path=value arguments.")
}

// Execute implements subcommands.Command.Execute.
func (sc *Sysctl) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if sc.write && f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		paths := f.Args()
		if sc.write {
			paths = nil
			for _, a := range f.Args() {
				path, value, ok := strings.Cut(a, "=")
				if !ok {
					return fmt.Errorf("invalid assignment %q, must be path=value", a)
				}
				if err := s.Host.WriteSysctl(path, []byte(value)); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				paths = append(paths, path)
			}
		}
		if len(paths) == 0 {
			paths = s.Host.Sysctls()
		}
		return printSysctlsTo(os.Stdout, s, paths)
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// printSysctlsTo prints paths to out like sysctl(8), with '/' for
// separators.
func printSysctlsTo(out io.Writer, s *Session, paths []string) error {
	for _, path := range paths {
		v, err := s.Host.ReadSysctl(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		fmt.Fprintf(out, "%s = %s\n", path, strings.TrimSuffix(v, "\n"))
	}
	return nil
}
