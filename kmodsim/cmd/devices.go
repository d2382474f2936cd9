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

	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/config"
)

// Devices implements subcommands.Command for the "devices" command.
type Devices struct{}

// Name implements subcommands.Command.Name.
func (*Devices) Name() string {
	return "devices"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Devices) Synopsis() string {
	return "list the character devices registered by the loaded extensions"
}

// Usage implements subcommands.Command.Usage.
func (*Devices) Usage() string {
	return "devices\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Devices) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Devices) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		fmt.Print(s.Host.ProcDevices())
		fmt.Println()
		fmt.Println("Device nodes:")
		for _, dev := range s.Host.Cdevs() {
			fmt.Printf("%8v\n", dev)
		}
		return nil
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// Filesystems implements subcommands.Command for the "filesystems" command.
type Filesystems struct{}

// Name implements subcommands.Command.Name.
func (*Filesystems) Name() string {
	return "filesystems"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Filesystems) Synopsis() string {
	return "list the filesystem types registered by the loaded extensions"
}

// Usage implements subcommands.Command.Usage.
func (*Filesystems) Usage() string {
	return "filesystems\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Filesystems) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Filesystems) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		fmt.Print(s.Host.ProcFilesystems())
		return nil
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}
