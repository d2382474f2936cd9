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

	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/hostsim"
)

// Mount implements subcommands.Command for the "mount" command.
type Mount struct {
	silent bool
}

// Name implements subcommands.Command.Name.
func (*Mount) Name() string {
	return "mount"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Mount) Synopsis() string {
	return "mount and unmount a filesystem registered by the loaded extensions"
}

// Usage implements subcommands.Command.Usage.
func (*Mount) Usage() string {
	return "mount [-silent] <fstype> [<device>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Mount) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&m.silent, "silent", false, "ask the filesystem not to log mount errors.")
}

// Execute implements subcommands.Command.Execute.
func (m *Mount) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 1 || f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	var flags int32
	if m.silent {
		flags |= hostsim.MS_SILENT
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		return mountTo(os.Stdout, s, f.Arg(0), f.Arg(1), flags)
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// mountTo mounts fstype, prints its super block to out and unmounts it.
func mountTo(out io.Writer, s *Session, fstype, device string, flags int32) error {
	id, err := s.Host.Mount(fstype, device, flags, nil)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", fstype, err)
	}
	sb := s.Host.SuperBlock(id)
	fmt.Fprintf(out, "%s mounted: magic %#x, root inode %d, mode %#o\n", fstype, sb.Magic, sb.Root.Ino, sb.Root.Mode)
	if err := s.Host.Unmount(id); err != nil {
		return fmt.Errorf("unmounting %s: %w", fstype, err)
	}
	fmt.Fprintf(out, "%s unmounted\n", fstype)
	return nil
}
