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
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/module"
)

// Modules implements subcommands.Command for the "modules" command.
type Modules struct{}

// Name implements subcommands.Command.Name.
func (*Modules) Name() string {
	return "modules"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Modules) Synopsis() string {
	return "list the extensions built into kmodsim"
}

// Usage implements subcommands.Command.Usage.
func (*Modules) Usage() string {
	return "modules\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Modules) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Modules) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	w := tabwriter.NewWriter(os.Stdout, 12, 1, 3, ' ', 0)
	fmt.Fprint(w, "NAME\tLICENSE\tDESCRIPTION\n")
	for _, name := range module.Names() {
		d, _ := module.Lookup(name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, d.Info.License, d.Info.Description)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

// Modinfo implements subcommands.Command for the "modinfo" command.
type Modinfo struct {
	field string
}

// Name implements subcommands.Command.Name.
func (*Modinfo) Name() string {
	return "modinfo"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Modinfo) Synopsis() string {
	return "show information about an extension"
}

// Usage implements subcommands.Command.Usage.
func (*Modinfo) Usage() string {
	return "modinfo [-F field] <name>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Modinfo) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.field, "F", "", "only print this field: name, author, description or license.")
}

// Execute implements subcommands.Command.Execute.
func (m *Modinfo) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	d, ok := module.Lookup(f.Arg(0))
	if !ok {
		Fatalf("unknown extension %q", f.Arg(0))
	}
	if m.field == "" {
		fmt.Print(d.Info.Modinfo())
		return subcommands.ExitSuccess
	}
	v, ok := d.Info.Field(m.field)
	if !ok {
		Fatalf("unknown field %q", m.field)
	}
	fmt.Println(v)
	return subcommands.ExitSuccess
}

// Load implements subcommands.Command for the "load" command.
type Load struct{}

// Name implements subcommands.Command.Name.
func (*Load) Name() string {
	return "load"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Load) Synopsis() string {
	return "load extensions, show what they registered and unload them"
}

// Usage implements subcommands.Command.Usage.
func (*Load) Usage() string {
	return "load <name>...\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Load) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Load) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		for _, name := range f.Args() {
			if _, err := s.Set.Load(name); err != nil {
				return err
			}
		}
		for _, e := range s.Set.Loaded() {
			info := e.Info()
			fmt.Printf("%s\t%s", info.Name, info.Description)
			if t := info.Taint(); t != "" {
				fmt.Printf(" (taint %s)", t)
			}
			fmt.Println()
		}
		fmt.Print(s.Host.ProcDevices())
		fmt.Println("Filesystems:")
		fmt.Print(s.Host.ProcFilesystems())
		fmt.Println("Sysctls:")
		for _, path := range s.Host.Sysctls() {
			fmt.Printf("\t%s\n", path)
		}
		return nil
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}
