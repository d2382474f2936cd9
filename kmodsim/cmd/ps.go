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
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/rcu"
	"gvisor.dev/kmod/pkg/sched"
)

// PS implements subcommands.Command for the "ps" command.
type PS struct{}

// Name implements subcommands.Command.Name.
func (*PS) Name() string {
	return "ps"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*PS) Synopsis() string {
	return "list the processes of the simulated host"
}

// Usage implements subcommands.Command.Usage.
func (*PS) Usage() string {
	return "ps\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*PS) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*PS) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		ps(s, os.Stdout)
		return nil
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// ps writes the process table of the session's host to out.
func ps(s *Session, out io.Writer) {
	w := tabwriter.NewWriter(out, 8, 1, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "TGID\tCOMM\t\n")
	g := rcu.ReadLock(s.Host)
	defer g.Unlock()
	for p := range sched.EachProcess(s.Host, g) {
		fmt.Fprintf(w, "%d\t%s\t\n", p.Tgid(), p.Comm())
	}
	w.Flush()
}
