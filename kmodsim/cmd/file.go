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
	"strconv"

	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/log"
)

// withFile opens dev for the duration of fn.
func withFile(s *Session, dev host.DevT, fn func(fd int) error) error {
	fd, err := s.Host.Open(dev, 0)
	if err != nil {
		return fmt.Errorf("opening %v: %w", dev, err)
	}
	ferr := fn(fd)
	if err := s.Host.Close(fd); err != nil {
		log.Warningf("closing %v: %v", dev, err)
	}
	return ferr
}

// readDev reads dev count times, n bytes at a time. A non-negative offset
// reads from there on with pread instead of from the file position.
func readDev(s *Session, dev host.DevT, n uint64, offset int64, count int) ([]byte, error) {
	var out []byte
	err := withFile(s, dev, func(fd int) error {
		for range count {
			var (
				data []byte
				err  error
			)
			if offset >= 0 {
				data, err = s.Host.Pread(fd, n, offset+int64(len(out)))
			} else {
				data, err = s.Host.Read(fd, n)
			}
			if err != nil {
				return err
			}
			if len(data) == 0 {
				break
			}
			out = append(out, data...)
		}
		return nil
	})
	return out, err
}

// writeDev writes each of data to dev in turn.
func writeDev(s *Session, dev host.DevT, data ...[]byte) (int, error) {
	total := 0
	err := withFile(s, dev, func(fd int) error {
		for _, d := range data {
			n, err := s.Host.Write(fd, d)
			total += n
			if err != nil {
				return err
			}
		}
		return nil
	})
	return total, err
}

// parseWhence parses a whence name.
func parseWhence(s string) (int32, error) {
	switch s {
	case "set":
		return host.SEEK_SET, nil
	case "cur":
		return host.SEEK_CUR, nil
	case "end":
		return host.SEEK_END, nil
	default:
		return 0, fmt.Errorf("invalid whence %q, must be 'set', 'cur' or 'end'", s)
	}
}

// seekDev seeks dev and returns the new position.
func seekDev(s *Session, dev host.DevT, offset int64, whence int32) (int64, error) {
	var pos int64
	err := withFile(s, dev, func(fd int) error {
		var err error
		pos, err = s.Host.Seek(fd, offset, whence)
		return err
	})
	return pos, err
}

// Read implements subcommands.Command for the "read" command.
type Read struct {
	size   uint64
	offset int64
	count  int
}

// Name implements subcommands.Command.Name.
func (*Read) Name() string {
	return "read"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Read) Synopsis() string {
	return "read from a character device"
}

// Usage implements subcommands.Command.Usage.
func (*Read) Usage() string {
	return `read [flags] <major:minor> - reads from the device and writes the data to stdout.

The major number may be given as the name of the device region, e.g.
"chrdev-tests:0".
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Read) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&r.size, "n", 4096, "bytes to read per read(2).")
	f.Int64Var(&r.offset, "offset", -1, "read with pread(2) from this offset instead of the file position.")
	f.IntVar(&r.count, "count", 1, "number of reads, stopping early at end of file.")
}

// Execute implements subcommands.Command.Execute.
func (r *Read) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		dev, err := s.ParseDev(f.Arg(0))
		if err != nil {
			return err
		}
		data, err := readDev(s, dev, r.size, r.offset, r.count)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// Write implements subcommands.Command for the "write" command.
type Write struct{}

// Name implements subcommands.Command.Name.
func (*Write) Name() string {
	return "write"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Write) Synopsis() string {
	return "write to a character device"
}

// Usage implements subcommands.Command.Usage.
func (*Write) Usage() string {
	return "write <major:minor> <data>... - writes each argument with a separate write(2).\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Write) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Write) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		dev, err := s.ParseDev(f.Arg(0))
		if err != nil {
			return err
		}
		var data [][]byte
		for _, a := range f.Args()[1:] {
			data = append(data, []byte(a))
		}
		n, err := writeDev(s, dev, data...)
		fmt.Printf("%d bytes written\n", n)
		return err
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// Seek implements subcommands.Command for the "seek" command.
type Seek struct {
	whence string
}

// Name implements subcommands.Command.Name.
func (*Seek) Name() string {
	return "seek"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Seek) Synopsis() string {
	return "seek a character device and print the resulting position"
}

// Usage implements subcommands.Command.Usage.
func (*Seek) Usage() string {
	return "seek [-whence set|cur|end] <major:minor> <offset>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (sk *Seek) SetFlags(f *flag.FlagSet) {
	f.StringVar(&sk.whence, "whence", "set", "what the offset is relative to: set, cur or end.")
}

// Execute implements subcommands.Command.Execute.
func (sk *Seek) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	whence, err := parseWhence(sk.whence)
	if err != nil {
		Fatalf("%v", err)
	}
	offset, err := strconv.ParseInt(f.Arg(1), 0, 64)
	if err != nil {
		Fatalf("invalid offset %q: %v", f.Arg(1), err)
	}
	conf := args[0].(*config.Config)
	err = withSession(conf, func(s *Session) error {
		dev, err := s.ParseDev(f.Arg(0))
		if err != nil {
			return err
		}
		pos, err := seekDev(s, dev, offset, whence)
		if err != nil {
			return err
		}
		fmt.Println(pos)
		return nil
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}
