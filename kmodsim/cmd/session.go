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
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"golang.org/x/term"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/random"
)

// Interactive implements subcommands.Command for the "session" command.
type Interactive struct {
	transcript string
}

// Name implements subcommands.Command.Name.
func (*Interactive) Name() string {
	return "session"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Interactive) Synopsis() string {
	return "run commands read from stdin against one simulated host"
}

// Usage implements subcommands.Command.Usage.
func (*Interactive) Usage() string {
	return `session [-transcript <file>] - reads commands from stdin, one per line.

Unlike the other commands, the host lives across commands, so files can be
opened, read and seeked step by step. Type "help" for the commands.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (i *Interactive) SetFlags(f *flag.FlagSet) {
	f.StringVar(&i.transcript, "transcript", "", "append every command to this file.")
}

// Execute implements subcommands.Command.Execute.
func (i *Interactive) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	var transcript io.Writer
	if i.transcript != "" {
		// The transcript is exclusive to one session at a time.
		l := flock.NewFlock(i.transcript + ".lock")
		locked, err := l.TryLock()
		if err != nil {
			Fatalf("error locking transcript %q: %v", i.transcript, err)
		}
		if !locked {
			Fatalf("transcript %q is used by another session", i.transcript)
		}
		defer l.Unlock()
		tf, err := os.OpenFile(i.transcript, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			Fatalf("error opening transcript: %v", err)
		}
		defer tf.Close()
		transcript = tf
	}

	prompt := ""
	if term.IsTerminal(int(os.Stdin.Fd())) {
		prompt = "kmodsim> "
	}
	err := withSession(conf, func(s *Session) error {
		r := newREPL(s, os.Stdout)
		defer r.closeAll()
		return r.run(os.Stdin, prompt, transcript)
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

const replHelp = `commands:
  load <name>                 load an extension
  unload <name>               unload an extension
  lsmod                       list loaded extensions
  devices                     show /proc/devices
  filesystems                 show /proc/filesystems
  ps                          list processes
  open <major:minor>          open a device, printing the fd
  close <fd>                  close an fd
  read <fd> <n>               read up to n bytes at the file position
  pread <fd> <n> <offset>     read up to n bytes at offset
  write <fd> <data>           write data at the file position
  seek <fd> <offset> [whence] seek, whence is set, cur or end
  sysctl [<path> [<value>]]   list, read or write sysctls
  mount <fstype> [<device>]   mount and unmount a filesystem
  random <n>                  print n random bytes
  quit                        end the session
`

// repl runs session commands.
type repl struct {
	s   *Session
	out io.Writer

	// fds are the files opened by the user.
	fds map[int]host.DevT
}

func newREPL(s *Session, out io.Writer) *repl {
	return &repl{s: s, out: out, fds: make(map[int]host.DevT)}
}

// run executes the commands read from in until it ends or a quit command.
// Failing commands are reported to out and do not end the session.
func (r *repl) run(in io.Reader, prompt string, transcript io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, prompt)
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if transcript != nil {
			fmt.Fprintln(transcript, line)
		}
		quit, err := r.exec(strings.Fields(line))
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// closeAll closes every file left open.
func (r *repl) closeAll() {
	for _, fd := range slices.Sorted(maps.Keys(r.fds)) {
		if err := r.s.Host.Close(fd); err != nil {
			log.Warningf("closing fd %d: %v", fd, err)
		}
	}
	clear(r.fds)
}

// fd parses an fd argument opened in this session.
func (r *repl) fd(arg string) (int, error) {
	fd, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid fd %q", arg)
	}
	if _, ok := r.fds[fd]; !ok {
		return 0, fmt.Errorf("fd %d is not open", fd)
	}
	return fd, nil
}

// parseSize parses a size argument.
func parseSize(arg string) (uint64, error) {
	n, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", arg)
	}
	return n, nil
}

// exec runs one command.
func (r *repl) exec(argv []string) (quit bool, err error) {
	cmd, args := argv[0], argv[1:]
	want := func(min, max int) error {
		if len(args) < min || len(args) > max {
			return fmt.Errorf("wrong number of arguments to %s", cmd)
		}
		return nil
	}

	switch cmd {
	case "quit", "exit":
		return true, want(0, 0)
	case "help":
		fmt.Fprint(r.out, replHelp)
		return false, nil
	case "load":
		if err := want(1, 1); err != nil {
			return false, err
		}
		_, err := r.s.Set.Load(args[0])
		return false, err
	case "unload":
		if err := want(1, 1); err != nil {
			return false, err
		}
		return false, r.s.Set.Unload(args[0])
	case "lsmod":
		for _, e := range r.s.Set.Loaded() {
			fmt.Fprintln(r.out, e.Info().Name)
		}
		return false, nil
	case "devices":
		fmt.Fprint(r.out, r.s.Host.ProcDevices())
		return false, nil
	case "filesystems":
		fmt.Fprint(r.out, r.s.Host.ProcFilesystems())
		return false, nil
	case "ps":
		ps(r.s, r.out)
		return false, nil
	case "open":
		if err := want(1, 1); err != nil {
			return false, err
		}
		dev, err := r.s.ParseDev(args[0])
		if err != nil {
			return false, err
		}
		fd, err := r.s.Host.Open(dev, 0)
		if err != nil {
			return false, err
		}
		r.fds[fd] = dev
		fmt.Fprintf(r.out, "fd %d\n", fd)
		return false, nil
	case "close":
		if err := want(1, 1); err != nil {
			return false, err
		}
		fd, err := r.fd(args[0])
		if err != nil {
			return false, err
		}
		delete(r.fds, fd)
		return false, r.s.Host.Close(fd)
	case "read", "pread":
		if cmd == "read" {
			err = want(2, 2)
		} else {
			err = want(3, 3)
		}
		if err != nil {
			return false, err
		}
		fd, err := r.fd(args[0])
		if err != nil {
			return false, err
		}
		n, err := parseSize(args[1])
		if err != nil {
			return false, err
		}
		var data []byte
		if cmd == "read" {
			data, err = r.s.Host.Read(fd, n)
		} else {
			var off int64
			if off, err = strconv.ParseInt(args[2], 0, 64); err != nil {
				return false, fmt.Errorf("invalid offset %q", args[2])
			}
			data, err = r.s.Host.Pread(fd, n, off)
		}
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%q\n", data)
		return false, nil
	case "write":
		if err := want(2, 2); err != nil {
			return false, err
		}
		fd, err := r.fd(args[0])
		if err != nil {
			return false, err
		}
		n, err := r.s.Host.Write(fd, []byte(args[1]))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%d\n", n)
		return false, nil
	case "seek":
		if err := want(2, 3); err != nil {
			return false, err
		}
		fd, err := r.fd(args[0])
		if err != nil {
			return false, err
		}
		off, err := strconv.ParseInt(args[1], 0, 64)
		if err != nil {
			return false, fmt.Errorf("invalid offset %q", args[1])
		}
		whence := host.SEEK_SET
		if len(args) == 3 {
			if whence, err = parseWhence(args[2]); err != nil {
				return false, err
			}
		}
		pos, err := r.s.Host.Seek(fd, off, whence)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%d\n", pos)
		return false, nil
	case "sysctl":
		if err := want(0, 2); err != nil {
			return false, err
		}
		switch len(args) {
		case 0:
			return false, printSysctlsTo(r.out, r.s, r.s.Host.Sysctls())
		case 2:
			if err := r.s.Host.WriteSysctl(args[0], []byte(args[1])); err != nil {
				return false, err
			}
		}
		return false, printSysctlsTo(r.out, r.s, args[:1])
	case "mount":
		if err := want(1, 2); err != nil {
			return false, err
		}
		device := ""
		if len(args) == 2 {
			device = args[1]
		}
		return false, mountTo(r.out, r.s, args[0], device, 0)
	case "random":
		if err := want(1, 1); err != nil {
			return false, err
		}
		n, err := parseSize(args[0])
		if err != nil {
			return false, err
		}
		buf := make([]byte, n)
		if err := random.GetRandom(r.s.Host, buf); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%x\n", buf)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
}
