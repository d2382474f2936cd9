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
	"encoding/hex"
	"flag"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/random"
)

// Random implements subcommands.Command for the "random" command.
type Random struct {
	size      int
	nonblock  bool
	seedAfter time.Duration
	timeout   time.Duration
}

// Name implements subcommands.Command.Name.
func (*Random) Name() string {
	return "random"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Random) Synopsis() string {
	return "print bytes from the host's random number generator"
}

// Usage implements subcommands.Command.Usage.
func (*Random) Usage() string {
	return `random [flags] - prints random bytes in hex.

With -nonblock, reads are retried with backoff until the generator is
seeded. Use "unseeded = true" in the configuration and -seed-after to watch
it happen.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Random) SetFlags(f *flag.FlagSet) {
	f.IntVar(&r.size, "n", 16, "number of bytes.")
	f.BoolVar(&r.nonblock, "nonblock", false, "do not wait for the generator to be seeded.")
	f.DurationVar(&r.seedAfter, "seed-after", 0, "seed the generator after this long. Zero leaves it alone.")
	f.DurationVar(&r.timeout, "timeout", 5*time.Second, "give up nonblocking reads after this long.")
}

// Execute implements subcommands.Command.Execute.
func (r *Random) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || r.size < 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	err := withSession(conf, func(s *Session) error {
		if r.seedAfter > 0 {
			t := time.AfterFunc(r.seedAfter, s.Host.Seed)
			defer t.Stop()
		}
		buf := make([]byte, r.size)
		if err := getRandom(ctx, s, buf, r.nonblock, r.timeout); err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(buf))
		return nil
	})
	if err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// getRandom fills buf. Nonblocking reads that find the generator unseeded
// are retried until timeout.
func getRandom(ctx context.Context, s *Session, buf []byte, nonblock bool, timeout time.Duration) error {
	if !nonblock {
		return random.GetRandom(s.Host, buf)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxElapsedTime = timeout
	op := func() error {
		err := random.GetRandomNonblock(s.Host, buf)
		switch {
		case err == nil:
			return nil
		case linuxerr.Equals(linuxerr.EAGAIN, err):
			log.Debugf("random: generator not seeded yet")
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	return backoff.Retry(op, backoff.WithContext(eb, ctx))
}
