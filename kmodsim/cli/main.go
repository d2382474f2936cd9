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
// Package cli is the main entrypoint for kmodsim.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/kmod/kmodsim/cmd"
	"gvisor.dev/kmod/kmodsim/config"
	"gvisor.dev/kmod/pkg/log"

	// Extensions register themselves with the module registry.
	_ "gvisor.dev/kmod/modules/chrdevregion"
	_ "gvisor.dev/kmod/modules/chrdevtest"
	_ "gvisor.dev/kmod/modules/examplesysctl"
	_ "gvisor.dev/kmod/modules/foreachprocess"
	_ "gvisor.dev/kmod/modules/hello"
	_ "gvisor.dev/kmod/modules/jsonsysctl"
	_ "gvisor.dev/kmod/modules/modinfotest"
	_ "gvisor.dev/kmod/modules/printktest"
	_ "gvisor.dev/kmod/modules/randomtest"
	_ "gvisor.dev/kmod/modules/sysctlget"
	_ "gvisor.dev/kmod/modules/sysctltest"
	_ "gvisor.dev/kmod/modules/testfs"
)

var (
	configFile  = flag.String("config", "", "TOML or YAML configuration file. Flags override its values.")
	hostVersion = flag.String("host-version", "", "host release to simulate, e.g. 5.15.")
	logFormat   = flag.String("log-format", "", "log format: text, json or zap.")
	logLevel    = flag.String("log-level", "", "log level: warning, info or debug.")
	debugLog    = flag.String("debug-log", "", "additional location for logs. %COMMAND%, %TIMESTAMP% and %HOST% are expanded.")
	modules     cmd.StringFlags
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	flag.Var(&modules, "module", "extension to load before running the command. May be repeated.")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	conf := config.Default()
	if *configFile != "" {
		var err error
		if conf, err = config.Load(*configFile); err != nil {
			cmd.Fatalf("%v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host-version":
			conf.HostVersion = *hostVersion
		case "log-format":
			conf.LogFormat = *logFormat
		case "log-level":
			level, err := log.ParseLevel(*logLevel)
			if err != nil {
				cmd.Fatalf("%v", err)
			}
			conf.LogLevel = level
		case "debug-log":
			conf.DebugLog = *debugLog
		}
	})
	conf.Modules = append(conf.Modules, modules...)
	if err := conf.Validate(); err != nil {
		cmd.Fatalf("%v", err)
	}

	log.SetLevel(conf.LogLevel)

	subcommand := flag.CommandLine.Arg(0)
	emitters := log.MultiEmitter{newEmitter(conf.LogFormat, os.Stderr)}
	if conf.DebugLog != "" {
		f, err := log.OpenFile(conf.DebugLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.PatternOpts{
			Command: subcommand,
			Start:   time.Now(),
			Host:    conf.Version().String(),
		})
		if err != nil {
			cmd.Fatalf("error opening debug log file in %q: %v", conf.DebugLog, err)
		}
		defer f.Close()
		emitters = append(emitters, newEmitter(conf.LogFormat, f))
	}
	switch len(emitters) {
	case 1:
		log.SetTarget(emitters[0])
	default:
		log.SetTarget(&emitters)
	}

	log.Debugf("kmodsim, %s, %s, PID %d", runtime.Version(), runtime.GOARCH, os.Getpid())
	log.Debugf("Args: %v", os.Args)
	if log.IsLogging(log.Debug) {
		conf.Log()
	}

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	for _, e := range emitters {
		if z, ok := e.(log.ZapEmitter); ok {
			_ = z.Sync()
		}
	}
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
		os.Exit(int(subcmdCode))
	}
}

// forEachCmd invokes the passed callback for each command supported by
// kmodsim.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")

	cb(new(cmd.Modules), "")
	cb(new(cmd.Modinfo), "")
	cb(new(cmd.Load), "")

	const fileGroup = "files"
	cb(new(cmd.Read), fileGroup)
	cb(new(cmd.Write), fileGroup)
	cb(new(cmd.Seek), fileGroup)

	const hostGroup = "host"
	cb(new(cmd.Devices), hostGroup)
	cb(new(cmd.Filesystems), hostGroup)
	cb(new(cmd.Mount), hostGroup)
	cb(new(cmd.PS), hostGroup)
	cb(new(cmd.Random), hostGroup)
	cb(new(cmd.Sysctl), hostGroup)

	cb(new(cmd.Interactive), "interactive")
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{&log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{&log.Writer{Next: logFile}}
	case "zap":
		return log.NewZapEmitter(logFile)
	}
	cmd.Fatalf("invalid log format %q, must be 'text', 'json', or 'zap'", format)
	panic("unreachable")
}
