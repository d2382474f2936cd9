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

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileOpts builds log file paths from patterns.
type FileOpts interface {
	// Build constructs the log file path based on the given pattern.
	Build(logPattern string) string
}

// PatternOpts expands the variables supported in log file patterns:
// %COMMAND%, %TIMESTAMP% and %HOST%.
type PatternOpts struct {
	// Command is the name of the command being logged.
	Command string

	// Start is the time the command started.
	Start time.Time

	// Host is the release of the simulated host, e.g. "5.15.0".
	Host string
}

// Build implements FileOpts.Build.
func (o PatternOpts) Build(logPattern string) string {
	command := o.Command
	if command == "" {
		command = "none"
	}
	return strings.NewReplacer(
		"%COMMAND%", command,
		"%TIMESTAMP%", strconv.FormatInt(o.Start.UnixNano(), 10),
		"%HOST%", o.Host,
	).Replace(logPattern)
}

// OpenFile opens the log file named by expanding logPattern with opts,
// creating its directory if needed. An empty pattern returns a nil file.
func OpenFile(logPattern string, flags int, opts FileOpts) (*os.File, error) {
	if logPattern == "" {
		return nil, nil
	}
	logPath := opts.Build(logPattern)
	if dir := filepath.Dir(logPath); dir != "." {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return nil, fmt.Errorf("error creating dir %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(logPath, flags, 0664)
	if err != nil {
		return nil, fmt.Errorf("error opening file %q: %w", logPath, err)
	}
	return f, nil
}
