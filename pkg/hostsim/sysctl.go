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

package hostsim

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
)

// sysctlHeaderBase is the start of the addresses used as table headers.
const sysctlHeaderBase host.Addr = 0xffffa00000000000

// sysctlBufferSize is the size of the buffer a sysctl read is served
// with, one page as in procfs.
const sysctlBufferSize = pageSize

// maxSysctlReads bounds the reads ReadSysctl issues before giving up on
// reaching EOF.
const maxSysctlReads = 64

// sysctlTree holds registered sysctl tables, indexed by full path.
type sysctlTree struct {
	entries map[string]*host.CtlTable
	headers map[host.Addr][]string
	next    host.Addr
}

func (t *sysctlTree) init() {
	t.entries = make(map[string]*host.CtlTable)
	t.headers = make(map[host.Addr][]string)
	t.next = sysctlHeaderBase
}

func (t *sysctlTree) pathsLocked() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

func validSysctlDir(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return false
	}
	return !strings.Contains(path, "//") && !strings.ContainsRune(path, 0)
}

// RegisterSysctl implements host.Sysctls.RegisterSysctl. Like the real
// primitive it reports every failure as a zero header.
func (h *Host) RegisterSysctl(path string, table []host.CtlTable) host.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.recordLocked(OpRegisterSysctl, path); s != 0 {
		return 0
	}
	if !validSysctlDir(path) {
		return 0
	}
	var paths []string
	for i := range table {
		e := &table[i]
		if e.Procname == "" || strings.ContainsAny(e.Procname, "/\x00") || e.ProcHandler == nil {
			return 0
		}
		full := path + "/" + e.Procname
		if _, ok := h.sysctl.entries[full]; ok || slices.Contains(paths, full) {
			return 0
		}
		paths = append(paths, full)
	}
	for i, full := range paths {
		h.sysctl.entries[full] = &table[i]
	}
	header := h.sysctl.next
	h.sysctl.next += 0x40
	h.sysctl.headers[header] = paths
	return header
}

// UnregisterSysctlTable implements host.Sysctls.UnregisterSysctlTable.
func (h *Host) UnregisterSysctlTable(header host.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(OpUnregisterSysctlTable, fmt.Sprintf("%#x", header))
	paths, ok := h.sysctl.headers[header]
	if !ok {
		h.problemLocked("unregister of unknown sysctl table header %#x", header)
		return
	}
	for _, p := range paths {
		delete(h.sysctl.entries, p)
	}
	delete(h.sysctl.headers, header)
}

// Sysctls returns the full paths of registered sysctls, sorted.
func (h *Host) Sysctls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sysctl.pathsLocked()
}

func (h *Host) lookupSysctl(path string, perm uint32) (*host.CtlTable, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.sysctl.entries[path]
	if !ok {
		return nil, linuxerr.ENOENT
	}
	if e.Mode&perm == 0 {
		return nil, linuxerr.EACCES
	}
	return e, nil
}

// ReadSysctl reads the value of the sysctl at path, like reading its
// procfs file to EOF.
func (h *Host) ReadSysctl(path string) (string, error) {
	e, err := h.lookupSysctl(path, 0o444)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var pos int64
	for range maxSysctlReads {
		data, err := h.SysctlCall(e, false, nil, sysctlBufferSize, &pos)
		if err != nil {
			return "", err
		}
		if len(data) == 0 {
			return b.String(), nil
		}
		b.Write(data)
	}
	h.mu.Lock()
	h.problemLocked("sysctl %q did not reach EOF after %d reads", path, maxSysctlReads)
	h.mu.Unlock()
	return b.String(), nil
}

// ReadSysctlN reads the sysctl at path once, with an n byte buffer, like a
// single read(2) of its procfs file.
func (h *Host) ReadSysctlN(path string, n uint64) ([]byte, error) {
	e, err := h.lookupSysctl(path, 0o444)
	if err != nil {
		return nil, err
	}
	var pos int64
	return h.SysctlCall(e, false, nil, n, &pos)
}

// WriteSysctl writes value to the sysctl at path in a single write.
func (h *Host) WriteSysctl(path string, value []byte) error {
	e, err := h.lookupSysctl(path, 0o222)
	if err != nil {
		return err
	}
	var pos int64
	_, err = h.SysctlCall(e, true, value, uint64(len(value)), &pos)
	return err
}

// SysctlCall invokes the handler of e once with a fresh buffer of length
// bytes, holding data for writes, at position *pos. It returns the
// processed part of the buffer.
func (h *Host) SysctlCall(e *host.CtlTable, write bool, data []byte, length uint64, pos *int64) ([]byte, error) {
	buf := h.MapSize(data, int(length))
	defer h.Unmap(buf)
	var w int32
	if write {
		w = 1
	}
	lenp := length
	if s := e.ProcHandler(e, w, buf, &lenp, pos); s != 0 {
		return nil, linuxerr.FromStatus(int64(s))
	}
	if lenp > length {
		h.mu.Lock()
		h.problemLocked("sysctl handler reported %d bytes for a %d byte buffer", lenp, length)
		h.mu.Unlock()
		lenp = length
	}
	out, _ := h.Peek(buf, int(lenp))
	return out, nil
}
