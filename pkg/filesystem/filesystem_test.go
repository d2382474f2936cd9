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

package filesystem

import (
	"bytes"
	"strings"
	"testing"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/handle"
	"gvisor.dev/kmod/pkg/hostsim"
	"gvisor.dev/kmod/pkg/log"
)

type info struct {
	value uint32
}

// events records the callbacks of the test filesystem.
var events []string

type superOps struct{}

func (superOps) PutSuper(sb *SuperBlock[info]) {
	i, ok := sb.FSInfo()
	if !ok || i.value != 0xbadf00d {
		events = append(events, "put_super: bad info")
	}
	sb.ReplaceFSInfo(nil)
	events = append(events, "put_super")
}

type testFS struct {
	// failRoot makes FillSuper fail after the info was attached.
	failRoot bool
}

func (testFS) Name() string { return "testfs" }

func (testFS) Flags() Flags { return RequiresDev }

func (fs testFS) FillSuper(sb *SuperBlock[info], data []byte, silent bool) error {
	if _, ok := sb.FSInfo(); ok {
		return linuxerr.EINVAL
	}
	sb.ReplaceFSInfo(&info{value: 42})
	i, ok := sb.FSInfo()
	if !ok || i.value != 42 {
		return linuxerr.EINVAL
	}
	i.value = 0xbadf00d
	sb.SetOps(BuildSuperOperations[info, superOps]())
	sb.SetMagic(0xdeadc0de)
	if fs.failRoot {
		return linuxerr.ENOSPC
	}
	if err := sb.MakeRootDir(1); err != nil {
		return err
	}
	events = append(events, "fill_super")
	return nil
}

func newHost(t *testing.T) *hostsim.Host {
	h := hostsim.New(hostsim.Options{})
	t.Cleanup(h.Install())
	events = nil
	return h
}

func TestRegisterVisibility(t *testing.T) {
	h := newHost(t)
	if strings.Contains(h.ProcFilesystems(), "testfs") {
		t.Fatalf("testfs listed before registration")
	}
	r, err := Register[info](h, testFS{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got, want := h.ProcFilesystems(), "\ttestfs\n"; got != want {
		t.Errorf("ProcFilesystems() = %q, wanted %q", got, want)
	}
	if _, err := Register[info](h, testFS{}); !linuxerr.Equals(linuxerr.EBUSY, err) {
		t.Errorf("second Register = %v, wanted EBUSY", err)
	}
	r.Close()
	r.Close()
	if strings.Contains(h.ProcFilesystems(), "testfs") {
		t.Errorf("testfs listed after Close")
	}
	if got := h.Count(hostsim.OpUnregisterFilesystem); got != 1 {
		t.Errorf("unregister_filesystem called %d times, wanted 1", got)
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}

func TestMount(t *testing.T) {
	h := newHost(t)
	r, err := Register[info](h, testFS{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer r.Close()

	if _, err := h.Mount("testfs", "", 0, nil); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("Mount without device = %v, wanted ENOENT", err)
	}
	id, err := h.Mount("testfs", "/dev/loop0", 0, nil)
	if err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	sb := h.SuperBlock(id)
	if sb.Magic != 0xdeadc0de || sb.Root.Mode&host.S_IFDIR == 0 || sb.Root.Ino != 1 {
		t.Errorf("got magic %#x, root %+v; wanted 0xdeadc0de and directory inode 1", sb.Magic, sb.Root)
	}
	if got := handle.Live(); got != 1 {
		t.Errorf("handle.Live() = %d while mounted, wanted 1", got)
	}

	if err := h.Unmount(id); err != nil {
		t.Fatalf("Unmount failed: %v", err)
	}
	if want := []string{"fill_super", "put_super"}; strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("got events %q, wanted %q", events, want)
	}
	if got := handle.Live(); got != 0 {
		t.Errorf("handle.Live() = %d after unmount, wanted 0", got)
	}
}

func TestFillFailureDropsInfo(t *testing.T) {
	h := newHost(t)
	r, err := Register[info](h, testFS{failRoot: true})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer r.Close()

	if _, err := h.Mount("testfs", "/dev/loop0", 0, nil); !linuxerr.Equals(linuxerr.ENOSPC, err) {
		t.Errorf("Mount = %v, wanted ENOSPC", err)
	}
	if len(events) != 0 {
		t.Errorf("got events %q, wanted none", events)
	}
	if got := handle.Live(); got != 0 {
		t.Errorf("handle.Live() = %d after failed mount, wanted 0", got)
	}
	if n, _ := h.HeapInUse(); n != 0 {
		t.Errorf("%d heap allocations live after failed mount, wanted 0", n)
	}
}

func TestRootFailure(t *testing.T) {
	h := newHost(t)
	r, err := Register[info](h, testFS{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer r.Close()

	h.FailAt(hostsim.OpNewInode, 1, linuxerr.ENOMEM.Status())
	if _, err := h.Mount("testfs", "/dev/loop0", 0, nil); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Errorf("Mount = %v, wanted ENOMEM", err)
	}
	if got := handle.Live(); got != 0 {
		t.Errorf("handle.Live() = %d after failed mount, wanted 0", got)
	}
}

type badFlagsFS struct{ testFS }

func (badFlagsFS) Flags() Flags { return 1 << 20 }

func TestRegisterValidation(t *testing.T) {
	h := newHost(t)
	if _, err := Register[info](h, badFlagsFS{}); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("Register with unknown flags = %v, wanted EINVAL", err)
	}
	h.FailAt(hostsim.OpRegisterFilesystem, 1, linuxerr.ENOMEM.Status())
	if _, err := Register[info](h, testFS{}); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Errorf("Register = %v, wanted ENOMEM", err)
	}
}

func TestUnregisterFailureIsFatal(t *testing.T) {
	h := newHost(t)
	r, err := Register[info](h, testFS{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var buf bytes.Buffer
	prevLog := log.Log()
	log.SetTarget(&log.Writer{Next: &buf})
	prevExit := log.Exit
	exited := 0
	log.Exit = func() { exited++ }
	defer func() {
		log.Exit = prevExit
		log.SetTarget(prevLog.Emitter)
	}()

	h.FailAt(hostsim.OpUnregisterFilesystem, 1, linuxerr.EBUSY.Status())
	r.Close()
	if exited != 1 {
		t.Errorf("Exit called %d times, wanted 1", exited)
	}
	if want := `FATAL: filesystem "testfs": unregister failed: device or resource busy`; !strings.Contains(buf.String(), want) {
		t.Errorf("got log %q, wanted it to contain %q", buf.String(), want)
	}

	// The host still lists the type; remove it so the host ends clean.
	if !strings.Contains(h.ProcFilesystems(), "testfs") {
		t.Errorf("testfs not listed after failed unregister")
	}
	if s := h.UnregisterFilesystem(r.fs); s != 0 {
		t.Fatalf("unregister_filesystem returned %d", s)
	}
	if err := h.CheckReleased(); err != nil {
		t.Error(err)
	}
}
