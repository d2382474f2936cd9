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

package module

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/errors/linuxerr"
	"gvisor.dev/kmod/pkg/hostsim"
)

var testInfo = Info{
	Name:        "modinfo-test",
	Author:      "Fish in a Barrel Contributors",
	Description: "Empty module for testing modinfo",
	License:     "GPL",
}

type closeCounter struct {
	closed *int
}

func (c closeCounter) Close() { *c.closed++ }

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		info Info
		ok   bool
	}{
		{info: testInfo, ok: true},
		{info: Info{Name: "no_license"}},
		{info: Info{Name: "bad name", License: "GPL"}},
		{info: Info{License: "GPL"}},
	} {
		if err := tc.info.Validate(); (err == nil) != tc.ok {
			t.Errorf("Validate(%+v) = %v, wanted ok=%t", tc.info, err, tc.ok)
		}
	}
}

func TestModinfo(t *testing.T) {
	for key, want := range map[string]string{
		"author":      "Fish in a Barrel Contributors",
		"description": "Empty module for testing modinfo",
		"license":     "GPL",
	} {
		if got, ok := testInfo.Field(key); !ok || got != want {
			t.Errorf("Field(%q) = (%q, %t), wanted (%q, true)", key, got, ok, want)
		}
	}
	if _, ok := testInfo.Field("vermagic"); ok {
		t.Errorf("Field(vermagic) succeeded")
	}
	if got := testInfo.Taint(); got != "" {
		t.Errorf("Taint() = %q, wanted none", got)
	}
	if got := (Info{Name: "p", License: "Proprietary"}).Taint(); got != "P" {
		t.Errorf("Taint() of a proprietary module = %q, wanted P", got)
	}
}

func TestLoadUnload(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	closed := 0
	l, err := Load(h, testInfo, func(host.Host) (closeCounter, error) {
		return closeCounter{closed: &closed}, nil
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	l.Unload()
	l.Unload()
	if closed != 1 {
		t.Errorf("Close called %d times, wanted 1", closed)
	}
}

func TestLoadFailure(t *testing.T) {
	h := hostsim.New(hostsim.Options{})
	_, err := Load(h, testInfo, func(host.Host) (closeCounter, error) {
		return closeCounter{}, linuxerr.EBUSY
	})
	if !errors.Is(err, linuxerr.EBUSY) {
		t.Errorf("Load = %v, wanted EBUSY", err)
	}
	called := false
	_, err = Load(h, Info{Name: "unlicensed"}, func(host.Host) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, linuxerr.EINVAL) || called {
		t.Errorf("Load without license = %v, init called %t; wanted EINVAL, false", err, called)
	}
}

func TestSet(t *testing.T) {
	var order []string
	for _, name := range []string{"set-test-a", "set-test-b"} {
		info := Info{Name: name, License: "GPL"}
		Register(Descriptor{Info: info, Load: func(h host.Host) (Extension, error) {
			return Load(h, info, func(host.Host) (closeFunc, error) {
				return func() { order = append(order, info.Name) }, nil
			})
		}})
	}

	s := NewSet(hostsim.New(hostsim.Options{}))
	for _, name := range []string{"set-test-a", "set-test-b"} {
		if _, err := s.Load(name); err != nil {
			t.Fatalf("Load(%q) failed: %v", name, err)
		}
	}
	if _, err := s.Load("set-test-a"); !errors.Is(err, linuxerr.EEXIST) {
		t.Errorf("second Load = %v, wanted EEXIST", err)
	}
	if _, err := s.Load("set-test-missing"); !errors.Is(err, linuxerr.ENOENT) {
		t.Errorf("Load of an unknown extension = %v, wanted ENOENT", err)
	}
	s.UnloadAll()
	if diff := cmp.Diff([]string{"set-test-b", "set-test-a"}, order); diff != "" {
		t.Errorf("unload order mismatch (-want +got):\n%s", diff)
	}
	if len(s.Loaded()) != 0 {
		t.Errorf("got %d extensions after UnloadAll, wanted 0", len(s.Loaded()))
	}
}

type closeFunc func()

func (f closeFunc) Close() { f() }

func TestRegisterTwice(t *testing.T) {
	d := Descriptor{Info: Info{Name: "register-twice", License: "GPL"}, Load: func(host.Host) (Extension, error) { return nil, nil }}
	Register(d)
	defer func() {
		if recover() == nil {
			t.Errorf("second Register did not panic")
		}
	}()
	Register(d)
}
