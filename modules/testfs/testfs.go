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
// Package testfs is an extension that registers a filesystem type whose
// super blocks carry private info.
package testfs

import (
	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/filesystem"
	"gvisor.dev/kmod/pkg/log"
	"gvisor.dev/kmod/pkg/module"
)

// Info describes the extension.
var Info = module.Info{
	Name:        "testfs",
	Author:      "The gVisor Authors",
	Description: "A module for testing filesystem registration",
	License:     "GPL",
}

const (
	// Magic is the magic number of testfs super blocks.
	Magic = 0xdeadc0de

	// rootIno is the inode number of the root directory.
	rootIno = 1

	initialInfo = 42
	mountedInfo = 0xbadf00d
)

// fsInfo is the private info of a super block.
type fsInfo struct {
	dummy uint32
}

type superOps struct{}

// PutSuper implements filesystem.SuperOperations.PutSuper.
func (superOps) PutSuper(sb *filesystem.SuperBlock[fsInfo]) {
	if i, ok := sb.FSInfo(); !ok || i.dummy != mountedInfo {
		log.Warningf("testfs: unexpected info at put_super")
	}
	sb.ReplaceFSInfo(nil)
	log.Infof("testfs-put_super-marker")
}

type testfs struct{}

// Name implements filesystem.FileSystem.Name.
func (testfs) Name() string { return "testfs" }

// Flags implements filesystem.FileSystem.Flags.
func (testfs) Flags() filesystem.Flags { return filesystem.RequiresDev }

// FillSuper implements filesystem.FileSystem.FillSuper.
func (testfs) FillSuper(sb *filesystem.SuperBlock[fsInfo], _ []byte, silent bool) error {
	if _, ok := sb.FSInfo(); ok {
		log.Warningf("testfs: new super block already has info")
	}
	sb.ReplaceFSInfo(&fsInfo{dummy: initialInfo})
	i, _ := sb.FSInfo()
	i.dummy = mountedInfo

	sb.SetOps(filesystem.BuildSuperOperations[fsInfo, superOps]())
	sb.SetMagic(Magic)
	if err := sb.MakeRootDir(rootIno); err != nil {
		if !silent {
			log.Infof("testfs: failed to create root: %v", err)
		}
		sb.ReplaceFSInfo(nil)
		return err
	}
	log.Infof("testfs-fill_super-marker")
	return nil
}

// Module is the loaded extension.
type Module struct {
	reg *filesystem.Registration
}

// New registers the filesystem type with h.
func New(h host.Host) (*Module, error) {
	reg, err := filesystem.Register[fsInfo](h, testfs{})
	if err != nil {
		return nil, err
	}
	return &Module{reg: reg}, nil
}

// Close implements module.Closer.Close.
func (m *Module) Close() {
	m.reg.Close()
}

// Load loads the extension into h.
func Load(h host.Host) (*module.Loaded[*Module], error) {
	return module.Load(h, Info, New)
}

func init() {
	module.Register(module.Descriptor{Info: Info, Load: func(h host.Host) (module.Extension, error) {
		l, err := Load(h)
		if err != nil {
			return nil, err
		}
		return l, nil
	}})
}
