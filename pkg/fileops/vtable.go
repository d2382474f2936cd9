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

package fileops

import (
	"reflect"

	"gvisor.dev/kmod/pkg/abi/host"
	"gvisor.dev/kmod/pkg/sync"
)

// Vtable is the host operations table of one file type.
type Vtable struct {
	typ reflect.Type
	ops host.FileOperations
}

// Ops returns the table to hand to the host. It is shared by every user of
// the file type and must not be modified.
func (v *Vtable) Ops() *host.FileOperations {
	return &v.ops
}

// Type returns the file type the table was built for.
func (v *Vtable) Type() reflect.Type {
	return v.typ
}

// Capabilities lists the optional slots populated in the table, in the
// order read, write, llseek.
func (v *Vtable) Capabilities() []string {
	var caps []string
	if v.ops.Read != nil {
		caps = append(caps, "read")
	}
	if v.ops.Write != nil {
		caps = append(caps, "write")
	}
	if v.ops.Llseek != nil {
		caps = append(caps, "llseek")
	}
	return caps
}

// tables caches the Vtable of each file type, keyed by reflect.Type.
var tables sync.Map

// Build returns the operations table for file type T. The table is built
// on first use and shared afterwards.
//
// Open and release are always populated. Read, write and llseek are
// populated iff *T implements Reader, Writer and Seeker respectively.
func Build[T any, PT Opener[T]]() *Vtable {
	typ := reflect.TypeFor[T]()
	if v, ok := tables.Load(typ); ok {
		return v.(*Vtable)
	}

	v := &Vtable{typ: typ}
	v.ops.Open = openTrampoline[T, PT]
	v.ops.Release = releaseTrampoline[T, PT]

	var probe PT
	if _, ok := any(probe).(Reader); ok {
		v.ops.Read = readTrampoline[T, PT]
	}
	if _, ok := any(probe).(Writer); ok {
		v.ops.Write = writeTrampoline[T, PT]
	}
	if _, ok := any(probe).(Seeker); ok {
		v.ops.Llseek = llseekTrampoline[T, PT]
	}

	actual, _ := tables.LoadOrStore(typ, v)
	return actual.(*Vtable)
}
