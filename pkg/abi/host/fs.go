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

package host

// FillSuperFunc populates a freshly allocated super block.
type FillSuperFunc func(sb *SuperBlock, data []byte, silent int32) Status

// FileSystemType is the host's filesystem type record. The record must stay
// at a stable address from RegisterFilesystem until UnregisterFilesystem
// returns.
type FileSystemType struct {
	Name    string
	FsFlags int32
	Owner   string

	// Mount creates a super block for a new mount of this type.
	Mount func(fs *FileSystemType, flags int32, devName string, data []byte) (*SuperBlock, Status)

	// KillSB tears down a super block created by Mount.
	KillSB func(sb *SuperBlock)
}

// SuperOperations is the callback table for super blocks.
type SuperOperations struct {
	PutSuper func(sb *SuperBlock)
	StatFS   func(sb *SuperBlock) Status
	SyncFS   func(sb *SuperBlock, wait int32) Status
}

// SuperBlock is the host's super block record.
type SuperBlock struct {
	// FSInfo is the opaque filesystem-private pointer. The host initializes
	// it to zero.
	FSInfo Addr

	Magic uint64
	Flags int32
	Ops   *SuperOperations
	Type  *FileSystemType
	Root  *Inode
}

// CtlTable is one entry of a sysctl table. Tables passed to RegisterSysctl
// are terminated by the end of the slice.
type CtlTable struct {
	Procname string

	// Data is the opaque pointer handed back to ProcHandler.
	Data Addr

	Maxlen int32
	Mode   uint32

	// ProcHandler services reads (write == 0) and writes of the entry. lenp
	// holds the buffer length on entry and the processed length on return.
	ProcHandler func(table *CtlTable, write int32, buf Addr, lenp *uint64, ppos *int64) Status
}
