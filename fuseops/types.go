// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package fuseops defines the per-operation request/response structs
// faultfs's shim and backend exchange, continuing the teacher's
// InodeID/HandleID/OpHeader naming conventions without the reqtrace- and
// reflect-based dispatch machinery those conventions were originally
// wired into (see DESIGN.md).
package fuseops

import (
	"os"
	"time"
)

// InodeID is a 64-bit number used to identify an inode, analogous to the
// inode numbers the kernel keeps for every live dentry.
type InodeID uint64

// RootInodeID is the fixed inode number of the root of the file system.
const RootInodeID InodeID = 1

// HandleID is an opaque handle for an open file or directory.
type HandleID uint64

// DirOffset is an opaque cursor into a directory stream.
type DirOffset uint64

// OpHeader carries the identity of the caller that triggered an
// operation.
type OpHeader struct {
	Uid uint32
	Gid uint32
	Pid uint32
}

// InodeAttributes mirrors the subset of struct stat the kernel cares
// about.
type InodeAttributes struct {
	Size  uint64
	Nlink uint32
	Mode  os.FileMode
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	Uid   uint32
	Gid   uint32
}

// ChildInodeEntry describes a freshly looked-up or created child inode.
type ChildInodeEntry struct {
	Child      InodeID
	Attributes InodeAttributes
}

// DirentType mirrors the handful of d_type values the kernel distinguishes.
type DirentType uint32

const (
	DT_Unknown DirentType = 0
	DT_Dir     DirentType = 4
	DT_File    DirentType = 8
)

// DirEntry is one entry returned from a ReadDirOp, left unencoded here;
// internal/transport converts it into bazil.org/fuse's own wire Dirent.
type DirEntry struct {
	Offset DirOffset
	Inode  InodeID
	Name   string
	Type   DirentType
}
