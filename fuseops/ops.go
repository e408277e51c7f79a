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

package fuseops

// InitOp is sent once when mounting the file system.
type InitOp struct {
	Header OpHeader
}

// LookUpInodeOp looks up a child by name within a parent directory. The
// kernel sends this when resolving user paths to dentry structs, which
// are then cached.
type LookUpInodeOp struct {
	Header OpHeader
	Parent InodeID
	Name   string

	// Set by the file system.
	Entry ChildInodeEntry
}

// GetInodeAttributesOp refreshes the attributes for a previously looked
// up inode.
type GetInodeAttributesOp struct {
	Header OpHeader
	Inode  InodeID

	// Set by the file system.
	Attributes InodeAttributes
}

// SetInodeAttributesOp changes attributes for an inode. The kernel sends
// this for chmod(2)/chown(2)/truncate(2)/utimes(2).
type SetInodeAttributesOp struct {
	Header OpHeader
	Inode  InodeID

	// Nil fields are left unchanged.
	Size  *uint64
	Mode  *uint32
	Uid   *uint32
	Gid   *uint32
	Atime *int64
	Mtime *int64

	// Set by the file system.
	Attributes InodeAttributes
}

// ForgetInodeOp is sent when the kernel removes an inode from its
// internal caches.
type ForgetInodeOp struct {
	Header OpHeader
	ID     InodeID
}

// MkDirOp creates a directory inode as a child of an existing directory.
type MkDirOp struct {
	Header OpHeader
	Parent InodeID
	Name   string
	Mode   uint32

	Entry ChildInodeEntry
}

// CreateFileOp creates a file inode and opens it, as in open(2) with
// O_CREAT.
type CreateFileOp struct {
	Header OpHeader
	Parent InodeID
	Name   string
	Mode   uint32
	Flags  uint32

	Entry  ChildInodeEntry
	Handle HandleID
}

// MknodOp creates a file system node (regular file, device, or FIFO)
// without opening it, as in mknod(2).
type MknodOp struct {
	Header OpHeader
	Parent InodeID
	Name   string
	Mode   uint32
	Rdev   uint32

	Entry ChildInodeEntry
}

// RmDirOp removes a directory from its parent. The file system is
// responsible for checking that the directory is empty.
type RmDirOp struct {
	Header OpHeader
	Parent InodeID
	Name   string
}

// UnlinkOp removes a file from its parent.
type UnlinkOp struct {
	Header OpHeader
	Parent InodeID
	Name   string
}

// RenameOp moves OldName under OldParent to NewName under NewParent.
type RenameOp struct {
	Header    OpHeader
	OldParent InodeID
	OldName   string
	NewParent InodeID
	NewName   string
}

// AccessOp checks whether the caller may access Inode with the requested
// Mode (access(2)), independent of any open file handle.
type AccessOp struct {
	Header OpHeader
	Inode  InodeID
	Mode   uint32
}

// OpenDirOp opens a directory inode.
type OpenDirOp struct {
	Header OpHeader
	Inode  InodeID

	Handle HandleID
}

// ReadDirOp reads entries from a directory previously opened with
// OpenDir, starting at Offset (an opaque cursor, not a byte count).
type ReadDirOp struct {
	Header OpHeader
	Inode  InodeID
	Handle HandleID
	Offset DirOffset
	Size   int

	// Set by the file system.
	Entries []DirEntry
}

// ReleaseDirHandleOp releases a previously minted directory handle.
type ReleaseDirHandleOp struct {
	Header OpHeader
	Handle HandleID
}

// OpenFileOp opens a file inode.
type OpenFileOp struct {
	Header OpHeader
	Inode  InodeID
	Flags  uint32

	Handle HandleID
}

// ReadFileOp reads data from a file previously opened with CreateFile or
// OpenFile.
type ReadFileOp struct {
	Header OpHeader
	Inode  InodeID
	Handle HandleID
	Offset int64
	Size   int

	// Set by the file system: the data read. Less than Size indicates
	// EOF, not an error.
	Data []byte
}

// WriteFileOp writes data to a file previously opened with CreateFile or
// OpenFile.
type WriteFileOp struct {
	Header OpHeader
	Inode  InodeID
	Handle HandleID
	Offset int64
	Data   []byte
}

// ReleaseFileHandleOp releases a previously minted file handle.
type ReleaseFileHandleOp struct {
	Header OpHeader
	Handle HandleID
}
