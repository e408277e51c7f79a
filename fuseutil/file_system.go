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

// Package fuseutil defines the FileSystem interface dispatched by
// internal/transport, in the ctx+error style of the teacher's own
// working samples (flushfs, errorfs, roloopbackfs) rather than the older
// void-Respond style also present in the jacobsa/fuse retrieval.
package fuseutil

import (
	"context"

	"github.com/faultfs/faultfs/fuseops"
)

// FileSystem is the interface a faultfs mount implements: one method per
// operation in the taxonomy, returning a plain error (a syscall.Errno
// when the kernel should see a specific errno, any other error mapped to
// EIO by the transport layer).
type FileSystem interface {
	LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error
	GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error
	SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error
	ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error

	MkDir(ctx context.Context, op *fuseops.MkDirOp) error
	CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error
	Mknod(ctx context.Context, op *fuseops.MknodOp) error
	RmDir(ctx context.Context, op *fuseops.RmDirOp) error
	Unlink(ctx context.Context, op *fuseops.UnlinkOp) error
	Rename(ctx context.Context, op *fuseops.RenameOp) error
	Access(ctx context.Context, op *fuseops.AccessOp) error

	OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error
	ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error
	ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error

	OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error
	ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error
	WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error
	ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error
}
