// Package shim implements the interposition layer (spec §4.5): for every
// call it builds the corresponding faultengine.Call, asks the engine for
// a Decision, short-circuits on failure, otherwise drives the backend and
// runs the engine's post-phase before returning.
//
// Grounded on the dispatch shape of samples/roloopbackfs (stat-based
// inode resolution) and samples/errorfs (the idea of a filesystem layer
// whose job is to selectively fail operations), generalized to read-write
// and wired to a real fault-decision engine instead of a stub.
package shim

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/faultfs/faultfs/backend"
	"github.com/faultfs/faultfs/faultengine"
	"github.com/faultfs/faultfs/faultop"
	"github.com/faultfs/faultfs/fuseops"
)

// FileSystem wires a backend.Backend and a faultengine.Engine together
// behind the fuseutil.FileSystem interface.
type FileSystem struct {
	backend *backend.Backend
	engine  *faultengine.Engine
	inodes  *inodeTable

	mu      sync.Mutex
	handles map[fuseops.HandleID]backend.Handle
	nextHID fuseops.HandleID
}

// New returns a FileSystem serving b, deciding faults through e.
func New(b *backend.Backend, e *faultengine.Engine) *FileSystem {
	return &FileSystem{
		backend: b,
		engine:  e,
		inodes:  newInodeTable(),
		handles: make(map[fuseops.HandleID]backend.Handle),
	}
}

func (fs *FileSystem) storeHandle(h backend.Handle) fuseops.HandleID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextHID++
	id := fs.nextHID
	fs.handles[id] = h
	return id
}

func (fs *FileSystem) backendHandle(id fuseops.HandleID) (backend.Handle, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	h, ok := fs.handles[id]
	return h, ok
}

func (fs *FileSystem) dropHandle(id fuseops.HandleID) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.handles, id)
}

func errnoOf(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	if os.IsNotExist(err) {
		return syscall.ENOENT
	}
	if os.IsExist(err) {
		return syscall.EEXIST
	}
	if os.IsPermission(err) {
		return syscall.EACCES
	}
	return syscall.EIO
}

func childPath(parent string, name string) string {
	return filepath.Join(parent, name)
}

func attrsFromFileInfo(fi os.FileInfo) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(fi.Size()),
		Nlink: 1,
		Mode:  fi.Mode(),
		Mtime: fi.ModTime(),
	}
}

// LookUpInode resolves op.Name under op.Parent.
func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	parentPath, ok := fs.inodes.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)

	call := faultengine.Call{Op: faultop.GetAttr, Path: path}
	if d := fs.engine.Decide(call); d.Kind == faultengine.Fail {
		return d.Errno
	}

	fi, err := fs.backend.GetAttr(path)
	fs.engine.Apply(call, 0, nil)
	if err != nil {
		return errnoOf(err)
	}

	id := fs.inodes.register(idForRealInode(fi), path)
	op.Entry = fuseops.ChildInodeEntry{Child: id, Attributes: attrsFromFileInfo(fi)}
	return nil
}

// GetInodeAttributes refreshes the attributes for op.Inode.
func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	call := faultengine.Call{Op: faultop.GetAttr, Path: path}
	if d := fs.engine.Decide(call); d.Kind == faultengine.Fail {
		return d.Errno
	}

	fi, err := fs.backend.GetAttr(path)
	fs.engine.Apply(call, 0, nil)
	if err != nil {
		return errnoOf(err)
	}
	op.Attributes = attrsFromFileInfo(fi)
	return nil
}

// SetInodeAttributes changes attributes for op.Inode: chmod/chown/
// truncate/utimens, each scoped independently by the fault plan.
func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	if op.Mode != nil {
		if err := fs.gate(faultop.Chmod, path, func() error {
			return fs.backend.Chmod(path, os.FileMode(*op.Mode))
		}); err != nil {
			return err
		}
	}
	if op.Uid != nil || op.Gid != nil {
		uid, gid := -1, -1
		if op.Uid != nil {
			uid = int(*op.Uid)
		}
		if op.Gid != nil {
			gid = int(*op.Gid)
		}
		if err := fs.gate(faultop.Chown, path, func() error {
			return fs.backend.Chown(path, uid, gid)
		}); err != nil {
			return err
		}
	}
	if op.Size != nil {
		if err := fs.gate(faultop.Truncate, path, func() error {
			return fs.backend.Truncate(path, int64(*op.Size))
		}); err != nil {
			return err
		}
	}
	if op.Atime != nil || op.Mtime != nil {
		fi, err := fs.backend.GetAttr(path)
		if err != nil {
			return errnoOf(err)
		}
		at, mt := fi.ModTime(), fi.ModTime()
		if op.Atime != nil {
			at = time.Unix(0, *op.Atime)
		}
		if op.Mtime != nil {
			mt = time.Unix(0, *op.Mtime)
		}
		if err := fs.gate(faultop.Utimens, path, func() error {
			return fs.backend.Utimens(path, at, mt)
		}); err != nil {
			return err
		}
	}

	fi, err := fs.backend.GetAttr(path)
	if err != nil {
		return errnoOf(err)
	}
	op.Attributes = attrsFromFileInfo(fi)
	return nil
}

// ForgetInode drops op.ID from the inode table.
func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.inodes.forget(op.ID)
	return nil
}

// MkDir creates a directory.
func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	parentPath, ok := fs.inodes.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)

	if err := fs.gate(faultop.MkDir, path, func() error {
		return fs.backend.MkDir(path, os.FileMode(op.Mode))
	}); err != nil {
		return err
	}

	fi, err := fs.backend.GetAttr(path)
	if err != nil {
		return errnoOf(err)
	}
	id := fs.inodes.register(idForRealInode(fi), path)
	op.Entry = fuseops.ChildInodeEntry{Child: id, Attributes: attrsFromFileInfo(fi)}
	return nil
}

// CreateFile creates and opens a file.
func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	parentPath, ok := fs.inodes.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)

	var h backend.Handle
	if err := fs.gate(faultop.Create, path, func() error {
		var createErr error
		h, createErr = fs.backend.Create(path, os.FileMode(op.Mode))
		return createErr
	}); err != nil {
		return err
	}

	fi, err := fs.backend.GetAttr(path)
	if err != nil {
		return errnoOf(err)
	}
	id := fs.inodes.register(idForRealInode(fi), path)
	op.Entry = fuseops.ChildInodeEntry{Child: id, Attributes: attrsFromFileInfo(fi)}
	op.Handle = fs.storeHandle(h)
	return nil
}

// Mknod creates a file system node without opening it.
func (fs *FileSystem) Mknod(ctx context.Context, op *fuseops.MknodOp) error {
	parentPath, ok := fs.inodes.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)

	if err := fs.gate(faultop.Mknod, path, func() error {
		return fs.backend.Mknod(path, os.FileMode(op.Mode), int(op.Rdev))
	}); err != nil {
		return err
	}

	fi, err := fs.backend.GetAttr(path)
	if err != nil {
		return errnoOf(err)
	}
	id := fs.inodes.register(idForRealInode(fi), path)
	op.Entry = fuseops.ChildInodeEntry{Child: id, Attributes: attrsFromFileInfo(fi)}
	return nil
}

// RmDir removes an empty directory.
func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	parentPath, ok := fs.inodes.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	return fs.gate(faultop.RmDir, path, func() error {
		return fs.backend.RmDir(path)
	})
}

// Unlink removes a file.
func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	parentPath, ok := fs.inodes.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	return fs.gate(faultop.Unlink, path, func() error {
		return fs.backend.Unlink(path)
	})
}

// Rename moves a file or directory.
func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	oldParentPath, ok := fs.inodes.pathFor(op.OldParent)
	if !ok {
		return syscall.ENOENT
	}
	newParentPath, ok := fs.inodes.pathFor(op.NewParent)
	if !ok {
		return syscall.ENOENT
	}
	oldPath := childPath(oldParentPath, op.OldName)
	newPath := childPath(newParentPath, op.NewName)

	if err := fs.gate(faultop.Rename, oldPath, func() error {
		return fs.backend.Rename(oldPath, newPath)
	}); err != nil {
		return err
	}
	fs.inodes.rename(oldPath, newPath)
	return nil
}

// Access checks accessibility of op.Inode independent of any open
// handle, matching the original driver's unconditional permission check.
func (fs *FileSystem) Access(ctx context.Context, op *fuseops.AccessOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	return fs.gate(faultop.Access, path, func() error {
		return fs.backend.Access(path, op.Mode)
	})
}

// OpenDir opens a directory for listing.
func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if d := fs.engine.Decide(faultengine.Call{Op: faultop.Open, Path: path}); d.Kind == faultengine.Fail {
		return d.Errno
	}
	op.Handle = fuseops.HandleID(0)
	return nil
}

// ReadDir lists directory entries.
func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	call := faultengine.Call{Op: faultop.ReadDir, Path: path}
	if d := fs.engine.Decide(call); d.Kind == faultengine.Fail {
		return d.Errno
	}

	entries, err := fs.backend.ReadDir(path)
	fs.engine.Apply(call, len(entries), nil)
	if err != nil {
		return errnoOf(err)
	}

	if int(op.Offset) > len(entries) {
		return nil
	}
	entries = entries[op.Offset:]
	if len(entries) > op.Size {
		entries = entries[:op.Size]
	}

	out := make([]fuseops.DirEntry, len(entries))
	for i, e := range entries {
		typ := fuseops.DT_File
		if e.IsDir() {
			typ = fuseops.DT_Dir
		}
		out[i] = fuseops.DirEntry{
			Offset: op.Offset + fuseops.DirOffset(i) + 1,
			Inode:  idForDirEntry(e),
			Name:   e.Name(),
			Type:   typ,
		}
	}
	op.Entries = out
	return nil
}

// idForDirEntry derives the InodeID a directory entry would resolve to,
// without forcing a LookUpInode round trip just to list a directory.
func idForDirEntry(e os.DirEntry) fuseops.InodeID {
	fi, err := e.Info()
	if err != nil {
		return 0
	}
	return idForRealInode(fi)
}

// ReleaseDirHandle is a no-op: directory handles carry no backend state.
func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

// OpenFile opens a file for reading and/or writing.
func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}

	// Permission is checked on every open, against the access mode the
	// open flags request, matching the original driver's fs_fault_open
	// check.
	mode := accessModeForFlags(op.Flags)

	call := faultengine.Call{Op: faultop.Open, Path: path}
	if d := fs.engine.Decide(call); d.Kind == faultengine.Fail {
		return d.Errno
	}
	if mode != 0 {
		if err := fs.backend.Access(path, mode); err != nil {
			return errnoOf(err)
		}
	}

	h, err := fs.backend.Open(path, int(op.Flags), 0)
	if err != nil {
		return errnoOf(err)
	}
	op.Handle = fs.storeHandle(h)
	return nil
}

// accessModeForFlags derives the access(2)-style mode bits implied by
// open(2) flags, matching the original driver's fs_fault_open checks for
// O_RDONLY/O_WRONLY/O_RDWR.
func accessModeForFlags(flags uint32) uint32 {
	const oAccMode = 0o3
	switch flags & oAccMode {
	case 0: // O_RDONLY
		return 0o4
	case 1: // O_WRONLY
		return 0o2
	case 2: // O_RDWR
		return 0o6
	}
	return 0
}

// ReadFile reads from an open file.
func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	h, ok := fs.backendHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}

	call := faultengine.Call{Op: faultop.Read, Path: path, RequestedSize: op.Size}
	d := fs.engine.Decide(call)
	if d.Kind == faultengine.Fail {
		return d.Errno
	}

	size := op.Size
	if d.Size != nil {
		size = *d.Size
	}

	buf := make([]byte, size)
	n, err := fs.backend.ReadAt(h, buf, op.Offset)
	if err != nil {
		return errnoOf(err)
	}
	fs.engine.Apply(call, n, buf)
	op.Data = buf[:n]
	return nil
}

// WriteFile writes to an open file.
func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	path, ok := fs.inodes.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	h, ok := fs.backendHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}

	call := faultengine.Call{Op: faultop.Write, Path: path, RequestedSize: len(op.Data), WriteData: op.Data}
	d := fs.engine.Decide(call)
	if d.Kind == faultengine.Fail {
		return d.Errno
	}
	// Write permission is checked on every write, whether or not the
	// handle was opened for writing.
	if err := fs.backend.Access(path, 0o2); err != nil {
		return errnoOf(err)
	}

	data := op.Data
	if d.CorruptWrite != nil {
		data = d.CorruptWrite
	}
	if d.Size != nil && *d.Size < len(data) {
		data = data[:*d.Size]
	}

	n, err := fs.backend.WriteAt(h, data, op.Offset)
	fs.engine.Apply(call, n, nil)
	if err != nil {
		return errnoOf(err)
	}
	return nil
}

// ReleaseFileHandle closes a previously opened file.
func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	h, ok := fs.backendHandle(op.Handle)
	if !ok {
		return nil
	}
	fs.dropHandle(op.Handle)
	call := faultengine.Call{Op: faultop.Release}
	if d := fs.engine.Decide(call); d.Kind == faultengine.Fail {
		fs.backend.Release(h)
		return d.Errno
	}
	return errnoOf(fs.backend.Release(h))
}

// gate runs the standard pre-phase/backend-call/post-phase sequence for
// an operation that has no return data of its own (chmod, chown,
// mkdir, ...): decide, short-circuit on failure, otherwise run fn and
// apply the post-phase with zero bytes moved.
func (fs *FileSystem) gate(op faultop.Op, path string, fn func() error) error {
	call := faultengine.Call{Op: op, Path: path}
	if d := fs.engine.Decide(call); d.Kind == faultengine.Fail {
		return d.Errno
	}
	err := fn()
	fs.engine.Apply(call, 0, nil)
	return errnoOf(err)
}
