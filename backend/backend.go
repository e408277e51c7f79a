// Package backend implements the pass-through storage operations against
// a real backing directory tree, generalizing
// samples/roloopbackfs's read-only os.Stat/os.Open plumbing to full
// read-write POSIX semantics.
package backend

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Backend operates on a real directory tree rooted at Root, translating
// faultfs's path-based operations into syscalls against it. It is the
// only permission boundary this repo enforces: anything reachable under
// Root through the tree's own mode bits is reachable through the mount.
type Backend struct {
	Root string

	mu      sync.Mutex
	handles map[uint64]*os.File
	nextID  uint64
}

// New returns a Backend rooted at root. root must already exist.
func New(root string) (*Backend, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("backend: storage root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("backend: storage root %q is not a directory", root)
	}
	return &Backend{Root: root, handles: make(map[uint64]*os.File)}, nil
}

// resolve maps a mount-relative path to its real path under Root. ".."
// components are collapsed against "/" before the join, so a path that
// tries to climb above Root resolves inside Root instead.
func (b *Backend) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	real := filepath.Join(b.Root, clean)
	if real != b.Root && !strings.HasPrefix(real, b.Root+string(os.PathSeparator)) {
		return "", syscall.EINVAL
	}
	return real, nil
}

// Handle is an opaque reference to an open file, analogous to
// fuseops.HandleID.
type Handle uint64

func (b *Backend) storeHandle(f *os.File) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handles[id] = f
	return Handle(id)
}

func (b *Backend) fileFor(h Handle) (*os.File, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.handles[uint64(h)]
	return f, ok
}

// GetAttr stats path.
func (b *Backend) GetAttr(path string) (os.FileInfo, error) {
	real, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Lstat(real)
}

// ReadDir lists the entries of path.
func (b *Backend) ReadDir(path string) ([]os.DirEntry, error) {
	real, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadDir(real)
}

// Open opens path with the given POSIX flags and returns a handle.
func (b *Backend) Open(path string, flags int, mode os.FileMode) (Handle, error) {
	real, err := b.resolve(path)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(real, flags, mode)
	if err != nil {
		return 0, err
	}
	return b.storeHandle(f), nil
}

// Create creates path with mode and opens it for read/write, returning a
// handle, mirroring O_CREAT|O_EXCL style creation semantics.
func (b *Backend) Create(path string, mode os.FileMode) (Handle, error) {
	return b.Open(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
}

// Mknod creates a file node at path without opening it.
func (b *Backend) Mknod(path string, mode os.FileMode, dev int) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return syscall.Mknod(real, uint32(mode.Perm()), dev)
}

// Release closes the file behind h.
func (b *Backend) Release(h Handle) error {
	b.mu.Lock()
	f, ok := b.handles[uint64(h)]
	delete(b.handles, uint64(h))
	b.mu.Unlock()
	if !ok {
		return syscall.EBADF
	}
	return f.Close()
}

// ReadAt reads up to len(buf) bytes from h at offset.
func (b *Backend) ReadAt(h Handle, buf []byte, offset int64) (int, error) {
	f, ok := b.fileFor(h)
	if !ok {
		return 0, syscall.EBADF
	}
	n, err := f.ReadAt(buf, offset)
	if err != nil && (n > 0 || err == io.EOF) {
		// A short read, including a zero-byte read at io.EOF, is not a
		// faultfs-level error.
		return n, nil
	}
	return n, err
}

// WriteAt writes data to h at offset.
func (b *Backend) WriteAt(h Handle, data []byte, offset int64) (int, error) {
	f, ok := b.fileFor(h)
	if !ok {
		return 0, syscall.EBADF
	}
	return f.WriteAt(data, offset)
}

// MkDir creates a directory at path with mode.
func (b *Backend) MkDir(path string, mode os.FileMode) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return os.Mkdir(real, mode)
}

// RmDir removes the empty directory at path.
func (b *Backend) RmDir(path string) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return syscall.Rmdir(real)
}

// Unlink removes the file at path.
func (b *Backend) Unlink(path string) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return syscall.Unlink(real)
}

// Rename moves oldPath to newPath.
func (b *Backend) Rename(oldPath, newPath string) error {
	oldReal, err := b.resolve(oldPath)
	if err != nil {
		return err
	}
	newReal, err := b.resolve(newPath)
	if err != nil {
		return err
	}
	return os.Rename(oldReal, newReal)
}

// Chmod changes the mode of path.
func (b *Backend) Chmod(path string, mode os.FileMode) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return os.Chmod(real, mode)
}

// Chown changes the owner/group of path.
func (b *Backend) Chown(path string, uid, gid int) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return os.Chown(real, uid, gid)
}

// Truncate changes the size of path.
func (b *Backend) Truncate(path string, size int64) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return os.Truncate(real, size)
}

// Utimens updates the access and modification times of path.
func (b *Backend) Utimens(path string, atime, mtime time.Time) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	return os.Chtimes(real, atime, mtime)
}

// Access checks path against the owner-bit-only permission model the
// original driver uses: it stats the file and tests the requested access
// mode against the owning user's mode bits. This mirrors the original's
// fs_check_perms, which does not attempt full POSIX credential checking
// (supplementary groups, ACLs); that is explicitly out of scope (spec
// non-goal: "user-mode permission enforcement beyond the backing
// directory tree's own mode bits").
func (b *Backend) Access(path string, mode uint32) error {
	real, err := b.resolve(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(real)
	if err != nil {
		return err
	}
	perm := uint32(fi.Mode().Perm())
	// Only check the owner bits (mode>>6), matching the original's simple
	// model of treating the mount as running as the backing file's owner.
	want := mode & 0o7
	have := (perm >> 6) & 0o7
	if want&^have != 0 {
		return syscall.EACCES
	}
	return nil
}
