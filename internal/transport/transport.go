// Package transport bridges a fuseutil.FileSystem to the kernel via
// bazil.org/fuse, the teacher's own dependency for FUSE errno constants
// (errors.go), used here for the full mount/dispatch lifecycle instead of
// the teacher's bespoke wire-protocol marshaller (see DESIGN.md).
package transport

import (
	"context"
	"fmt"
	"syscall"

	bazilfuse "bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/faultfs/faultfs/fuseops"
	"github.com/faultfs/faultfs/fuseutil"
	"github.com/faultfs/faultfs/logging"
)

// Mount drives a kernel FUSE mount at mountpoint, dispatching every
// request to fsys. It blocks until the mount is unmounted or ctx is
// canceled.
func Mount(ctx context.Context, mountpoint string, fsys fuseutil.FileSystem, log *logging.Logger) error {
	conn, err := bazilfuse.Mount(
		mountpoint,
		bazilfuse.FSName("faultfs"),
		bazilfuse.Subtype("faultfs"),
		bazilfuse.LocalVolume(),
		bazilfuse.VolumeName("faultfs"),
	)
	if err != nil {
		return fmt.Errorf("transport: mount %s: %w", mountpoint, err)
	}
	defer conn.Close()

	root := &node{id: fuseops.RootInodeID, fsys: fsys, log: log}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- fs.Serve(conn, &filesystem{root: root})
	}()

	select {
	case <-ctx.Done():
		if err := bazilfuse.Unmount(mountpoint); err != nil && log != nil {
			log.Warn("unmount failed", "mountpoint", mountpoint, "error", err.Error())
		}
		<-serveErr
		return ctx.Err()
	case err := <-serveErr:
		return err
	}
}

// filesystem implements fs.FS by handing back a single fixed root node;
// every other inode is resolved lazily through Lookup, matching how
// fuseutil.FileSystem itself only knows about a node once something has
// looked it up.
type filesystem struct {
	root *node
}

func (f *filesystem) Root() (fs.Node, error) {
	return f.root, nil
}

// node adapts one fuseops.InodeID to bazil.org/fuse's fs.Node/fs.Handle
// family, forwarding every method to the wrapped fuseutil.FileSystem.
type node struct {
	id   fuseops.InodeID
	fsys fuseutil.FileSystem
	log  *logging.Logger
}

var (
	_ fs.Node              = (*node)(nil)
	_ fs.NodeStringLookuper = (*node)(nil)
	_ fs.NodeMkdirer        = (*node)(nil)
	_ fs.NodeCreater        = (*node)(nil)
	_ fs.NodeMknoder        = (*node)(nil)
	_ fs.NodeRemover        = (*node)(nil)
	_ fs.NodeRenamer        = (*node)(nil)
	_ fs.NodeAccesser       = (*node)(nil)
	_ fs.NodeSetattrer      = (*node)(nil)
	_ fs.NodeForgetter      = (*node)(nil)
	_ fs.NodeOpener         = (*node)(nil)
	_ fs.HandleReadDirAller = (*node)(nil)
)

func (n *node) child(id fuseops.InodeID) *node {
	return &node{id: id, fsys: n.fsys, log: n.log}
}

func attrFromInode(id fuseops.InodeID, a fuseops.InodeAttributes) bazilfuse.Attr {
	return bazilfuse.Attr{
		Inode: uint64(id),
		Size:  a.Size,
		Nlink: a.Nlink,
		Mode:  a.Mode,
		Mtime: a.Mtime,
		Atime: a.Atime,
		Ctime: a.Ctime,
		Uid:   a.Uid,
		Gid:   a.Gid,
	}
}

func toErrno(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(bazilfuse.Errno); ok {
		return errno
	}
	if errno, ok := err.(syscall.Errno); ok {
		return bazilfuse.Errno(errno)
	}
	return bazilfuse.EIO
}

// Attr refreshes this node's attributes.
func (n *node) Attr(ctx context.Context, attr *bazilfuse.Attr) error {
	op := &fuseops.GetInodeAttributesOp{Inode: n.id}
	if err := n.fsys.GetInodeAttributes(ctx, op); err != nil {
		return toErrno(err)
	}
	*attr = attrFromInode(n.id, op.Attributes)
	return nil
}

// Lookup resolves name as a child of this node.
func (n *node) Lookup(ctx context.Context, name string) (fs.Node, error) {
	op := &fuseops.LookUpInodeOp{Parent: n.id, Name: name}
	if err := n.fsys.LookUpInode(ctx, op); err != nil {
		return nil, toErrno(err)
	}
	return n.child(op.Entry.Child), nil
}

// Mkdir creates a subdirectory.
func (n *node) Mkdir(ctx context.Context, req *bazilfuse.MkdirRequest) (fs.Node, error) {
	op := &fuseops.MkDirOp{Parent: n.id, Name: req.Name, Mode: uint32(req.Mode.Perm())}
	if err := n.fsys.MkDir(ctx, op); err != nil {
		return nil, toErrno(err)
	}
	return n.child(op.Entry.Child), nil
}

// Create creates and opens a file.
func (n *node) Create(ctx context.Context, req *bazilfuse.CreateRequest, resp *bazilfuse.CreateResponse) (fs.Node, fs.Handle, error) {
	op := &fuseops.CreateFileOp{
		Parent: n.id,
		Name:   req.Name,
		Mode:   uint32(req.Mode.Perm()),
		Flags:  uint32(req.Flags),
	}
	if err := n.fsys.CreateFile(ctx, op); err != nil {
		return nil, nil, toErrno(err)
	}
	child := n.child(op.Entry.Child)
	h := &handle{n: child, id: op.Handle}
	return child, h, nil
}

// Mknod creates a node without opening it.
func (n *node) Mknod(ctx context.Context, req *bazilfuse.MknodRequest) (fs.Node, error) {
	op := &fuseops.MknodOp{
		Parent: n.id,
		Name:   req.Name,
		Mode:   uint32(req.Mode.Perm()),
		Rdev:   req.Rdev,
	}
	if err := n.fsys.Mknod(ctx, op); err != nil {
		return nil, toErrno(err)
	}
	return n.child(op.Entry.Child), nil
}

// Remove unlinks a file or removes an empty directory.
func (n *node) Remove(ctx context.Context, req *bazilfuse.RemoveRequest) error {
	if req.Dir {
		return toErrno(n.fsys.RmDir(ctx, &fuseops.RmDirOp{Parent: n.id, Name: req.Name}))
	}
	return toErrno(n.fsys.Unlink(ctx, &fuseops.UnlinkOp{Parent: n.id, Name: req.Name}))
}

// Rename moves req.OldName under n to req.NewName under newDir.
func (n *node) Rename(ctx context.Context, req *bazilfuse.RenameRequest, newDir fs.Node) error {
	nd, ok := newDir.(*node)
	if !ok {
		return bazilfuse.EIO
	}
	op := &fuseops.RenameOp{
		OldParent: n.id,
		OldName:   req.OldName,
		NewParent: nd.id,
		NewName:   req.NewName,
	}
	return toErrno(n.fsys.Rename(ctx, op))
}

// Access checks accessibility independent of any open handle.
func (n *node) Access(ctx context.Context, req *bazilfuse.AccessRequest) error {
	op := &fuseops.AccessOp{Inode: n.id, Mode: req.Mask}
	return toErrno(n.fsys.Access(ctx, op))
}

// Setattr applies chmod/chown/truncate/utimens.
func (n *node) Setattr(ctx context.Context, req *bazilfuse.SetattrRequest, resp *bazilfuse.SetattrResponse) error {
	op := &fuseops.SetInodeAttributesOp{Inode: n.id}
	if req.Valid.Mode() {
		m := uint32(req.Mode.Perm())
		op.Mode = &m
	}
	if req.Valid.Uid() {
		u := req.Uid
		op.Uid = &u
	}
	if req.Valid.Gid() {
		g := req.Gid
		op.Gid = &g
	}
	if req.Valid.Size() {
		s := req.Size
		op.Size = &s
	}
	if req.Valid.Atime() {
		a := req.Atime.UnixNano()
		op.Atime = &a
	}
	if req.Valid.Mtime() {
		m := req.Mtime.UnixNano()
		op.Mtime = &m
	}

	if err := n.fsys.SetInodeAttributes(ctx, op); err != nil {
		return toErrno(err)
	}
	resp.Attr = attrFromInode(n.id, op.Attributes)
	return nil
}

// Forget drops this inode from the file system's table once the kernel
// no longer references it.
func (n *node) Forget() {
	n.fsys.ForgetInode(context.Background(), &fuseops.ForgetInodeOp{ID: n.id})
}

// Open opens this node as a file or directory handle.
func (n *node) Open(ctx context.Context, req *bazilfuse.OpenRequest, resp *bazilfuse.OpenResponse) (fs.Handle, error) {
	if req.Dir {
		op := &fuseops.OpenDirOp{Inode: n.id}
		if err := n.fsys.OpenDir(ctx, op); err != nil {
			return nil, toErrno(err)
		}
		return &handle{n: n, dirHandle: op.Handle, isDir: true}, nil
	}

	op := &fuseops.OpenFileOp{Inode: n.id, Flags: uint32(req.Flags)}
	if err := n.fsys.OpenFile(ctx, op); err != nil {
		return nil, toErrno(err)
	}
	return &handle{n: n, id: op.Handle}, nil
}

// ReadDirAll lists the directory's entries in one shot; bazil.org/fuse
// paginates the reply to the kernel itself.
func (n *node) ReadDirAll(ctx context.Context) ([]bazilfuse.Dirent, error) {
	op := &fuseops.ReadDirOp{Inode: n.id, Size: 1 << 20}
	if err := n.fsys.ReadDir(ctx, op); err != nil {
		return nil, toErrno(err)
	}

	out := make([]bazilfuse.Dirent, len(op.Entries))
	for i, e := range op.Entries {
		out[i] = bazilfuse.Dirent{
			Inode: uint64(e.Inode),
			Name:  e.Name,
			Type:  direntType(e.Type),
		}
	}
	return out, nil
}

func direntType(t fuseops.DirentType) bazilfuse.DirentType {
	switch t {
	case fuseops.DT_Dir:
		return bazilfuse.DT_Dir
	case fuseops.DT_File:
		return bazilfuse.DT_File
	default:
		return bazilfuse.DT_Unknown
	}
}

// handle adapts an open fuseops file or directory handle to
// bazil.org/fuse's fs.Handle family.
type handle struct {
	n         *node
	id        fuseops.HandleID
	dirHandle fuseops.HandleID
	isDir     bool
}

var (
	_ fs.Handle        = (*handle)(nil)
	_ fs.HandleReader  = (*handle)(nil)
	_ fs.HandleWriter  = (*handle)(nil)
	_ fs.HandleReleaser = (*handle)(nil)
)

func (h *handle) Read(ctx context.Context, req *bazilfuse.ReadRequest, resp *bazilfuse.ReadResponse) error {
	op := &fuseops.ReadFileOp{
		Inode:  h.n.id,
		Handle: h.id,
		Offset: req.Offset,
		Size:   req.Size,
	}
	if err := h.n.fsys.ReadFile(ctx, op); err != nil {
		return toErrno(err)
	}
	resp.Data = op.Data
	return nil
}

func (h *handle) Write(ctx context.Context, req *bazilfuse.WriteRequest, resp *bazilfuse.WriteResponse) error {
	op := &fuseops.WriteFileOp{
		Inode:  h.n.id,
		Handle: h.id,
		Offset: req.Offset,
		Data:   req.Data,
	}
	if err := h.n.fsys.WriteFile(ctx, op); err != nil {
		return toErrno(err)
	}
	resp.Size = len(req.Data)
	return nil
}

func (h *handle) Release(ctx context.Context, req *bazilfuse.ReleaseRequest) error {
	if h.isDir {
		return toErrno(h.n.fsys.ReleaseDirHandle(ctx, &fuseops.ReleaseDirHandleOp{Handle: h.dirHandle}))
	}
	return toErrno(h.n.fsys.ReleaseFileHandle(ctx, &fuseops.ReleaseFileHandleOp{Handle: h.id}))
}
